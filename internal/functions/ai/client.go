package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dragon-zzuni/smart-assistant/internal/domain"
)

var (
	// ErrNotConfigured indicates the AI client is not configured
	ErrNotConfigured = errors.New("AI client not configured")
	// ErrAPICallFailed indicates the AI API call failed
	ErrAPICallFailed = errors.New("AI API call failed")
	// ErrInvalidResponse indicates an invalid response from the AI API
	ErrInvalidResponse = errors.New("invalid AI API response")
)

// Provider represents an AI provider
type Provider string

const (
	// ProviderOpenAI represents OpenAI API
	ProviderOpenAI Provider = "openai"
	// ProviderOpenRouter represents the OpenRouter gateway
	ProviderOpenRouter Provider = "openrouter"
	// ProviderCustom represents a custom OpenAI-compatible endpoint
	ProviderCustom Provider = "custom"
)

const (
	defaultOpenAIURL     = "https://api.openai.com/v1"
	defaultOpenRouterURL = "https://openrouter.ai/api/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultRouterModel   = "openai/gpt-4o-mini"

	// maxBodyChars caps the message body sent for judgment
	maxBodyChars   = 3000
	judgeMaxTokens = 300
	judgeTemp      = 0.2
)

// Client talks to an OpenAI-compatible chat completions API
type Client struct {
	provider   Provider
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new AI Client instance
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Configure sets provider, key, model and an optional base URL. An empty
// model or base URL takes the provider default.
func (c *Client) Configure(provider, apiKey, model, baseURL string) {
	c.provider = Provider(strings.ToLower(strings.TrimSpace(provider)))
	c.apiKey = apiKey
	c.model = model

	switch c.provider {
	case ProviderOpenAI:
		c.baseURL = defaultOpenAIURL
		if c.model == "" {
			c.model = defaultOpenAIModel
		}
	case ProviderCustom:
		if c.model == "" {
			c.model = defaultOpenAIModel
		}
	default:
		c.provider = ProviderOpenRouter
		c.baseURL = defaultOpenRouterURL
		if c.model == "" {
			c.model = defaultRouterModel
		}
	}

	if baseURL != "" {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// IsConfigured returns whether the client can make calls
func (c *Client) IsConfigured() bool {
	return c.apiKey != "" && c.baseURL != ""
}

// Provider returns the configured provider
func (c *Client) Provider() Provider {
	return c.provider
}

// ChatMessage represents a message in a chat conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents a chat completion request
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

// ChatResponse represents a chat completion response
type ChatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// sendChatRequest sends a chat completion request to the AI API
func (c *Client) sendChatRequest(ctx context.Context, messages []ChatMessage) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}

	request := ChatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   judgeMaxTokens,
		Temperature: judgeTemp,
	}

	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAPICallFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAPICallFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.provider == ProviderOpenRouter {
		req.Header.Set("X-Title", "smart-assistant")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAPICallFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAPICallFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrAPICallFailed, resp.StatusCode, string(respBody))
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrAPICallFailed, chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", ErrInvalidResponse
	}

	return chatResp.Choices[0].Message.Content, nil
}

const judgeSystemPrompt = `You analyze workplace messages. Reply with one JSON object and nothing else:
{"summary": "...", "key_points": ["..."], "sentiment": "positive|negative|neutral", "urgency_level": "high|medium|low", "action_required": true|false, "suggested_response": "..."}
Rules:
- Keep the summary under 200 characters
- At most three key points
- Use the same language as the message
- suggested_response is empty when no reply is needed`

// judgment is the JSON object the model is asked to return
type judgment struct {
	Summary           string   `json:"summary"`
	KeyPoints         []string `json:"key_points"`
	Sentiment         string   `json:"sentiment"`
	UrgencyLevel      string   `json:"urgency_level"`
	ActionRequired    bool     `json:"action_required"`
	SuggestedResponse string   `json:"suggested_response"`
}

// Judge asks the model for a structured judgment of one message. It makes
// exactly one call; the caller decides what to do on failure.
func (c *Client) Judge(ctx context.Context, msg domain.Message) (domain.Summary, error) {
	body := msg.Body
	if utf8.RuneCountInString(body) > maxBodyChars {
		body = string([]rune(body)[:maxBodyChars])
	}

	messages := []ChatMessage{
		{
			Role:    "system",
			Content: judgeSystemPrompt,
		},
		{
			Role:    "user",
			Content: fmt.Sprintf("From: %s\nSubject: %s\n\nContent:\n%s", msg.Sender, msg.Subject, body),
		},
	}

	response, err := c.sendChatRequest(ctx, messages)
	if err != nil {
		return domain.Summary{}, err
	}

	j, err := parseJudgment(response)
	if err != nil {
		return domain.Summary{}, err
	}

	return domain.Summary{
		MessageID:      msg.ID,
		Synopsis:       strings.TrimSpace(j.Summary),
		KeyPoints:      j.KeyPoints,
		Sentiment:      domain.Sentiment(j.Sentiment),
		Urgency:        domain.Urgency(j.UrgencyLevel),
		ActionRequired: j.ActionRequired,
		SuggestedReply: strings.TrimSpace(j.SuggestedResponse),
		ProcessedBy:    domain.ProcessedByAI,
	}, nil
}

// parseJudgment decodes the object between the first '{' and the last '}'
// and validates its enum fields
func parseJudgment(response string) (judgment, error) {
	var j judgment
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return j, fmt.Errorf("%w: no JSON object in response", ErrInvalidResponse)
	}
	if err := json.Unmarshal([]byte(response[start:end+1]), &j); err != nil {
		return j, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	j.Sentiment = strings.ToLower(strings.TrimSpace(j.Sentiment))
	j.UrgencyLevel = strings.ToLower(strings.TrimSpace(j.UrgencyLevel))
	if !domain.Sentiment(j.Sentiment).IsValid() {
		return j, fmt.Errorf("%w: sentiment %q", ErrInvalidResponse, j.Sentiment)
	}
	if !domain.Urgency(j.UrgencyLevel).IsValid() {
		return j, fmt.Errorf("%w: urgency %q", ErrInvalidResponse, j.UrgencyLevel)
	}
	if len(j.KeyPoints) > 3 {
		j.KeyPoints = j.KeyPoints[:3]
	}
	return j, nil
}
