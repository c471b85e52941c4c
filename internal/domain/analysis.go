package domain

import (
	"time"
)

// Tier is the discretized priority of a message or action
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Tiers lists every tier from most to least urgent
var Tiers = []Tier{TierHigh, TierMedium, TierLow}

// IsValid checks if the tier is valid
func (t Tier) IsValid() bool {
	switch t {
	case TierHigh, TierMedium, TierLow:
		return true
	}
	return false
}

// Weight orders tiers; higher is more urgent and unknown tiers sort last
func (t Tier) Weight() int {
	switch t {
	case TierHigh:
		return 3
	case TierMedium:
		return 2
	case TierLow:
		return 1
	}
	return 0
}

// Urgency is the urgency tag of a judgment
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// IsValid checks if the urgency is valid
func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyHigh, UrgencyMedium, UrgencyLow:
		return true
	}
	return false
}

// Sentiment is the sentiment tag of a judgment
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// IsValid checks if the sentiment is valid
func (s Sentiment) IsValid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// Signal is one contribution to a priority score
type Signal struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Detail string  `json:"detail,omitempty"`
}

// PriorityScore is the ranking of a single message
type PriorityScore struct {
	MessageID string   `json:"message_id"`
	Tier      Tier     `json:"tier"`
	Score     float64  `json:"score"`
	Signals   []Signal `json:"signals,omitempty"`
}

// RankedMessage pairs a message with its score
type RankedMessage struct {
	Message  Message       `json:"message"`
	Priority PriorityScore `json:"priority"`
}

// Processed-by markers for summaries
const (
	ProcessedByAI    = "ai"
	ProcessedByLocal = "local"
)

// Summary is the judgment produced for one analyzed message.
// MessageID is filled in by the analyzer after the judgment completes.
type Summary struct {
	MessageID      string    `json:"message_id"`
	Synopsis       string    `json:"synopsis"`
	KeyPoints      []string  `json:"key_points"`
	Sentiment      Sentiment `json:"sentiment"`
	Urgency        Urgency   `json:"urgency"`
	ActionRequired bool      `json:"action_required"`
	SuggestedReply string    `json:"suggested_reply,omitempty"`
	ProcessedBy    string    `json:"processed_by"`
	FallbackReason string    `json:"fallback_reason,omitempty"`
}

// ActionType classifies an action item
type ActionType string

const (
	ActionMeeting    ActionType = "meeting"
	ActionReview     ActionType = "review"
	ActionReport     ActionType = "report"
	ActionDelegation ActionType = "delegation"
	ActionReply      ActionType = "reply"
	ActionTask       ActionType = "task"
)

// ActionItem is a concrete thing to do derived from one message
type ActionItem struct {
	ID          string     `json:"id"`
	MessageID   string     `json:"message_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    Tier       `json:"priority"`
	Deadline    string     `json:"deadline,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Requester   string     `json:"requester"`
	Type        ActionType `json:"type"`
	CreatedAt   time.Time  `json:"created_at"`
}

// AnalysisResult joins ranking, summary and actions of one message.
// Summary is nil when the message fell outside the deep-analysis cutoff.
type AnalysisResult struct {
	Message  Message       `json:"message"`
	Priority PriorityScore `json:"priority"`
	Summary  *Summary      `json:"summary"`
	Actions  []ActionItem  `json:"actions"`
}
