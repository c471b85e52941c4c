package local

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dragon-zzuni/smart-assistant/internal/domain"
)

const (
	// DefaultSynopsisLength is the synopsis length in characters
	DefaultSynopsisLength = 200
	// MaxKeyPoints is the most key points a heuristic summary carries
	MaxKeyPoints = 3
	// synopsisEllipsis marks a cut synopsis
	synopsisEllipsis = "..."
)

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	sentencePattern   = regexp.MustCompile(`[.!?。！？\n]+`)
)

// HeuristicJudgment builds a summary from keyword rules alone. It never
// fails: a message with an empty body still gets urgency, sentiment and an
// empty synopsis.
func HeuristicJudgment(rules Rules, msg domain.Message, synopsisLength int) domain.Summary {
	rules = rules.WithDefaults()
	if synopsisLength <= 0 {
		synopsisLength = DefaultSynopsisLength
	}
	lower := strings.ToLower(msg.Body)

	summary := domain.Summary{
		MessageID:      msg.ID,
		Synopsis:       Synopsis(msg.Body, synopsisLength),
		KeyPoints:      KeyPoints(msg.Body),
		Sentiment:      SentimentOf(rules, lower),
		Urgency:        domain.UrgencyLow,
		ActionRequired: containsAny(lower, rules.ActionKeywords),
		ProcessedBy:    domain.ProcessedByLocal,
	}
	if containsAny(lower, rules.UrgentKeywords) {
		summary.Urgency = domain.UrgencyHigh
	}
	if summary.ActionRequired {
		summary.SuggestedReply = SuggestReply(msg, ClassifyAction(lower))
	}
	return summary
}

// Synopsis returns the first n characters of body, marked when cut
func Synopsis(body string, n int) string {
	if utf8.RuneCountInString(body) <= n {
		return body
	}
	runes := []rune(body)
	return string(runes[:n]) + synopsisEllipsis
}

// KeyPoints splits body on the period and keeps the non-blank fragments
// among the first three
func KeyPoints(body string) []string {
	parts := strings.Split(body, ".")
	if len(parts) > MaxKeyPoints {
		parts = parts[:MaxKeyPoints]
	}

	var points []string
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			points = append(points, part)
		}
	}
	return points
}

// SentimentOf classifies lowercased text; positive words are checked first
func SentimentOf(rules Rules, lower string) domain.Sentiment {
	switch {
	case containsAny(lower, rules.PositiveKeywords):
		return domain.SentimentPositive
	case containsAny(lower, rules.NegativeKeywords):
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}

// sentences splits text on sentence punctuation and line breaks
func sentences(text string) []string {
	var out []string
	for _, part := range sentencePattern.Split(text, -1) {
		part = strings.TrimSpace(whitespacePattern.ReplaceAllString(part, " "))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
