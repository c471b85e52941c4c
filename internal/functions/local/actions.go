package local

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dragon-zzuni/smart-assistant/internal/domain"
)

const (
	// MaxActionsPerMessage caps the actions taken from one message
	MaxActionsPerMessage = 3
	// maxTitleLength is the title length in characters
	maxTitleLength = 60
	titleEllipsis  = "…"
)

type actionKeywords struct {
	action   domain.ActionType
	keywords []string
}

// First matching class wins; a sentence matching none is a generic task
var actionClasses = []actionKeywords{
	{domain.ActionMeeting, []string{"미팅", "회의", "콜", "프레젠테이션", "발표", "meeting", "call", "presentation"}},
	{domain.ActionReview, []string{"검토", "리뷰", "피드백", "review", "feedback"}},
	{domain.ActionReport, []string{"보고서", "보고", "제출", "report", "submit"}},
	{domain.ActionDelegation, []string{"맡아", "담당", "위임", "처리 부탁", "assign", "delegate", "handle"}},
	{domain.ActionReply, []string{"회신", "답변", "답장", "reply", "respond", "get back"}},
}

// ClassifyAction maps lowercased text to an action type
func ClassifyAction(lower string) domain.ActionType {
	for _, class := range actionClasses {
		if containsAny(lower, class.keywords) {
			return class.action
		}
	}
	return domain.ActionTask
}

// ActionExtractor turns request sentences into action items
type ActionExtractor struct {
	rules  Rules
	ranker *Ranker
	now    func() time.Time
	newID  func() string
}

// NewActionExtractor creates a new ActionExtractor instance
func NewActionExtractor(rules Rules) *ActionExtractor {
	rules = rules.WithDefaults()
	return &ActionExtractor{
		rules:  rules,
		ranker: NewRanker(rules),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Extract returns the action items of every message, in message order
func (e *ActionExtractor) Extract(messages []domain.Message) []domain.ActionItem {
	var items []domain.ActionItem
	for _, msg := range messages {
		items = append(items, e.ExtractOne(msg)...)
	}
	return items
}

// ExtractOne returns the action items found in one message. Messages with
// empty or unreadable bodies yield nothing.
func (e *ActionExtractor) ExtractOne(msg domain.Message) []domain.ActionItem {
	if strings.TrimSpace(msg.Body) == "" {
		return nil
	}

	ref := msg.Timestamp
	if ref.IsZero() {
		ref = e.now()
	}
	messageDeadline, hasMessageDeadline := FirstDeadline(msg.Body, ref)
	tier := e.ranker.Score(msg).Tier

	var items []domain.ActionItem
	seen := make(map[string]bool)
	for _, sentence := range sentences(msg.Body) {
		lower := strings.ToLower(sentence)
		if !containsAny(lower, e.rules.ActionKeywords) {
			continue
		}
		actionType := ClassifyAction(lower)
		title := truncateTitle(sentence)
		key := string(actionType) + "|" + strings.ToLower(title)
		if seen[key] {
			continue
		}
		seen[key] = true

		item := domain.ActionItem{
			ID:          e.newID(),
			MessageID:   msg.ID,
			Title:       title,
			Description: sentence,
			Priority:    tier,
			Requester:   msg.Sender,
			Type:        actionType,
			CreatedAt:   e.now(),
		}
		if d, ok := FirstDeadline(sentence, ref); ok {
			item.Deadline, item.DueDate = d.Text, d.Due
		} else if hasMessageDeadline {
			item.Deadline, item.DueDate = messageDeadline.Text, messageDeadline.Due
		}
		if actionType == domain.ActionMeeting {
			if info := ExtractMeetingInfo(msg.Body); !info.IsZero() {
				item.Description = fmt.Sprintf("%s (시간: %s, 장소: %s)", sentence, orUnset(info.Time), orUnset(info.Location))
			}
		}

		items = append(items, item)
		if len(items) == MaxActionsPerMessage {
			break
		}
	}
	return items
}

func truncateTitle(s string) string {
	if utf8.RuneCountInString(s) <= maxTitleLength {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:maxTitleLength])) + titleEllipsis
}
