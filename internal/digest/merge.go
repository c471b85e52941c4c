package digest

import (
	"github.com/dragon-zzuni/smart-assistant/internal/domain"
)

// GroupActions indexes action items by their source message ID, keeping
// extraction order within each message
func GroupActions(items []domain.ActionItem) map[string][]domain.ActionItem {
	byID := make(map[string][]domain.ActionItem)
	for _, item := range items {
		byID[item.MessageID] = append(byID[item.MessageID], item)
	}
	return byID
}

// Merge joins ranking, summaries and actions by message ID in ranking
// order. A message without a summary gets a nil Summary. Actions whose
// summary reports high urgency are raised to the high tier.
func Merge(ranked []domain.RankedMessage, summaries map[string]*domain.Summary, actions map[string][]domain.ActionItem) []domain.AnalysisResult {
	results := make([]domain.AnalysisResult, 0, len(ranked))
	for _, rm := range ranked {
		result := domain.AnalysisResult{
			Message:  rm.Message,
			Priority: rm.Priority,
			Summary:  summaries[rm.Message.ID],
		}

		if items := actions[rm.Message.ID]; len(items) > 0 {
			result.Actions = make([]domain.ActionItem, len(items))
			copy(result.Actions, items)
			if result.Summary != nil && result.Summary.Urgency == domain.UrgencyHigh {
				for i := range result.Actions {
					result.Actions[i].Priority = domain.TierHigh
				}
			}
		}

		results = append(results, result)
	}
	return results
}
