package digest

import (
	"fmt"
	"strings"
	"time"

	"github.com/dragon-zzuni/smart-assistant/internal/domain"
	"github.com/dragon-zzuni/smart-assistant/internal/functions/local"
)

const (
	reportLineChars = 120
	overviewTop     = 3
)

// ComposeReport renders the plain-text review report: a header, one
// rolled-up overview line, then one section per tier
func ComposeReport(results []domain.AnalysisResult, todo domain.TodoList, generatedAt time.Time) string {
	byTier := make(map[domain.Tier][]domain.AnalysisResult, len(domain.Tiers))
	for _, r := range results {
		byTier[r.Priority.Tier] = append(byTier[r.Priority.Tier], r)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Smart Assistant Report (%s)\n", generatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Messages: %d  Actions: %d  Todo: %d (high %d / medium %d / low %d)\n\n",
		len(results), todo.Summary.TotalActions, todo.TotalItems,
		todo.PriorityCounts[domain.TierHigh], todo.PriorityCounts[domain.TierMedium], todo.PriorityCounts[domain.TierLow])

	fmt.Fprintf(&b, "Overview: %s\n", overview(results, byTier))

	for _, tier := range domain.Tiers {
		fmt.Fprintf(&b, "\n[%s]\n", strings.ToUpper(string(tier)))
		section := byTier[tier]
		if len(section) == 0 {
			b.WriteString("(none)\n")
			continue
		}
		for _, r := range section {
			fmt.Fprintf(&b, "- %s (%s): %s\n", r.Message.Sender, r.Message.Platform, synopsisOf(r))
			for _, a := range r.Actions {
				if a.Deadline != "" {
					fmt.Fprintf(&b, "  * %s [%s, %s]\n", a.Title, a.Type, a.Deadline)
				} else {
					fmt.Fprintf(&b, "  * %s [%s]\n", a.Title, a.Type)
				}
			}
		}
	}

	return b.String()
}

// overview rolls the most urgent synopses into one line
func overview(results []domain.AnalysisResult, byTier map[domain.Tier][]domain.AnalysisResult) string {
	if len(results) == 0 {
		return "no messages"
	}
	head := fmt.Sprintf("%d messages, %d high, %d medium, %d low.",
		len(results), len(byTier[domain.TierHigh]), len(byTier[domain.TierMedium]), len(byTier[domain.TierLow]))

	var top []string
	for _, r := range results {
		if len(top) == overviewTop {
			break
		}
		if s := synopsisOf(r); s != "" {
			top = append(top, s)
		}
	}
	if len(top) == 0 {
		return head
	}
	return head + " " + strings.Join(top, " / ")
}

func synopsisOf(r domain.AnalysisResult) string {
	text := r.Message.Body
	if r.Summary != nil && r.Summary.Synopsis != "" {
		text = r.Summary.Synopsis
	}
	return local.Synopsis(strings.Join(strings.Fields(text), " "), reportLineChars)
}
