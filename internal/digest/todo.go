package digest

import (
	"sort"
	"strings"
	"time"

	"github.com/dragon-zzuni/smart-assistant/internal/domain"
)

// DefaultMaxTodoItems is the display cap of a todo list
const DefaultMaxTodoItems = 20

// TodoBuilder compiles analysis results into the final todo list
type TodoBuilder struct {
	maxItems int
	now      func() time.Time
}

// NewTodoBuilder creates a new TodoBuilder; maxItems <= 0 uses the default
func NewTodoBuilder(maxItems int) *TodoBuilder {
	if maxItems <= 0 {
		maxItems = DefaultMaxTodoItems
	}
	return &TodoBuilder{maxItems: maxItems, now: time.Now}
}

// Build flattens every action into todo items, drops duplicates, counts
// over the full set, then sorts and truncates the display list.
func (b *TodoBuilder) Build(results []domain.AnalysisResult, totalMessages int) domain.TodoList {
	list := domain.TodoList{
		PriorityCounts: make(map[domain.Tier]int, len(domain.Tiers)),
		GeneratedAt:    b.now(),
	}
	for _, tier := range domain.Tiers {
		list.PriorityCounts[tier] = 0
	}

	var items []domain.TodoItem
	seen := make(map[string]bool)
	totalActions := 0
	for _, result := range results {
		for _, action := range result.Actions {
			totalActions++
			key := dedupeKey(action)
			if seen[key] {
				continue
			}
			seen[key] = true
			items = append(items, newTodoItem(action, result.Message))
		}
	}

	for _, item := range items {
		list.PriorityCounts[item.Priority]++
		if item.Deadline != "" {
			list.Summary.DeadlineItems++
		}
	}
	list.Summary.TotalMessages = totalMessages
	list.Summary.TotalActions = totalActions
	list.Summary.UrgentItems = list.PriorityCounts[domain.TierHigh]
	list.TotalItems = len(items)

	sort.SliceStable(items, func(i, j int) bool {
		wi, wj := items[i].Priority.Weight(), items[j].Priority.Weight()
		if wi != wj {
			return wi > wj
		}
		di, dj := items[i].DueDate, items[j].DueDate
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return di.Before(*dj)
		}
	})

	if len(items) > b.maxItems {
		items = items[:b.maxItems]
	}
	list.Items = items
	if list.Items == nil {
		list.Items = []domain.TodoItem{}
	}
	return list
}

func newTodoItem(action domain.ActionItem, msg domain.Message) domain.TodoItem {
	return domain.TodoItem{
		ID:          "todo-" + action.ID,
		ActionID:    action.ID,
		Title:       action.Title,
		Description: action.Description,
		Priority:    action.Priority,
		Deadline:    action.Deadline,
		DueDate:     action.DueDate,
		Requester:   action.Requester,
		Type:        action.Type,
		Status:      domain.TodoPending,
		Source: domain.SourceSnapshot{
			ID:       msg.ID,
			Sender:   msg.Sender,
			Subject:  msg.Subject,
			Platform: msg.Platform,
		},
		CreatedAt: action.CreatedAt,
	}
}

func dedupeKey(action domain.ActionItem) string {
	title := strings.Join(strings.Fields(strings.ToLower(action.Title)), " ")
	return strings.ToLower(action.Requester) + "|" + string(action.Type) + "|" + title
}
