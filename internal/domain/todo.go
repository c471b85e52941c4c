package domain

import (
	"time"
)

// TodoStatus is the lifecycle status of a todo item, owned downstream
type TodoStatus string

const (
	TodoPending TodoStatus = "pending"
)

// SourceSnapshot is the part of the source message a todo item keeps
type SourceSnapshot struct {
	ID       string `json:"id"`
	Sender   string `json:"sender"`
	Subject  string `json:"subject,omitempty"`
	Platform string `json:"platform"`
}

// TodoItem is built once from an action item and never mutated afterwards
type TodoItem struct {
	ID          string         `json:"id"`
	ActionID    string         `json:"action_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    Tier           `json:"priority"`
	Deadline    string         `json:"deadline,omitempty"`
	DueDate     *time.Time     `json:"due_date,omitempty"`
	Requester   string         `json:"requester"`
	Type        ActionType     `json:"type"`
	Status      TodoStatus     `json:"status"`
	Source      SourceSnapshot `json:"source_message"`
	CreatedAt   time.Time      `json:"created_at"`
}

// TodoStats are aggregate counts over the full, untruncated item set
type TodoStats struct {
	TotalMessages int `json:"total_messages"`
	TotalActions  int `json:"total_actions"`
	UrgentItems   int `json:"urgent_items"`
	DeadlineItems int `json:"deadline_items"`
}

// TodoList is the final output of a run
type TodoList struct {
	TotalItems     int          `json:"total_items"`
	PriorityCounts map[Tier]int `json:"priority_stats"`
	Items          []TodoItem   `json:"items"`
	Summary        TodoStats    `json:"summary"`
	GeneratedAt    time.Time    `json:"generated_at"`
}
