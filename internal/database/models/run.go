package models

import (
	"time"

	"github.com/dragon-zzuni/smart-assistant/internal/domain"
)

// Run is the persisted outcome of one pipeline run. Trigger is cli, api or
// scheduler; Mode is ai or local.
type Run struct {
	ID             string          `gorm:"primaryKey;size:36" json:"id"`
	State          domain.RunState `gorm:"size:20;index" json:"state"`
	Trigger        string          `gorm:"size:20" json:"trigger"`
	Mode           string          `gorm:"size:10" json:"mode"`
	Collected      int             `json:"collected"`
	Normalized     int             `json:"normalized"`
	Coalesced      int             `json:"coalesced"`
	Analyzed       int             `json:"analyzed"`
	Fallbacks      int             `json:"fallbacks"`
	TotalActions   int             `json:"total_actions"`
	TodoItems      int             `json:"todo_items"`
	SourceFailures int             `json:"source_failures"`
	Error          string          `gorm:"type:text" json:"error,omitempty"`
	Report         string          `gorm:"type:text" json:"-"`
	ArchivePath    string          `json:"archive_path,omitempty"`
	StartedAt      time.Time       `gorm:"index" json:"started_at"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
	Todos          []TodoRecord    `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"todos,omitempty"`
}

// TodoRecord is a snapshot of one displayed todo item of a run
type TodoRecord struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	RunID           string     `gorm:"size:36;index" json:"run_id"`
	Position        int        `json:"position"`
	ItemID          string     `gorm:"size:64" json:"item_id"`
	Title           string     `json:"title"`
	Description     string     `gorm:"type:text" json:"description"`
	Priority        string     `gorm:"size:10;index" json:"priority"`
	Type            string     `gorm:"size:20" json:"type"`
	Deadline        string     `json:"deadline,omitempty"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	Requester       string     `json:"requester"`
	Status          string     `gorm:"size:20" json:"status"`
	SourceMessageID string     `json:"source_message_id"`
	SourcePlatform  string     `gorm:"size:50" json:"source_platform"`
	CreatedAt       time.Time  `json:"created_at"`
}

// NewTodoRecord snapshots a todo item at its display position
func NewTodoRecord(runID string, position int, item domain.TodoItem) TodoRecord {
	return TodoRecord{
		RunID:           runID,
		Position:        position,
		ItemID:          item.ID,
		Title:           item.Title,
		Description:     item.Description,
		Priority:        string(item.Priority),
		Type:            string(item.Type),
		Deadline:        item.Deadline,
		DueDate:         item.DueDate,
		Requester:       item.Requester,
		Status:          string(item.Status),
		SourceMessageID: item.Source.ID,
		SourcePlatform:  item.Source.Platform,
		CreatedAt:       item.CreatedAt,
	}
}
