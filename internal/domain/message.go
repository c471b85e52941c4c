package domain

import (
	"time"
)

// SourceType identifies the kind of connector a message came from
type SourceType string

const (
	SourceMail SourceType = "mail"
	SourceChat SourceType = "chat"
)

// IsValid checks if the source type is valid
func (s SourceType) IsValid() bool {
	switch s {
	case SourceMail, SourceChat:
		return true
	}
	return false
}

// UnknownSender is used for records that carry no sender
const UnknownSender = "unknown"

// Message is the canonical form every source record is normalized into.
// ID is unique within one collection run and qualified by its source.
// Timestamp is always set; naive source timestamps are read as UTC.
type Message struct {
	ID          string     `json:"id"`
	Sender      string     `json:"sender"`
	Recipient   string     `json:"recipient,omitempty"`
	Subject     string     `json:"subject,omitempty"`
	Body        string     `json:"body"`
	Timestamp   time.Time  `json:"timestamp"`
	Source      SourceType `json:"source"`
	Platform    string     `json:"platform"`
	Attachments []string   `json:"attachments,omitempty"`

	// Parts holds the constituent IDs of a coalesced message, nil otherwise
	Parts []string `json:"parts,omitempty"`
	// UrgencyHint is an urgency marker surfaced by the source itself
	UrgencyHint Urgency `json:"urgency_hint,omitempty"`
}

// IsCoalesced reports whether the message was built from several originals
func (m Message) IsCoalesced() bool {
	return len(m.Parts) > 1
}
