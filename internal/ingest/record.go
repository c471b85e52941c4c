package ingest

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Kind tags which input shape a Record holds
type Kind string

const (
	KindMail       Kind = "mail"
	KindChatLog    Kind = "chat_log"
	KindChannelMap Kind = "channel_map"
	KindExport     Kind = "export"
	KindStoreRow   Kind = "store_row"
)

// Record is a raw input record. Exactly one of the shape pointers is set,
// matching Kind.
type Record struct {
	Kind Kind
	// Origin names the source or file the record came from; it qualifies IDs
	Origin string
	// Seq is the record's position within its origin
	Seq int

	Mail    *MailRecord
	Chat    *ChatLogRecord
	Channel *ChannelRecord
	Export  *ExportRecord
	Row     *StoreRow
}

// MailRecord is a decoded message from a mail connector
type MailRecord struct {
	ID          string
	Subject     string
	From        string
	To          []string
	Date        time.Time
	Body        string
	HTMLBody    string
	Attachments []string
}

// ChatLogRecord is one entry of the flat chat log shape
type ChatLogRecord struct {
	ID        FlexString `json:"id"`
	Channel   string     `json:"channel"`
	Room      string     `json:"room"`
	Username  string     `json:"username"`
	Body      string     `json:"body"`
	Message   string     `json:"message"`
	Timestamp FlexString `json:"timestamp"`
	Type      string     `json:"type"`
	URL       string     `json:"url"`
	Filename  string     `json:"filename"`
}

// ChannelRecord is one entry of the nested channel-map shape.
// Channel is the map key it was found under.
type ChannelRecord struct {
	Channel   string     `json:"-"`
	ID        FlexString `json:"id"`
	RoomSlug  string     `json:"room_slug"`
	Sender    string     `json:"sender"`
	Body      string     `json:"body"`
	Message   string     `json:"message"`
	SentAt    FlexString `json:"sent_at"`
	CreatedAt FlexString `json:"created_at"`
}

// ExportRecord is one message of an exported message list
type ExportRecord struct {
	MsgID     FlexString `json:"msg_id"`
	Sender    string     `json:"sender"`
	Recipient string     `json:"recipient"`
	Subject   string     `json:"subject"`
	Content   string     `json:"content"`
	Timestamp FlexString `json:"timestamp"`
	Platform  string     `json:"platform"`
	Priority  string     `json:"priority"`
}

// StoreRow is one row of the relational message store
type StoreRow struct {
	ID        string
	Room      string
	Username  string
	Message   string
	Timestamp string
}

// FromMail wraps a mail record
func FromMail(origin string, seq int, m MailRecord) Record {
	return Record{Kind: KindMail, Origin: origin, Seq: seq, Mail: &m}
}

// FromStoreRow wraps a store row
func FromStoreRow(origin string, seq int, r StoreRow) Record {
	return Record{Kind: KindStoreRow, Origin: origin, Seq: seq, Row: &r}
}

// FlexString decodes a JSON string or number into its textual form.
// Null decodes to the empty string.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(strings.TrimSpace(string(data)))
	return nil
}

// String returns the trimmed text
func (f FlexString) String() string {
	return strings.TrimSpace(string(f))
}
