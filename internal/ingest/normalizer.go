package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dragon-zzuni/smart-assistant/internal/domain"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrRecordMalformed indicates a record that cannot become a Message
	ErrRecordMalformed = errors.New("malformed record")
	// ErrSystemRecord indicates a system event excluded by configuration
	ErrSystemRecord = errors.New("system event excluded")
)

const (
	// PlatformEmail labels messages from mail connectors
	PlatformEmail = "email"
	// DefaultChatPlatform labels chat records that name no channel
	DefaultChatPlatform = "messenger"
	// chatTypeMessage is the record type of ordinary chat lines
	chatTypeMessage = "chat"
)

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`[ \t\f\v]+`)
)

// Options control normalization policy
type Options struct {
	// IncludeSystem keeps non-chat event records such as joins or uploads
	IncludeSystem bool
	// LenientTimestamps resolves unparseable timestamps to now instead of
	// rejecting the record
	LenientTimestamps bool
	// Now is the clock used for missing timestamps
	Now func() time.Time
}

// Normalizer converts raw records into canonical messages
type Normalizer struct {
	opts Options
}

// NewNormalizer creates a new Normalizer instance
func NewNormalizer(opts Options) *Normalizer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Normalizer{opts: opts}
}

// Normalize maps one record to exactly one message or rejects it
func (n *Normalizer) Normalize(rec Record) (domain.Message, error) {
	switch rec.Kind {
	case KindMail:
		if rec.Mail == nil {
			return domain.Message{}, fmt.Errorf("%w: empty mail record", ErrRecordMalformed)
		}
		return n.fromMail(rec, rec.Mail)
	case KindChatLog:
		if rec.Chat == nil {
			return domain.Message{}, fmt.Errorf("%w: empty chat record", ErrRecordMalformed)
		}
		return n.fromChatLog(rec, rec.Chat)
	case KindChannelMap:
		if rec.Channel == nil {
			return domain.Message{}, fmt.Errorf("%w: empty channel record", ErrRecordMalformed)
		}
		return n.fromChannel(rec, rec.Channel)
	case KindExport:
		if rec.Export == nil {
			return domain.Message{}, fmt.Errorf("%w: empty export record", ErrRecordMalformed)
		}
		return n.fromExport(rec, rec.Export)
	case KindStoreRow:
		if rec.Row == nil {
			return domain.Message{}, fmt.Errorf("%w: empty store row", ErrRecordMalformed)
		}
		return n.fromStoreRow(rec, rec.Row)
	}
	return domain.Message{}, fmt.Errorf("%w: unknown record kind %q", ErrRecordMalformed, rec.Kind)
}

// NormalizeAll normalizes every record, skipping rejected ones.
// Messages whose ID was already produced earlier in the batch are dropped.
func (n *Normalizer) NormalizeAll(records []Record) []domain.Message {
	messages := make([]domain.Message, 0, len(records))
	seen := make(map[string]bool, len(records))

	for _, rec := range records {
		msg, err := n.Normalize(rec)
		if err != nil {
			entry := log.WithFields(log.Fields{
				"origin": rec.Origin,
				"kind":   rec.Kind,
				"seq":    rec.Seq,
			})
			if errors.Is(err, ErrSystemRecord) {
				entry.Debug("[Normalizer] System record skipped")
			} else {
				entry.WithError(err).Warn("[Normalizer] Record skipped")
			}
			continue
		}
		if seen[msg.ID] {
			log.WithField("id", msg.ID).Debug("[Normalizer] Duplicate message dropped")
			continue
		}
		seen[msg.ID] = true
		messages = append(messages, msg)
	}

	return messages
}

func (n *Normalizer) fromMail(rec Record, m *MailRecord) (domain.Message, error) {
	body := strings.TrimSpace(m.Body)
	if body == "" && m.HTMLBody != "" {
		body = stripHTML(m.HTMLBody)
	}
	subject := strings.TrimSpace(m.Subject)
	if body == "" && subject == "" {
		return domain.Message{}, fmt.Errorf("%w: mail has neither subject nor body", ErrRecordMalformed)
	}
	// A subject-only mail carries its text in the subject
	if body == "" {
		body = subject
	}

	ts := m.Date
	if ts.IsZero() {
		ts = n.opts.Now()
	}

	id := strings.TrimSpace(m.ID)
	if id == "" {
		sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%s|%s", ts.UnixNano(), subject, m.From, body)))
		id = "gen-" + hex.EncodeToString(sum[:12])
	}

	return domain.Message{
		ID:          qualify("mail", rec.Origin, id),
		Sender:      senderOrUnknown(m.From),
		Recipient:   strings.Join(m.To, ", "),
		Subject:     subject,
		Body:        body,
		Timestamp:   ts,
		Source:      domain.SourceMail,
		Platform:    PlatformEmail,
		Attachments: m.Attachments,
	}, nil
}

func (n *Normalizer) fromChatLog(rec Record, c *ChatLogRecord) (domain.Message, error) {
	body := firstNonBlank(c.Body, c.Message)
	kind := strings.ToLower(strings.TrimSpace(c.Type))

	if kind != "" && kind != chatTypeMessage {
		if !n.opts.IncludeSystem {
			return domain.Message{}, fmt.Errorf("%w: type %q", ErrSystemRecord, kind)
		}
		if extra := nonBlank(c.Filename, c.URL); body == "" && len(extra) > 0 {
			body = "[" + kind + "] " + strings.Join(extra, " ")
		}
	}
	if body == "" {
		return domain.Message{}, fmt.Errorf("%w: chat message is empty", ErrRecordMalformed)
	}

	ts, err := n.resolveTimestamp(c.Timestamp.String())
	if err != nil {
		return domain.Message{}, err
	}

	channel := firstNonBlank(c.Channel, c.Room)
	return domain.Message{
		ID:        qualify("chat", rec.Origin, idOrSeq(c.ID.String(), rec.Seq)),
		Sender:    senderOrUnknown(c.Username),
		Recipient: channel,
		Body:      body,
		Timestamp: ts,
		Source:    domain.SourceChat,
		Platform:  platformOr(channel, DefaultChatPlatform),
	}, nil
}

func (n *Normalizer) fromChannel(rec Record, c *ChannelRecord) (domain.Message, error) {
	body := firstNonBlank(c.Body, c.Message)
	if body == "" {
		return domain.Message{}, fmt.Errorf("%w: channel message is empty", ErrRecordMalformed)
	}

	ts, err := n.resolveTimestamp(firstNonBlank(c.SentAt.String(), c.CreatedAt.String()))
	if err != nil {
		return domain.Message{}, err
	}

	// Several map keys may share one room, so only the key keeps IDs apart
	channel := firstNonBlank(c.RoomSlug, c.Channel)
	key := firstNonBlank(c.Channel, c.RoomSlug)
	return domain.Message{
		ID:        qualify("chat", rec.Origin, key+":"+idOrSeq(c.ID.String(), rec.Seq)),
		Sender:    senderOrUnknown(c.Sender),
		Recipient: channel,
		Body:      body,
		Timestamp: ts,
		Source:    domain.SourceChat,
		Platform:  platformOr(channel, DefaultChatPlatform),
	}, nil
}

func (n *Normalizer) fromExport(rec Record, e *ExportRecord) (domain.Message, error) {
	body := strings.TrimSpace(e.Content)
	if body == "" {
		return domain.Message{}, fmt.Errorf("%w: exported message is empty", ErrRecordMalformed)
	}

	ts, err := n.resolveTimestamp(e.Timestamp.String())
	if err != nil {
		return domain.Message{}, err
	}

	platform := strings.ToLower(strings.TrimSpace(e.Platform))
	source := domain.SourceChat
	if platform == PlatformEmail || platform == "mail" {
		source = domain.SourceMail
		platform = PlatformEmail
	}

	msg := domain.Message{
		ID:        qualify("export", rec.Origin, idOrSeq(e.MsgID.String(), rec.Seq)),
		Sender:    senderOrUnknown(e.Sender),
		Recipient: strings.TrimSpace(e.Recipient),
		Subject:   strings.TrimSpace(e.Subject),
		Body:      body,
		Timestamp: ts,
		Source:    source,
		Platform:  platformOr(platform, DefaultChatPlatform),
	}
	if u := domain.Urgency(strings.ToLower(strings.TrimSpace(e.Priority))); u.IsValid() {
		msg.UrgencyHint = u
	}
	return msg, nil
}

func (n *Normalizer) fromStoreRow(rec Record, r *StoreRow) (domain.Message, error) {
	body := strings.TrimSpace(r.Message)
	if body == "" {
		return domain.Message{}, fmt.Errorf("%w: stored message is empty", ErrRecordMalformed)
	}

	ts, err := n.resolveTimestamp(r.Timestamp)
	if err != nil {
		return domain.Message{}, err
	}

	room := strings.TrimSpace(r.Room)
	return domain.Message{
		ID:        qualify("store", rec.Origin, idOrSeq(strings.TrimSpace(r.ID), rec.Seq)),
		Sender:    senderOrUnknown(r.Username),
		Recipient: room,
		Body:      body,
		Timestamp: ts,
		Source:    domain.SourceChat,
		Platform:  platformOr(room, DefaultChatPlatform),
	}, nil
}

// resolveTimestamp applies the missing/unparseable timestamp policy
func (n *Normalizer) resolveTimestamp(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return n.opts.Now(), nil
	}
	ts, err := ParseTimestamp(raw)
	if err == nil {
		return ts, nil
	}
	if n.opts.LenientTimestamps {
		return n.opts.Now(), nil
	}
	return time.Time{}, fmt.Errorf("%w: timestamp %q: %v", ErrRecordMalformed, raw, err)
}

func qualify(prefix, origin, id string) string {
	if origin == "" {
		return prefix + ":" + id
	}
	return prefix + ":" + origin + ":" + id
}

func idOrSeq(id string, seq int) string {
	if id != "" {
		return id
	}
	return "#" + strconv.Itoa(seq)
}

func senderOrUnknown(sender string) string {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return domain.UnknownSender
	}
	return sender
}

func platformOr(platform, fallback string) string {
	platform = strings.TrimSpace(platform)
	if platform == "" {
		return fallback
	}
	return platform
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func nonBlank(values ...string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// stripHTML reduces an HTML body to its text lines
func stripHTML(html string) string {
	text := htmlTagPattern.ReplaceAllString(html, " ")
	replacer := strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", "\"", "&#39;", "'")
	text = replacer.Replace(text)

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(whitespacePattern.ReplaceAllString(line, " "))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
