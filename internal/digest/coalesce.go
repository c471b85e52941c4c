package digest

import (
	"sort"
	"strings"
	"time"

	"github.com/dragon-zzuni/smart-assistant/internal/domain"
)

const (
	// DefaultCoalesceWindow is the largest gap merged into one turn
	DefaultCoalesceWindow = 90 * time.Second
	// DefaultCoalesceMaxChars caps the body of a merged turn
	DefaultCoalesceMaxChars = 2000
	// TruncationMarker ends a merged body that hit the cap
	TruncationMarker = "…(truncated)"
	// IDSeparator joins constituent IDs of a merged turn
	IDSeparator = "+"
)

// CoalesceOptions configure the coalescer
type CoalesceOptions struct {
	Window   time.Duration
	MaxChars int
}

// Coalescer merges bursts of chat messages into single turns
type Coalescer struct {
	window   time.Duration
	maxChars int
}

// NewCoalescer creates a new Coalescer instance, filling unset options
// with defaults
func NewCoalescer(opts CoalesceOptions) *Coalescer {
	if opts.Window <= 0 {
		opts.Window = DefaultCoalesceWindow
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultCoalesceMaxChars
	}
	return &Coalescer{window: opts.Window, maxChars: opts.MaxChars}
}

// accumulator is the turn currently being built
type accumulator struct {
	first  domain.Message
	ids    []string
	parts  []string
	bodies []string
	last   time.Time
}

// Coalesce stable-sorts messages by timestamp and merges each message into
// the previous turn when platform and sender match and the gap to the
// turn's latest timestamp is within the window. Mail is never merged.
// The input slice is not modified.
func (c *Coalescer) Coalesce(messages []domain.Message) []domain.Message {
	if len(messages) == 0 {
		return nil
	}

	sorted := make([]domain.Message, len(messages))
	copy(sorted, messages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := make([]domain.Message, 0, len(sorted))
	var acc *accumulator

	for _, msg := range sorted {
		if acc != nil && c.mergeable(acc, msg) {
			acc.ids = append(acc.ids, msg.ID)
			acc.parts = appendParts(acc.parts, msg)
			acc.bodies = append(acc.bodies, msg.Body)
			acc.last = msg.Timestamp
			continue
		}
		if acc != nil {
			out = append(out, c.emit(acc))
		}
		acc = &accumulator{
			first:  msg,
			ids:    []string{msg.ID},
			parts:  appendParts(nil, msg),
			bodies: []string{msg.Body},
			last:   msg.Timestamp,
		}
	}
	out = append(out, c.emit(acc))

	return out
}

func (c *Coalescer) mergeable(acc *accumulator, next domain.Message) bool {
	if acc.first.Source == domain.SourceMail || next.Source == domain.SourceMail {
		return false
	}
	if acc.first.Platform != next.Platform || acc.first.Sender != next.Sender {
		return false
	}
	gap := next.Timestamp.Sub(acc.last)
	if gap < 0 {
		gap = -gap
	}
	return gap <= c.window
}

// emit turns an accumulator into a message. Single messages pass through
// untouched.
func (c *Coalescer) emit(acc *accumulator) domain.Message {
	if len(acc.ids) == 1 {
		return acc.first
	}

	merged := acc.first
	merged.ID = strings.Join(acc.ids, IDSeparator)
	merged.Body = truncateRunes(strings.Join(acc.bodies, "\n"), c.maxChars)
	merged.Timestamp = acc.last
	merged.Parts = acc.parts
	return merged
}

// appendParts adds the original IDs behind msg. A constituent that is
// itself merged contributes its own parts.
func appendParts(parts []string, msg domain.Message) []string {
	if len(msg.Parts) > 0 {
		return append(parts, msg.Parts...)
	}
	return append(parts, msg.ID)
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + TruncationMarker
}
