package ingest

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrBadTimestamp indicates a timestamp in no accepted form
var ErrBadTimestamp = errors.New("unrecognized timestamp")

// Layouts carrying their own zone
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z07",
	"2006-01-02T15:04:05Z0700",
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC822Z,
	time.RFC822,
}

// Naive layouts, read as UTC. A fractional second after the seconds field
// is accepted by time.Parse without being spelled out here.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses raw in any accepted form
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrBadTimestamp
	}

	// Mail dates sometimes end with a comment such as "(UTC)"
	if open := strings.LastIndex(raw, " ("); open != -1 && strings.HasSuffix(raw, ")") {
		raw = strings.TrimSpace(raw[:open])
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}

	if isDigits(raw) && len(raw) >= 9 {
		secs, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			if len(raw) >= 13 {
				return time.UnixMilli(secs).UTC(), nil
			}
			return time.Unix(secs, 0).UTC(), nil
		}
	}

	return time.Time{}, ErrBadTimestamp
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
