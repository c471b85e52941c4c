package local

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DeadlineClass names one family of deadline phrases
type DeadlineClass string

const (
	DeadlineISODate   DeadlineClass = "iso_date"
	DeadlineKoDate    DeadlineClass = "ko_date"
	DeadlineSlashDate DeadlineClass = "slash_date"
	DeadlineRelative  DeadlineClass = "relative"
	DeadlineWeekday   DeadlineClass = "weekday"
	DeadlineByPhrase  DeadlineClass = "by_phrase"
)

// Deadline is the first match of one deadline class
type Deadline struct {
	Class DeadlineClass
	Text  string
	// Due is the resolved calendar day, nil when the text names no valid date
	Due *time.Time
}

type deadlinePattern struct {
	class   DeadlineClass
	pattern *regexp.Regexp
}

// Checked in this order; the first class that matches wins for an action
var deadlinePatterns = []deadlinePattern{
	{DeadlineISODate, regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)},
	{DeadlineKoDate, regexp.MustCompile(`(\d{1,2})월\s*(\d{1,2})일`)},
	{DeadlineSlashDate, regexp.MustCompile(`(?:^|[^\d/])((\d{1,2})/(\d{1,2}))(?:[^\d/]|$)`)},
	{DeadlineRelative, regexp.MustCompile(`오늘까지|내일까지|이번\s?주까지|다음\s?주까지`)},
	{DeadlineWeekday, regexp.MustCompile(`([월화수목금토일])요일까지`)},
	{DeadlineByPhrase, regexp.MustCompile(`(?i)\bby\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday|today|tomorrow|eod|end of day|end of week)\b`)},
}

var koWeekdays = map[string]time.Weekday{
	"월": time.Monday,
	"화": time.Tuesday,
	"수": time.Wednesday,
	"목": time.Thursday,
	"금": time.Friday,
	"토": time.Saturday,
	"일": time.Sunday,
}

var enWeekdays = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// FindDeadlines returns the first match of every deadline class found in
// text, in class order. Due dates resolve against ref.
func FindDeadlines(text string, ref time.Time) []Deadline {
	var found []Deadline
	for _, p := range deadlinePatterns {
		m := p.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		d := Deadline{Class: p.class, Text: strings.TrimSpace(m[0])}
		switch p.class {
		case DeadlineISODate:
			d.Due = calendarDay(ref.Location(), atoi(m[1]), atoi(m[2]), atoi(m[3]))
		case DeadlineKoDate:
			d.Due = monthDay(ref, atoi(m[1]), atoi(m[2]))
		case DeadlineSlashDate:
			d.Text = m[1]
			d.Due = monthDay(ref, atoi(m[2]), atoi(m[3]))
		case DeadlineRelative:
			d.Due = relativeDay(ref, d.Text)
		case DeadlineWeekday:
			d.Due = nextWeekday(ref, koWeekdays[m[1]])
		case DeadlineByPhrase:
			d.Due = byPhraseDay(ref, strings.ToLower(m[1]))
		}
		found = append(found, d)
	}
	return found
}

// FirstDeadline returns the highest-ranked deadline class found in text
func FirstDeadline(text string, ref time.Time) (Deadline, bool) {
	found := FindDeadlines(text, ref)
	if len(found) == 0 {
		return Deadline{}, false
	}
	return found[0], true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// calendarDay builds a date, rejecting values time.Date would normalize
func calendarDay(loc *time.Location, year, month, day int) *time.Time {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Month() != time.Month(month) || t.Day() != day {
		return nil
	}
	return &t
}

// monthDay resolves a month/day without a year to the occurrence nearest
// after ref; dates more than half a year in the past roll into next year
func monthDay(ref time.Time, month, day int) *time.Time {
	due := calendarDay(ref.Location(), ref.Year(), month, day)
	if due == nil {
		return nil
	}
	if due.Before(startOfDay(ref).AddDate(0, -6, 0)) {
		return calendarDay(ref.Location(), ref.Year()+1, month, day)
	}
	return due
}

func relativeDay(ref time.Time, phrase string) *time.Time {
	day := startOfDay(ref)
	compact := strings.ReplaceAll(phrase, " ", "")
	switch compact {
	case "오늘까지":
	case "내일까지":
		day = day.AddDate(0, 0, 1)
	case "이번주까지":
		day = endOfWeek(day)
	case "다음주까지":
		day = endOfWeek(day).AddDate(0, 0, 7)
	default:
		return nil
	}
	return &day
}

func byPhraseDay(ref time.Time, phrase string) *time.Time {
	day := startOfDay(ref)
	switch phrase {
	case "today", "eod", "end of day":
	case "tomorrow":
		day = day.AddDate(0, 0, 1)
	case "end of week":
		day = endOfWeek(day)
	default:
		wd, ok := enWeekdays[phrase]
		if !ok {
			return nil
		}
		return nextWeekday(ref, wd)
	}
	return &day
}

// endOfWeek is the Friday of day's week, or day itself on weekends
func endOfWeek(day time.Time) time.Time {
	offset := int(time.Friday - day.Weekday())
	if offset < 0 {
		return day
	}
	return day.AddDate(0, 0, offset)
}

// nextWeekday is the first wd on or after ref's day
func nextWeekday(ref time.Time, wd time.Weekday) *time.Time {
	day := startOfDay(ref)
	offset := (int(wd) - int(day.Weekday()) + 7) % 7
	day = day.AddDate(0, 0, offset)
	return &day
}
