package local

import (
	"regexp"
	"strings"
)

// MeetingInfo is the time and place a meeting request mentions
type MeetingInfo struct {
	Time     string `json:"time,omitempty"`
	Location string `json:"location,omitempty"`
}

var (
	meetingTimePattern = regexp.MustCompile(`(?i)\d{1,2}월\s*\d{1,2}일\s*\d{1,2}시|오[전후]\s*\d{1,2}시(?:\s*\d{1,2}분)?|\d{1,2}:\d{2}|\d{1,2}시(?:\s*\d{1,2}분)?|\b\d{1,2}\s?(?:am|pm)\b`)
	meetingLocPattern  = regexp.MustCompile(`(?i)\d+층|[\p{L}\p{N}]*회의실|오피스|사무실|카페|식당|[\p{L}\p{N}]+룸|\broom\s+[\p{L}\p{N}]+|\bzoom\b|\bteams\b`)
)

// ExtractMeetingInfo finds the first time and location mentioned in text
func ExtractMeetingInfo(text string) MeetingInfo {
	return MeetingInfo{
		Time:     strings.TrimSpace(meetingTimePattern.FindString(text)),
		Location: strings.TrimSpace(meetingLocPattern.FindString(text)),
	}
}

// IsZero reports whether neither time nor location was found
func (m MeetingInfo) IsZero() bool {
	return m.Time == "" && m.Location == ""
}
