package local

import (
	"net/mail"
	"strings"

	"github.com/dragon-zzuni/smart-assistant/internal/domain"
)

const unsetValue = "미정"

const (
	acknowledgmentTemplate = "안녕하세요 {sender}님,\n\n메시지 잘 받았습니다. {subject} 건은 검토 후 답변드리겠습니다.\n\n감사합니다."
	meetingTemplate        = "안녕하세요 {sender}님,\n\n미팅 요청 확인했습니다.\n제안해주신 시간: {time}\n장소: {location}\n\n일정 확인 후 다시 연락드리겠습니다.\n\n감사합니다."
	delegationTemplate     = "안녕하세요 {sender}님,\n\n요청하신 업무 확인했습니다.\n업무 내용: {task}\n기한: {deadline}\n\n진행 상황은 정리해서 공유드리겠습니다.\n\n감사합니다."
)

// SuggestReply fills the reply template that fits the action type
func SuggestReply(msg domain.Message, action domain.ActionType) string {
	values := map[string]string{
		"sender":  SenderName(msg.Sender),
		"subject": orUnset(strings.TrimSpace(msg.Subject)),
	}

	var tmpl string
	switch action {
	case domain.ActionMeeting:
		info := ExtractMeetingInfo(msg.Body)
		values["time"] = orUnset(info.Time)
		values["location"] = orUnset(info.Location)
		tmpl = meetingTemplate
	case domain.ActionDelegation, domain.ActionTask:
		values["task"] = orUnset(firstSentence(msg.Body))
		values["deadline"] = unsetValue
		if d, ok := FirstDeadline(msg.Body, msg.Timestamp); ok {
			values["deadline"] = d.Text
		}
		tmpl = delegationTemplate
	default:
		if msg.Subject == "" {
			values["subject"] = "요청하신"
		}
		tmpl = acknowledgmentTemplate
	}

	for key, value := range values {
		tmpl = strings.ReplaceAll(tmpl, "{"+key+"}", value)
	}
	return tmpl
}

// SenderName returns the display name of a sender, falling back to the
// local part of the address
func SenderName(sender string) string {
	sender = strings.TrimSpace(sender)
	if addr, err := mail.ParseAddress(sender); err == nil {
		if addr.Name != "" {
			return addr.Name
		}
		sender = addr.Address
	}
	if at := strings.Index(sender, "@"); at > 0 {
		return sender[:at]
	}
	if sender == "" {
		return domain.UnknownSender
	}
	return sender
}

func firstSentence(text string) string {
	if s := sentences(text); len(s) > 0 {
		return truncateTitle(s[0])
	}
	return ""
}

func orUnset(v string) string {
	if v == "" {
		return unsetValue
	}
	return v
}
