package ingest

import (
	"testing"
	"time"

	"github.com/dragon-zzuni/smart-assistant/internal/domain"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

func newTestNormalizer(opts Options) *Normalizer {
	opts.Now = func() time.Time { return fixedNow }
	return NewNormalizer(opts)
}

func TestNormalize_Mail(t *testing.T) {
	n := newTestNormalizer(Options{})
	date := time.Date(2024, 3, 5, 9, 0, 0, 0, time.FixedZone("KST", 9*3600))

	msg, err := n.Normalize(FromMail("imap", 0, MailRecord{
		ID:          "<abc@mail>",
		Subject:     " 주간 보고 ",
		From:        "boss@company.com",
		To:          []string{"me@company.com", "team@company.com"},
		Date:        date,
		Body:        "보고서 제출 부탁드립니다.",
		Attachments: []string{"report.pdf"},
	}))
	require.NoError(t, err)

	assert.Equal(t, "mail:imap:<abc@mail>", msg.ID)
	assert.Equal(t, "boss@company.com", msg.Sender)
	assert.Equal(t, "me@company.com, team@company.com", msg.Recipient)
	assert.Equal(t, "주간 보고", msg.Subject)
	assert.Equal(t, domain.SourceMail, msg.Source)
	assert.Equal(t, PlatformEmail, msg.Platform)
	assert.True(t, date.Equal(msg.Timestamp))
	assert.Equal(t, []string{"report.pdf"}, msg.Attachments)
}

func TestNormalize_MailFallbacks(t *testing.T) {
	n := newTestNormalizer(Options{})

	msg, err := n.Normalize(FromMail("imap", 0, MailRecord{
		Subject:  "안내",
		HTMLBody: "<p>회의실&nbsp;변경</p>\n<div>3층</div>",
	}))
	require.NoError(t, err)
	assert.Equal(t, "회의실 변경\n3층", msg.Body)
	assert.Equal(t, domain.UnknownSender, msg.Sender)
	assert.Equal(t, fixedNow, msg.Timestamp)
	assert.Contains(t, msg.ID, "mail:imap:gen-")

	_, err = n.Normalize(FromMail("imap", 1, MailRecord{Subject: "  ", Body: "\n\t"}))
	assert.ErrorIs(t, err, ErrRecordMalformed)
}

func TestNormalize_SubjectOnlyMail(t *testing.T) {
	n := newTestNormalizer(Options{})

	for i, body := range []string{"", "  \n\t "} {
		msg, err := n.Normalize(FromMail("imap", i, MailRecord{
			ID:      "m1",
			Subject: " 긴급: 서버 점검 ",
			Body:    body,
		}))
		require.NoError(t, err)
		assert.Equal(t, "긴급: 서버 점검", msg.Subject)
		assert.Equal(t, "긴급: 서버 점검", msg.Body)
	}
}

func TestNormalize_ChatLog(t *testing.T) {
	n := newTestNormalizer(Options{})

	msg, err := n.Normalize(Record{Kind: KindChatLog, Origin: "logs.json", Seq: 3, Chat: &ChatLogRecord{
		Room:      "dev",
		Username:  "kim",
		Message:   "리뷰 요청드립니다",
		Timestamp: "2024-03-05 10:00:00",
		Type:      "chat",
	}})
	require.NoError(t, err)

	assert.Equal(t, "chat:logs.json:#3", msg.ID)
	assert.Equal(t, "dev", msg.Platform)
	assert.Equal(t, "dev", msg.Recipient)
	assert.Equal(t, domain.SourceChat, msg.Source)
	assert.Equal(t, "", msg.Subject)
	assert.Equal(t, time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), msg.Timestamp)
}

func TestNormalize_ChatLogRejections(t *testing.T) {
	n := newTestNormalizer(Options{})

	_, err := n.Normalize(Record{Kind: KindChatLog, Chat: &ChatLogRecord{Username: "kim", Body: "   ", Type: "chat"}})
	assert.ErrorIs(t, err, ErrRecordMalformed)

	_, err = n.Normalize(Record{Kind: KindChatLog, Chat: &ChatLogRecord{Username: "kim", Body: "hi", Timestamp: "not a time"}})
	assert.ErrorIs(t, err, ErrRecordMalformed)

	_, err = n.Normalize(Record{Kind: KindChatLog, Chat: &ChatLogRecord{Username: "bot", Type: "join"}})
	assert.ErrorIs(t, err, ErrSystemRecord)

	_, err = n.Normalize(Record{Kind: KindChatLog})
	assert.ErrorIs(t, err, ErrRecordMalformed)

	_, err = n.Normalize(Record{Kind: "carrier-pigeon"})
	assert.ErrorIs(t, err, ErrRecordMalformed)
}

func TestNormalize_SystemRecordsWhenIncluded(t *testing.T) {
	n := newTestNormalizer(Options{IncludeSystem: true})

	msg, err := n.Normalize(Record{Kind: KindChatLog, Origin: "f", Chat: &ChatLogRecord{
		Username: "kim",
		Type:     "file",
		Filename: "plan.pdf",
		URL:      "https://files/plan.pdf",
	}})
	require.NoError(t, err)
	assert.Equal(t, "[file] plan.pdf https://files/plan.pdf", msg.Body)

	_, err = n.Normalize(Record{Kind: KindChatLog, Chat: &ChatLogRecord{Username: "kim", Type: "join"}})
	assert.ErrorIs(t, err, ErrRecordMalformed)
}

func TestNormalize_LenientTimestamps(t *testing.T) {
	n := newTestNormalizer(Options{LenientTimestamps: true})

	msg, err := n.Normalize(Record{Kind: KindChatLog, Chat: &ChatLogRecord{Username: "kim", Body: "hi", Timestamp: "garbage"}})
	require.NoError(t, err)
	assert.Equal(t, fixedNow, msg.Timestamp)
}

func TestNormalizeAll_ChannelMapKeysSharingARoom(t *testing.T) {
	data := []byte(`{"chat_messages": {
		"developer": [{"room_slug": "team", "sender": "kim", "body": "배포 준비 완료", "sent_at": "2024-03-05T10:00:00Z"}],
		"hana": [
			{"room_slug": "team", "sender": "lee", "body": "리뷰 부탁드려요", "sent_at": "2024-03-05T10:01:00Z"},
			{"room_slug": "team", "sender": "lee", "body": "확인했습니다", "sent_at": "2024-03-05T10:02:00Z"}
		]
	}}`)

	records, err := DecodeChatFile("portfolio", data)
	require.NoError(t, err)
	require.Len(t, records, 3)

	messages := newTestNormalizer(Options{}).NormalizeAll(records)
	require.Len(t, messages, 3)

	assert.Equal(t, "chat:portfolio:developer:#0", messages[0].ID)
	assert.Equal(t, "chat:portfolio:hana:#0", messages[1].ID)
	assert.Equal(t, "chat:portfolio:hana:#1", messages[2].ID)
	for _, msg := range messages {
		assert.Equal(t, "team", msg.Platform)
	}
}

func TestNormalize_ChannelMapAndExportAndStore(t *testing.T) {
	n := newTestNormalizer(Options{})

	msg, err := n.Normalize(Record{Kind: KindChannelMap, Origin: "p.json", Seq: 0, Channel: &ChannelRecord{
		Channel:   "general",
		RoomSlug:  "general-kr",
		Sender:    "lee",
		Message:   "내일까지 검토 부탁",
		CreatedAt: "2024-03-05T10:00:00Z",
	}})
	require.NoError(t, err)
	assert.Equal(t, "chat:p.json:general:#0", msg.ID)
	assert.Equal(t, "general-kr", msg.Platform)

	msg, err = n.Normalize(Record{Kind: KindExport, Origin: "e.json", Export: &ExportRecord{
		MsgID:     "42",
		Sender:    "hr@company.com",
		Content:   "서류 제출",
		Timestamp: "2024-03-05T10:00:00",
		Platform:  "Email",
		Priority:  "HIGH",
	}})
	require.NoError(t, err)
	assert.Equal(t, "export:e.json:42", msg.ID)
	assert.Equal(t, domain.SourceMail, msg.Source)
	assert.Equal(t, PlatformEmail, msg.Platform)
	assert.Equal(t, domain.UrgencyHigh, msg.UrgencyHint)

	msg, err = n.Normalize(FromStoreRow("store", 0, StoreRow{ID: "7", Message: "ping", Timestamp: ""}))
	require.NoError(t, err)
	assert.Equal(t, "store:store:7", msg.ID)
	assert.Equal(t, DefaultChatPlatform, msg.Platform)
	assert.Equal(t, domain.UnknownSender, msg.Sender)
	assert.Equal(t, fixedNow, msg.Timestamp)
}

func TestNormalizeAll_SkipsBadRecordsAndDuplicates(t *testing.T) {
	n := newTestNormalizer(Options{})

	records := []Record{
		FromStoreRow("s", 0, StoreRow{ID: "a", Username: "kim", Message: "first", Timestamp: "2024-03-05 10:00:00"}),
		FromStoreRow("s", 1, StoreRow{ID: "b", Username: "kim", Message: "broken", Timestamp: "31/31/31 31:31"}),
		FromStoreRow("s", 2, StoreRow{ID: "a", Username: "kim", Message: "dup", Timestamp: "2024-03-05 10:00:00"}),
		FromStoreRow("s", 3, StoreRow{ID: "c", Username: "lee", Message: "third", Timestamp: "2024-03-05 10:02:00"}),
	}

	messages := n.NormalizeAll(records)
	require.Len(t, messages, 2)
	assert.Equal(t, "store:s:a", messages[0].ID)
	assert.Equal(t, "first", messages[0].Body)
	assert.Equal(t, "store:s:c", messages[1].ID)
}

// Every supported record shape yields a message with a non-empty ID and an
// absolute timestamp.
func TestProperty_NormalizedMessagesAreAddressable(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	n := newTestNormalizer(Options{LenientTimestamps: true})

	bodyGen := gen.AlphaString().SuchThat(func(s string) bool { return s != "" })
	stampGen := gen.OneConstOf("", "2024-03-05 10:00:00", "2024-03-05T10:00:00+09:00", "1709632800", "nonsense")

	properties.Property("every_shape_normalizes_with_id_and_time", prop.ForAll(
		func(body, stamp, sender string, seq int) bool {
			records := []Record{
				FromMail("imap", seq, MailRecord{From: sender, Body: body}),
				{Kind: KindChatLog, Origin: "f", Seq: seq, Chat: &ChatLogRecord{Username: sender, Body: body, Timestamp: FlexString(stamp)}},
				{Kind: KindChannelMap, Origin: "f", Seq: seq, Channel: &ChannelRecord{Channel: "c", Sender: sender, Body: body, SentAt: FlexString(stamp)}},
				{Kind: KindExport, Origin: "f", Seq: seq, Export: &ExportRecord{Sender: sender, Content: body, Timestamp: FlexString(stamp)}},
				FromStoreRow("db", seq, StoreRow{Username: sender, Message: body, Timestamp: stamp}),
			}
			for _, rec := range records {
				msg, err := n.Normalize(rec)
				if err != nil || msg.ID == "" || msg.Timestamp.IsZero() || msg.Sender == "" {
					return false
				}
			}
			return true
		},
		bodyGen,
		stampGen,
		gen.AlphaString(),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}
