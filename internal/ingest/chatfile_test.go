package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeChatFile_FlatArray(t *testing.T) {
	data := []byte(`[
		{"channel": "dev", "username": "kim", "body": "배포 확인 부탁드립니다", "timestamp": "2024-03-05 10:00:00", "type": "chat"},
		{"room": "ops", "username": "lee", "message": "ok", "timestamp": 1709632800, "extra": true}
	]`)

	records, err := DecodeChatFile("logs.json", data)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, KindChatLog, records[0].Kind)
	assert.Equal(t, "dev", records[0].Chat.Channel)
	assert.Equal(t, "ops", records[1].Chat.Room)
	assert.Equal(t, "ok", records[1].Chat.Message)
	assert.Equal(t, "1709632800", records[1].Chat.Timestamp.String())
	assert.Equal(t, 1, records[1].Seq)
}

func TestDecodeChatFile_ChatLogsObject(t *testing.T) {
	data := []byte(`{"chat_logs": [{"room": "general", "username": "park", "message": "hi", "timestamp": "2024-03-05T10:00:00Z", "type": "chat"}]}`)

	records, err := DecodeChatFile("wrapped.json", data)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, KindChatLog, records[0].Kind)
}

func TestDecodeChatFile_ChannelMap(t *testing.T) {
	data := []byte(`{"chat_messages": {
		"zeta": [{"sender": "a", "body": "z1", "sent_at": "2024-03-05T10:00:00Z"}],
		"alpha": [
			{"sender": "b", "body": "a1", "sent_at": "2024-03-05T10:00:00Z"},
			{"sender": "c", "message": "a2", "created_at": "2024-03-05T10:01:00Z", "room_slug": "alpha-room"}
		]
	}}`)

	records, err := DecodeChatFile("portfolio.json", data)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Channels are visited in name order
	assert.Equal(t, "alpha", records[0].Channel.Channel)
	assert.Equal(t, "alpha", records[1].Channel.Channel)
	assert.Equal(t, "alpha-room", records[1].Channel.RoomSlug)
	assert.Equal(t, "zeta", records[2].Channel.Channel)
}

func TestDecodeChatFile_Export(t *testing.T) {
	data := []byte(`[{"msg_id": "m1", "sender": "boss@company.com", "content": "긴급 회의", "timestamp": "2024-03-05T10:00:00", "platform": "email", "priority": "high"}]`)

	records, err := DecodeChatFile("export.json", data)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, KindExport, records[0].Kind)
	assert.Equal(t, "m1", records[0].Export.MsgID.String())
}

func TestDecodeChatFile_UnknownShape(t *testing.T) {
	_, err := DecodeChatFile("x.json", []byte(`{"something": []}`))
	assert.ErrorIs(t, err, ErrUnknownShape)

	_, err = DecodeChatFile("x.json", []byte(`   `))
	assert.ErrorIs(t, err, ErrUnknownShape)

	_, err = DecodeChatFile("x.json", []byte(`[{"broken"`))
	assert.Error(t, err)
}
