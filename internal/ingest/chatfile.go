package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownShape indicates a chat file matching no supported shape
var ErrUnknownShape = errors.New("unknown chat file shape")

// Marker fields used to tell the chat file shapes apart
const (
	markerChannelMap = "chat_messages"
	markerChatLogs   = "chat_logs"
	markerExport     = "msg_id"
)

// DecodeChatFile decodes one chat export file into records.
// The shape is chosen from marker fields only:
//   - an object with "chat_messages" is the channel map
//   - an object with "chat_logs", or a bare array, is the flat log
//   - a bare array whose first element has "msg_id" is a message export
func DecodeChatFile(origin string, data []byte) ([]Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnknownShape)
	}

	switch data[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		if len(items) > 0 && hasField(items[0], markerExport) {
			return decodeExport(origin, items)
		}
		return decodeChatLogs(origin, items)

	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, err
		}
		if raw, ok := fields[markerChannelMap]; ok {
			return decodeChannelMap(origin, raw)
		}
		if raw, ok := fields[markerChatLogs]; ok {
			var items []json.RawMessage
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, err
			}
			return decodeChatLogs(origin, items)
		}
	}

	return nil, ErrUnknownShape
}

func decodeChatLogs(origin string, items []json.RawMessage) ([]Record, error) {
	records := make([]Record, 0, len(items))
	for i, item := range items {
		var c ChatLogRecord
		if err := json.Unmarshal(item, &c); err != nil {
			// One bad entry is skipped like a bad record
			continue
		}
		records = append(records, Record{Kind: KindChatLog, Origin: origin, Seq: i, Chat: &c})
	}
	return records, nil
}

func decodeExport(origin string, items []json.RawMessage) ([]Record, error) {
	records := make([]Record, 0, len(items))
	for i, item := range items {
		var e ExportRecord
		if err := json.Unmarshal(item, &e); err != nil {
			continue
		}
		records = append(records, Record{Kind: KindExport, Origin: origin, Seq: i, Export: &e})
	}
	return records, nil
}

func decodeChannelMap(origin string, raw json.RawMessage) ([]Record, error) {
	var channels map[string][]json.RawMessage
	if err := json.Unmarshal(raw, &channels); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(channels))
	for name := range channels {
		names = append(names, name)
	}
	sort.Strings(names)

	var records []Record
	for _, name := range names {
		for i, item := range channels[name] {
			var c ChannelRecord
			if err := json.Unmarshal(item, &c); err != nil {
				continue
			}
			c.Channel = name
			records = append(records, Record{Kind: KindChannelMap, Origin: origin, Seq: i, Channel: &c})
		}
	}
	return records, nil
}

func hasField(raw json.RawMessage, field string) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	_, ok := fields[field]
	return ok
}
