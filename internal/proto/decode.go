package proto

import (
	"strconv"
	"strings"

	"github.com/buger/jsonparser"
)

// Inbound payloads are decoded leniently: a field that is missing or has the
// wrong JSON type is treated as absent, ids may be strings or numbers, and the
// field names used by the first Shadow backend (_id, message, user, time,
// messageType, chatId, reaction, reactor, shadowId) are accepted as aliases.

// DecodeMessage reads a message-appended payload.
func DecodeMessage(data []byte) MessageData {
	msg := MessageData{
		ID:        firstString(data, "id", "_id"),
		RoomID:    firstString(data, "roomId", "shadowId", "rooms"),
		SenderID:  firstString(data, "senderId", "sender", "user"),
		Body:      firstString(data, "body", "message"),
		Kind:      firstString(data, "kind", "messageType"),
		Timestamp: firstString(data, "timestamp", "time"),
		Caption:   firstString(data, "caption"),
	}
	for _, key := range []string{"replyTo", "reply"} {
		if v, ok := object(data, key); ok {
			msg.ReplyTo = &ReplyData{
				Sender:  firstString(v, "sender"),
				Message: firstString(v, "message"),
			}
			break
		}
	}
	return msg
}

// DecodeRoomSnapshot reads a room-snapshot payload. A bare array of messages
// is accepted as well as {roomId, messages}.
func DecodeRoomSnapshot(data []byte) RoomSnapshotData {
	snap := RoomSnapshotData{Messages: []MessageData{}}
	items := data
	if kind(data) == jsonparser.Object {
		snap.RoomID = firstString(data, "roomId", "shadowId")
		v, ok := array(data, "messages")
		if !ok {
			return snap
		}
		items = v
	}
	eachObject(items, func(item []byte) {
		snap.Messages = append(snap.Messages, DecodeMessage(item))
	})
	return snap
}

// DecodeMessageDeleted reads a message-deleted payload. A bare id is accepted.
func DecodeMessageDeleted(data []byte) MessageDeletedData {
	if id, ok := scalar(data); ok {
		return MessageDeletedData{MessageID: id}
	}
	return MessageDeletedData{
		MessageID: firstString(data, "messageId", "chatId", "id"),
		RoomID:    firstString(data, "roomId", "shadowId", "rooms"),
	}
}

// DecodeReaction reads a reaction-added payload.
func DecodeReaction(data []byte) ReactionData {
	return ReactionData{
		MessageID: firstString(data, "messageId", "chatId"),
		RoomID:    firstString(data, "roomId", "shadowId"),
		EmojiID:   firstString(data, "emojiId", "reaction"),
		ReactorID: firstString(data, "reactorId", "reactor"),
	}
}

// DecodeReactionSnapshot reads a reaction-snapshot payload. Besides flat
// entries it accepts the grouped shape [{chatId, reactions: [{reaction, reactor}]}].
func DecodeReactionSnapshot(data []byte) ReactionSnapshotData {
	snap := ReactionSnapshotData{Entries: []ReactionData{}}
	items := data
	if kind(data) == jsonparser.Object {
		snap.RoomID = firstString(data, "roomId", "shadowId")
		v, ok := array(data, "entries")
		if !ok {
			return snap
		}
		items = v
	}
	eachObject(items, func(item []byte) {
		group, ok := array(item, "reactions")
		if !ok {
			snap.Entries = append(snap.Entries, DecodeReaction(item))
			return
		}
		parent := DecodeReaction(item)
		eachObject(group, func(r []byte) {
			entry := DecodeReaction(r)
			if entry.MessageID == "" {
				entry.MessageID = parent.MessageID
			}
			if entry.RoomID == "" {
				entry.RoomID = parent.RoomID
			}
			snap.Entries = append(snap.Entries, entry)
		})
	})
	return snap
}

// DecodeCaption reads a caption-added payload.
func DecodeCaption(data []byte) CaptionData {
	return CaptionData{
		Image:   firstString(data, "image", "avatar"),
		Caption: firstString(data, "caption"),
	}
}

// DecodeCaptionSnapshot reads a caption-snapshot payload (object or bare array).
func DecodeCaptionSnapshot(data []byte) CaptionSnapshotData {
	snap := CaptionSnapshotData{Captions: []CaptionData{}}
	items := data
	if kind(data) == jsonparser.Object {
		v, ok := array(data, "captions")
		if !ok {
			return snap
		}
		items = v
	}
	eachObject(items, func(item []byte) {
		snap.Captions = append(snap.Captions, DecodeCaption(item))
	})
	return snap
}

// DecodePresence reads a presence-count payload. A bare number is accepted.
func DecodePresence(data []byte) PresenceData {
	if n, ok := integer(data); ok {
		return PresenceData{Count: n}
	}
	n, _ := integer(data, "count")
	return PresenceData{Count: n}
}

// DecodeNotice reads a user-joined or typing payload. A bare string is accepted.
func DecodeNotice(data []byte) NoticeData {
	if s, ok := scalar(data); ok {
		return NoticeData{Text: s}
	}
	return NoticeData{Text: firstString(data, "text")}
}

// DecodeError reads an error payload.
func DecodeError(data []byte) Error {
	return Error{
		Code: firstString(data, "code"),
		Msg:  firstString(data, "msg", "message"),
	}
}

func kind(data []byte) jsonparser.ValueType {
	_, typ, _, err := jsonparser.Get(data)
	if err != nil {
		return jsonparser.NotExist
	}
	return typ
}

// scalar returns data itself when it is a top-level string or number.
func scalar(data []byte) (string, bool) {
	v, typ, _, err := jsonparser.Get(data)
	if err != nil {
		return "", false
	}
	return toString(v, typ)
}

func firstString(data []byte, keys ...string) string {
	for _, key := range keys {
		v, typ, _, err := jsonparser.Get(data, key)
		if err != nil {
			continue
		}
		if s, ok := toString(v, typ); ok {
			return s
		}
	}
	return ""
}

func toString(v []byte, typ jsonparser.ValueType) (string, bool) {
	switch typ {
	case jsonparser.String:
		s, err := jsonparser.ParseString(v)
		if err != nil {
			return "", false
		}
		return s, true
	case jsonparser.Number:
		return string(v), true
	default:
		return "", false
	}
}

func integer(data []byte, keys ...string) (int, bool) {
	v, typ, _, err := jsonparser.Get(data, keys...)
	if err != nil {
		return 0, false
	}
	switch typ {
	case jsonparser.Number:
		if n, err := jsonparser.ParseInt(v); err == nil {
			return int(n), true
		}
		if f, err := jsonparser.ParseFloat(v); err == nil {
			return int(f), true
		}
	case jsonparser.String:
		s, err := jsonparser.ParseString(v)
		if err != nil {
			return 0, false
		}
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n, true
		}
	}
	return 0, false
}

func object(data []byte, key string) ([]byte, bool) {
	v, typ, _, err := jsonparser.Get(data, key)
	if err != nil || typ != jsonparser.Object {
		return nil, false
	}
	return v, true
}

func array(data []byte, key string) ([]byte, bool) {
	v, typ, _, err := jsonparser.Get(data, key)
	if err != nil || typ != jsonparser.Array {
		return nil, false
	}
	return v, true
}

// eachObject calls fn for every object element of a JSON array; other
// elements are skipped.
func eachObject(data []byte, fn func([]byte)) {
	if kind(data) != jsonparser.Array {
		return
	}
	_, _ = jsonparser.ArrayEach(data, func(value []byte, typ jsonparser.ValueType, _ int, err error) {
		if err != nil || typ != jsonparser.Object {
			return
		}
		fn(value)
	})
}

// DecodeJoinRoom reads a join-room request. A bare room id is accepted.
func DecodeJoinRoom(data []byte) JoinRoomData {
	if id, ok := scalar(data); ok {
		return JoinRoomData{RoomID: id}
	}
	return JoinRoomData{
		RoomID:   firstString(data, "roomId", "shadowId", "rooms"),
		SenderID: firstString(data, "senderId", "sender", "user"),
	}
}

// DecodeTypingNotice reads a typing-notice request.
func DecodeTypingNotice(data []byte) TypingNoticeData {
	if id, ok := scalar(data); ok {
		return TypingNoticeData{RoomID: id}
	}
	return TypingNoticeData{
		RoomID:   firstString(data, "roomId", "shadowId", "rooms"),
		SenderID: firstString(data, "senderId", "sender", "user"),
	}
}
