package proto

import (
	"encoding/json"
	"fmt"
)

// Frame is the envelope for every websocket message, in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound events (client -> backend).
const (
	EventJoinRoom      = "join-room"
	EventSendMessage   = "send-message"
	EventSendReaction  = "send-reaction"
	EventDeleteMessage = "delete-message"
	EventTypingNotice  = "typing-notice"
)

// Inbound events (backend -> client).
const (
	EventRoomSnapshot     = "room-snapshot"
	EventMessageAppended  = "message-appended"
	EventMessageDeleted   = "message-deleted"
	EventReactionSnapshot = "reaction-snapshot"
	EventReactionAdded    = "reaction-added"
	EventCaptionSnapshot  = "caption-snapshot"
	EventCaptionAdded     = "caption-added"
	EventPresenceCount    = "presence-count"
	EventUserJoined       = "user-joined"
	EventTyping           = "typing"
	EventError            = "error"
)

// NewFrame marshals data into a frame for event.
func NewFrame(event string, data any) (Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal %s: %w", event, err)
	}
	return Frame{Event: event, Data: raw}, nil
}

// JoinRoomData subscribes the connection to a room.
type JoinRoomData struct {
	RoomID   string `json:"roomId"`
	SenderID string `json:"senderId,omitempty"`
}

// ReplyData is the denormalized preview of a replied-to message.
type ReplyData struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// MessageData is a chat message, inbound (message-appended) or outbound (send-message).
type MessageData struct {
	ID        string     `json:"id,omitempty"`
	RoomID    string     `json:"roomId"`
	SenderID  string     `json:"senderId"`
	Body      string     `json:"body"`
	Kind      string     `json:"kind"`
	ReplyTo   *ReplyData `json:"replyTo,omitempty"`
	Timestamp string     `json:"timestamp"`
	Caption   string     `json:"caption,omitempty"`
}

// RoomSnapshotData is the message backfill sent once per room entry.
type RoomSnapshotData struct {
	RoomID   string        `json:"roomId,omitempty"`
	Messages []MessageData `json:"messages"`
}

// MessageDeletedData announces a removal.
type MessageDeletedData struct {
	MessageID string `json:"messageId"`
	RoomID    string `json:"roomId,omitempty"`
}

// ReactionData is one reaction, inbound (reaction-added) or outbound (send-reaction).
type ReactionData struct {
	MessageID string `json:"messageId"`
	RoomID    string `json:"roomId,omitempty"`
	EmojiID   string `json:"emojiId"`
	ReactorID string `json:"reactorId"`
}

// ReactionSnapshotData is the reaction backfill.
type ReactionSnapshotData struct {
	RoomID  string         `json:"roomId,omitempty"`
	Entries []ReactionData `json:"entries"`
}

// CaptionData ties a caption to an uploaded image.
type CaptionData struct {
	Image   string `json:"image"`
	Caption string `json:"caption"`
}

// CaptionSnapshotData is the caption backfill.
type CaptionSnapshotData struct {
	Captions []CaptionData `json:"captions"`
}

// PresenceData reports the room population.
type PresenceData struct {
	Count int `json:"count"`
}

// NoticeData is a transient text notice (user-joined, typing).
type NoticeData struct {
	Text string `json:"text"`
}

// DeleteMessageData asks the backend to delete a message.
type DeleteMessageData struct {
	RoomID    string `json:"roomId"`
	MessageID string `json:"messageId"`
}

// TypingNoticeData signals that the sender is typing.
type TypingNoticeData struct {
	RoomID   string `json:"roomId"`
	SenderID string `json:"senderId,omitempty"`
}

// Error describes a protocol-level error.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
