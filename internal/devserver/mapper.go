package devserver

import (
	"github.com/vovakirdan/shadowchat/internal/core"
	"github.com/vovakirdan/shadowchat/internal/proto"
	"github.com/vovakirdan/shadowchat/internal/store"
)

func messageToData(m *store.Message) proto.MessageData {
	data := proto.MessageData{
		ID:        m.ID,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Body:      m.Body,
		Kind:      m.Kind,
		Timestamp: m.Timestamp,
		Caption:   m.Caption,
	}
	if m.HasReply {
		data.ReplyTo = &proto.ReplyData{Sender: m.ReplySender, Message: m.ReplyMessage}
	}
	return data
}

// messageFromData builds the stored form of a send-message request. The
// room and sender come from the connection, not from the payload.
func messageFromData(id string, c *Client, d proto.MessageData) *store.Message {
	kind := d.Kind
	if kind == "" {
		kind = core.WireKindText
	}
	m := &store.Message{
		ID:        id,
		RoomID:    c.Room,
		SenderID:  c.Session,
		Body:      d.Body,
		Kind:      kind,
		Timestamp: d.Timestamp,
		Caption:   d.Caption,
	}
	if d.ReplyTo != nil {
		m.HasReply = true
		m.ReplySender = d.ReplyTo.Sender
		m.ReplyMessage = d.ReplyTo.Message
	}
	return m
}

func reactionToData(r *store.Reaction) proto.ReactionData {
	return proto.ReactionData{
		MessageID: r.MessageID,
		RoomID:    r.RoomID,
		EmojiID:   r.EmojiID,
		ReactorID: r.ReactorID,
	}
}

func captionToData(c *store.Caption) proto.CaptionData {
	return proto.CaptionData{Image: c.Image, Caption: c.Caption}
}
