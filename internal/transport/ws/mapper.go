package ws

import (
	"fmt"

	"github.com/vovakirdan/shadowchat/internal/core"
	"github.com/vovakirdan/shadowchat/internal/proto"
)

// inboundEvents lists every event a room session listens to.
var inboundEvents = []string{
	proto.EventRoomSnapshot,
	proto.EventMessageAppended,
	proto.EventMessageDeleted,
	proto.EventReactionSnapshot,
	proto.EventReactionAdded,
	proto.EventCaptionSnapshot,
	proto.EventCaptionAdded,
	proto.EventPresenceCount,
	proto.EventUserJoined,
	proto.EventTyping,
	proto.EventError,
}

// eventFromFrame decodes the data of an inbound frame into a core event.
func eventFromFrame(event string, data []byte) (core.Event, bool) {
	switch event {
	case proto.EventRoomSnapshot:
		snap := proto.DecodeRoomSnapshot(data)
		msgs := make([]core.Message, 0, len(snap.Messages))
		for _, m := range snap.Messages {
			msgs = append(msgs, messageFromData(m))
		}
		return core.Event{Kind: core.EventSnapshot, Room: snap.RoomID, Messages: msgs}, true
	case proto.EventMessageAppended:
		return core.Event{Kind: core.EventAppend, Message: messageFromData(proto.DecodeMessage(data))}, true
	case proto.EventMessageDeleted:
		del := proto.DecodeMessageDeleted(data)
		return core.Event{Kind: core.EventDelete, Room: del.RoomID, MessageID: del.MessageID}, true
	case proto.EventReactionSnapshot:
		snap := proto.DecodeReactionSnapshot(data)
		entries := make([]core.ReactionEntry, 0, len(snap.Entries))
		for _, r := range snap.Entries {
			entries = append(entries, reactionFromData(r))
		}
		return core.Event{Kind: core.EventReactionSnapshot, Room: snap.RoomID, Reactions: entries}, true
	case proto.EventReactionAdded:
		return core.Event{Kind: core.EventReaction, Reaction: reactionFromData(proto.DecodeReaction(data))}, true
	case proto.EventCaptionSnapshot:
		snap := proto.DecodeCaptionSnapshot(data)
		captions := make([]core.Caption, 0, len(snap.Captions))
		for _, c := range snap.Captions {
			captions = append(captions, core.Caption{Image: c.Image, Text: c.Caption})
		}
		return core.Event{Kind: core.EventCaptionSnapshot, Captions: captions}, true
	case proto.EventCaptionAdded:
		c := proto.DecodeCaption(data)
		return core.Event{Kind: core.EventCaption, Caption: core.Caption{Image: c.Image, Text: c.Caption}}, true
	case proto.EventPresenceCount:
		return core.Event{Kind: core.EventPresence, Count: proto.DecodePresence(data).Count}, true
	case proto.EventUserJoined:
		return core.Event{Kind: core.EventUserJoined, Text: proto.DecodeNotice(data).Text}, true
	case proto.EventTyping:
		return core.Event{Kind: core.EventTyping, Text: proto.DecodeNotice(data).Text}, true
	case proto.EventError:
		e := proto.DecodeError(data)
		return core.Event{Kind: core.EventError, Error: core.NewError(e.Code, e.Msg)}, true
	default:
		return core.Event{}, false
	}
}

func messageFromData(d proto.MessageData) core.Message {
	msg := core.Message{
		ID:        d.ID,
		RoomID:    d.RoomID,
		SenderID:  d.SenderID,
		Body:      d.Body,
		Kind:      core.ParseKind(d.Kind),
		RawKind:   d.Kind,
		Timestamp: d.Timestamp,
		Caption:   d.Caption,
	}
	if d.ReplyTo != nil {
		msg.ReplyTo = &core.ReplyPreview{Sender: d.ReplyTo.Sender, Message: d.ReplyTo.Message}
	}
	return msg
}

func reactionFromData(d proto.ReactionData) core.ReactionEntry {
	return core.ReactionEntry{
		MessageID: d.MessageID,
		RoomID:    d.RoomID,
		EmojiID:   d.EmojiID,
		ReactorID: d.ReactorID,
	}
}

// frameFromCommand maps an outbound command to its event name and payload.
func frameFromCommand(cmd core.Command) (string, any, error) {
	switch cmd.Kind {
	case core.CommandJoinRoom:
		return proto.EventJoinRoom, proto.JoinRoomData{RoomID: cmd.Room, SenderID: cmd.Sender}, nil
	case core.CommandSendMessage:
		m := cmd.Message
		data := proto.MessageData{
			RoomID:    cmd.Room,
			SenderID:  cmd.Sender,
			Body:      m.Body,
			Kind:      m.Kind.String(),
			Timestamp: m.Timestamp,
			Caption:   m.Caption,
		}
		if m.ReplyTo != nil {
			data.ReplyTo = &proto.ReplyData{Sender: m.ReplyTo.Sender, Message: m.ReplyTo.Message}
		}
		return proto.EventSendMessage, data, nil
	case core.CommandSendReaction:
		r := cmd.Reaction
		return proto.EventSendReaction, proto.ReactionData{
			MessageID: r.MessageID,
			RoomID:    cmd.Room,
			EmojiID:   r.EmojiID,
			ReactorID: r.ReactorID,
		}, nil
	case core.CommandDeleteMessage:
		return proto.EventDeleteMessage, proto.DeleteMessageData{RoomID: cmd.Room, MessageID: cmd.MessageID}, nil
	case core.CommandTyping:
		return proto.EventTypingNotice, proto.TypingNoticeData{RoomID: cmd.Room, SenderID: cmd.Sender}, nil
	default:
		return "", nil, fmt.Errorf("unknown command kind %d", cmd.Kind)
	}
}
