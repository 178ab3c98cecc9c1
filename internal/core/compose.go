package core

import (
	"fmt"
	"strings"
	"time"
)

// Draft is what the local user submits from the compose box.
type Draft struct {
	Body    string
	Kind    Kind
	Caption string
	// ReplyTo is the selected reply target, if any.
	ReplyTo *Message
}

// FormatTimestamp renders the send time as hour:minute, without padding.
func FormatTimestamp(t time.Time) string {
	return fmt.Sprintf("%d:%d", t.Hour(), t.Minute())
}

// ComposeOutgoing builds the send-message command for d. It does not touch
// any engine: the message only shows up once the backend echoes it.
func ComposeOutgoing(scope Scope, d Draft, now time.Time) Command {
	msg := Message{
		RoomID:    scope.RoomID,
		SenderID:  scope.SessionID,
		Body:      d.Body,
		Kind:      d.Kind,
		Timestamp: FormatTimestamp(now),
	}

	switch {
	case d.ReplyTo != nil:
		msg.Kind = KindReply
		msg.ReplyTo = &ReplyPreview{
			Sender:  d.ReplyTo.SenderID,
			Message: d.ReplyTo.Body,
		}
	case d.Kind == KindImageWithCaption:
		if strings.TrimSpace(d.Caption) == "" {
			msg.Kind = KindImage
		} else {
			msg.Caption = d.Caption
		}
	case d.Kind != KindImage:
		msg.Kind = KindText
	}
	msg.RawKind = msg.Kind.String()

	return Command{
		Kind:    CommandSendMessage,
		Room:    scope.RoomID,
		Sender:  scope.SessionID,
		Message: msg,
	}
}

// ValidateDraft rejects drafts that the compose box would not send.
func ValidateDraft(d Draft) error {
	if strings.TrimSpace(d.Body) == "" {
		return ErrEmptyBody
	}
	if d.Kind == KindReply && d.ReplyTo == nil {
		return ErrNoReplyTarget
	}
	return nil
}

// ComposeReaction builds a send-reaction command from the local session.
func ComposeReaction(scope Scope, messageID, emojiID string) Command {
	return Command{
		Kind:   CommandSendReaction,
		Room:   scope.RoomID,
		Sender: scope.SessionID,
		Reaction: ReactionEntry{
			MessageID: messageID,
			RoomID:    scope.RoomID,
			EmojiID:   emojiID,
			ReactorID: scope.SessionID,
		},
	}
}

// ComposeDelete builds a delete-message request.
func ComposeDelete(scope Scope, messageID string) Command {
	return Command{
		Kind:      CommandDeleteMessage,
		Room:      scope.RoomID,
		Sender:    scope.SessionID,
		MessageID: messageID,
	}
}

// ComposeTyping builds a typing notice.
func ComposeTyping(scope Scope) Command {
	return Command{Kind: CommandTyping, Room: scope.RoomID, Sender: scope.SessionID}
}

// ComposeJoin builds the join-room request sent on room entry.
func ComposeJoin(scope Scope) Command {
	return Command{Kind: CommandJoinRoom, Room: scope.RoomID, Sender: scope.SessionID}
}
