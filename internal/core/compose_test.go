package core

import (
	"testing"
	"time"
)

func TestComposeOutgoing(t *testing.T) {
	scope := Scope{RoomID: "room", SessionID: "shadow7"}
	now := time.Date(2024, 5, 1, 9, 5, 0, 0, time.UTC)
	target := Message{ID: "1", SenderID: "shadow3", Body: "hi"}

	tests := []struct {
		name    string
		draft   Draft
		kind    Kind
		raw     string
		caption string
		reply   *ReplyPreview
	}{
		{name: "text", draft: Draft{Body: "hello", Kind: KindText}, kind: KindText, raw: "text"},
		{name: "image", draft: Draft{Body: "a.png", Kind: KindImage}, kind: KindImage, raw: "image"},
		{
			name:    "image with caption",
			draft:   Draft{Body: "a.png", Kind: KindImageWithCaption, Caption: "look"},
			kind:    KindImageWithCaption,
			raw:     "image_with_caption",
			caption: "look",
		},
		{
			name:  "image with blank caption degrades to image",
			draft: Draft{Body: "a.png", Kind: KindImageWithCaption, Caption: "  "},
			kind:  KindImage,
			raw:   "image",
		},
		{
			name:  "reply target wins",
			draft: Draft{Body: "ok", Kind: KindText, ReplyTo: &target},
			kind:  KindReply,
			raw:   "replyText",
			reply: &ReplyPreview{Sender: "shadow3", Message: "hi"},
		},
		{name: "unknown kind sends text", draft: Draft{Body: "x", Kind: KindUnknown}, kind: KindText, raw: "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := ComposeOutgoing(scope, tt.draft, now)
			if cmd.Kind != CommandSendMessage || cmd.Room != "room" || cmd.Sender != "shadow7" {
				t.Fatalf("unexpected command envelope: %+v", cmd)
			}
			msg := cmd.Message
			if msg.Kind != tt.kind || msg.RawKind != tt.raw {
				t.Fatalf("expected kind %v/%s, got %v/%s", tt.kind, tt.raw, msg.Kind, msg.RawKind)
			}
			if msg.SenderID != "shadow7" || msg.RoomID != "room" || msg.ID != "" {
				t.Fatalf("unexpected stamping: %+v", msg)
			}
			if msg.Timestamp != "9:5" {
				t.Fatalf("expected timestamp 9:5, got %q", msg.Timestamp)
			}
			if msg.Caption != tt.caption {
				t.Fatalf("expected caption %q, got %q", tt.caption, msg.Caption)
			}
			if (msg.ReplyTo == nil) != (tt.reply == nil) {
				t.Fatalf("unexpected reply preview: %+v", msg.ReplyTo)
			}
			if tt.reply != nil && *msg.ReplyTo != *tt.reply {
				t.Fatalf("expected preview %+v, got %+v", *tt.reply, *msg.ReplyTo)
			}
		})
	}
}

func TestComposeReplyIsSnapshot(t *testing.T) {
	target := Message{ID: "1", SenderID: "a", Body: "original"}
	cmd := ComposeOutgoing(Scope{RoomID: "r", SessionID: "b"}, Draft{Body: "re", ReplyTo: &target}, time.Now())

	target.Body = "edited"
	if cmd.Message.ReplyTo.Message != "original" {
		t.Fatalf("reply preview must be copied at compose time, got %q", cmd.Message.ReplyTo.Message)
	}
}

func TestValidateDraft(t *testing.T) {
	target := Message{ID: "1", SenderID: "a", Body: "hi"}
	tests := []struct {
		name  string
		draft Draft
		want  error
	}{
		{name: "blank body", draft: Draft{Body: "  \n"}, want: ErrEmptyBody},
		{name: "text", draft: Draft{Body: "hey"}},
		{name: "reply without target", draft: Draft{Body: "re", Kind: KindReply}, want: ErrNoReplyTarget},
		{name: "reply with target", draft: Draft{Body: "re", Kind: KindReply, ReplyTo: &target}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateDraft(tt.draft); err != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestComposeSideCommands(t *testing.T) {
	scope := Scope{RoomID: "r", SessionID: "me"}

	react := ComposeReaction(scope, "m1", "👍")
	if react.Kind != CommandSendReaction || react.Reaction.ReactorID != "me" || react.Reaction.MessageID != "m1" || react.Reaction.RoomID != "r" {
		t.Fatalf("unexpected reaction command: %+v", react)
	}

	del := ComposeDelete(scope, "m1")
	if del.Kind != CommandDeleteMessage || del.MessageID != "m1" || del.Room != "r" {
		t.Fatalf("unexpected delete command: %+v", del)
	}

	if c := ComposeTyping(scope); c.Kind != CommandTyping || c.Room != "r" {
		t.Fatalf("unexpected typing command: %+v", c)
	}
	if c := ComposeJoin(scope); c.Kind != CommandJoinRoom || c.Room != "r" || c.Sender != "me" {
		t.Fatalf("unexpected join command: %+v", c)
	}
}

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{
		"":                   KindText,
		"text":               KindText,
		"image":              KindImage,
		"image_caption":      KindImageWithCaption,
		"image_with_caption": KindImageWithCaption,
		"replyText":          KindReply,
		"reply":              KindReply,
		"sticker":            KindUnknown,
	}
	for raw, want := range tests {
		if got := ParseKind(raw); got != want {
			t.Errorf("ParseKind(%q) = %v, want %v", raw, got, want)
		}
	}
}
