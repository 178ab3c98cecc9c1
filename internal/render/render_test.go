package render

import (
	"strings"
	"testing"

	"github.com/vovakirdan/shadowchat/internal/core"
)

func TestMessageBlocks(t *testing.T) {
	r := New(Options{ImageURL: func(ref string) string { return "http://api/images/" + ref }})

	tests := []struct {
		name string
		msg  core.Message
		want []string
	}{
		{
			name: "own text",
			msg:  core.Message{SenderID: "me", Body: "hello", Kind: core.KindText, Timestamp: "9:5", IsOwn: true},
			want: []string{"[1] Me · 9:5", "  hello"},
		},
		{
			name: "other text",
			msg:  core.Message{SenderID: "shadow7", Body: "yo", Kind: core.KindText, Timestamp: "10:0"},
			want: []string{"[1] shadow7 · 10:0", "  yo"},
		},
		{
			name: "reply to me",
			msg: core.Message{
				SenderID: "shadow7", Body: "sure", Kind: core.KindReply,
				ReplyTo: &core.ReplyPreview{Sender: "me", Message: "lunch?"},
			},
			want: []string{"  ↪ Replying to Me: lunch?", "  sure"},
		},
		{
			name: "reply to someone else",
			msg: core.Message{
				SenderID: "me", Body: "+1", Kind: core.KindReply, IsOwn: true,
				ReplyTo: &core.ReplyPreview{Sender: "shadow3", Message: "deleted later"},
			},
			want: []string{"  ↪ Replying to shadow3: deleted later"},
		},
		{
			name: "captioned image",
			msg:  core.Message{SenderID: "a", Body: "x.png", Kind: core.KindImageWithCaption, Caption: "sunset"},
			want: []string{"  [image] http://api/images/x.png", `  "sunset"`},
		},
		{
			name: "unknown kind placeholder",
			msg:  core.Message{SenderID: "a", Body: "??", Kind: core.KindUnknown, RawKind: "voice"},
			want: []string{`  [unsupported message type "voice"]`},
		},
		{
			name: "emoji only",
			msg:  core.Message{SenderID: "a", Body: " 🔥🔥 ", Kind: core.KindText},
			want: []string{"  [big] 🔥🔥"},
		},
		{
			name: "blank sender",
			msg:  core.Message{Body: "anon", Kind: core.KindText},
			want: []string{"[1] unknown · "},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := r.Message(1, tt.msg, "me", nil)
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Fatalf("expected %q in:\n%s", w, out)
				}
			}
		})
	}
}

func TestStrip(t *testing.T) {
	r := New(Options{})

	entries := []core.ReactionEntry{
		{MessageID: "m", EmojiID: "🔥", ReactorID: "a"},
		{MessageID: "m", EmojiID: "🔥", ReactorID: "b"},
		{MessageID: "m", EmojiID: "👍", ReactorID: "a"},
		{MessageID: "m", EmojiID: "😂", ReactorID: "a"},
		{MessageID: "m", EmojiID: "🎉", ReactorID: "a"},
		{MessageID: "m", EmojiID: "heart", ReactorID: "a"},
		{MessageID: "m", EmojiID: "👀", ReactorID: "a"},
		{MessageID: "m", EmojiID: "🙏", ReactorID: "a"},
	}
	got := r.Strip(core.Aggregate(entries, "m"))
	want := "🔥 2  👍  😂  🎉  :heart:  +2"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	if s := r.Strip(nil); s != "" {
		t.Fatalf("expected empty strip, got %q", s)
	}
	if s := New(Options{ReactionLimit: 1}).Strip(core.Aggregate(entries, "m")); s != "🔥 2  +6" {
		t.Fatalf("unexpected limited strip %q", s)
	}
}

func TestIsEmojiOnly(t *testing.T) {
	tests := map[string]bool{
		"🔥":        true,
		" 🔥 👍 ":    true,
		"hi 🔥":     false,
		"hello":    false,
		"":         false,
		"   ":      false,
		"🔥 and 🔥": false,
	}
	for in, want := range tests {
		if got := IsEmojiOnly(in); got != want {
			t.Errorf("IsEmojiOnly(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestOwnMessagesAlignRight(t *testing.T) {
	r := New(Options{Width: 30})
	own := r.Message(2, core.Message{SenderID: "me", Body: "hey", Kind: core.KindText, Timestamp: "1:2", IsOwn: true}, "me", nil)
	other := r.Message(3, core.Message{SenderID: "you", Body: "hey", Kind: core.KindText, Timestamp: "1:2"}, "me", nil)

	for _, line := range strings.Split(strings.TrimRight(own, "\n"), "\n") {
		if !strings.HasPrefix(line, "   ") {
			t.Fatalf("own line should be right aligned: %q", line)
		}
	}
	if strings.HasPrefix(other, " ") {
		t.Fatalf("other messages stay left aligned: %q", other)
	}
}

func TestView(t *testing.T) {
	e := core.NewEngine(core.Scope{RoomID: "alpha", SessionID: "me"})
	e.ApplySnapshot("alpha", []core.Message{
		{ID: "1", SenderID: "me", Body: "first", Timestamp: "1:0"},
		{ID: "2", SenderID: "you", Body: "second", Timestamp: "1:1"},
	})
	e.ApplyReaction(core.ReactionEntry{MessageID: "2", EmojiID: "👍", ReactorID: "me"})
	e.ApplyPresence(2)
	e.ApplyTyping("you is typing")

	out := New(Options{}).View(e.View(), "me", e.Reactions)
	for _, want := range []string{"# alpha · 2 online", "[1] Me · 1:0", "[2] you · 1:1", "  👍", "-- you is typing --"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
	if strings.Index(out, "first") > strings.Index(out, "second") {
		t.Fatalf("messages must keep receipt order:\n%s", out)
	}
}
