// Package render turns the engine's view model into plain terminal text.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/forPelevin/gomoji"
	"github.com/rivo/uniseg"
	"github.com/vovakirdan/shadowchat/internal/core"
)

// OwnLabel replaces the local session id wherever a sender is shown.
const OwnLabel = "Me"

// Options controls the rendering.
type Options struct {
	// ReactionLimit is how many distinct emojis a strip shows before "+N".
	ReactionLimit int
	// Width right-aligns own messages when positive.
	Width int
	// ImageURL maps an image reference to something clickable.
	ImageURL func(ref string) string
}

// Renderer formats messages, reaction strips and banners.
type Renderer struct {
	opts Options
}

// New creates a renderer.
func New(opts Options) *Renderer {
	if opts.ReactionLimit <= 0 {
		opts.ReactionLimit = core.DefaultReactionLimit
	}
	return &Renderer{opts: opts}
}

// ReactionSource returns the grouped reactions of a message.
type ReactionSource func(messageID string) []core.ReactionCount

// View renders the header, every message in order and the active banners.
func (r *Renderer) View(v core.View, sessionID string, reactions ReactionSource) string {
	var b strings.Builder
	b.WriteString(r.Header(v))
	b.WriteByte('\n')
	for i, m := range v.Messages {
		var counts []core.ReactionCount
		if reactions != nil && m.ID != "" {
			counts = reactions(m.ID)
		}
		b.WriteString(r.Message(i+1, m, sessionID, counts))
	}
	for _, banner := range []string{v.Notice, v.Typing} {
		if banner != "" {
			b.WriteString("-- ")
			b.WriteString(banner)
			b.WriteString(" --\n")
		}
	}
	return b.String()
}

// Header is the room title line with the population.
func (r *Renderer) Header(v core.View) string {
	return fmt.Sprintf("# %s · %d online", v.RoomID, v.Presence)
}

// Message renders one message block. idx is the number users type in
// commands such as /reply 3.
func (r *Renderer) Message(idx int, m core.Message, sessionID string, counts []core.ReactionCount) string {
	lines := []string{fmt.Sprintf("[%d] %s · %s", idx, Label(m), m.Timestamp)}

	if m.ReplyTo != nil {
		lines = append(lines, "  ↪ Replying to "+ReplyLabel(*m.ReplyTo, sessionID)+": "+m.ReplyTo.Message)
	}

	switch m.Kind {
	case core.KindText, core.KindReply:
		if IsEmojiOnly(m.Body) {
			lines = append(lines, "  [big] "+strings.TrimSpace(m.Body))
		} else {
			for _, l := range strings.Split(m.Body, "\n") {
				lines = append(lines, "  "+l)
			}
		}
	case core.KindImage, core.KindImageWithCaption:
		lines = append(lines, "  [image] "+r.imageURL(m.Body))
		if m.Caption != "" {
			lines = append(lines, "  "+strconv.Quote(m.Caption))
		}
	default:
		lines = append(lines, fmt.Sprintf("  [unsupported message type %q]", m.RawKind))
	}

	if strip := r.Strip(counts); strip != "" {
		lines = append(lines, "  "+strip)
	}

	if m.IsOwn && r.opts.Width > 0 {
		alignRight(lines, r.opts.Width)
	}
	return strings.Join(lines, "\n") + "\n"
}

// Strip renders the reaction strip: the first distinct emojis in first-seen
// order, a count only when above one, and "+N" for the rest.
func (r *Renderer) Strip(counts []core.ReactionCount) string {
	strip := core.Summarize(counts, r.opts.ReactionLimit)
	if len(strip.Shown) == 0 {
		return ""
	}
	parts := make([]string, 0, len(strip.Shown)+1)
	for _, c := range strip.Shown {
		part := EmojiGlyph(c.EmojiID)
		if c.Count > 1 {
			part += " " + strconv.Itoa(c.Count)
		}
		parts = append(parts, part)
	}
	if strip.Overflow > 0 {
		parts = append(parts, "+"+strconv.Itoa(strip.Overflow))
	}
	return strings.Join(parts, "  ")
}

// Label is the sender shown in a message header.
func Label(m core.Message) string {
	if m.IsOwn {
		return OwnLabel
	}
	if m.SenderID == "" {
		return "unknown"
	}
	return m.SenderID
}

// ReplyLabel is the sender shown in a reply preview.
func ReplyLabel(p core.ReplyPreview, sessionID string) string {
	if sessionID != "" && p.Sender == sessionID {
		return OwnLabel
	}
	if p.Sender == "" {
		return "unknown"
	}
	return p.Sender
}

// IsEmojiOnly reports whether text consists of emojis and whitespace only.
func IsEmojiOnly(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || !gomoji.ContainsEmoji(trimmed) {
		return false
	}
	return strings.TrimSpace(gomoji.RemoveEmojis(trimmed)) == ""
}

// EmojiGlyph shows a native emoji as is and wraps a short-code id in colons.
func EmojiGlyph(id string) string {
	if gomoji.ContainsEmoji(id) {
		return id
	}
	return ":" + strings.Trim(id, ":") + ":"
}

func (r *Renderer) imageURL(ref string) string {
	if r.opts.ImageURL == nil || ref == "" {
		return ref
	}
	return r.opts.ImageURL(ref)
}

func alignRight(lines []string, width int) {
	for i, l := range lines {
		if w := uniseg.StringWidth(l); w < width {
			lines[i] = strings.Repeat(" ", width-w) + l
		}
	}
}
