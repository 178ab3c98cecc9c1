package core

// DefaultReactionLimit is how many distinct emojis a collapsed strip shows.
const DefaultReactionLimit = 5

// ReactionEntry is one reaction event. Entries are never deduplicated: the
// same reactor may add the same emoji several times and each one counts.
type ReactionEntry struct {
	MessageID string
	RoomID    string
	EmojiID   string
	ReactorID string
}

func (r ReactionEntry) valid() bool {
	return r.MessageID != "" && r.EmojiID != ""
}

// ReactionCount is the display aggregate for one emoji on one message.
type ReactionCount struct {
	EmojiID  string
	Count    int
	Reactors []string
}

// ReactionStrip is a collapsed reaction row: the first emojis plus how many
// distinct emojis were left out.
type ReactionStrip struct {
	Shown    []ReactionCount
	Overflow int
}

// Aggregate groups the entries for messageID by emoji, in first-seen order.
func Aggregate(entries []ReactionEntry, messageID string) []ReactionCount {
	var counts []ReactionCount
	pos := make(map[string]int)
	for _, e := range entries {
		if e.MessageID != messageID {
			continue
		}
		i, ok := pos[e.EmojiID]
		if !ok {
			i = len(counts)
			pos[e.EmojiID] = i
			counts = append(counts, ReactionCount{EmojiID: e.EmojiID})
		}
		counts[i].Count++
		if e.ReactorID != "" {
			counts[i].Reactors = append(counts[i].Reactors, e.ReactorID)
		}
	}
	return counts
}

// Summarize truncates counts to limit distinct emojis. A non-positive limit
// falls back to DefaultReactionLimit.
func Summarize(counts []ReactionCount, limit int) ReactionStrip {
	if limit <= 0 {
		limit = DefaultReactionLimit
	}
	if len(counts) <= limit {
		return ReactionStrip{Shown: counts}
	}
	return ReactionStrip{
		Shown:    counts[:limit],
		Overflow: len(counts) - limit,
	}
}
