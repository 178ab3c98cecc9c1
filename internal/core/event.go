package core

// EventKind is a notification pushed by the backend into a room session.
type EventKind int

const (
	// EventSnapshot replaces the message list with the room's history.
	EventSnapshot EventKind = iota
	// EventAppend adds a single new message.
	EventAppend
	// EventDelete removes a message by id.
	EventDelete
	// EventReactionSnapshot replaces the reaction log.
	EventReactionSnapshot
	// EventReaction adds one reaction entry.
	EventReaction
	// EventCaptionSnapshot replaces the known image captions.
	EventCaptionSnapshot
	// EventCaption records one image caption.
	EventCaption
	// EventPresence reports the room population.
	EventPresence
	// EventUserJoined is a transient "someone joined" notice.
	EventUserJoined
	// EventTyping is a transient typing notice.
	EventTyping
	// EventError reports a backend-side error for this session.
	EventError
)

var eventKindNames = [...]string{
	EventSnapshot:         "snapshot",
	EventAppend:           "append",
	EventDelete:           "delete",
	EventReactionSnapshot: "reaction_snapshot",
	EventReaction:         "reaction",
	EventCaptionSnapshot:  "caption_snapshot",
	EventCaption:          "caption",
	EventPresence:         "presence",
	EventUserJoined:       "user_joined",
	EventTyping:           "typing",
	EventError:            "error",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventKindNames) {
		return "unknown"
	}
	return eventKindNames[k]
}

// Event is one inbound delta or snapshot, already decoded from the wire.
type Event struct {
	Kind      EventKind
	Room      string
	Message   Message
	Messages  []Message // EventSnapshot
	MessageID string    // EventDelete
	Reaction  ReactionEntry
	Reactions []ReactionEntry // EventReactionSnapshot
	Caption   Caption
	Captions  []Caption // EventCaptionSnapshot
	Count     int       // EventPresence
	Text      string    // EventUserJoined, EventTyping
	Error     *CoreError
}

// Caption ties a caption text to an uploaded image reference.
type Caption struct {
	Image string
	Text  string
}
