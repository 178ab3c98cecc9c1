package core

// Kind is the rendering category of a chat message.
type Kind int

const (
	// KindText is a plain text message.
	KindText Kind = iota
	// KindImage carries an uploaded image reference in Body.
	KindImage
	// KindImageWithCaption is an image whose caption arrives inline or out-of-band.
	KindImageWithCaption
	// KindReply is a text message quoting another message.
	KindReply
	// KindUnknown is any kind this client does not understand yet.
	KindUnknown
)

// Wire names for message kinds.
const (
	WireKindText             = "text"
	WireKindImage            = "image"
	WireKindImageCaption     = "image_caption"
	WireKindImageWithCaption = "image_with_caption"
	WireKindReplyText        = "replyText"
	WireKindReply            = "reply"
)

// ParseKind maps a wire kind to a Kind. An empty kind is treated as text.
func ParseKind(raw string) Kind {
	switch raw {
	case "", WireKindText:
		return KindText
	case WireKindImage:
		return KindImage
	case WireKindImageCaption, WireKindImageWithCaption:
		return KindImageWithCaption
	case WireKindReplyText, WireKindReply:
		return KindReply
	default:
		return KindUnknown
	}
}

// String returns the wire name emitted for the kind.
func (k Kind) String() string {
	switch k {
	case KindText:
		return WireKindText
	case KindImage:
		return WireKindImage
	case KindImageWithCaption:
		return WireKindImageWithCaption
	case KindReply:
		return WireKindReplyText
	default:
		return "unknown"
	}
}

// IsImage reports whether Body holds an image reference.
func (k Kind) IsImage() bool {
	return k == KindImage || k == KindImageWithCaption
}

// ReplyPreview is a copy of the replied-to message taken at send time.
// It is never linked back to the original.
type ReplyPreview struct {
	Sender  string
	Message string
}

// Message is the client-side view of a chat message.
type Message struct {
	ID        string
	RoomID    string
	SenderID  string
	Body      string
	Kind      Kind
	RawKind   string
	ReplyTo   *ReplyPreview
	Timestamp string
	Caption   string

	// IsOwn is derived on apply and never transmitted.
	IsOwn bool
}

// Clone returns a deep copy so callers never share the reply preview.
func (m Message) Clone() Message {
	if m.ReplyTo != nil {
		preview := *m.ReplyTo
		m.ReplyTo = &preview
	}
	return m
}

// Scope identifies the room being viewed and the local session viewing it.
type Scope struct {
	RoomID    string
	SessionID string
}

// Owns reports whether senderID is the local session. A blank session owns nothing.
func (s Scope) Owns(senderID string) bool {
	return s.SessionID != "" && senderID == s.SessionID
}

// accepts reports whether an event tagged with roomID belongs to this scope.
// Untagged events are attributed to the scope's room.
func (s Scope) accepts(roomID string) bool {
	return roomID == "" || roomID == s.RoomID
}
