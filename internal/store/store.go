package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key or record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a record with the same id already exists.
	ErrConflict = errors.New("already exists")
)

// Keys of the persisted local client state.
const (
	KeySessionID  = "session_id"
	KeyActiveRoom = "active_room"
)

// Room represents a password-gated chat room.
type Room struct {
	ID           string
	PasswordHash string // empty for open rooms such as "general"
	CreatedAt    time.Time
}

// Message represents a persisted chat message.
type Message struct {
	ID           string
	RoomID       string
	SenderID     string
	Body         string
	Kind         string
	ReplySender  string
	ReplyMessage string
	HasReply     bool
	Timestamp    string
	Caption      string
	CreatedAt    time.Time
}

// Reaction is one entry of a room's reaction log.
type Reaction struct {
	MessageID string
	RoomID    string
	EmojiID   string
	ReactorID string
}

// Caption ties a caption to an uploaded image in a room.
type Caption struct {
	RoomID  string
	Image   string
	Caption string
}

// StateStore handles the local client's key-value state.
type StateStore interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set inserts or replaces the value for key.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// RoomStore handles room persistence.
type RoomStore interface {
	// CreateRoom creates a room or returns ErrConflict.
	CreateRoom(ctx context.Context, id, passwordHash string) (*Room, error)

	// GetRoom retrieves a room by id or returns ErrNotFound.
	GetRoom(ctx context.Context, id string) (*Room, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message. CreatedAt is filled when zero.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListMessages returns up to limit most recent messages of a room, oldest first.
	ListMessages(ctx context.Context, roomID string, limit int) ([]*Message, error)

	// GetMessage retrieves one message or returns ErrNotFound.
	GetMessage(ctx context.Context, roomID, id string) (*Message, error)

	// DeleteMessage removes one message or returns ErrNotFound.
	DeleteMessage(ctx context.Context, roomID, id string) error
}

// ReactionStore handles the reaction log.
type ReactionStore interface {
	// AddReaction appends an entry. Entries are never de-duplicated.
	AddReaction(ctx context.Context, r *Reaction) error

	// ListReactions returns a room's reaction log in insertion order.
	ListReactions(ctx context.Context, roomID string) ([]*Reaction, error)
}

// CaptionStore handles image captions.
type CaptionStore interface {
	// SaveCaption records the caption of an uploaded image.
	SaveCaption(ctx context.Context, c *Caption) error

	// ListCaptions returns a room's captions in insertion order.
	ListCaptions(ctx context.Context, roomID string) ([]*Caption, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	StateStore
	RoomStore
	MessageStore
	ReactionStore
	CaptionStore

	Close() error
}

// State is the persisted identity of the local client.
type State struct {
	SessionID string
	RoomID    string
}

// LoadState reads the session id and active room. Missing keys load as empty.
func LoadState(ctx context.Context, s StateStore) (State, error) {
	var st State
	for key, dst := range map[string]*string{KeySessionID: &st.SessionID, KeyActiveRoom: &st.RoomID} {
		v, err := s.Get(ctx, key)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return State{}, err
		}
		*dst = v
	}
	return st, nil
}

// ResetState clears both keys and then writes the new identity.
func ResetState(ctx context.Context, s StateStore, st State) error {
	if err := s.Delete(ctx, KeySessionID); err != nil {
		return err
	}
	if err := s.Delete(ctx, KeyActiveRoom); err != nil {
		return err
	}
	if err := s.Set(ctx, KeySessionID, st.SessionID); err != nil {
		return err
	}
	return s.Set(ctx, KeyActiveRoom, st.RoomID)
}
