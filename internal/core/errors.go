package core

import "errors"

// Error codes carried by backend error events.
const (
	ErrCodeRoomNotFound  = "room_not_found"
	ErrCodeNotInRoom     = "not_in_room"
	ErrCodeBadRequest    = "bad_request"
	ErrCodeNotOwner      = "not_owner"
	ErrCodeUnknownEvent  = "unknown_event"
	ErrCodeMessageAbsent = "message_not_found"
	ErrCodeInternal      = "internal_error"
)

// GeneralRoom is the open room every client can enter without a password.
const GeneralRoom = "general"

var (
	ErrEmptyBody      = errors.New("message body is empty")
	ErrUnknownMessage = errors.New("unknown message")
	ErrNoReplyTarget  = errors.New("reply target not found")
	ErrNotOwnMessage  = errors.New("message belongs to another participant")
	ErrNoActiveRoom   = errors.New("no active room")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

// NewError builds a CoreError.
func NewError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
