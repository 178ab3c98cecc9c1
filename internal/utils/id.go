package utils

import (
	"strings"

	"github.com/google/uuid"
)

// SessionPrefix starts every generated session id.
const SessionPrefix = "shadow"

// NewID returns a random unique identifier.
func NewID() string {
	return uuid.NewString()
}

// NewSessionID returns a fresh display identity such as "shadow3f9a01c2".
func NewSessionID() string {
	return SessionPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
