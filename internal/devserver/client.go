package devserver

import (
	"encoding/json"

	"github.com/vovakirdan/shadowchat/internal/proto"
)

// Command is a frame received from a connected client.
type Command struct {
	Event string
	Data  json.RawMessage
}

// Client is a websocket connection as seen by the hub.
type Client struct {
	ID string
	// Session is the sender id the client announced on join.
	Session  string
	Room     string
	Commands chan *Command
	Events   chan proto.Frame

	done chan struct{}
}

// NewClient constructs a client with initialized channels.
func NewClient(id string) *Client {
	return &Client{
		ID:       id,
		Session:  id,
		Commands: make(chan *Command, 8),
		Events:   make(chan proto.Frame, 32),
		done:     make(chan struct{}),
	}
}
