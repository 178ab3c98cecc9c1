package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/shadowchat/internal/config"
	"github.com/vovakirdan/shadowchat/internal/core"
	"github.com/vovakirdan/shadowchat/internal/store"
	"github.com/vovakirdan/shadowchat/internal/store/sqlite"
	"github.com/vovakirdan/shadowchat/internal/transport/rest"
	"github.com/vovakirdan/shadowchat/internal/utils"
)

var (
	ErrRoomTaken     = errors.New("room id is not available")
	ErrRoomNotFound  = errors.New("room does not exist")
	ErrWrongPassword = errors.New("wrong password")
	ErrEmptyPassword = errors.New("password is empty")
	ErrBackendAsleep = errors.New("backend did not wake up")
)

// Client runs the entry flows and the chat session against one backend.
type Client struct {
	cfg   config.Config
	api   *rest.Client
	state *sqlite.SQLiteStore
	log   *zerolog.Logger
}

// NewClient opens the local state store and builds the REST client.
func NewClient(cfg config.Config, logger *zerolog.Logger) (*Client, error) {
	if err := ensureDir(cfg.StatePath); err != nil {
		return nil, err
	}
	st, err := sqlite.New(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}
	return &Client{
		cfg:   cfg,
		api:   rest.NewClient(cfg.APIURL, cfg.HTTPTimeout, logger),
		state: st,
		log:   logger,
	}, nil
}

// Close releases the state store.
func (c *Client) Close() error {
	return c.state.Close()
}

// State returns the persisted session id and active room.
func (c *Client) State(ctx context.Context) (store.State, error) {
	return store.LoadState(ctx, c.state)
}

// Create registers a new password-protected room and makes it active.
func (c *Client) Create(ctx context.Context, roomID, pass string) (store.State, error) {
	free, err := c.api.ValidateID(ctx, roomID)
	if err != nil {
		return store.State{}, fmt.Errorf("validate id: %w", err)
	}
	if !free {
		return store.State{}, ErrRoomTaken
	}
	if pass == "" {
		return store.State{}, ErrEmptyPassword
	}
	created, err := c.api.CreateShadow(ctx, roomID, pass)
	if err != nil {
		return store.State{}, fmt.Errorf("create room: %w", err)
	}
	if !created {
		return store.State{}, ErrRoomTaken
	}
	return c.enter(ctx, roomID)
}

// Join checks that a room exists and that pass opens it, then makes it active.
func (c *Client) Join(ctx context.Context, roomID, pass string) (store.State, error) {
	exists, err := c.api.CheckID(ctx, roomID)
	if err != nil {
		return store.State{}, fmt.Errorf("check id: %w", err)
	}
	if !exists {
		return store.State{}, ErrRoomNotFound
	}
	ok, err := c.api.ValidatePass(ctx, roomID, pass)
	if err != nil {
		return store.State{}, fmt.Errorf("validate password: %w", err)
	}
	if !ok {
		return store.State{}, ErrWrongPassword
	}
	return c.enter(ctx, roomID)
}

// General wakes the backend and makes the open general room active.
func (c *Client) General(ctx context.Context) (store.State, error) {
	awake, err := c.api.Activate(ctx)
	if err != nil {
		return store.State{}, fmt.Errorf("activate backend: %w", err)
	}
	if !awake {
		return store.State{}, ErrBackendAsleep
	}
	return c.enter(ctx, core.GeneralRoom)
}

// enter starts a fresh identity for roomID.
func (c *Client) enter(ctx context.Context, roomID string) (store.State, error) {
	st := store.State{SessionID: utils.NewSessionID(), RoomID: roomID}
	if err := store.ResetState(ctx, c.state, st); err != nil {
		return store.State{}, err
	}
	c.log.Info().Str("room", st.RoomID).Str("session_id", st.SessionID).Msg("room selected")
	return st, nil
}
