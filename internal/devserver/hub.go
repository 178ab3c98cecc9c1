// Package devserver is a small self-contained Shadow backend: the REST
// endpoints for room creation and image upload plus the websocket room
// stream, persisted in the same SQLite store the client uses for its state.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/shadowchat/internal/core"
	"github.com/vovakirdan/shadowchat/internal/proto"
	"github.com/vovakirdan/shadowchat/internal/store"
	"github.com/vovakirdan/shadowchat/internal/utils"
)

// DefaultHistoryLimit bounds the room snapshot sent on join.
const DefaultHistoryLimit = 200

type envelope struct {
	client *Client
	cmd    *Command
}

// Hub owns rooms and connected clients. All state is touched only from the
// Run goroutine.
type Hub struct {
	store        store.Store
	log          zerolog.Logger
	metrics      *Metrics
	historyLimit int

	register   chan *Client
	unregister chan *Client
	inbox      chan envelope
	done       chan struct{}

	clients   map[*Client]struct{}
	rooms     map[string]*Room
	connected atomic.Int64
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHistoryLimit sets how many messages a room snapshot carries.
func WithHistoryLimit(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.historyLimit = n
		}
	}
}

// WithMetrics attaches prometheus collectors.
func WithMetrics(m *Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// WithLogger sets the hub logger.
func WithLogger(logger *zerolog.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.log = logger.With().Str("component", "hub").Logger()
		}
	}
}

// NewHub creates a hub backed by st.
func NewHub(st store.Store, opts ...HubOption) *Hub {
	h := &Hub{
		store:        st,
		log:          zerolog.Nop(),
		historyLimit: DefaultHistoryLimit,
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		inbox:        make(chan envelope, 64),
		done:         make(chan struct{}),
		clients:      make(map[*Client]struct{}),
		rooms:        make(map[string]*Room),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Connected returns the number of registered clients.
func (h *Hub) Connected() int {
	return int(h.connected.Load())
}

// RegisterClient hands a new connection to the hub.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// UnregisterClient removes a connection and closes its Events channel.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Run processes registrations and client commands until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.connected.Add(1)
			go h.forward(c)
		case c := <-h.unregister:
			h.remove(c)
		case env := <-h.inbox:
			if _, ok := h.clients[env.client]; ok {
				h.handle(ctx, env.client, env.cmd)
			}
		case <-ctx.Done():
			for c := range h.clients {
				h.remove(c)
			}
			return
		}
	}
}

// forward moves a client's commands into the shared inbox.
func (h *Hub) forward(c *Client) {
	for {
		select {
		case cmd := <-c.Commands:
			select {
			case h.inbox <- envelope{client: c, cmd: cmd}:
			case <-c.done:
				return
			case <-h.done:
				return
			}
		case <-c.done:
			return
		case <-h.done:
			return
		}
	}
}

func (h *Hub) remove(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	h.leave(c)
	delete(h.clients, c)
	h.connected.Add(-1)
	close(c.done)
	close(c.Events)
}

func (h *Hub) handle(ctx context.Context, c *Client, cmd *Command) {
	h.metrics.received(cmd.Event)

	var err error
	switch cmd.Event {
	case proto.EventJoinRoom:
		err = h.join(ctx, c, proto.DecodeJoinRoom(cmd.Data))
	case proto.EventSendMessage:
		err = h.sendMessage(ctx, c, proto.DecodeMessage(cmd.Data))
	case proto.EventSendReaction:
		err = h.sendReaction(ctx, c, proto.DecodeReaction(cmd.Data))
	case proto.EventDeleteMessage:
		err = h.deleteMessage(ctx, c, proto.DecodeMessageDeleted(cmd.Data))
	case proto.EventTypingNotice:
		err = h.typing(c, proto.DecodeTypingNotice(cmd.Data))
	default:
		err = core.NewError(core.ErrCodeUnknownEvent, fmt.Sprintf("unknown event %q", cmd.Event))
	}
	if err == nil {
		return
	}

	var coreErr *core.CoreError
	if !errors.As(err, &coreErr) {
		h.log.Error().Err(err).Str("client_id", c.ID).Str("event", cmd.Event).Msg("command failed")
		coreErr = core.NewError(core.ErrCodeInternal, "internal error")
	}
	h.send(c, proto.EventError, proto.Error{Code: coreErr.Code, Msg: coreErr.Message})
}

func (h *Hub) join(ctx context.Context, c *Client, req proto.JoinRoomData) error {
	if req.RoomID == "" {
		return core.NewError(core.ErrCodeBadRequest, "roomId is required")
	}
	if _, err := h.store.GetRoom(ctx, req.RoomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return core.NewError(core.ErrCodeRoomNotFound, fmt.Sprintf("room %q not found", req.RoomID))
		}
		return fmt.Errorf("get room: %w", err)
	}

	msgs, err := h.store.ListMessages(ctx, req.RoomID, h.historyLimit)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}
	reactions, err := h.store.ListReactions(ctx, req.RoomID)
	if err != nil {
		return fmt.Errorf("list reactions: %w", err)
	}
	captions, err := h.store.ListCaptions(ctx, req.RoomID)
	if err != nil {
		return fmt.Errorf("list captions: %w", err)
	}

	h.leave(c)
	if req.SenderID != "" {
		c.Session = req.SenderID
	}
	c.Room = req.RoomID
	room, ok := h.rooms[req.RoomID]
	if !ok {
		room = NewRoom(req.RoomID)
		h.rooms[req.RoomID] = room
	}
	room.AddClient(c)

	snapshot := proto.RoomSnapshotData{RoomID: req.RoomID, Messages: make([]proto.MessageData, 0, len(msgs))}
	for _, m := range msgs {
		snapshot.Messages = append(snapshot.Messages, messageToData(m))
	}
	h.send(c, proto.EventRoomSnapshot, snapshot)

	reactionSnap := proto.ReactionSnapshotData{RoomID: req.RoomID, Entries: make([]proto.ReactionData, 0, len(reactions))}
	for _, r := range reactions {
		reactionSnap.Entries = append(reactionSnap.Entries, reactionToData(r))
	}
	h.send(c, proto.EventReactionSnapshot, reactionSnap)

	captionSnap := proto.CaptionSnapshotData{Captions: make([]proto.CaptionData, 0, len(captions))}
	for _, cp := range captions {
		captionSnap.Captions = append(captionSnap.Captions, captionToData(cp))
	}
	h.send(c, proto.EventCaptionSnapshot, captionSnap)

	h.broadcast(room, proto.EventPresenceCount, proto.PresenceData{Count: room.Len()}, nil)
	h.broadcast(room, proto.EventUserJoined, proto.NoticeData{Text: c.Session + " joined the room"}, c)

	h.log.Debug().Str("client_id", c.ID).Str("room", room.ID).Int("population", room.Len()).Msg("client joined")
	return nil
}

// leave drops c from its current room and tells the rest of the room.
func (h *Hub) leave(c *Client) {
	if c.Room == "" {
		return
	}
	room, ok := h.rooms[c.Room]
	c.Room = ""
	if !ok || !room.RemoveClient(c) {
		return
	}
	if room.Empty() {
		delete(h.rooms, room.ID)
		return
	}
	h.broadcast(room, proto.EventPresenceCount, proto.PresenceData{Count: room.Len()}, nil)
}

// member returns the room c has joined when it matches roomID. An empty
// roomID means the joined room.
func (h *Hub) member(c *Client, roomID string) (*Room, error) {
	if c.Room == "" || (roomID != "" && roomID != c.Room) {
		return nil, core.NewError(core.ErrCodeNotInRoom, "join the room first")
	}
	room, ok := h.rooms[c.Room]
	if !ok {
		return nil, core.NewError(core.ErrCodeNotInRoom, "join the room first")
	}
	return room, nil
}

func (h *Hub) sendMessage(ctx context.Context, c *Client, d proto.MessageData) error {
	room, err := h.member(c, d.RoomID)
	if err != nil {
		return err
	}
	if d.Body == "" {
		return core.NewError(core.ErrCodeBadRequest, "body is required")
	}

	msg := messageFromData(utils.NewID(), c, d)
	if err := h.store.SaveMessage(ctx, msg); err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	h.broadcast(room, proto.EventMessageAppended, messageToData(msg), nil)

	if msg.Caption != "" && core.ParseKind(msg.Kind).IsImage() {
		cp := &store.Caption{RoomID: room.ID, Image: msg.Body, Caption: msg.Caption}
		if err := h.store.SaveCaption(ctx, cp); err != nil {
			return fmt.Errorf("save caption: %w", err)
		}
		h.broadcast(room, proto.EventCaptionAdded, captionToData(cp), nil)
	}
	return nil
}

func (h *Hub) sendReaction(ctx context.Context, c *Client, d proto.ReactionData) error {
	room, err := h.member(c, d.RoomID)
	if err != nil {
		return err
	}
	if d.MessageID == "" || d.EmojiID == "" {
		return core.NewError(core.ErrCodeBadRequest, "messageId and emojiId are required")
	}
	if _, err := h.store.GetMessage(ctx, room.ID, d.MessageID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return core.NewError(core.ErrCodeMessageAbsent, fmt.Sprintf("message %q not found", d.MessageID))
		}
		return fmt.Errorf("get message: %w", err)
	}

	r := &store.Reaction{MessageID: d.MessageID, RoomID: room.ID, EmojiID: d.EmojiID, ReactorID: c.Session}
	if err := h.store.AddReaction(ctx, r); err != nil {
		return fmt.Errorf("add reaction: %w", err)
	}
	h.broadcast(room, proto.EventReactionAdded, reactionToData(r), nil)
	return nil
}

func (h *Hub) deleteMessage(ctx context.Context, c *Client, d proto.MessageDeletedData) error {
	room, err := h.member(c, d.RoomID)
	if err != nil {
		return err
	}
	if d.MessageID == "" {
		return core.NewError(core.ErrCodeBadRequest, "messageId is required")
	}
	msg, err := h.store.GetMessage(ctx, room.ID, d.MessageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return core.NewError(core.ErrCodeMessageAbsent, fmt.Sprintf("message %q not found", d.MessageID))
		}
		return fmt.Errorf("get message: %w", err)
	}
	if msg.SenderID != c.Session {
		return core.NewError(core.ErrCodeNotOwner, "only the sender can delete a message")
	}
	if err := h.store.DeleteMessage(ctx, room.ID, msg.ID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	h.broadcast(room, proto.EventMessageDeleted, proto.MessageDeletedData{MessageID: msg.ID, RoomID: room.ID}, nil)
	return nil
}

func (h *Hub) typing(c *Client, d proto.TypingNoticeData) error {
	room, err := h.member(c, d.RoomID)
	if err != nil {
		return err
	}
	h.broadcast(room, proto.EventTyping, proto.NoticeData{Text: c.Session + " is typing"}, c)
	return nil
}

func (h *Hub) send(c *Client, event string, data any) {
	frame, err := proto.NewFrame(event, data)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode frame")
		return
	}
	select {
	case c.Events <- frame:
		h.metrics.sent(event, 1)
	default:
		h.metrics.drop(1)
	}
}

func (h *Hub) broadcast(room *Room, event string, data any, skip *Client) {
	frame, err := proto.NewFrame(event, data)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode frame")
		return
	}
	recipients := room.Len()
	if skip != nil {
		recipients--
	}
	dropped := room.Broadcast(frame, skip)
	h.metrics.sent(event, recipients-dropped)
	h.metrics.drop(dropped)
}
