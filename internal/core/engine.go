package core

import (
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Hooks are render-side collaborators. They run after a mutation has been
// committed, outside the engine lock.
type Hooks struct {
	// Alert plays an audible cue for a message from another participant.
	Alert func(Message)
	// ScrollToBottom pins the viewport to the newest message.
	ScrollToBottom func()
	// Changed fires after any projection change, banner expiry included.
	Changed func()
}

// Option configures an Engine.
type Option func(*Engine)

// WithHooks installs render-side collaborators.
func WithHooks(h Hooks) Option {
	return func(e *Engine) { e.hooks = h }
}

// WithLogger sets the engine logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.log = logger
		}
	}
}

// WithNoticeTTL overrides how long join and typing notices stay visible.
func WithNoticeTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.noticeTTL = ttl }
}

// Engine reconciles a room's event stream into an ordered view model.
// The transport dispatcher is the single writer; View and the other readers
// may be called from any goroutine.
type Engine struct {
	scope Scope

	mu        sync.RWMutex
	messages  []Message
	ids       map[string]struct{}
	reactions []ReactionEntry
	captions  map[string]string
	presence  int

	notice    *banner
	typing    *banner
	noticeTTL time.Duration
	hooks     Hooks
	log       *zerolog.Logger
}

// NewEngine creates an empty projection for scope.
func NewEngine(scope Scope, opts ...Option) *Engine {
	nop := zerolog.Nop()
	e := &Engine{
		scope:    scope,
		ids:      make(map[string]struct{}),
		captions: make(map[string]string),
		log:      &nop,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.notice = newBanner(e.noticeTTL, e.changed)
	e.typing = newBanner(e.noticeTTL, e.changed)
	return e
}

// Scope returns the room and session this engine projects.
func (e *Engine) Scope() Scope {
	return e.scope
}

// Apply dispatches a decoded event to the matching operation.
func (e *Engine) Apply(ev Event) {
	switch ev.Kind {
	case EventSnapshot:
		e.ApplySnapshot(ev.Room, ev.Messages)
	case EventAppend:
		e.ApplyAppend(ev.Message)
	case EventDelete:
		if !e.scope.accepts(ev.Room) {
			e.log.Debug().Str("room", ev.Room).Str("message_id", ev.MessageID).Msg("dropping delete for foreign room")
			return
		}
		e.ApplyDelete(ev.MessageID)
	case EventReactionSnapshot:
		if !e.scope.accepts(ev.Room) {
			e.log.Debug().Str("room", ev.Room).Msg("dropping reaction snapshot for foreign room")
			return
		}
		e.ApplyReactionSnapshot(ev.Reactions)
	case EventReaction:
		e.ApplyReaction(ev.Reaction)
	case EventCaptionSnapshot:
		e.ApplyCaptionSnapshot(ev.Captions)
	case EventCaption:
		e.ApplyCaption(ev.Caption)
	case EventPresence:
		e.ApplyPresence(ev.Count)
	case EventUserJoined:
		e.ApplyUserJoined(ev.Text)
	case EventTyping:
		e.ApplyTyping(ev.Text)
	case EventError:
		if ev.Error != nil {
			e.log.Warn().Str("code", ev.Error.Code).Str("room", e.scope.RoomID).Msg(ev.Error.Message)
		}
	default:
		e.log.Debug().Int("kind", int(ev.Kind)).Msg("ignoring unknown event kind")
	}
}

// ApplySnapshot replaces the message list with msgs, in the order given.
// Applying the same snapshot twice yields the same state.
func (e *Engine) ApplySnapshot(roomID string, msgs []Message) {
	if !e.scope.accepts(roomID) {
		e.log.Debug().Str("room", roomID).Msg("dropping snapshot for foreign room")
		return
	}

	next := make([]Message, 0, len(msgs))
	ids := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if !e.scope.accepts(m.RoomID) {
			continue
		}
		if m.ID != "" {
			if _, dup := ids[m.ID]; dup {
				continue
			}
			ids[m.ID] = struct{}{}
		}
		next = append(next, e.admit(m))
	}

	e.mu.Lock()
	e.messages = next
	e.ids = ids
	e.mu.Unlock()

	e.log.Debug().Str("room", e.scope.RoomID).Int("messages", len(next)).Msg("snapshot applied")
	e.fire(effects{scroll: true})
}

// ApplyAppend adds m at the tail of the list. Messages for another room and
// redelivered ids are dropped.
func (e *Engine) ApplyAppend(m Message) {
	if !e.scope.accepts(m.RoomID) {
		e.log.Debug().Str("room", m.RoomID).Str("message_id", m.ID).Msg("dropping message for foreign room")
		return
	}
	m = e.admit(m)

	e.mu.Lock()
	if m.ID != "" {
		if _, dup := e.ids[m.ID]; dup {
			e.mu.Unlock()
			e.log.Debug().Str("message_id", m.ID).Msg("dropping redelivered message")
			return
		}
		e.ids[m.ID] = struct{}{}
	}
	e.messages = append(e.messages, m)
	e.mu.Unlock()

	fx := effects{scroll: true}
	if !m.IsOwn {
		fx.alert = &m
	}
	e.fire(fx)
}

// ApplyDelete removes the message with id. Unknown ids are a no-op.
func (e *Engine) ApplyDelete(id string) {
	if id == "" {
		return
	}

	e.mu.Lock()
	idx := slices.IndexFunc(e.messages, func(m Message) bool { return m.ID == id })
	if idx < 0 {
		e.mu.Unlock()
		e.log.Debug().Str("message_id", id).Msg("delete for absent message")
		return
	}
	e.messages = slices.Delete(e.messages, idx, idx+1)
	delete(e.ids, id)
	e.mu.Unlock()

	e.fire(effects{})
}

// ApplyReaction appends r to the reaction log without deduplication.
func (e *Engine) ApplyReaction(r ReactionEntry) {
	if !e.scope.accepts(r.RoomID) || !r.valid() {
		e.log.Debug().Str("room", r.RoomID).Str("message_id", r.MessageID).Msg("dropping reaction")
		return
	}
	r.RoomID = e.scope.RoomID

	e.mu.Lock()
	e.reactions = append(e.reactions, r)
	e.mu.Unlock()

	e.fire(effects{})
}

// ApplyReactionSnapshot replaces the reaction log.
func (e *Engine) ApplyReactionSnapshot(entries []ReactionEntry) {
	next := make([]ReactionEntry, 0, len(entries))
	for _, r := range entries {
		if !e.scope.accepts(r.RoomID) || !r.valid() {
			continue
		}
		r.RoomID = e.scope.RoomID
		next = append(next, r)
	}

	e.mu.Lock()
	e.reactions = next
	e.mu.Unlock()

	e.fire(effects{})
}

// ApplyCaption records the caption for an uploaded image.
func (e *Engine) ApplyCaption(c Caption) {
	if c.Image == "" {
		return
	}
	e.mu.Lock()
	e.captions[c.Image] = c.Text
	e.mu.Unlock()

	e.fire(effects{})
}

// ApplyCaptionSnapshot replaces every known caption.
func (e *Engine) ApplyCaptionSnapshot(captions []Caption) {
	next := make(map[string]string, len(captions))
	for _, c := range captions {
		if c.Image != "" {
			next[c.Image] = c.Text
		}
	}
	e.mu.Lock()
	e.captions = next
	e.mu.Unlock()

	e.fire(effects{})
}

// ApplyPresence stores the room population.
func (e *Engine) ApplyPresence(count int) {
	if count < 0 {
		count = 0
	}
	e.mu.Lock()
	e.presence = count
	e.mu.Unlock()

	e.fire(effects{})
}

// ApplyUserJoined shows a transient join notice.
func (e *Engine) ApplyUserJoined(text string) {
	if text == "" {
		return
	}
	e.notice.set(text)
	e.fire(effects{})
}

// ApplyTyping shows a transient typing notice.
func (e *Engine) ApplyTyping(text string) {
	if text == "" {
		return
	}
	e.typing.set(text)
	e.fire(effects{})
}

// Reset tears down all room state. Used on room exit.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.messages = nil
	e.ids = make(map[string]struct{})
	e.reactions = nil
	e.captions = make(map[string]string)
	e.presence = 0
	e.mu.Unlock()

	e.notice.stop()
	e.typing.stop()
	e.fire(effects{})
}

// admit stamps derived fields. IsOwn is recomputed on every apply.
func (e *Engine) admit(m Message) Message {
	m = m.Clone()
	if m.RoomID == "" {
		m.RoomID = e.scope.RoomID
	}
	m.IsOwn = e.scope.Owns(m.SenderID)
	return m
}

type effects struct {
	alert  *Message
	scroll bool
}

func (e *Engine) fire(fx effects) {
	if fx.alert != nil && e.hooks.Alert != nil {
		e.hooks.Alert(*fx.alert)
	}
	if fx.scroll && e.hooks.ScrollToBottom != nil {
		e.hooks.ScrollToBottom()
	}
	e.changed()
}

func (e *Engine) changed() {
	if e.hooks.Changed != nil {
		e.hooks.Changed()
	}
}
