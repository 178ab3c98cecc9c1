package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/shadowchat/internal/core"
)

// TypingInterval is the minimum gap between two outbound typing notices.
const TypingInterval = 2 * time.Second

// ErrSessionClosed is returned by operations on a closed session.
var ErrSessionClosed = errors.New("room session closed")

// Session binds one room's websocket stream to a core.Engine. Handlers are
// attached on entry and detached on Close, before the socket goes away.
type Session struct {
	conn   *Conn
	engine *core.Engine
	log    zerolog.Logger
	now    func() time.Time

	// applying is held for reading while a frame is applied and for
	// writing while Close resets the engine.
	applying sync.RWMutex

	mu         sync.Mutex
	offs       []func()
	closed     bool
	lastTyping time.Time
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithClock overrides the time source used for timestamps and typing throttling.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// Enter dials url and starts a room session for the engine's scope.
func Enter(ctx context.Context, url string, engine *core.Engine, logger *zerolog.Logger, opts ...SessionOption) (*Session, error) {
	conn, err := Dial(ctx, url, logger)
	if err != nil {
		return nil, err
	}
	s, err := Attach(ctx, conn, engine, logger, opts...)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

// Attach starts a room session on an already open connection: it attaches a
// handler for every inbound event and emits join-room.
func Attach(ctx context.Context, conn *Conn, engine *core.Engine, logger *zerolog.Logger, opts ...SessionOption) (*Session, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	scope := engine.Scope()
	s := &Session{
		conn:   conn,
		engine: engine,
		log:    logger.With().Str("room", scope.RoomID).Str("conn_id", conn.ID).Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, event := range inboundEvents {
		name := event
		s.offs = append(s.offs, conn.On(name, func(data []byte) {
			s.handle(name, data)
		}))
	}

	if err := s.emit(ctx, core.ComposeJoin(scope)); err != nil {
		s.detach()
		return nil, err
	}
	s.log.Info().Str("session_id", scope.SessionID).Msg("entered room")
	return s, nil
}

// Engine returns the projection this session feeds.
func (s *Session) Engine() *core.Engine {
	return s.engine
}

// Done is closed when the underlying connection stops reading.
func (s *Session) Done() <-chan struct{} {
	return s.conn.Done()
}

// Send composes and emits a message. Nothing is appended locally; the
// message shows up once the backend broadcasts it.
func (s *Session) Send(ctx context.Context, d core.Draft) error {
	if err := core.ValidateDraft(d); err != nil {
		return err
	}
	return s.emit(ctx, core.ComposeOutgoing(s.engine.Scope(), d, s.now()))
}

// React emits a reaction to a known message.
func (s *Session) React(ctx context.Context, messageID, emojiID string) error {
	if _, ok := s.engine.Message(messageID); !ok {
		return core.ErrUnknownMessage
	}
	if emojiID == "" {
		return fmt.Errorf("react to %s: empty emoji", messageID)
	}
	return s.emit(ctx, core.ComposeReaction(s.engine.Scope(), messageID, emojiID))
}

// Delete asks the backend to delete one of our own messages.
func (s *Session) Delete(ctx context.Context, messageID string) error {
	if err := s.engine.CanDelete(messageID); err != nil {
		return err
	}
	return s.emit(ctx, core.ComposeDelete(s.engine.Scope(), messageID))
}

// Typing emits a typing notice, at most once per TypingInterval.
func (s *Session) Typing(ctx context.Context) error {
	now := s.now()
	s.mu.Lock()
	if !s.lastTyping.IsZero() && now.Sub(s.lastTyping) < TypingInterval {
		s.mu.Unlock()
		return nil
	}
	s.lastTyping = now
	s.mu.Unlock()
	return s.emit(ctx, core.ComposeTyping(s.engine.Scope()))
}

// Close detaches every handler, closes the socket and resets the engine.
// It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.detach()
	err := s.conn.Close()
	s.applying.Lock()
	s.engine.Reset()
	s.applying.Unlock()
	s.log.Info().Msg("left room")
	return err
}

func (s *Session) detach() {
	s.mu.Lock()
	offs := s.offs
	s.offs = nil
	s.mu.Unlock()
	for _, off := range offs {
		off()
	}
}

func (s *Session) handle(event string, data []byte) {
	ev, ok := eventFromFrame(event, data)
	if !ok {
		return
	}
	s.applying.RLock()
	defer s.applying.RUnlock()
	if s.isClosed() {
		return
	}
	s.log.Debug().Str("event", event).Str("kind", ev.Kind.String()).Msg("frame received")
	s.engine.Apply(ev)
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) emit(ctx context.Context, cmd core.Command) error {
	if s.isClosed() {
		return ErrSessionClosed
	}

	event, data, err := frameFromCommand(cmd)
	if err != nil {
		return err
	}
	if err := s.conn.Emit(ctx, event, data); err != nil {
		s.log.Warn().Err(err).Str("event", event).Msg("send failed")
		return err
	}
	return nil
}
