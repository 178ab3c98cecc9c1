package ws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/buger/jsonparser"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/vovakirdan/shadowchat/internal/proto"
	"github.com/vovakirdan/shadowchat/internal/utils"
)

const readLimit = 4 << 20

// Handler receives the raw data of one inbound frame.
type Handler func(data []byte)

type registration struct {
	id uint64
	fn Handler
}

// Conn is a client websocket connection with a per-event handler registry.
// Frames are dispatched on a single goroutine in delivery order.
type Conn struct {
	ID string

	ws  *websocket.Conn
	log zerolog.Logger

	mu       sync.Mutex
	handlers map[string][]registration
	nextID   uint64

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// Dial opens a websocket connection to url and starts the read loop.
func Dial(ctx context.Context, url string, logger *zerolog.Logger) (*Conn, error) {
	wsConn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	wsConn.SetReadLimit(readLimit)

	c := newConn(wsConn, logger)
	go c.readLoop()
	return c, nil
}

func newConn(wsConn *websocket.Conn, logger *zerolog.Logger) *Conn {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	id := utils.NewID()
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		ID:       id,
		ws:       wsConn,
		log:      logger.With().Str("conn_id", id).Logger(),
		handlers: make(map[string][]registration),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// On attaches h to event and returns a function that detaches it.
func (c *Conn) On(event string, h Handler) (off func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.handlers[event] = append(c.handlers[event], registration{id: id, fn: h})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		regs := c.handlers[event]
		for i, r := range regs {
			if r.id == id {
				c.handlers[event] = append(regs[:i:i], regs[i+1:]...)
				break
			}
		}
		if len(c.handlers[event]) == 0 {
			delete(c.handlers, event)
		}
	}
}

// Handlers reports how many handlers are attached to event.
func (c *Conn) Handlers(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers[event])
}

// Emit sends one frame.
func (c *Conn) Emit(ctx context.Context, event string, data any) error {
	frame, err := proto.NewFrame(event, data)
	if err != nil {
		return err
	}
	if err := wsjson.Write(ctx, c.ws, frame); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	c.log.Debug().Str("event", event).Msg("frame sent")
	return nil
}

// Done is closed when the read loop stops.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that stopped the read loop, nil after a clean close.
func (c *Conn) Err() error {
	<-c.done
	return c.err
}

// Close closes the socket. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.ws.Close(websocket.StatusNormalClosure, "closing")
		c.cancel()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
		err = normalizeCloseErr(err)
	})
	return err
}

func (c *Conn) readLoop() {
	defer close(c.done)
	for {
		_, raw, err := c.ws.Read(c.ctx)
		if err != nil {
			c.err = normalizeCloseErr(err)
			if c.err != nil {
				c.log.Warn().Err(c.err).Msg("read ws frame")
			}
			return
		}
		c.dispatch(raw)
	}
}

// dispatch routes one raw frame to its handlers. Frames without a string
// event name or without attached handlers are dropped.
func (c *Conn) dispatch(raw []byte) {
	event, err := jsonparser.GetString(raw, "event")
	if err != nil || event == "" {
		c.log.Debug().Err(err).Msg("dropping frame without event")
		return
	}
	data, typ, end, err := jsonparser.Get(raw, "data")
	switch {
	case err != nil:
		data = nil
	case typ == jsonparser.String:
		// Keep the quotes so decoders can tell a bare string from an object.
		data = raw[end-len(data)-2 : end]
	}

	c.mu.Lock()
	regs := append([]registration(nil), c.handlers[event]...)
	c.mu.Unlock()

	if len(regs) == 0 {
		c.log.Debug().Str("event", event).Msg("no handler attached")
		return
	}
	for _, r := range regs {
		r.fn(data)
	}
}

func normalizeCloseErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return nil
	}
	return err
}
