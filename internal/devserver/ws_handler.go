package devserver

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/buger/jsonparser"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/shadowchat/internal/core"
	"github.com/vovakirdan/shadowchat/internal/proto"
	"github.com/vovakirdan/shadowchat/internal/utils"
)

// WSHandler upgrades HTTP connections and bridges them to hub clients.
type WSHandler struct {
	hub          *Hub
	log          zerolog.Logger
	maxFrameSize int64
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *Hub, maxFrameSize int64, logger *zerolog.Logger) *WSHandler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &WSHandler{hub: hub, log: logger.With().Str("component", "ws").Logger(), maxFrameSize: maxFrameSize}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.maxFrameSize > 0 {
		conn.SetReadLimit(h.maxFrameSize)
	}

	client := NewClient(utils.NewID())
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *Client) error {
	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		cmd, ok := commandFromFrame(raw)
		if !ok {
			h.log.Debug().Str("client_id", client.ID).Msg("malformed frame")
			if err := wsjson.Write(ctx, conn, errorFrame(core.ErrCodeBadRequest, "malformed frame")); err != nil {
				return err
			}
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-client.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *Client) error {
	for {
		select {
		case frame, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// commandFromFrame splits a raw {"event","data"} frame. Frames without an
// event name are rejected.
func commandFromFrame(raw []byte) (*Command, bool) {
	event, err := jsonparser.GetString(raw, "event")
	if err != nil || event == "" {
		return nil, false
	}
	data, typ, end, err := jsonparser.Get(raw, "data")
	switch {
	case errors.Is(err, jsonparser.KeyPathNotFoundError):
		data = nil
	case err != nil:
		return nil, false
	case typ == jsonparser.String:
		// Get strips the quotes; keep them so the payload stays valid JSON.
		data = raw[end-len(data)-2 : end]
	}
	return &Command{Event: event, Data: append([]byte(nil), data...)}, true
}

func errorFrame(code, msg string) proto.Frame {
	frame, _ := proto.NewFrame(proto.EventError, proto.Error{Code: code, Msg: msg})
	return frame
}
