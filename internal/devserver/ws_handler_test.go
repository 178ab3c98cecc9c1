package devserver

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/shadowchat/internal/core"
	"github.com/vovakirdan/shadowchat/internal/proto"
)

func TestCommandFromFrame(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		ok    bool
		event string
		data  string
	}{
		{name: "object data", raw: `{"event":"join-room","data":{"roomId":"general"}}`, ok: true, event: "join-room", data: `{"roomId":"general"}`},
		{name: "string data keeps quotes", raw: `{"event":"join-room","data":"general"}`, ok: true, event: "join-room", data: `"general"`},
		{name: "no data", raw: `{"event":"typing-notice"}`, ok: true, event: "typing-notice", data: ``},
		{name: "missing event", raw: `{"data":{}}`},
		{name: "not json", raw: `hello`},
		{name: "empty event", raw: `{"event":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, ok := commandFromFrame([]byte(tt.raw))
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if !ok {
				return
			}
			if cmd.Event != tt.event || string(cmd.Data) != tt.data {
				t.Fatalf("unexpected command %s %s", cmd.Event, cmd.Data)
			}
		})
	}
}

func TestWebSocketMalformedFrameKeepsConnection(t *testing.T) {
	ts, _ := startTestServer(t)
	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	if err := conn.Write(ctx, websocket.MessageText, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	var frame proto.Frame
	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		t.Fatalf("read: %v", err)
	}
	if frame.Event != proto.EventError || proto.DecodeError(frame.Data).Code != core.ErrCodeBadRequest {
		t.Fatalf("expected bad_request error, got %s %s", frame.Event, frame.Data)
	}

	join, _ := proto.NewFrame(proto.EventJoinRoom, proto.JoinRoomData{RoomID: generalRoom, SenderID: "shadowz"})
	if err := wsjson.Write(ctx, conn, join); err != nil {
		t.Fatalf("write join: %v", err)
	}
	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if frame.Event != proto.EventRoomSnapshot {
		t.Fatalf("expected room snapshot after malformed frame, got %s", frame.Event)
	}
}
