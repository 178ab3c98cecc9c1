package app

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/shadowchat/internal/config"
	"github.com/vovakirdan/shadowchat/internal/core"
	"github.com/vovakirdan/shadowchat/internal/devserver"
	"github.com/vovakirdan/shadowchat/internal/store/sqlite"
	"github.com/vovakirdan/shadowchat/internal/transport/ws"
	"github.com/vovakirdan/shadowchat/internal/utils"
)

// syncBuffer is a bytes.Buffer safe for one writer and a polling reader.
type syncBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func startBackend(t *testing.T) config.Config {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := devserver.SeedGeneral(context.Background(), st); err != nil {
		t.Fatalf("seed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := devserver.NewHub(st)
	go hub.Run(ctx)

	logger := zerolog.Nop()
	srv, err := devserver.NewServer(config.DevServer{
		UploadDir:      t.TempDir(),
		MaxUploadBytes: 1 << 20,
	}, hub, st, devserver.NewMetrics(nil), &logger)
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.APIURL = ts.URL
	cfg.ServerURL = strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	cfg.StatePath = filepath.Join(t.TempDir(), "nested", "state.db")
	cfg.DialTimeout = 2 * time.Second
	cfg.HTTPTimeout = 2 * time.Second
	return cfg
}

func newTestClient(t *testing.T, cfg config.Config) *Client {
	t.Helper()
	logger := zerolog.Nop()
	c, err := NewClient(cfg, &logger)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestEntryFlows(t *testing.T) {
	c := newTestClient(t, startBackend(t))
	ctx := context.Background()

	created, err := c.Create(ctx, "alpha", "pw")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.RoomID != "alpha" || !strings.HasPrefix(created.SessionID, utils.SessionPrefix) {
		t.Fatalf("unexpected state after create: %+v", created)
	}

	failures := []struct {
		name string
		call func() error
		want error
	}{
		{name: "create taken id", call: func() error { _, err := c.Create(ctx, "alpha", "pw"); return err }, want: ErrRoomTaken},
		{name: "create without password", call: func() error { _, err := c.Create(ctx, "beta", ""); return err }, want: ErrEmptyPassword},
		{name: "join unknown room", call: func() error { _, err := c.Join(ctx, "ghost", "pw"); return err }, want: ErrRoomNotFound},
		{name: "join wrong password", call: func() error { _, err := c.Join(ctx, "alpha", "nope"); return err }, want: ErrWrongPassword},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	// Failed flows leave the stored state alone.
	if st, _ := c.State(ctx); st != created {
		t.Fatalf("state changed by a failed flow: %+v", st)
	}

	joined, err := c.Join(ctx, "alpha", "pw")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if joined.SessionID == created.SessionID {
		t.Fatal("every entry must start a fresh session id")
	}

	general, err := c.General(ctx)
	if err != nil {
		t.Fatalf("general: %v", err)
	}
	if st, _ := c.State(ctx); st != general || st.RoomID != core.GeneralRoom {
		t.Fatalf("unexpected stored state %+v", st)
	}
}

func TestChatWithoutActiveRoom(t *testing.T) {
	c := newTestClient(t, startBackend(t))
	err := c.Chat(context.Background(), ChatOptions{In: strings.NewReader(""), Out: io.Discard})
	if !errors.Is(err, core.ErrNoActiveRoom) {
		t.Fatalf("expected ErrNoActiveRoom, got %v", err)
	}
}

func TestChatLoop(t *testing.T) {
	c := newTestClient(t, startBackend(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := c.General(ctx); err != nil {
		t.Fatalf("general: %v", err)
	}

	in, input := io.Pipe()
	defer input.Close()
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- c.Chat(ctx, ChatOptions{In: in, Out: out})
	}()

	say := func(line string, want string) {
		t.Helper()
		if _, err := io.WriteString(input, line+"\n"); err != nil {
			t.Fatalf("write %q: %v", line, err)
		}
		waitFor(t, func() bool { return strings.Contains(out.String(), want) })
	}

	waitFor(t, func() bool { return strings.Contains(out.String(), "# general · 1 online") })
	say("hello there", "[1] Me · ")
	say("/react 1 🔥", "  🔥")
	say("/reply 1 indeed", "↪ Replying to Me: hello there")
	say("/react 9 🔥", "no message 9")
	say("/bogus", "unknown command /bogus")
	if _, err := io.WriteString(input, "/delete 1\n"); err != nil {
		t.Fatalf("write delete: %v", err)
	}
	waitFor(t, func() bool {
		frame := lastFrame(out.String())
		return strings.Contains(frame, "Replying to Me: hello there") && !strings.Contains(frame, "  hello there")
	})
	say("/quit", "> ")

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("chat returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("chat did not stop on /quit")
	}
}

func TestDevServerAppShutsDown(t *testing.T) {
	logger := zerolog.Nop()
	cfg := config.Default().DevServer
	cfg.Addr = "127.0.0.1:0"
	cfg.UploadDir = t.TempDir()

	a, err := New(cfg, &logger)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("app did not shut down")
	}
}

// lastFrame returns the most recent redraw of the chat view.
func lastFrame(out string) string {
	if i := strings.LastIndex(out, "# general"); i >= 0 {
		return out[i:]
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestChatLogsTypingFailure(t *testing.T) {
	cfg := startBackend(t)
	logs := &syncBuffer{}
	logger := zerolog.New(logs).Level(zerolog.DebugLevel)
	c, err := NewClient(cfg, &logger)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	ctx := context.Background()
	st, err := c.General(ctx)
	if err != nil {
		t.Fatalf("general: %v", err)
	}
	engine := core.NewEngine(core.Scope{RoomID: st.RoomID, SessionID: st.SessionID})
	session, err := ws.Enter(ctx, cfg.ServerURL, engine, nil)
	if err != nil {
		t.Fatalf("enter: %v", err)
	}
	_ = session.Close()

	loop := &chatLoop{client: c, session: session, engine: engine}
	if _, err := loop.handle(ctx, "hello"); !errors.Is(err, ws.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if !strings.Contains(logs.String(), "typing notice not sent") {
		t.Fatalf("typing failure not logged: %s", logs.String())
	}
}
