package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/shadowchat/internal/config"
	"github.com/vovakirdan/shadowchat/internal/core"
	"github.com/vovakirdan/shadowchat/internal/transport/rest"
	"github.com/vovakirdan/shadowchat/internal/transport/ws"
)

func startTestServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()

	st := newTestStore(t)
	var hub *Hub
	metrics := NewMetrics(func() float64 { return float64(hub.Connected()) })
	hub = startHub(t, st, WithMetrics(metrics))

	logger := zerolog.Nop()
	server, err := NewServer(config.DevServer{
		Addr:              ":0",
		UploadDir:         t.TempDir(),
		MaxUploadBytes:    1 << 10,
		ReadHeaderTimeout: time.Second,
	}, hub, st, metrics, &logger)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)
	return ts, hub
}

func TestHealthAndMetrics(t *testing.T) {
	ts, _ := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	resp, err = ts.Client().Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "shadow_connected_clients") {
		t.Fatalf("metrics output misses the client gauge:\n%s", body)
	}
}

func TestRoomEndpoints(t *testing.T) {
	ts, _ := startTestServer(t)
	api := rest.NewClient(ts.URL, time.Second, nil)
	ctx := context.Background()

	steps := []struct {
		name string
		call func() (bool, error)
		want bool
	}{
		{name: "fresh id is free", call: func() (bool, error) { return api.ValidateID(ctx, "alpha") }, want: true},
		{name: "malformed id is rejected", call: func() (bool, error) { return api.ValidateID(ctx, "no spaces") }, want: false},
		{name: "unknown room", call: func() (bool, error) { return api.CheckID(ctx, "alpha") }, want: false},
		{name: "create", call: func() (bool, error) { return api.CreateShadow(ctx, "alpha", "secret") }, want: true},
		{name: "create twice", call: func() (bool, error) { return api.CreateShadow(ctx, "alpha", "other") }, want: false},
		{name: "id is taken", call: func() (bool, error) { return api.ValidateID(ctx, "alpha") }, want: false},
		{name: "room exists", call: func() (bool, error) { return api.CheckID(ctx, "alpha") }, want: true},
		{name: "right password", call: func() (bool, error) { return api.ValidatePass(ctx, "alpha", "secret") }, want: true},
		{name: "wrong password", call: func() (bool, error) { return api.ValidatePass(ctx, "alpha", "nope") }, want: false},
		{name: "password of unknown room", call: func() (bool, error) { return api.ValidatePass(ctx, "ghost", "secret") }, want: false},
		{name: "general has no password", call: func() (bool, error) { return api.ValidatePass(ctx, generalRoom, "") }, want: false},
		{name: "activate", call: func() (bool, error) { return api.Activate(ctx) }, want: true},
	}
	for _, s := range steps {
		got, err := s.call()
		if err != nil {
			t.Fatalf("%s: %v", s.name, err)
		}
		if got != s.want {
			t.Fatalf("%s: expected %v, got %v", s.name, s.want, got)
		}
	}
}

func TestCreateShadowRejectsBadBody(t *testing.T) {
	ts, _ := startTestServer(t)

	resp, err := ts.Client().Post(ts.URL+"/createShadow", "application/json", strings.NewReader(`{"shadowId":"alpha"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var body ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		t.Fatalf("expected error body, got %+v (%v)", body, err)
	}
}

func TestUploadAndServeImage(t *testing.T) {
	ts, _ := startTestServer(t)
	api := rest.NewClient(ts.URL, time.Second, nil)

	ref, err := api.UploadImage(context.Background(), "cat.PNG", strings.NewReader("PNGDATA"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasSuffix(ref, ".png") {
		t.Fatalf("expected a .png reference, got %q", ref)
	}

	resp, err := ts.Client().Get(api.ImageURL(ref))
	if err != nil {
		t.Fatalf("get image: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(data) != "PNGDATA" {
		t.Fatalf("unexpected image response %d %q", resp.StatusCode, data)
	}

	resp, err = ts.Client().Get(ts.URL + "/images/missing.png")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	ts, _ := startTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "big.png")
	_, _ = part.Write(bytes.Repeat([]byte("x"), 4<<10))
	_ = mw.Close()

	resp, err := ts.Client().Post(ts.URL+"/uploadedImage", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Fatal("oversized upload must fail")
	}
}

func TestImageExt(t *testing.T) {
	tests := map[string]string{
		"cat.png":      ".png",
		"CAT.JPEG":     ".jpeg",
		"noext":        "",
		"weird.p/ng":   "",
		"archive.tar!": "",
		".hidden":      "",
	}
	for in, want := range tests {
		if got := imageExt(in); got != want {
			t.Errorf("imageExt(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSessionsEndToEnd(t *testing.T) {
	ts, hub := startTestServer(t)
	url := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := core.NewEngine(core.Scope{RoomID: generalRoom, SessionID: "shadowa"})
	bob := core.NewEngine(core.Scope{RoomID: generalRoom, SessionID: "shadowb"})

	aliceSession, err := ws.Enter(ctx, url, alice, nil)
	if err != nil {
		t.Fatalf("enter alice: %v", err)
	}
	defer aliceSession.Close()
	bobSession, err := ws.Enter(ctx, url, bob, nil)
	if err != nil {
		t.Fatalf("enter bob: %v", err)
	}
	defer bobSession.Close()

	waitFor(t, func() bool { return hub.Connected() == 2 && alice.View().Presence == 2 })

	if err := aliceSession.Send(ctx, core.Draft{Body: "hello", Kind: core.KindText}); err != nil {
		t.Fatalf("send: %v", err)
	}
	waitFor(t, func() bool { return bob.Len() == 1 && alice.Len() == 1 })

	msg, _ := bob.MessageAt(0)
	if msg.Body != "hello" || msg.SenderID != "shadowa" || msg.IsOwn {
		t.Fatalf("unexpected message on bob's side: %+v", msg)
	}
	own, _ := alice.MessageAt(0)
	if !own.IsOwn {
		t.Fatalf("alice should own her message: %+v", own)
	}

	if err := bobSession.React(ctx, msg.ID, "🔥"); err != nil {
		t.Fatalf("react: %v", err)
	}
	waitFor(t, func() bool { return len(alice.Reactions(msg.ID)) == 1 })

	if err := aliceSession.Delete(ctx, own.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	waitFor(t, func() bool { return bob.Len() == 0 && alice.Len() == 0 })
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
