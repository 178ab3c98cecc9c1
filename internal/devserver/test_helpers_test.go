package devserver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/vovakirdan/shadowchat/internal/core"
	"github.com/vovakirdan/shadowchat/internal/proto"
	"github.com/vovakirdan/shadowchat/internal/store/sqlite"
)

const generalRoom = core.GeneralRoom

func newTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := SeedGeneral(context.Background(), st); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return st
}

func startHub(t *testing.T, st *sqlite.SQLiteStore, opts ...HubOption) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub(st, opts...)
	go hub.Run(ctx)
	return hub
}

func command(t *testing.T, event string, data any) *Command {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", event, err)
	}
	return &Command{Event: event, Data: raw}
}

// mustFrame waits for the next frame with the given event, skipping others.
func mustFrame(t *testing.T, ch <-chan proto.Frame, event string) proto.Frame {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case f, ok := <-ch:
			if !ok {
				t.Fatalf("events closed while waiting for %s", event)
			}
			if f.Event == event {
				return f
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", event)
		}
	}
}

// noFrame asserts that no frame with the given event arrives shortly.
func noFrame(t *testing.T, ch <-chan proto.Frame, event string) {
	t.Helper()
	timeout := time.After(100 * time.Millisecond)
	for {
		select {
		case f, ok := <-ch:
			if !ok {
				return
			}
			if f.Event == event {
				t.Fatalf("unexpected %s frame: %s", event, f.Data)
			}
		case <-timeout:
			return
		}
	}
}
