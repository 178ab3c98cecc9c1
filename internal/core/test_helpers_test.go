package core

import (
	"sync"
	"testing"
	"time"
)

func textMsg(id, sender, body string) Message {
	return Message{ID: id, SenderID: sender, Body: body, Kind: KindText, RawKind: WireKindText}
}

func messageIDs(msgs []Message) []string {
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	return ids
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// recorder captures hook invocations.
type recorder struct {
	mu      sync.Mutex
	alerts  []Message
	scrolls int
	changes int
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		Alert: func(m Message) {
			r.mu.Lock()
			r.alerts = append(r.alerts, m)
			r.mu.Unlock()
		},
		ScrollToBottom: func() {
			r.mu.Lock()
			r.scrolls++
			r.mu.Unlock()
		},
		Changed: func() {
			r.mu.Lock()
			r.changes++
			r.mu.Unlock()
		},
	}
}

func (r *recorder) alertCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
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
