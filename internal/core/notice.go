package core

import (
	"sync"
	"time"
)

// DefaultNoticeTTL is how long a transient banner stays visible.
const DefaultNoticeTTL = 5 * time.Second

// banner holds a transient notice that clears itself after ttl.
// Every set re-arms the clear so the newest notice gets the full ttl.
type banner struct {
	mu      sync.Mutex
	text    string
	gen     uint64
	timer   *time.Timer
	ttl     time.Duration
	onClear func()
}

func newBanner(ttl time.Duration, onClear func()) *banner {
	if ttl <= 0 {
		ttl = DefaultNoticeTTL
	}
	return &banner{ttl: ttl, onClear: onClear}
}

func (b *banner) set(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
	}
	b.gen++
	b.text = text
	gen := b.gen
	b.timer = time.AfterFunc(b.ttl, func() { b.expire(gen) })
}

func (b *banner) expire(gen uint64) {
	b.mu.Lock()
	if gen != b.gen {
		b.mu.Unlock()
		return
	}
	b.text = ""
	b.timer = nil
	b.mu.Unlock()

	if b.onClear != nil {
		b.onClear()
	}
}

func (b *banner) get() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

// stop clears the banner without firing onClear.
func (b *banner) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.gen++
	b.text = ""
}
