package service

import (
	"sync"
	"time"
)

// firing identifies one armed timer. A firing whose generation no longer
// matches the pending entry was superseded and is ignored.
type firing struct {
	key string
	gen uint64
}

type pendingTimer struct {
	timer *time.Timer
	gen   uint64
}

// debouncer coalesces bursts of triggers per key into one firing after a
// quiet period. It is owned by a single goroutine: Trigger, Accept and Stop
// must not be called concurrently. Firings are delivered on C.
type debouncer struct {
	delay   time.Duration
	pending map[string]pendingTimer
	gen     uint64
	fired   chan firing
	done    chan struct{}
	once    sync.Once
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:   delay,
		pending: make(map[string]pendingTimer),
		fired:   make(chan firing, 16),
		done:    make(chan struct{}),
	}
}

// C yields keys whose quiet period elapsed.
func (d *debouncer) C() <-chan firing { return d.fired }

// Trigger arms the timer for key, replacing any pending one.
func (d *debouncer) Trigger(key string) {
	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
	}
	d.gen++
	f := firing{key: key, gen: d.gen}
	d.pending[key] = pendingTimer{
		gen: f.gen,
		timer: time.AfterFunc(d.delay, func() {
			select {
			case d.fired <- f:
			case <-d.done:
			}
		}),
	}
}

// Accept reports whether f is the current timer for its key and, if so,
// returns the key to idle.
func (d *debouncer) Accept(f firing) bool {
	p, ok := d.pending[f.key]
	if !ok || p.gen != f.gen {
		return false
	}
	delete(d.pending, f.key)
	return true
}

// Pending returns the number of keys with an armed timer.
func (d *debouncer) Pending() int { return len(d.pending) }

// Stop cancels every pending timer.
func (d *debouncer) Stop() {
	d.once.Do(func() {
		close(d.done)
		for key, p := range d.pending {
			p.timer.Stop()
			delete(d.pending, key)
		}
	})
}
