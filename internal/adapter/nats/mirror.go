package nats

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Strob0t/clawkanban/internal/port/messagequeue"
	"github.com/Strob0t/clawkanban/internal/resilience"
)

const (
	publishTimeout  = 5 * time.Second
	breakerFailures = 5
	breakerCooldown = 10 * time.Second
)

// Mirror republishes board events to <prefix>.<event> on a message queue.
// Publishing happens on a background goroutine; when its queue is full, or
// the broker keeps failing and the breaker is open, the event is dropped so
// callers are never blocked by the broker.
type Mirror struct {
	q       messagequeue.Queue
	prefix  string
	pending chan pendingEvent
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	breaker *resilience.Breaker
	dropped atomic.Int64
}

type pendingEvent struct {
	ctx     context.Context
	subject string
	data    []byte
}

// NewMirror starts a mirror that buffers up to buffer events.
func NewMirror(q messagequeue.Queue, prefix string, buffer int) *Mirror {
	if buffer < 1 {
		buffer = 1
	}
	m := &Mirror{
		q:       q,
		prefix:  prefix,
		pending: make(chan pendingEvent, buffer),
		done:    make(chan struct{}),
		breaker: resilience.NewBreaker(breakerFailures, breakerCooldown),
	}
	m.wg.Add(1)
	go m.run()
	return m
}

// BroadcastEvent implements broadcast.Broadcaster.
func (m *Mirror) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal mirror payload", "event", eventType, "error", err)
		return
	}
	body, err := json.Marshal(messagequeue.BoardEvent{Event: eventType, Data: data})
	if err != nil {
		slog.Error("marshal mirror envelope", "event", eventType, "error", err)
		return
	}

	select {
	case <-m.done:
		return
	default:
	}
	select {
	case m.pending <- pendingEvent{ctx: context.WithoutCancel(ctx), subject: messagequeue.Subject(m.prefix, eventType), data: body}:
	default:
		m.dropped.Add(1)
		slog.Warn("event mirror queue full, dropping event", "event", eventType)
	}
}

func (m *Mirror) run() {
	defer m.wg.Done()
	for {
		select {
		case ev := <-m.pending:
			m.publish(ev)
		case <-m.done:
			for {
				select {
				case ev := <-m.pending:
					m.publish(ev)
				default:
					return
				}
			}
		}
	}
}

func (m *Mirror) publish(ev pendingEvent) {
	err := m.breaker.Execute(func() error {
		ctx, cancel := context.WithTimeout(ev.ctx, publishTimeout)
		defer cancel()
		return m.q.Publish(ctx, ev.subject, ev.data)
	})
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		m.dropped.Add(1)
		slog.Debug("event mirror breaker open, dropping event", "subject", ev.subject)
	case err != nil:
		slog.Warn("event mirror publish failed", "subject", ev.subject, "error", err)
	}
}

// Dropped returns the number of events dropped because the queue was full
// or the broker was failing.
func (m *Mirror) Dropped() int64 { return m.dropped.Load() }

// Close flushes queued events and stops the background publisher.
func (m *Mirror) Close() {
	m.once.Do(func() {
		close(m.done)
		m.wg.Wait()
	})
}
