// Package ws implements the live channel: an in-process pub/sub hub and its
// WebSocket transport.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	cfotel "github.com/Strob0t/clawkanban/internal/adapter/otel"
	"github.com/Strob0t/clawkanban/internal/port/broadcast"
)

// Hub fans events out to every live subscriber. Each subscriber has its own
// bounded queue so one slow reader never blocks a publisher; when the queue
// is full the message is dropped for that subscriber only.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]*subscription
	buffer  int
	metrics *cfotel.Metrics
	dropped atomic.Int64
}

// NewHub creates a hub whose subscribers queue up to buffer messages.
func NewHub(buffer int, metrics *cfotel.Metrics) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		subs:    make(map[string]*subscription),
		buffer:  buffer,
		metrics: metrics,
	}
}

// subscription implements broadcast.Subscription.
type subscription struct {
	id   string
	ch   chan broadcast.Message
	hub  *Hub
	once sync.Once
}

func (s *subscription) ID() string { return s.id }
func (s *subscription) C() <-chan broadcast.Message { return s.ch }

// Close removes the subscriber from the hub and closes its channel.
func (s *subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

// Subscribe registers a new subscriber. Only events published after this
// call are delivered.
func (h *Hub) Subscribe() broadcast.Subscription {
	s := &subscription{
		id:  uuid.NewString(),
		ch:  make(chan broadcast.Message, h.buffer),
		hub: h,
	}
	h.mu.Lock()
	h.subs[s.id] = s
	h.mu.Unlock()
	slog.Debug("subscriber joined", "subscriber_id", s.id)
	return s
}

func (h *Hub) remove(s *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[s.id]; ok {
		delete(h.subs, s.id)
		close(s.ch)
		slog.Debug("subscriber left", "subscriber_id", s.id)
	}
}

// BroadcastEvent encodes payload once and enqueues it for every subscriber.
// Encoding at publish time freezes the payload against later mutation.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}
	msg := broadcast.Message{Event: eventType, Data: json.RawMessage(data)}

	h.mu.RLock()
	defer h.mu.RUnlock()

	h.metrics.RecordBroadcast(ctx, eventType)
	for _, s := range h.subs {
		select {
		case s.ch <- msg:
		default:
			h.dropped.Add(1)
			h.metrics.RecordDropped(ctx)
			slog.Warn("subscriber queue full, dropping message", "subscriber_id", s.id, "event", eventType)
		}
	}
}

// SubscriberCount returns the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns the number of messages dropped for slow subscribers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
