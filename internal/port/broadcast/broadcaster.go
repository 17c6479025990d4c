// Package broadcast defines the port for broadcasting real-time events to connected clients.
package broadcast

import "context"

// Event names sent over the live channel.
const (
	EventInit        = "init"
	EventTaskCreated = "taskCreated"
	EventTaskUpdated = "taskUpdated"
)

// Message is the envelope delivered to subscribers.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Broadcaster sends real-time events to all connected clients.
type Broadcaster interface {
	// BroadcastEvent sends a typed event to all connected clients. It never blocks
	// on a slow subscriber.
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}

// Subscription is a handle to one live subscriber.
type Subscription interface {
	ID() string
	// C yields messages in publish order. It is closed when the subscription ends.
	C() <-chan Message
	Close()
}

// Hub is a Broadcaster that live subscribers can join.
type Hub interface {
	Broadcaster
	Subscribe() Subscription
	SubscriberCount() int
}

// Multi fans an event out to several broadcasters in order.
type Multi []Broadcaster

// BroadcastEvent implements Broadcaster.
func (m Multi) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	for _, b := range m {
		if b != nil {
			b.BroadcastEvent(ctx, eventType, payload)
		}
	}
}
