package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Strob0t/clawkanban/internal/port/broadcast"
)

func TestNewHub(t *testing.T) {
	hub := NewHub(8, nil)
	if hub == nil {
		t.Fatal("expected non-nil hub")
	}
	if hub.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", hub.SubscriberCount())
	}
}

func TestHubBroadcastNoSubscribers(t *testing.T) {
	hub := NewHub(8, nil)

	// Broadcast with no subscribers should not panic.
	hub.BroadcastEvent(context.Background(), broadcast.EventTaskUpdated, map[string]string{"id": "t1"})
}

func TestHubBroadcastEventMarshalError(t *testing.T) {
	hub := NewHub(8, nil)
	sub := hub.Subscribe()
	defer sub.Close()

	// A channel cannot be marshaled to JSON; the event is dropped, not delivered.
	hub.BroadcastEvent(context.Background(), "bad", make(chan int))
	select {
	case msg := <-sub.C():
		t.Fatalf("unexpected delivery %+v", msg)
	default:
	}
}

func TestHubDeliversInOrder(t *testing.T) {
	hub := NewHub(8, nil)
	a, b := hub.Subscribe(), hub.Subscribe()
	defer a.Close()
	defer b.Close()

	ctx := context.Background()
	hub.BroadcastEvent(ctx, broadcast.EventTaskCreated, map[string]int{"n": 1})
	hub.BroadcastEvent(ctx, broadcast.EventTaskUpdated, map[string]int{"n": 2})

	for _, sub := range []broadcast.Subscription{a, b} {
		for i, want := range []string{broadcast.EventTaskCreated, broadcast.EventTaskUpdated} {
			msg := <-sub.C()
			if msg.Event != want {
				t.Errorf("message %d: event %q, want %q", i, msg.Event, want)
			}
			var body map[string]int
			if err := json.Unmarshal(msg.Data.(json.RawMessage), &body); err != nil {
				t.Fatal(err)
			}
			if body["n"] != i+1 {
				t.Errorf("message %d: n = %d", i, body["n"])
			}
		}
	}
}

func TestHubPayloadFrozenAtPublish(t *testing.T) {
	hub := NewHub(8, nil)
	sub := hub.Subscribe()
	defer sub.Close()

	payload := map[string]string{"title": "before"}
	hub.BroadcastEvent(context.Background(), broadcast.EventTaskUpdated, payload)
	payload["title"] = "after"

	msg := <-sub.C()
	if string(msg.Data.(json.RawMessage)) != `{"title":"before"}` {
		t.Errorf("payload mutated after publish: %s", msg.Data)
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub(1, nil)
	slow, fast := hub.Subscribe(), hub.Subscribe()
	defer slow.Close()
	defer fast.Close()

	ctx := context.Background()
	hub.BroadcastEvent(ctx, "one", 1)
	<-fast.C()
	hub.BroadcastEvent(ctx, "two", 2)
	<-fast.C()

	if got := hub.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
	if msg := <-slow.C(); msg.Event != "one" {
		t.Errorf("slow subscriber should keep the first message, got %q", msg.Event)
	}
}

func TestSubscriptionClose(t *testing.T) {
	hub := NewHub(8, nil)
	sub := hub.Subscribe()
	if sub.ID() == "" {
		t.Error("expected subscriber id")
	}
	if hub.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.SubscriberCount())
	}

	sub.Close()
	sub.Close()
	if hub.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers after close, got %d", hub.SubscriberCount())
	}
	if _, ok := <-sub.C(); ok {
		t.Error("expected closed channel")
	}

	// Publishing after a subscriber left must not panic.
	hub.BroadcastEvent(context.Background(), "late", nil)
}
