package nats

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/clawkanban/internal/logger"
	"github.com/Strob0t/clawkanban/internal/port/messagequeue"
)

const testPrefix = "kanbantest"

// testConnect connects to NATS or skips the test if NATS_URL is not set.
func testConnect(t *testing.T) *Queue {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}

	q, err := Connect(context.Background(), url, testPrefix)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		if err := q.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return q
}

// uniqueSubject returns a subject under the test prefix named after the test.
func uniqueSubject(t *testing.T) string {
	t.Helper()
	return messagequeue.Subject(testPrefix, strings.ReplaceAll(t.Name(), "/", "_"))
}

func TestQueue_PublishSubscribe(t *testing.T) {
	q := testConnect(t)
	subject := uniqueSubject(t)

	type payload struct {
		Msg string `json:"msg"`
	}
	want := payload{Msg: "hello-nats"}
	data, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var (
		mu       sync.Mutex
		received *payload
		done     = make(chan struct{})
		once     sync.Once
	)

	stop, err := q.Subscribe(context.Background(), subject, func(_ context.Context, _ string, d []byte) error {
		var got payload
		if err := json.Unmarshal(d, &got); err != nil {
			return err
		}
		mu.Lock()
		received = &got
		mu.Unlock()
		once.Do(func() { close(done) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	if err := q.Publish(context.Background(), subject, data); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	mu.Lock()
	defer mu.Unlock()

	if received == nil {
		t.Fatal("handler was not called")
	}
	if received.Msg != want.Msg {
		t.Errorf("got %q, want %q", received.Msg, want.Msg)
	}
}

func TestQueue_RequestIDPropagation(t *testing.T) {
	q := testConnect(t)
	subject := uniqueSubject(t)

	const wantReqID = "req-abc-123"

	var (
		mu       sync.Mutex
		gotReqID string
		done     = make(chan struct{})
		once     sync.Once
	)

	stop, err := q.Subscribe(context.Background(), subject, func(ctx context.Context, _ string, _ []byte) error {
		mu.Lock()
		gotReqID = logger.RequestID(ctx)
		mu.Unlock()
		once.Do(func() { close(done) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	ctx := logger.WithRequestID(context.Background(), wantReqID)
	if err := q.Publish(ctx, subject, []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	mu.Lock()
	defer mu.Unlock()

	if gotReqID != wantReqID {
		t.Errorf("request ID = %q, want %q", gotReqID, wantReqID)
	}
}

func TestQueue_MirrorRoundTrip(t *testing.T) {
	q := testConnect(t)

	got := make(chan messagequeue.BoardEvent, 1)
	stop, err := q.Subscribe(context.Background(), messagequeue.Subject(testPrefix, "taskUpdated"),
		func(_ context.Context, subject string, data []byte) error {
			ev, err := messagequeue.Validate(subject, data)
			if err != nil {
				return err
			}
			got <- ev
			return nil
		})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	m := NewMirror(q, testPrefix, 4)
	m.BroadcastEvent(context.Background(), "taskUpdated", map[string]string{"id": "aaaaaaaaaaaa"})
	m.Close()

	select {
	case ev := <-got:
		if string(ev.Data) != `{"id":"aaaaaaaaaaaa"}` {
			t.Errorf("data = %s", ev.Data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for mirrored event")
	}
}

func TestQueue_IsConnected(t *testing.T) {
	q := testConnect(t)

	if !q.IsConnected() {
		t.Error("IsConnected() = false after Connect, want true")
	}
}
