package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/Strob0t/clawkanban/internal/domain/task"
	"github.com/Strob0t/clawkanban/internal/port/broadcast"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.CloseNow() })
	return c
}

func read(t *testing.T, c *websocket.Conn) envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var env envelope
	if err := wsjson.Read(ctx, c, &env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHandlerSendsSnapshotThenEvents(t *testing.T) {
	hub := NewHub(8, nil)
	snap := func(context.Context) (any, error) {
		return InitEvent{
			Projects: []string{"clawkanban", "proj1"},
			Tasks:    []task.Task{{ID: "aaaaaaaaaaaa", Title: "X"}},
		}, nil
	}
	srv := httptest.NewServer(NewHandler(hub, snap))
	defer srv.Close()

	c := dial(t, srv)

	first := read(t, c)
	if first.Event != broadcast.EventInit {
		t.Fatalf("first event %q, want init", first.Event)
	}
	var got InitEvent
	if err := json.Unmarshal(first.Data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Projects) != 2 || len(got.Tasks) != 1 || got.Tasks[0].Title != "X" {
		t.Errorf("unexpected snapshot %+v", got)
	}

	waitFor(t, func() bool { return hub.SubscriberCount() == 1 })
	hub.BroadcastEvent(context.Background(), broadcast.EventTaskUpdated, map[string]string{"id": "aaaaaaaaaaaa"})

	ev := read(t, c)
	if ev.Event != broadcast.EventTaskUpdated {
		t.Errorf("event %q, want taskUpdated", ev.Event)
	}
	if string(ev.Data) != `{"id":"aaaaaaaaaaaa"}` {
		t.Errorf("data %s", ev.Data)
	}
}

func TestHandlerRemovesSubscriberOnDisconnect(t *testing.T) {
	hub := NewHub(8, nil)
	srv := httptest.NewServer(NewHandler(hub, func(context.Context) (any, error) { return InitEvent{}, nil }))
	defer srv.Close()

	c := dial(t, srv)
	read(t, c)
	waitFor(t, func() bool { return hub.SubscriberCount() == 1 })

	_ = c.Close(websocket.StatusNormalClosure, "")
	waitFor(t, func() bool { return hub.SubscriberCount() == 0 })
}

func TestHandlerSnapshotError(t *testing.T) {
	hub := NewHub(8, nil)
	srv := httptest.NewServer(NewHandler(hub, func(context.Context) (any, error) {
		return nil, errors.New("disk gone")
	}))
	defer srv.Close()

	c := dial(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := c.Read(ctx)
	if websocket.CloseStatus(err) != websocket.StatusInternalError {
		t.Errorf("expected internal error close, got %v", err)
	}
	waitFor(t, func() bool { return hub.SubscriberCount() == 0 })
}
