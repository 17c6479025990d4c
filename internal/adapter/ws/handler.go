package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/Strob0t/clawkanban/internal/port/broadcast"
)

const writeTimeout = 10 * time.Second

// SnapshotFunc builds the init payload for a new subscriber.
type SnapshotFunc func(ctx context.Context) (any, error)

// Handler upgrades HTTP requests to WebSocket subscribers of a hub.
type Handler struct {
	hub      broadcast.Hub
	snapshot SnapshotFunc
}

// NewHandler creates a handler serving hub with snapshot as the init payload.
func NewHandler(hub broadcast.Hub, snapshot SnapshotFunc) *Handler {
	return &Handler{hub: hub, snapshot: snapshot}
}

// ServeHTTP accepts the connection, sends the snapshot, then streams events
// until either side goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}
	defer func() { _ = c.CloseNow() }()

	// Subscribe before taking the snapshot so nothing published in between is lost.
	sub := h.hub.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	slog.Info("websocket connected", "remote", r.RemoteAddr, "subscriber_id", sub.ID())

	// Read loop detects disconnects and consumes control frames.
	go func() {
		defer cancel()
		for {
			if _, _, err := c.Read(ctx); err != nil {
				return
			}
		}
	}()

	data, err := h.snapshot(ctx)
	if err != nil {
		slog.Error("websocket snapshot failed", "error", err)
		_ = c.Close(websocket.StatusInternalError, "snapshot failed")
		return
	}
	if err := write(ctx, c, broadcast.Message{Event: broadcast.EventInit, Data: data}); err != nil {
		slog.Debug("websocket init write failed", "error", err)
		return
	}

	for {
		select {
		case msg, ok := <-sub.C():
			if !ok {
				_ = c.Close(websocket.StatusGoingAway, "")
				return
			}
			if err := write(ctx, c, msg); err != nil {
				if !errors.Is(err, context.Canceled) {
					slog.Debug("websocket write failed", "subscriber_id", sub.ID(), "error", err)
				}
				return
			}
		case <-ctx.Done():
			slog.Info("websocket disconnected", "subscriber_id", sub.ID())
			return
		}
	}
}

func write(ctx context.Context, c *websocket.Conn, msg broadcast.Message) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c, msg)
}
