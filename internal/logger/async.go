package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Closer allows flushing and stopping a buffered handler.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// asyncState is shared by an AsyncHandler and every handler derived from it.
type asyncState struct {
	ch      chan asyncRecord
	wg      sync.WaitGroup
	dropped atomic.Int64
	once    sync.Once
}

// asyncRecord pairs a record with the handler that must format it, so records
// logged through WithAttrs/WithGroup derivatives keep their attributes.
type asyncRecord struct {
	h   slog.Handler
	rec slog.Record
}

// AsyncHandler moves record formatting and I/O off the caller's goroutine.
// Records are dropped, and counted, when the buffer is full.
type AsyncHandler struct {
	inner slog.Handler
	state *asyncState
}

// NewAsyncHandler creates an AsyncHandler with the given buffer capacity and worker count.
func NewAsyncHandler(inner slog.Handler, bufferSize, workers int) *AsyncHandler {
	st := &asyncState{ch: make(chan asyncRecord, bufferSize)}
	for range max(workers, 1) {
		st.wg.Add(1)
		go func() {
			defer st.wg.Done()
			for r := range st.ch {
				_ = r.h.Handle(context.Background(), r.rec)
			}
		}()
	}
	return &AsyncHandler{inner: inner, state: st}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record without blocking.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	select {
	case h.state.ch <- asyncRecord{h: h.inner, rec: rec.Clone()}:
	default:
		h.state.dropped.Add(1)
	}
	return nil
}

// WithAttrs returns a handler sharing the same buffer with attrs added.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), state: h.state}
}

// WithGroup returns a handler sharing the same buffer with a group opened.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), state: h.state}
}

// DroppedCount returns the number of records dropped because the buffer was full.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.state.dropped.Load()
}

// Close drains buffered records and stops the workers. Safe to call twice.
func (h *AsyncHandler) Close() {
	h.state.once.Do(func() {
		close(h.state.ch)
	})
	h.state.wg.Wait()
}
