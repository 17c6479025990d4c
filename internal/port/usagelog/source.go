// Package usagelog defines the port over agent session logs.
package usagelog

import (
	"context"
	"io"
)

// Source lists and opens append-only session logs.
// Sessions returns usage.ErrNoSource when the log location does not exist.
type Source interface {
	Sessions(ctx context.Context) ([]string, error)
	Open(ctx context.Context, session string) (io.ReadCloser, error)
}
