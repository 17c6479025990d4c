// Package sessionlog implements the usage log source over a directory of
// append-only *.jsonl session files.
package sessionlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Strob0t/clawkanban/internal/domain/usage"
)

const sessionExt = ".jsonl"

// Source implements usagelog.Source.
type Source struct {
	dir string
}

// New returns a source reading sessions from dir. The directory need not exist yet.
func New(dir string) *Source {
	return &Source{dir: dir}
}

// Dir returns the session directory.
func (s *Source) Dir() string { return s.dir }

// Sessions returns the session file names in lexical order.
func (s *Source) Sessions(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("sessions %s: %w", s.dir, usage.ErrNoSource)
		}
		return nil, fmt.Errorf("list sessions %s: %w", s.dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), sessionExt) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Open opens one session for streaming.
func (s *Source) Open(_ context.Context, session string) (io.ReadCloser, error) {
	path := filepath.Join(s.dir, filepath.Base(session))
	f, err := os.Open(path) //nolint:gosec // G304: name comes from Sessions listing
	if err != nil {
		return nil, fmt.Errorf("open session %s: %w", session, err)
	}
	return f, nil
}
