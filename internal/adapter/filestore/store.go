// Package filestore implements the task store port on the local filesystem.
// Each project is a directory under the root and each task one pretty-printed
// JSON file named <id>.json.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/Strob0t/clawkanban/internal/domain"
	"github.com/Strob0t/clawkanban/internal/domain/project"
	"github.com/Strob0t/clawkanban/internal/domain/task"
)

const taskExt = ".json"

// Store implements taskstore.Store.
type Store struct {
	root string
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a store rooted at dir, creating the directory if needed.
func New(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create root %s: %w", dir, err)
	}
	s := &Store{root: dir, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Root returns the directory holding the project directories.
func (s *Store) Root() string { return s.root }

// ProjectDir returns the directory of a sanitized project name.
func (s *Store) ProjectDir(name string) string { return filepath.Join(s.root, name) }

// IsTaskFile reports whether a directory entry name is a task record.
// Hidden files, including in-flight temp files, are not.
func IsTaskFile(name string) bool {
	return strings.HasSuffix(name, taskExt) && !strings.HasPrefix(name, ".")
}

// TaskID returns the task id encoded in a task file name.
func TaskID(name string) string { return strings.TrimSuffix(name, taskExt) }

// ReadTask loads one task. Missing and malformed records both yield
// domain.ErrNotFound; malformed ones also match domain.ErrMalformed.
func (s *Store) ReadTask(_ context.Context, projectName, id string) (*task.Task, error) {
	name, err := project.Sanitize(projectName)
	if err != nil {
		return nil, err
	}
	if !task.IsFileSafe(id) {
		return nil, fmt.Errorf("task %s/%s: %w", name, id, domain.ErrNotFound)
	}
	return s.readFile(name, filepath.Join(s.ProjectDir(name), id+taskExt))
}

func (s *Store) readFile(projectName, path string) (*task.Task, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path built from sanitized segments
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("task %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("read task %s: %w", path, err)
	}

	var t task.Task
	if err := json.Unmarshal(data, &t); err != nil {
		slog.Warn("skipping malformed task file", "path", path, "error", err)
		return nil, fmt.Errorf("task %s: %w: %w", path, domain.ErrNotFound, domain.ErrMalformed)
	}
	t.Project = projectName
	if t.Comments == nil {
		t.Comments = []task.Comment{}
	}
	return &t, nil
}

// WriteTask serializes t and replaces its file atomically. The first write of
// a record sets CreatedAt only; every later write refreshes UpdatedAt.
// Timestamps are stored on t.
func (s *Store) WriteTask(_ context.Context, t *task.Task) error {
	name, err := project.Sanitize(t.Project)
	if err != nil {
		return err
	}
	if !task.IsFileSafe(t.ID) {
		return fmt.Errorf("task id %q: %w", t.ID, domain.ErrValidation)
	}
	dir := s.ProjectDir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create project dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, t.ID+taskExt)
	now := s.now().UTC().Truncate(time.Millisecond)
	_, statErr := os.Stat(path)
	switch {
	case errors.Is(statErr, fs.ErrNotExist):
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
	case statErr != nil:
		return fmt.Errorf("stat task %s: %w", path, statErr)
	default:
		t.UpdatedAt = now
	}
	t.Project = name

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encode task %s: %w", t.ID, err)
	}
	return writeAtomic(path, data)
}

// writeAtomic writes data to a hidden temp file in the target directory and
// renames it over path.
func writeAtomic(path string, data []byte) error {
	dir, base := filepath.Split(path)
	f, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	ok := false
	defer func() {
		if !ok {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	ok = true
	return nil
}

// ListTasks returns every readable task of a project ordered by creation.
// A project without a directory has no tasks.
func (s *Store) ListTasks(_ context.Context, projectName string) ([]task.Task, error) {
	name, err := project.Sanitize(projectName)
	if err != nil {
		return nil, err
	}
	dir := s.ProjectDir(name)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []task.Task{}, nil
		}
		return nil, fmt.Errorf("list tasks %s: %w", name, err)
	}

	tasks := make([]task.Task, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsTaskFile(e.Name()) {
			continue
		}
		t, err := s.readFile(name, filepath.Join(dir, e.Name()))
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				slog.Warn("skipping unreadable task file", "project", name, "file", e.Name(), "error", err)
			}
			continue
		}
		tasks = append(tasks, *t)
	}
	slices.SortStableFunc(tasks, func(a, b task.Task) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return tasks, nil
}

// ListProjects returns the project directory names in lexical order.
func (s *Store) ListProjects(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list projects: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// CreateProject sanitizes name and creates its directory if missing.
func (s *Store) CreateProject(_ context.Context, name string) (string, error) {
	safe, err := project.Sanitize(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.ProjectDir(safe), 0o755); err != nil {
		return "", fmt.Errorf("create project %s: %w", safe, err)
	}
	return safe, nil
}
