package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Strob0t/clawkanban/internal/domain"
	"github.com/Strob0t/clawkanban/internal/domain/project"
	"github.com/Strob0t/clawkanban/internal/domain/task"
	"github.com/Strob0t/clawkanban/internal/domain/usage"
	"github.com/Strob0t/clawkanban/internal/port/fswatch"
)

// --- taskstore.Store ---

type memStore struct {
	mu       sync.Mutex
	projects map[string]map[string]task.Task
	now      func() time.Time
	writes   int
	writeErr error
}

func newMemStore() *memStore {
	return &memStore{
		projects: make(map[string]map[string]task.Task),
		now:      func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func (m *memStore) ReadTask(_ context.Context, projectName, id string) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.projects[projectName][id]
	if !ok {
		return nil, fmt.Errorf("task %s/%s: %w", projectName, id, domain.ErrNotFound)
	}
	return t.Clone(), nil
}

func (m *memStore) WriteTask(_ context.Context, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	name, err := project.Sanitize(t.Project)
	if err != nil {
		return err
	}
	if m.projects[name] == nil {
		m.projects[name] = make(map[string]task.Task)
	}
	if _, exists := m.projects[name][t.ID]; exists {
		t.UpdatedAt = m.now()
	} else if t.CreatedAt.IsZero() {
		t.CreatedAt = m.now()
	}
	t.Project = name
	m.projects[name][t.ID] = *t.Clone()
	m.writes++
	return nil
}

func (m *memStore) ListTasks(_ context.Context, projectName string) ([]task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []task.Task{}
	for _, id := range slices.Sorted(maps.Keys(m.projects[projectName])) {
		c := m.projects[projectName][id]
		out = append(out, *c.Clone())
	}
	return out, nil
}

func (m *memStore) ListProjects(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.projects)), nil
}

func (m *memStore) CreateProject(_ context.Context, name string) (string, error) {
	safe, err := project.Sanitize(name)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.projects[safe] == nil {
		m.projects[safe] = make(map[string]task.Task)
	}
	return safe, nil
}

func (m *memStore) put(t task.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.projects[t.Project] == nil {
		m.projects[t.Project] = make(map[string]task.Task)
	}
	m.projects[t.Project][t.ID] = t
}

func (m *memStore) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// --- usagelog.Source ---

type fakeSource struct {
	mu       sync.Mutex
	missing  bool
	sessions map[string]string
	opens    int
}

func newFakeSource(sessions map[string]string) *fakeSource {
	if sessions == nil {
		sessions = make(map[string]string)
	}
	return &fakeSource{sessions: sessions}
}

func (f *fakeSource) Sessions(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing {
		return nil, fmt.Errorf("sessions: %w", usage.ErrNoSource)
	}
	names := make([]string, 0, len(f.sessions))
	for n := range f.sessions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeSource) Open(_ context.Context, session string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	content, ok := f.sessions[session]
	if !ok {
		return nil, errors.New("no such session")
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func (f *fakeSource) set(session, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session] = content
}

func (f *fakeSource) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

// --- cache.Cache ---

type memCacheEntry struct {
	data    []byte
	expires time.Time
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]memCacheEntry
	now     time.Time
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]memCacheEntry), now: time.Unix(1_700_000_000, 0)}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !c.now.Before(e.expires) {
		return nil, false, nil
	}
	return e.data, true, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memCacheEntry{data: value, expires: c.now.Add(ttl)}
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *memCache) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- broadcast.Broadcaster ---

type sentEvent struct {
	event string
	task  *task.Task
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []sentEvent
	notify chan sentEvent
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{notify: make(chan sentEvent, 64)}
}

func (b *recordingBroadcaster) BroadcastEvent(_ context.Context, eventType string, payload any) {
	ev := sentEvent{event: eventType}
	if t, ok := payload.(*task.Task); ok {
		ev.task = t.Clone()
	}
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
	select {
	case b.notify <- ev:
	default:
	}
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

func (b *recordingBroadcaster) last() sentEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return sentEvent{}
	}
	return b.events[len(b.events)-1]
}

// --- fswatch.Watcher ---

type fakeWatcher struct {
	mu     sync.Mutex
	added  []string
	failOn map[string]bool
	events chan fswatch.Event
	errors chan error
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{
		failOn: make(map[string]bool),
		events: make(chan fswatch.Event, 16),
		errors: make(chan error, 1),
	}
}

func (f *fakeWatcher) Add(dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[dir] {
		return errors.New("permission denied")
	}
	f.added = append(f.added, dir)
	return nil
}

func (f *fakeWatcher) Events() <-chan fswatch.Event { return f.events }
func (f *fakeWatcher) Errors() <-chan error         { return f.errors }
func (f *fakeWatcher) Close() error                 { return nil }

func (f *fakeWatcher) addedDirs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.added)
}
