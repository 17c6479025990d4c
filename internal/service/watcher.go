package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/Strob0t/clawkanban/internal/adapter/filestore"
	cfotel "github.com/Strob0t/clawkanban/internal/adapter/otel"
	"github.com/Strob0t/clawkanban/internal/domain"
	"github.com/Strob0t/clawkanban/internal/domain/project"
	"github.com/Strob0t/clawkanban/internal/domain/task"
	"github.com/Strob0t/clawkanban/internal/port/broadcast"
	"github.com/Strob0t/clawkanban/internal/port/fswatch"
	"github.com/Strob0t/clawkanban/internal/port/taskstore"
)

// ChangeWatcher observes task files written by other processes and gives
// them the side effects an API write would have: cost attribution on entry
// into done, then a taskUpdated broadcast.
//
// All state is owned by the Run goroutine, so settles are serialized and
// delivered in the order they occur.
type ChangeWatcher struct {
	store   taskstore.Store
	root    string
	fw      fswatch.Watcher
	costs   *CostService
	bc      broadcast.Broadcaster
	metrics *cfotel.Metrics
	deb     *debouncer
	// written holds the record this watcher last persisted per key, so the
	// file events caused by its own write do not broadcast a second time.
	written map[string]*task.Task
}

// NewChangeWatcher creates a watcher over the project directories under root.
func NewChangeWatcher(store taskstore.Store, root string, fw fswatch.Watcher, costs *CostService,
	bc broadcast.Broadcaster, debounce time.Duration, metrics *cfotel.Metrics,
) *ChangeWatcher {
	return &ChangeWatcher{
		store:   store,
		root:    filepath.Clean(root),
		fw:      fw,
		costs:   costs,
		bc:      bc,
		metrics: metrics,
		deb:     newDebouncer(debounce),
		written: make(map[string]*task.Task),
	}
}

// Run registers the root and every existing project directory, then
// processes events until ctx is cancelled or the watcher is closed.
func (w *ChangeWatcher) Run(ctx context.Context) error {
	defer w.deb.Stop()

	if err := w.fw.Add(w.root); err != nil {
		return fmt.Errorf("watch data root: %w", err)
	}
	projects, err := w.store.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	for _, p := range projects {
		w.watchProject(p)
	}
	slog.Info("change watcher started", "root", w.root, "projects", len(projects))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fw.Events():
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fw.Errors():
			if !ok {
				return nil
			}
			slog.Warn("file watch error", "error", err)
		case f := <-w.deb.C():
			if w.deb.Accept(f) {
				w.settle(ctx, f.key)
			}
		}
	}
}

// watchProject registers a project directory. Directories whose names do not
// survive sanitizing are unreachable through the store and are skipped.
func (w *ChangeWatcher) watchProject(name string) {
	dir := filepath.Join(w.root, name)
	if !isProjectName(name) {
		slog.Warn("skipping project directory with unsafe name", "dir", dir)
		return
	}
	if err := w.fw.Add(dir); err != nil {
		slog.Warn("failed to watch project", "project", name, "dir", dir, "error", err)
		return
	}
	slog.Debug("watching project", "project", name)
}

// handle routes one raw event: new directories under the root become watched
// projects, and changes to task files arm that file's debounce timer.
func (w *ChangeWatcher) handle(ev fswatch.Event) {
	if ev.Op == fswatch.Chmod {
		return
	}
	path := filepath.Clean(ev.Path)
	dir, name := filepath.Split(path)
	dir = filepath.Clean(dir)

	switch {
	case dir == w.root:
		if !ev.Op.Has(fswatch.Create) || strings.HasPrefix(name, ".") {
			return
		}
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.watchProject(name)
		}
	case filepath.Dir(dir) == w.root && filestore.IsTaskFile(name) && isProjectName(filepath.Base(dir)):
		w.deb.Trigger(filepath.Base(dir) + "/" + name)
	}
}

// settle reloads the task behind key and publishes its latest state. A file
// that vanished or does not parse is ignored.
func (w *ChangeWatcher) settle(ctx context.Context, key string) {
	proj, file, _ := strings.Cut(key, "/")
	id := filestore.TaskID(file)

	ctx, span := cfotel.StartSettleSpan(ctx, proj, id)
	defer span.End()
	w.metrics.RecordSettle(ctx, proj)

	t, err := w.store.ReadTask(ctx, proj, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("settle read failed", "project", proj, "task_id", id, "error", err)
		}
		delete(w.written, key)
		return
	}

	if last, ok := w.written[key]; ok {
		delete(w.written, key)
		if reflect.DeepEqual(last, t) {
			return
		}
	}

	if t.NeedsCost() {
		est, err := w.costs.EstimateByWindow(ctx, t)
		switch {
		case err != nil:
			slog.Warn("cost estimate failed", "project", proj, "task_id", id, "error", err)
		case est != nil:
			t.Cost = est
			if err := w.store.WriteTask(ctx, t); err != nil {
				slog.Error("persist task cost failed", "project", proj, "task_id", id, "error", err)
				return
			}
			w.written[key] = t.Clone()
			w.metrics.RecordCostAttached(ctx, "watcher")
			slog.Info("cost attached", "project", proj, "task_id", id, "usd", est.USD, "messages", est.Messages)
		}
	}

	w.bc.BroadcastEvent(ctx, broadcast.EventTaskUpdated, t)
	slog.Debug("task settled", "project", proj, "task_id", id, "state", t.State)
}

func isProjectName(name string) bool {
	safe, err := project.Sanitize(name)
	return err == nil && safe == name
}
