package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cfotel "github.com/Strob0t/clawkanban/internal/adapter/otel"
	"github.com/Strob0t/clawkanban/internal/domain"
	"github.com/Strob0t/clawkanban/internal/domain/project"
	"github.com/Strob0t/clawkanban/internal/domain/task"
	"github.com/Strob0t/clawkanban/internal/port/broadcast"
	"github.com/Strob0t/clawkanban/internal/port/taskstore"
)

// BoardService implements the board's API use cases. Every mutation is
// written through the store and then broadcast.
type BoardService struct {
	store          taskstore.Store
	costs          *CostService
	bc             broadcast.Broadcaster
	defaultProject string
	metrics        *cfotel.Metrics
	now            func() time.Time
	// idMu serializes identifier allocation so concurrent creates cannot
	// pick the same mnemonic.
	idMu sync.Mutex
}

// NewBoardService creates a new BoardService.
func NewBoardService(store taskstore.Store, costs *CostService, bc broadcast.Broadcaster, defaultProject string, metrics *cfotel.Metrics) *BoardService {
	return &BoardService{
		store:          store,
		costs:          costs,
		bc:             bc,
		defaultProject: defaultProject,
		metrics:        metrics,
		now:            time.Now,
	}
}

// DefaultProject returns the project served by the unscoped routes.
func (s *BoardService) DefaultProject() string { return s.defaultProject }

// ListProjects returns every project name.
func (s *BoardService) ListProjects(ctx context.Context) ([]string, error) {
	return s.store.ListProjects(ctx)
}

// CreateProject creates the project directory if it does not exist.
func (s *BoardService) CreateProject(ctx context.Context, req project.CreateRequest) (*project.Project, error) {
	name, err := s.store.CreateProject(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	slog.Info("project created", "project", name)
	return &project.Project{Name: name}, nil
}

// ListTasks returns the tasks of one project.
func (s *BoardService) ListTasks(ctx context.Context, projectName string) ([]task.Task, error) {
	return s.store.ListTasks(ctx, projectName)
}

// ListAllTasks returns the tasks of every project.
func (s *BoardService) ListAllTasks(ctx context.Context) ([]task.Task, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	all := []task.Task{}
	for _, p := range projects {
		tasks, err := s.store.ListTasks(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("list tasks %s: %w", p, err)
		}
		all = append(all, tasks...)
	}
	return all, nil
}

// GetTask returns one task of a project.
func (s *BoardService) GetTask(ctx context.Context, projectName, id string) (*task.Task, error) {
	return s.store.ReadTask(ctx, projectName, id)
}

// FindTask searches every project for a task id.
func (s *BoardService) FindTask(ctx context.Context, id string) (*task.Task, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		t, err := s.store.ReadTask(ctx, p, id)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
}

// Snapshot returns the project list and the default project's tasks, the
// state a new live subscriber starts from.
func (s *BoardService) Snapshot(ctx context.Context) ([]string, []task.Task, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, nil, err
	}
	tasks, err := s.store.ListTasks(ctx, s.defaultProject)
	if err != nil {
		return nil, nil, err
	}
	return projects, tasks, nil
}

// CreateTask creates a task in a project, generating a globally unique
// identifier unless one is supplied.
func (s *BoardService) CreateTask(ctx context.Context, projectName string, req task.CreateRequest) (*task.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	name, err := project.Sanitize(projectName)
	if err != nil {
		return nil, err
	}

	s.idMu.Lock()
	defer s.idMu.Unlock()

	existing, err := s.identifiers(ctx)
	if err != nil {
		return nil, err
	}
	if req.Identifier != "" {
		if _, taken := existing[req.Identifier]; taken {
			return nil, fmt.Errorf("identifier %q already in use: %w", req.Identifier, domain.ErrConflict)
		}
	}
	if req.ID != "" {
		if _, err := s.store.ReadTask(ctx, name, req.ID); err == nil {
			return nil, fmt.Errorf("task %s/%s already exists: %w", name, req.ID, domain.ErrConflict)
		}
	}

	identifier := req.Identifier
	if identifier == "" {
		identifier = task.GenerateIdentifier(existing)
	}
	t, err := task.New(name, req, identifier, s.now().UTC().Truncate(time.Millisecond))
	if err != nil {
		return nil, err
	}
	if err := s.store.WriteTask(ctx, t); err != nil {
		return nil, err
	}
	slog.Info("task created", "project", name, "task_id", t.ID, "identifier", t.Identifier)
	s.bc.BroadcastEvent(ctx, broadcast.EventTaskCreated, t)
	return t, nil
}

// UpdateTask merges the supplied fields over the stored task. A change into
// done attaches a cost estimate if the task has none.
func (s *BoardService) UpdateTask(ctx context.Context, projectName, id string, req task.UpdateRequest) (*task.Task, error) {
	t, err := s.store.ReadTask(ctx, projectName, id)
	if err != nil {
		return nil, err
	}
	if err := req.Apply(t); err != nil {
		return nil, err
	}
	t.UpdatedAt = s.now().UTC().Truncate(time.Millisecond)
	s.attachCost(ctx, t)
	if err := s.store.WriteTask(ctx, t); err != nil {
		return nil, err
	}
	s.bc.BroadcastEvent(ctx, broadcast.EventTaskUpdated, t)
	return t, nil
}

// SetState moves a task to another lifecycle state. An empty state keeps the
// current one. Entering done computes the windowed cost exactly once: a task
// that already carries a cost keeps it.
func (s *BoardService) SetState(ctx context.Context, projectName, id string, req task.StateRequest) (*task.Task, error) {
	if req.State != "" && !req.State.Valid() {
		return nil, fmt.Errorf("unknown state %q: %w", req.State, domain.ErrValidation)
	}
	ctx, span := cfotel.StartTransitionSpan(ctx, projectName, id, string(req.State))
	defer span.End()

	t, err := s.store.ReadTask(ctx, projectName, id)
	if err != nil {
		return nil, err
	}
	if req.State != "" {
		t.State = req.State
	}
	t.UpdatedAt = s.now().UTC().Truncate(time.Millisecond)
	s.attachCost(ctx, t)
	if err := s.store.WriteTask(ctx, t); err != nil {
		return nil, err
	}
	slog.Info("task state changed", "project", t.Project, "task_id", t.ID, "state", t.State)
	s.bc.BroadcastEvent(ctx, broadcast.EventTaskUpdated, t)
	return t, nil
}

// AddComment appends a comment to a task.
func (s *BoardService) AddComment(ctx context.Context, projectName, id string, req task.CommentRequest) (*task.Comment, error) {
	t, err := s.store.ReadTask(ctx, projectName, id)
	if err != nil {
		return nil, err
	}
	c := task.NewComment(req, s.now().UTC().Truncate(time.Millisecond))
	t.Comments = append(t.Comments, c)
	if err := s.store.WriteTask(ctx, t); err != nil {
		return nil, err
	}
	s.bc.BroadcastEvent(ctx, broadcast.EventTaskUpdated, t)
	return &c, nil
}

// BackfillIdentifiers gives every task lacking an identifier a unique one
// and returns how many were assigned.
func (s *BoardService) BackfillIdentifiers(ctx context.Context) (int, error) {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	existing, err := s.identifiers(ctx)
	if err != nil {
		return 0, err
	}
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return 0, err
	}

	assigned := 0
	for _, p := range projects {
		tasks, err := s.store.ListTasks(ctx, p)
		if err != nil {
			return assigned, fmt.Errorf("list tasks %s: %w", p, err)
		}
		for i := range tasks {
			t := &tasks[i]
			if t.Identifier != "" {
				continue
			}
			t.Identifier = task.GenerateIdentifier(existing)
			existing[t.Identifier] = struct{}{}
			if err := s.store.WriteTask(ctx, t); err != nil {
				return assigned, fmt.Errorf("backfill %s/%s: %w", p, t.ID, err)
			}
			assigned++
		}
	}
	if assigned > 0 {
		slog.Info("identifiers backfilled", "count", assigned)
	}
	return assigned, nil
}

// attachCost sets the windowed cost estimate on a task that just entered
// done without one. Callers stamp UpdatedAt first so a task without comments
// gets a window ending at the transition. Estimation failures leave the task
// without a cost.
func (s *BoardService) attachCost(ctx context.Context, t *task.Task) {
	if !t.NeedsCost() || s.costs == nil {
		return
	}
	est, err := s.costs.EstimateByWindow(ctx, t)
	if err != nil {
		slog.Warn("cost estimate failed", "project", t.Project, "task_id", t.ID, "error", err)
		return
	}
	if est == nil {
		return
	}
	t.Cost = est
	s.metrics.RecordCostAttached(ctx, "api")
	slog.Info("cost attached", "project", t.Project, "task_id", t.ID, "usd", est.USD, "messages", est.Messages)
}

// identifiers collects the human-readable identifiers in use across all projects.
func (s *BoardService) identifiers(ctx context.Context) (map[string]struct{}, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{})
	for _, p := range projects {
		tasks, err := s.store.ListTasks(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("list tasks %s: %w", p, err)
		}
		for _, t := range tasks {
			if t.Identifier != "" {
				ids[t.Identifier] = struct{}{}
			}
		}
	}
	return ids, nil
}
