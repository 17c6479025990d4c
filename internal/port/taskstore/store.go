// Package taskstore defines the port for persisting tasks.
package taskstore

import (
	"context"

	"github.com/Strob0t/clawkanban/internal/domain/task"
)

// Store reads and writes whole task records grouped by project.
//
// ReadTask returns domain.ErrNotFound for a missing or malformed record.
// WriteTask overwrites the record as a whole; callers merge before calling.
type Store interface {
	ReadTask(ctx context.Context, project, id string) (*task.Task, error)
	WriteTask(ctx context.Context, t *task.Task) error
	ListTasks(ctx context.Context, project string) ([]task.Task, error)
	ListProjects(ctx context.Context) ([]string, error)
	CreateProject(ctx context.Context, name string) (string, error)
}
