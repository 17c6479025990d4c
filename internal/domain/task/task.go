// Package task defines the Task domain entity of the board.
package task

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/Strob0t/clawkanban/internal/domain"
	"github.com/Strob0t/clawkanban/internal/domain/cost"
)

// State is the lifecycle column a task sits in.
type State string

const (
	StateToDo       State = "toDo"
	StateInProgress State = "inProgress"
	StateDone       State = "done"
)

// Valid reports whether s is a known lifecycle state.
func (s State) Valid() bool {
	switch s {
	case StateToDo, StateInProgress, StateDone:
		return true
	}
	return false
}

// Priority is the urgency label shown on a card.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Comment is an append-only note on a task.
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Task is one card on the board, persisted as <root>/<project>/<id>.json.
type Task struct {
	ID          string         `json:"id"`
	Identifier  string         `json:"identifier"`
	Project     string         `json:"project"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    Priority       `json:"priority"`
	Owner       string         `json:"owner"`
	State       State          `json:"state"`
	Comments    []Comment      `json:"comments"`
	Cost        *cost.Estimate `json:"cost,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt,omitzero"`

	// Extra holds fields written by other tools, kept across rewrites.
	Extra map[string]json.RawMessage `json:"-"`
}

// Clone returns a deep copy of t.
func (t *Task) Clone() *Task {
	c := *t
	c.Comments = slices.Clone(t.Comments)
	c.Extra = maps.Clone(t.Extra)
	if t.Cost != nil {
		e := *t.Cost
		c.Cost = &e
	}
	return &c
}

// NeedsCost reports whether the task has entered the terminal state without a cost.
// Once a cost is attached it is never recomputed.
func (t *Task) NeedsCost() bool {
	return t.State == StateDone && t.Cost == nil
}

// Span returns the activity span of the task: the first comment (or creation
// time) to the last comment (or last update, or creation time).
func (t *Task) Span() (start, end time.Time) {
	start, end = t.CreatedAt, t.UpdatedAt
	if end.IsZero() {
		end = t.CreatedAt
	}
	if n := len(t.Comments); n > 0 {
		start = t.Comments[0].CreatedAt
		end = t.Comments[n-1].CreatedAt
	}
	return start, end
}

// CreateRequest holds the fields accepted when creating a task.
// Empty fields receive defaults; unknown fields are stored as Extra.
type CreateRequest struct {
	ID          string    `json:"id"`
	Identifier  string    `json:"identifier"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    Priority  `json:"priority"`
	Owner       string    `json:"owner"`
	State       State     `json:"state"`
	Comments    []Comment `json:"comments"`

	Extra map[string]json.RawMessage `json:"-"`
}

// UpdateRequest holds a partial update. Nil fields are left untouched.
// Identity, timestamps and cost are not updatable. Extra keys are merged over
// the stored ones.
type UpdateRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Priority    *Priority `json:"priority"`
	Owner       *string   `json:"owner"`
	State       *State    `json:"state"`

	Extra map[string]json.RawMessage `json:"-"`
}

// StateRequest is the body of a state transition.
type StateRequest struct {
	State State `json:"state"`
}

// CommentRequest is the body of an added comment.
type CommentRequest struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}

// New builds a task from req with defaults applied. identifier is used when
// req carries none.
func New(project string, req CreateRequest, identifier string, now time.Time) (*Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	t := &Task{
		ID:          req.ID,
		Identifier:  req.Identifier,
		Project:     project,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Owner:       req.Owner,
		State:       req.State,
		Comments:    slices.Clone(req.Comments),
		CreatedAt:   now,
		Extra:       maps.Clone(req.Extra),
	}
	if t.ID == "" {
		t.ID = NewID()
	}
	if t.Identifier == "" {
		t.Identifier = identifier
	}
	if t.Title == "" {
		t.Title = "Untitled"
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.State == "" {
		t.State = StateToDo
	}
	if t.Comments == nil {
		t.Comments = []Comment{}
	}
	return t, nil
}

// Validate checks enum fields and the id format of a create request.
func (r *CreateRequest) Validate() error {
	if r.ID != "" && !IsFileSafe(r.ID) {
		return fmt.Errorf("id %q contains invalid characters: %w", r.ID, domain.ErrValidation)
	}
	if r.Priority != "" && !r.Priority.Valid() {
		return fmt.Errorf("unknown priority %q: %w", r.Priority, domain.ErrValidation)
	}
	if r.State != "" && !r.State.Valid() {
		return fmt.Errorf("unknown state %q: %w", r.State, domain.ErrValidation)
	}
	return nil
}

// Apply merges the non-nil fields of req into t.
func (r *UpdateRequest) Apply(t *Task) error {
	if r.Priority != nil && !r.Priority.Valid() {
		return fmt.Errorf("unknown priority %q: %w", *r.Priority, domain.ErrValidation)
	}
	if r.State != nil && !r.State.Valid() {
		return fmt.Errorf("unknown state %q: %w", *r.State, domain.ErrValidation)
	}
	if r.Title != nil {
		t.Title = *r.Title
	}
	if r.Description != nil {
		t.Description = *r.Description
	}
	if r.Priority != nil {
		t.Priority = *r.Priority
	}
	if r.Owner != nil {
		t.Owner = *r.Owner
	}
	if r.State != nil {
		t.State = *r.State
	}
	if len(r.Extra) > 0 {
		if t.Extra == nil {
			t.Extra = make(map[string]json.RawMessage, len(r.Extra))
		}
		maps.Copy(t.Extra, r.Extra)
	}
	return nil
}

// NewComment builds a comment with a fresh id. An empty author becomes "anonymous".
func NewComment(req CommentRequest, now time.Time) Comment {
	author := req.Author
	if author == "" {
		author = "anonymous"
	}
	return Comment{ID: NewID(), Author: author, Text: req.Text, CreatedAt: now}
}

// NewID returns 12 random lowercase hex characters.
func NewID() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// IsFileSafe reports whether s only contains [A-Za-z0-9_-] and is non-empty.
func IsFileSafe(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isSafeRune(r) {
			return false
		}
	}
	return true
}

func isSafeRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-'
}
