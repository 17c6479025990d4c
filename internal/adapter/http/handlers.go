package http

import (
	"net/http"

	"github.com/Strob0t/clawkanban/internal/domain/project"
	"github.com/Strob0t/clawkanban/internal/domain/task"
	"github.com/Strob0t/clawkanban/internal/port/broadcast"
	"github.com/Strob0t/clawkanban/internal/service"
)

// Handlers holds the services the REST surface delegates to.
type Handlers struct {
	Board *service.BoardService
	Cost  *service.CostService
	Hub   broadcast.Hub
	WS    http.Handler
}

type healthResponse struct {
	Status      string `json:"status"`
	Subscribers int    `json:"subscribers"`
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h.Hub != nil {
		resp.Subscribers = h.Hub.SubscriberCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Projects ---

// ListProjects handles GET /api/projects
func (h *Handlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Board.ListProjects(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if projects == nil {
		projects = []string{}
	}
	writeJSON(w, http.StatusOK, projects)
}

// CreateProject handles POST /api/projects
func (h *Handlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[project.CreateRequest](w, r)
	if !ok {
		return
	}
	p, err := h.Board.CreateProject(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// --- Tasks (project scoped) ---

// ListTasks handles GET /api/projects/{project}/tasks
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Board.ListTasks(r.Context(), urlParam(r, "project"))
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// GetTask handles GET /api/projects/{project}/tasks/{id}
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.Board.GetTask(r.Context(), urlParam(r, "project"), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// CreateTask handles POST /api/projects/{project}/tasks
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	h.createTask(w, r, urlParam(r, "project"))
}

// UpdateTask handles PUT /api/projects/{project}/tasks/{id}
func (h *Handlers) UpdateTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[task.UpdateRequest](w, r)
	if !ok {
		return
	}
	t, err := h.Board.UpdateTask(r.Context(), urlParam(r, "project"), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// SetTaskState handles PUT /api/projects/{project}/tasks/{id}/state
func (h *Handlers) SetTaskState(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[task.StateRequest](w, r)
	if !ok {
		return
	}
	t, err := h.Board.SetState(r.Context(), urlParam(r, "project"), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// AddComment handles POST /api/projects/{project}/tasks/{id}/comments
func (h *Handlers) AddComment(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[task.CommentRequest](w, r)
	if !ok {
		return
	}
	c, err := h.Board.AddComment(r.Context(), urlParam(r, "project"), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// --- Tasks (unscoped, default project) ---

// ListAllTasks handles GET /api/tasks
func (h *Handlers) ListAllTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Board.ListAllTasks(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// FindTask handles GET /api/tasks/{id}
func (h *Handlers) FindTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.Board.FindTask(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// CreateDefaultTask handles POST /api/tasks
func (h *Handlers) CreateDefaultTask(w http.ResponseWriter, r *http.Request) {
	h.createTask(w, r, h.Board.DefaultProject())
}

func (h *Handlers) createTask(w http.ResponseWriter, r *http.Request, projectName string) {
	req, ok := readJSON[task.CreateRequest](w, r)
	if !ok {
		return
	}
	t, err := h.Board.CreateTask(r.Context(), projectName, req)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}
