package http

import "net/http"

// --- Cost Endpoints ---

// TaskCosts handles GET /api/task-costs
func (h *Handlers) TaskCosts(w http.ResponseWriter, r *http.Request) {
	data, err := h.Cost.TaskCostsJSON(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeRawJSON(w, http.StatusOK, data)
}

// TaskCost handles GET /api/task-costs/{taskId}. Unknown ids yield a zero entry.
func (h *Handlers) TaskCost(w http.ResponseWriter, r *http.Request) {
	c, err := h.Cost.TaskCost(r.Context(), urlParam(r, "taskId"))
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
