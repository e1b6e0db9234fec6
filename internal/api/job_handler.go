package api

import (
	"net/http"

	"github.com/tomhaynes/dragnet/internal/api/shared"
)

// CurrentJobsResponse reports what each worker loop is executing right now.
// A null entry means the loop is idle.
type CurrentJobsResponse struct {
	Ingestion    *string `json:"ingestion"`
	Search       *string `json:"search"`
	Notification *string `json:"notification"`
}

// JobHandler exposes the engine's current-job probes.
type JobHandler struct {
	engine JobEngine
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(engine JobEngine) *JobHandler {
	return &JobHandler{engine: engine}
}

// GetCurrentJobs handles GET /api/jobs/current requests.
func (h *JobHandler) GetCurrentJobs(w http.ResponseWriter, r *http.Request) {
	var resp CurrentJobsResponse

	if id, ok := h.engine.CurrentIngestionJob(); ok {
		s := id.String()
		resp.Ingestion = &s
	}
	if id, ok := h.engine.CurrentSearchJob(); ok {
		s := id.String()
		resp.Search = &s
	}
	if id, ok := h.engine.CurrentNotificationJob(); ok {
		s := id.String()
		resp.Notification = &s
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
