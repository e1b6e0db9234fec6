package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tomhaynes/dragnet/internal/api/shared"
	"github.com/tomhaynes/dragnet/internal/domain"
	"github.com/tomhaynes/dragnet/internal/job"
	"github.com/tomhaynes/dragnet/internal/store"
)

// maxUploadBytes bounds the accepted source file size (64 MiB).
const maxUploadBytes = 64 << 20

// TaskResponse represents the response data for a screening task.
type TaskResponse struct {
	ID             string    `json:"id"`
	SourceRef      string    `json:"source_ref"`
	Status         string    `json:"status"`
	IsDone         bool      `json:"is_done"`
	ColumnNames    []string  `json:"column_names"`
	TotalRows      int       `json:"total_rows"`
	ProcessingTime float64   `json:"processing_time"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ColumnProvider resolves the column names of an ingested task and drops
// its cached metadata when the task goes away.
type ColumnProvider interface {
	Columns(ctx context.Context, taskID uuid.UUID) ([]string, error)
	Invalidate(taskID uuid.UUID)
}

// TaskHandler handles screening-task HTTP requests.
type TaskHandler struct {
	tasks   store.TaskStore
	sources store.SourceStore
	columns ColumnProvider
	engine  JobEngine
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(
	tasks store.TaskStore,
	sources store.SourceStore,
	columns ColumnProvider,
	engine JobEngine,
) *TaskHandler {
	return &TaskHandler{
		tasks:   tasks,
		sources: sources,
		columns: columns,
		engine:  engine,
	}
}

// CreateTask handles POST /api/tasks requests. It accepts a multipart form
// with a "file" field, stores the artifact, persists a pending task and
// enqueues its ingestion.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing or invalid file upload")
		return
	}
	defer func() { _ = file.Close() }()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" {
		ext = ".csv"
	}
	sourceRef := uuid.New().String() + ext

	task, err := domain.NewScreeningTask(sourceRef)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid task", err)
		return
	}

	if err := h.sources.Save(r.Context(), sourceRef, file); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to store uploaded file", err)
		return
	}

	if err := h.tasks.Save(r.Context(), task); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to create task", err)
		return
	}

	// The record is durable at this point; a full queue only delays
	// ingestion until the next restart's recovery pass.
	if err := h.engine.EnqueueIngestion(task.ID, task.SourceRef); err != nil {
		if errors.Is(err, job.ErrQueueFull) {
			shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable,
				"Ingestion queue is full, try again later", err)
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to enqueue ingestion", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, taskToResponse(task))
}

// GetTask handles GET /api/tasks/{id} requests.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	task, err := h.tasks.GetByID(r.Context(), id)
	if err != nil {
		if store.IsNotFoundError(err) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to load task", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// GetTaskColumns handles GET /api/tasks/{id}/columns requests.
func (h *TaskHandler) GetTaskColumns(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	columns, err := h.columns.Columns(r.Context(), id)
	if err != nil {
		if store.IsNotFoundError(err) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to load task columns", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string][]string{"columns": columns})
}

// DeleteTask handles DELETE /api/tasks/{id} requests. Dataset rows and
// searches referencing the task are removed by database cascade; the source
// artifact is removed best-effort.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	task, err := h.tasks.GetByID(r.Context(), id)
	if err != nil {
		if store.IsNotFoundError(err) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to load task", err)
		return
	}

	if err := h.tasks.Delete(r.Context(), id); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to delete task", err)
		return
	}

	h.columns.Invalidate(id)
	_ = h.sources.Delete(r.Context(), task.SourceRef)

	w.WriteHeader(http.StatusNoContent)
}

// parseIDParam extracts and parses the {id} route parameter. On failure it
// writes a 400 response and returns false.
func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")

	id, err := uuid.Parse(raw)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest,
			fmt.Sprintf("Invalid id %q", raw))
		return uuid.Nil, false
	}
	return id, true
}

func taskToResponse(task *domain.ScreeningTask) TaskResponse {
	return TaskResponse{
		ID:             task.ID.String(),
		SourceRef:      task.SourceRef,
		Status:         string(task.Status),
		IsDone:         task.IsDone,
		ColumnNames:    task.ColumnNames,
		TotalRows:      task.TotalRows,
		ProcessingTime: task.ProcessingTime,
		ErrorMessage:   task.ErrorMessage,
		CreatedAt:      task.CreatedAt,
		UpdatedAt:      task.UpdatedAt,
	}
}
