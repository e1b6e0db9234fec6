package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tomhaynes/dragnet/internal/api/shared"
	"github.com/tomhaynes/dragnet/internal/domain"
	"github.com/tomhaynes/dragnet/internal/job"
	"github.com/tomhaynes/dragnet/internal/store"
)

// CreateSearchRequest represents the request body for submitting a search.
type CreateSearchRequest struct {
	TaskID       string   `json:"task_id" validate:"required,uuid"`
	Kind         string   `json:"kind" validate:"required,oneof=single bulk"`
	QueryNames   []string `json:"query_names" validate:"required,min=1,dive,min=1"`
	Columns      []string `json:"columns" validate:"required,min=1,dive,min=1"`
	Threshold    float64  `json:"threshold" validate:"gte=0,lte=100"`
	WatchlistRef string   `json:"watchlist_ref,omitempty"`
}

// SearchResponse represents the response data for a search.
type SearchResponse struct {
	ID              string                 `json:"id"`
	TaskID          string                 `json:"task_id"`
	Kind            string                 `json:"kind"`
	QueryNames      []string               `json:"query_names"`
	Columns         []string               `json:"columns"`
	Threshold       float64                `json:"threshold"`
	WatchlistRef    string                 `json:"watchlist_ref,omitempty"`
	Status          string                 `json:"status"`
	TotalRows       int                    `json:"total_rows"`
	ExecutionTimeMS int64                  `json:"execution_time_ms"`
	MatchedRecords  []domain.MatchedRecord `json:"matched_records"`
	Summary         *domain.SearchSummary  `json:"summary,omitempty"`
	ErrorMessage    string                 `json:"error_message,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// SearchHandler handles search-related HTTP requests.
type SearchHandler struct {
	searches store.SearchStore
	tasks    store.TaskStore
	engine   JobEngine
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(searches store.SearchStore, tasks store.TaskStore, engine JobEngine) *SearchHandler {
	return &SearchHandler{
		searches: searches,
		tasks:    tasks,
		engine:   engine,
	}
}

// CreateSearch handles POST /api/searches requests. The search record is
// persisted pending and executed asynchronously.
func (h *SearchHandler) CreateSearch(w http.ResponseWriter, r *http.Request) {
	var req CreateSearchRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	taskID, err := uuid.Parse(req.TaskID)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task_id")
		return
	}

	// The task must exist and be fully ingested before it can be searched.
	task, err := h.tasks.GetByID(r.Context(), taskID)
	if err != nil {
		if store.IsNotFoundError(err) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to load task", err)
		return
	}
	if !task.Terminal() || task.ErrorMessage != "" {
		shared.RespondWithError(w, r, http.StatusConflict,
			"Task has not been ingested successfully")
		return
	}

	search, err := domain.NewSearch(taskID, domain.SearchKind(req.Kind),
		req.QueryNames, req.Columns, req.Threshold, req.WatchlistRef)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid search: "+err.Error())
		return
	}

	if err := h.searches.Save(r.Context(), search); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to create search", err)
		return
	}

	if err := h.engine.EnqueueSearch(search.ID); err != nil {
		if errors.Is(err, job.ErrQueueFull) {
			shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable,
				"Search queue is full, try again later", err)
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to enqueue search", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, searchToResponse(search))
}

// GetSearch handles GET /api/searches/{id} requests.
func (h *SearchHandler) GetSearch(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	search, err := h.searches.GetByID(r.Context(), id)
	if err != nil {
		if store.IsNotFoundError(err) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Search not found")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to load search", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, searchToResponse(search))
}

func searchToResponse(search *domain.Search) SearchResponse {
	return SearchResponse{
		ID:              search.ID.String(),
		TaskID:          search.TaskID.String(),
		Kind:            string(search.Kind),
		QueryNames:      search.QueryNames,
		Columns:         search.Columns,
		Threshold:       search.Threshold,
		WatchlistRef:    search.WatchlistRef,
		Status:          string(search.Status),
		TotalRows:       search.TotalRows,
		ExecutionTimeMS: search.ExecutionTimeMS,
		MatchedRecords:  search.MatchedRecords,
		Summary:         search.Summary,
		ErrorMessage:    search.ErrorMessage,
		CreatedAt:       search.CreatedAt,
		UpdatedAt:       search.UpdatedAt,
	}
}
