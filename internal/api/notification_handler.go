package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/tomhaynes/dragnet/internal/api/shared"
	"github.com/tomhaynes/dragnet/internal/domain"
	"github.com/tomhaynes/dragnet/internal/job"
	"github.com/tomhaynes/dragnet/internal/store"
)

// CreateNotificationRequest represents the request body for creating a
// notification.
type CreateNotificationRequest struct {
	Recipients  []string   `json:"recipients" validate:"required,min=1,dive,email"`
	Subject     string     `json:"subject" validate:"required,min=1"`
	Body        string     `json:"body"`
	Priority    int        `json:"priority" validate:"gte=0"`
	MaxRetries  int        `json:"max_retries" validate:"gte=0"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// NotificationResponse represents the response data for a notification.
type NotificationResponse struct {
	ID           string     `json:"id"`
	Recipients   []string   `json:"recipients"`
	Subject      string     `json:"subject"`
	Priority     int        `json:"priority"`
	Status       string     `json:"status"`
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
	ScheduledAt  *time.Time `json:"scheduled_at,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NotificationHandler handles notification-related HTTP requests.
type NotificationHandler struct {
	notifications store.NotificationStore
	engine        JobEngine
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notifications store.NotificationStore, engine JobEngine) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		engine:        engine,
	}
}

// CreateNotification handles POST /api/notifications requests.
func (h *NotificationHandler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	var req CreateNotificationRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	notification, err := domain.NewNotification(req.Recipients, req.Subject,
		req.Body, req.Priority, req.MaxRetries, req.ScheduledAt)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid notification: "+err.Error())
		return
	}

	if err := h.notifications.Save(r.Context(), notification); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to create notification", err)
		return
	}

	// A full queue is tolerable here: the retry monitor picks the record up
	// on its next sweep.
	if err := h.engine.EnqueueNotification(notification.ID); err != nil &&
		!errors.Is(err, job.ErrQueueFull) {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to enqueue notification", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, notificationToResponse(notification))
}

// GetNotification handles GET /api/notifications/{id} requests.
func (h *NotificationHandler) GetNotification(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	notification, err := h.notifications.GetByID(r.Context(), id)
	if err != nil {
		if store.IsNotFoundError(err) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Notification not found")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to load notification", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, notificationToResponse(notification))
}

func notificationToResponse(notification *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:           notification.ID.String(),
		Recipients:   notification.Recipients,
		Subject:      notification.Subject,
		Priority:     notification.Priority,
		Status:       string(notification.Status),
		RetryCount:   notification.RetryCount,
		MaxRetries:   notification.MaxRetries,
		ScheduledAt:  notification.ScheduledAt,
		SentAt:       notification.SentAt,
		ErrorMessage: notification.ErrorMessage,
		CreatedAt:    notification.CreatedAt,
		UpdatedAt:    notification.UpdatedAt,
	}
}
