package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// NotificationStatus represents the delivery state of a notification.
type NotificationStatus string

// Possible notification status values. "retry" means a delivery attempt
// failed but attempts remain; the record becomes eligible for pickup again
// once its scheduled_at backoff has elapsed.
const (
	NotificationStatusPending    NotificationStatus = "pending"
	NotificationStatusProcessing NotificationStatus = "processing"
	NotificationStatusSent       NotificationStatus = "sent"
	NotificationStatusRetry      NotificationStatus = "retry"
	NotificationStatusFailed     NotificationStatus = "failed"
)

// Default retry budget applied when a notification is created without one.
const DefaultMaxRetries = 3

// Common validation errors for Notification
var (
	ErrEmptyNotificationID       = errors.New("notification ID cannot be empty")
	ErrNoRecipients              = errors.New("notification requires at least one recipient")
	ErrEmptySubject              = errors.New("notification subject cannot be empty")
	ErrInvalidMaxRetries         = errors.New("max retries must be at least 1")
	ErrInvalidNotificationStatus = errors.New("invalid notification status")
)

// Notification represents one outbound message and its delivery lifecycle.
type Notification struct {
	ID           uuid.UUID          `json:"id"`
	Recipients   []string           `json:"recipients"`
	Subject      string             `json:"subject"`
	Body         string             `json:"body"`
	Priority     int                `json:"priority"`
	Status       NotificationStatus `json:"status"`
	RetryCount   int                `json:"retry_count"`
	MaxRetries   int                `json:"max_retries"`
	ScheduledAt  *time.Time         `json:"scheduled_at,omitempty"`
	SentAt       *time.Time         `json:"sent_at,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// NewNotification creates a pending notification. A zero maxRetries falls
// back to DefaultMaxRetries. Returns an error if validation fails.
func NewNotification(
	recipients []string,
	subject string,
	body string,
	priority int,
	maxRetries int,
	scheduledAt *time.Time,
) (*Notification, error) {
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}

	notification := &Notification{
		ID:          uuid.New(),
		Recipients:  recipients,
		Subject:     subject,
		Body:        body,
		Priority:    priority,
		Status:      NotificationStatusPending,
		MaxRetries:  maxRetries,
		ScheduledAt: scheduledAt,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	if err := notification.Validate(); err != nil {
		return nil, err
	}

	return notification, nil
}

// Validate checks if the Notification has valid data.
func (n *Notification) Validate() error {
	if n.ID == uuid.Nil {
		return ErrEmptyNotificationID
	}

	if len(n.Recipients) == 0 {
		return ErrNoRecipients
	}

	if n.Subject == "" {
		return ErrEmptySubject
	}

	if n.MaxRetries < 1 {
		return ErrInvalidMaxRetries
	}

	if !isValidNotificationStatus(n.Status) {
		return ErrInvalidNotificationStatus
	}

	return nil
}

// Terminal reports whether the notification has reached a terminal status.
func (n *Notification) Terminal() bool {
	return n.Status == NotificationStatusSent || n.Status == NotificationStatusFailed
}

// Eligible reports whether the notification may be picked up for delivery
// at the given instant: it must be pending or retry and its scheduled time,
// if any, must have passed.
func (n *Notification) Eligible(now time.Time) bool {
	if n.Status != NotificationStatusPending && n.Status != NotificationStatusRetry {
		return false
	}

	if n.ScheduledAt != nil && n.ScheduledAt.After(now) {
		return false
	}

	return true
}

func isValidNotificationStatus(status NotificationStatus) bool {
	switch status {
	case NotificationStatusPending, NotificationStatusProcessing,
		NotificationStatusSent, NotificationStatusRetry, NotificationStatusFailed:
		return true
	default:
		return false
	}
}
