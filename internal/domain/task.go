package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the processing state of a screening task.
type TaskStatus string

// Possible task status values. A task is created pending and becomes
// completed whether ingestion succeeded or failed; failures are recorded
// in ErrorMessage rather than as a separate status.
const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
)

// Common validation errors for ScreeningTask
var (
	ErrEmptyTaskID       = errors.New("task ID cannot be empty")
	ErrEmptySourceRef    = errors.New("task source reference cannot be empty")
	ErrInvalidTaskStatus = errors.New("invalid task status")
)

// ScreeningTask represents one uploaded tabular source and the outcome of
// loading it into the dataset store.
type ScreeningTask struct {
	ID             uuid.UUID  `json:"id"`
	SourceRef      string     `json:"source_ref"`
	Status         TaskStatus `json:"status"`
	IsDone         bool       `json:"is_done"`
	ColumnNames    []string   `json:"column_names"`
	TotalRows      int        `json:"total_rows"`
	ProcessingTime float64    `json:"processing_time"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewScreeningTask creates a pending task for the given source artifact.
// Returns an error if validation fails.
func NewScreeningTask(sourceRef string) (*ScreeningTask, error) {
	task := &ScreeningTask{
		ID:        uuid.New(),
		SourceRef: sourceRef,
		Status:    TaskStatusPending,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the ScreeningTask has valid data.
func (t *ScreeningTask) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.SourceRef == "" {
		return ErrEmptySourceRef
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	return nil
}

// Terminal reports whether the task has reached a state from which no
// further automatic transition occurs.
func (t *ScreeningTask) Terminal() bool {
	return t.Status == TaskStatusCompleted && t.IsDone
}

func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusCompleted:
		return true
	default:
		return false
	}
}
