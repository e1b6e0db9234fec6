// Package store defines the persistence interfaces consumed by the job
// engine and the error taxonomy shared by their implementations.
package store

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/tomhaynes/dragnet/internal/domain"
)

// SourceStore holds uploaded source artifacts until ingestion consumes them.
type SourceStore interface {
	// Save writes the artifact bytes under the given reference.
	Save(ctx context.Context, ref string, r io.Reader) error

	// Fetch opens the artifact for reading. Returns ErrSourceNotFound if
	// the reference does not exist.
	Fetch(ctx context.Context, ref string) (io.ReadCloser, error)

	// Delete removes the artifact. Deleting a missing artifact is not an error.
	Delete(ctx context.Context, ref string) error
}

// DatasetStore persists the ingested rows of each screening task.
type DatasetStore interface {
	// InsertBatch appends a batch of rows for the task.
	InsertBatch(ctx context.Context, taskID uuid.UUID, rows []map[string]string) error

	// QueryRows returns all rows of the task. The columns slice narrows the
	// values loaded per row; an empty slice loads every column.
	QueryRows(ctx context.Context, taskID uuid.UUID, columns []string) ([]domain.DatasetRow, error)

	// DeleteRows removes every row of the task. Used both for cascade
	// deletion and to make ingestion replay idempotent.
	DeleteRows(ctx context.Context, taskID uuid.UUID) error
}

// TaskStore persists screening task records and their lifecycle.
type TaskStore interface {
	// Save persists a new task record.
	Save(ctx context.Context, task *domain.ScreeningTask) error

	// GetByID retrieves a task. Returns ErrTaskNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ScreeningTask, error)

	// Complete writes the terminal outcome of an ingestion run. A failed run
	// passes empty columns, zero rows and a non-empty errorMsg.
	Complete(
		ctx context.Context,
		id uuid.UUID,
		columns []string,
		totalRows int,
		processingTime float64,
		errorMsg string,
	) error

	// ListNonTerminal returns tasks that have not reached a terminal state.
	ListNonTerminal(ctx context.Context) ([]*domain.ScreeningTask, error)

	// Delete removes the task record. Dataset rows and searches referencing
	// it are removed by the owning caller or by database cascade.
	Delete(ctx context.Context, id uuid.UUID) error
}

// SearchStore persists search records and their lifecycle.
type SearchStore interface {
	// Save persists a new search record.
	Save(ctx context.Context, search *domain.Search) error

	// GetByID retrieves a search. Returns ErrSearchNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Search, error)

	// MarkProcessing transitions the search to processing.
	MarkProcessing(ctx context.Context, id uuid.UUID) error

	// Complete writes the successful outcome of a search run.
	Complete(
		ctx context.Context,
		id uuid.UUID,
		matched []domain.MatchedRecord,
		summary *domain.SearchSummary,
		totalRows int,
		executionTimeMS int64,
	) error

	// Fail writes the failed outcome of a search run.
	Fail(ctx context.Context, id uuid.UUID, errorMsg string, executionTimeMS int64) error

	// ListNonTerminal returns searches that have not reached a terminal state.
	ListNonTerminal(ctx context.Context) ([]*domain.Search, error)

	// ResetToPending returns a processing search to pending so it can be
	// replayed after a crash.
	ResetToPending(ctx context.Context, id uuid.UUID) error
}

// NotificationStore persists notification records and their delivery lifecycle.
type NotificationStore interface {
	// Save persists a new notification record.
	Save(ctx context.Context, notification *domain.Notification) error

	// GetByID retrieves a notification. Returns ErrNotificationNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error)

	// NextEligible returns the highest-priority eligible notification
	// (pending or retry, scheduled_at at or before now), FIFO within a
	// priority tier. Returns ErrNotificationNotFound when none is due.
	NextEligible(ctx context.Context, now time.Time) (*domain.Notification, error)

	// MarkProcessing transitions the notification to processing.
	MarkProcessing(ctx context.Context, id uuid.UUID) error

	// MarkSent records a successful delivery.
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error

	// MarkRetry records a failed attempt with retries remaining and the
	// time of the next eligible attempt.
	MarkRetry(ctx context.Context, id uuid.UUID, retryCount int, errorMsg string, nextAttempt time.Time) error

	// MarkFailed records a terminally failed delivery.
	MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, errorMsg string) error

	// ListNonTerminal returns notifications that have not reached a terminal state.
	ListNonTerminal(ctx context.Context) ([]*domain.Notification, error)

	// ResetToPending returns a processing notification to pending so it can
	// be replayed after a crash.
	ResetToPending(ctx context.Context, id uuid.UUID) error
}
