// Package recovery re-enqueues work that was interrupted by a shutdown or
// crash. It runs once at startup, before the HTTP surface accepts traffic.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tomhaynes/dragnet/internal/domain"
	"github.com/tomhaynes/dragnet/internal/store"
)

// Common construction errors
var (
	ErrNilTaskStore         = errors.New("task store cannot be nil")
	ErrNilSearchStore       = errors.New("search store cannot be nil")
	ErrNilNotificationStore = errors.New("notification store cannot be nil")
	ErrNilEnqueuer          = errors.New("enqueuer cannot be nil")
	ErrNilLogger            = errors.New("logger cannot be nil")
)

// Enqueuer hands recovered work back to the job engine.
type Enqueuer interface {
	EnqueueIngestion(taskID uuid.UUID, sourceRef string) error
	EnqueueSearch(searchID uuid.UUID) error
	EnqueueNotification(notificationID uuid.UUID) error
}

// Loader scans the stores for non-terminal records and re-enqueues them.
type Loader struct {
	tasks         store.TaskStore
	searches      store.SearchStore
	notifications store.NotificationStore
	enqueuer      Enqueuer
	logger        *slog.Logger
}

// NewLoader creates a recovery loader.
func NewLoader(
	tasks store.TaskStore,
	searches store.SearchStore,
	notifications store.NotificationStore,
	enqueuer Enqueuer,
	log *slog.Logger,
) (*Loader, error) {
	if tasks == nil {
		return nil, ErrNilTaskStore
	}
	if searches == nil {
		return nil, ErrNilSearchStore
	}
	if notifications == nil {
		return nil, ErrNilNotificationStore
	}
	if enqueuer == nil {
		return nil, ErrNilEnqueuer
	}
	if log == nil {
		return nil, ErrNilLogger
	}

	return &Loader{
		tasks:         tasks,
		searches:      searches,
		notifications: notifications,
		enqueuer:      enqueuer,
		logger:        log,
	}, nil
}

// Recover re-enqueues every non-terminal record. Records stuck in processing
// are reset to pending first, then replayed from the start; ingestion replay
// is idempotent because the loader's jobs clear previously written rows.
// A record that cannot be re-enqueued is logged and skipped so one bad row
// never blocks startup.
func (l *Loader) Recover(ctx context.Context) error {
	if err := l.recoverTasks(ctx); err != nil {
		return err
	}
	if err := l.recoverSearches(ctx); err != nil {
		return err
	}
	return l.recoverNotifications(ctx)
}

func (l *Loader) recoverTasks(ctx context.Context) error {
	tasks, err := l.tasks.ListNonTerminal(ctx)
	if err != nil {
		return fmt.Errorf("failed to list unfinished tasks: %w", err)
	}

	for _, task := range tasks {
		if err := l.enqueuer.EnqueueIngestion(task.ID, task.SourceRef); err != nil {
			l.logger.Error("failed to re-enqueue ingestion",
				"task_id", task.ID, "error", err)
			continue
		}
		l.logger.Info("re-enqueued unfinished ingestion", "task_id", task.ID)
	}

	return nil
}

func (l *Loader) recoverSearches(ctx context.Context) error {
	searches, err := l.searches.ListNonTerminal(ctx)
	if err != nil {
		return fmt.Errorf("failed to list unfinished searches: %w", err)
	}

	for _, search := range searches {
		if search.Status == domain.SearchStatusProcessing {
			if err := l.searches.ResetToPending(ctx, search.ID); err != nil {
				l.logger.Error("failed to reset interrupted search",
					"search_id", search.ID, "error", err)
				continue
			}
		}

		if err := l.enqueuer.EnqueueSearch(search.ID); err != nil {
			l.logger.Error("failed to re-enqueue search",
				"search_id", search.ID, "error", err)
			continue
		}
		l.logger.Info("re-enqueued unfinished search", "search_id", search.ID)
	}

	return nil
}

func (l *Loader) recoverNotifications(ctx context.Context) error {
	notifications, err := l.notifications.ListNonTerminal(ctx)
	if err != nil {
		return fmt.Errorf("failed to list unfinished notifications: %w", err)
	}

	for _, notification := range notifications {
		if notification.Status == domain.NotificationStatusProcessing {
			if err := l.notifications.ResetToPending(ctx, notification.ID); err != nil {
				l.logger.Error("failed to reset interrupted notification",
					"notification_id", notification.ID, "error", err)
			}
		}
	}

	// One sweep drains every eligible notification, so a single job covers
	// all recovered records.
	if len(notifications) > 0 {
		id := notifications[0].ID
		if err := l.enqueuer.EnqueueNotification(id); err != nil {
			l.logger.Error("failed to re-enqueue notification sweep",
				"notification_id", id, "error", err)
			return nil
		}
		l.logger.Info("re-enqueued notification sweep",
			"pending_notifications", len(notifications))
	}

	return nil
}
