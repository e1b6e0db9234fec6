package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomhaynes/dragnet/internal/domain"
	"github.com/tomhaynes/dragnet/internal/platform/logger"
	"github.com/tomhaynes/dragnet/internal/store"
)

// PostgresNotificationStore implements the store.NotificationStore interface
// using PostgreSQL.
type PostgresNotificationStore struct {
	db store.DBTX
}

// NewPostgresNotificationStore creates a new PostgresNotificationStore.
func NewPostgresNotificationStore(db store.DBTX) *PostgresNotificationStore {
	return &PostgresNotificationStore{
		db: db,
	}
}

// Save persists a new notification record.
func (s *PostgresNotificationStore) Save(ctx context.Context, notification *domain.Notification) error {
	log := logger.FromContext(ctx)

	if err := notification.Validate(); err != nil {
		return err
	}

	recipients, err := json.Marshal(notification.Recipients)
	if err != nil {
		return fmt.Errorf("failed to marshal recipients: %w", err)
	}

	query := `
		INSERT INTO notifications
			(id, recipients, subject, body, priority, status, retry_count,
			 max_retries, scheduled_at, sent_at, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = s.db.ExecContext(ctx, query,
		notification.ID,
		recipients,
		notification.Subject,
		notification.Body,
		notification.Priority,
		notification.Status,
		notification.RetryCount,
		notification.MaxRetries,
		notification.ScheduledAt,
		notification.SentAt,
		notification.ErrorMessage,
		notification.CreatedAt,
		notification.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to save notification",
			"notification_id", notification.ID,
			"error", err)
		return fmt.Errorf("failed to save notification: %w", MapError(err))
	}

	return nil
}

// GetByID retrieves a notification by its id.
func (s *PostgresNotificationStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	query := notificationSelect + ` WHERE id = $1`

	notification, err := scanNotification(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to get notification: %w", MapError(err))
	}

	return notification, nil
}

// NextEligible returns the highest-priority eligible notification, FIFO
// within a priority tier.
func (s *PostgresNotificationStore) NextEligible(ctx context.Context, now time.Time) (*domain.Notification, error) {
	query := notificationSelect + `
		WHERE status IN ($1, $2)
		  AND (scheduled_at IS NULL OR scheduled_at <= $3)
		ORDER BY priority DESC, created_at ASC
		LIMIT 1
	`

	notification, err := scanNotification(s.db.QueryRowContext(ctx, query,
		domain.NotificationStatusPending, domain.NotificationStatusRetry, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to pick next notification: %w", MapError(err))
	}

	return notification, nil
}

// MarkProcessing transitions the notification to processing.
func (s *PostgresNotificationStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, domain.NotificationStatusProcessing)
}

// MarkSent records a successful delivery.
func (s *PostgresNotificationStore) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE notifications
		SET status = $1, sent_at = $2, error_message = '', updated_at = $3
		WHERE id = $4
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.NotificationStatusSent, sentAt, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to mark notification sent",
			"notification_id", id,
			"error", err)
		return fmt.Errorf("failed to mark notification sent: %w", MapError(err))
	}

	return checkNotificationAffected(result)
}

// MarkRetry records a failed attempt with retries remaining.
func (s *PostgresNotificationStore) MarkRetry(
	ctx context.Context,
	id uuid.UUID,
	retryCount int,
	errorMsg string,
	nextAttempt time.Time,
) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE notifications
		SET status = $1, retry_count = $2, error_message = $3, scheduled_at = $4,
		    updated_at = $5
		WHERE id = $6
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.NotificationStatusRetry, retryCount, errorMsg, nextAttempt,
		time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to mark notification for retry",
			"notification_id", id,
			"error", err)
		return fmt.Errorf("failed to mark notification for retry: %w", MapError(err))
	}

	return checkNotificationAffected(result)
}

// MarkFailed records a terminally failed delivery.
func (s *PostgresNotificationStore) MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, errorMsg string) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE notifications
		SET status = $1, retry_count = $2, error_message = $3, updated_at = $4
		WHERE id = $5
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.NotificationStatusFailed, retryCount, errorMsg, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to mark notification failed",
			"notification_id", id,
			"error", err)
		return fmt.Errorf("failed to mark notification failed: %w", MapError(err))
	}

	return checkNotificationAffected(result)
}

// ListNonTerminal returns notifications that have not reached a terminal
// state, oldest first.
func (s *PostgresNotificationStore) ListNonTerminal(ctx context.Context) ([]*domain.Notification, error) {
	log := logger.FromContext(ctx)

	query := notificationSelect + `
		WHERE status IN ($1, $2, $3)
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query,
		domain.NotificationStatusPending,
		domain.NotificationStatusProcessing,
		domain.NotificationStatusRetry)
	if err != nil {
		log.Error("failed to query unfinished notifications", "error", err)
		return nil, fmt.Errorf("failed to query unfinished notifications: %w", MapError(err))
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		notification, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", err)
		}
		notifications = append(notifications, notification)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}

	return notifications, nil
}

// ResetToPending returns a processing notification to pending.
func (s *PostgresNotificationStore) ResetToPending(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, domain.NotificationStatusPending)
}

func (s *PostgresNotificationStore) setStatus(ctx context.Context, id uuid.UUID, status domain.NotificationStatus) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE notifications
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to update notification status",
			"notification_id", id,
			"status", status,
			"error", err)
		return fmt.Errorf("failed to update notification status: %w", MapError(err))
	}

	return checkNotificationAffected(result)
}

const notificationSelect = `
	SELECT id, recipients, subject, body, priority, status, retry_count,
	       max_retries, scheduled_at, sent_at, error_message, created_at, updated_at
	FROM notifications`

func checkNotificationAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrNotificationNotFound
	}
	return nil
}

func scanNotification(row rowScanner) (*domain.Notification, error) {
	var notification domain.Notification
	var recipients []byte
	var scheduledAt, sentAt sql.NullTime
	var errorMessage sql.NullString

	err := row.Scan(
		&notification.ID,
		&recipients,
		&notification.Subject,
		&notification.Body,
		&notification.Priority,
		&notification.Status,
		&notification.RetryCount,
		&notification.MaxRetries,
		&scheduledAt,
		&sentAt,
		&errorMessage,
		&notification.CreatedAt,
		&notification.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	notification.ErrorMessage = errorMessage.String
	if scheduledAt.Valid {
		t := scheduledAt.Time
		notification.ScheduledAt = &t
	}
	if sentAt.Valid {
		t := sentAt.Time
		notification.SentAt = &t
	}
	if len(recipients) > 0 {
		if err := json.Unmarshal(recipients, &notification.Recipients); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recipients: %w", err)
		}
	}

	return &notification, nil
}
