// Package notify delivers outbound notifications. Delivery jobs sweep the
// store for eligible records in priority order, so a high-priority message
// created later still goes out before an older low-priority one.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tomhaynes/dragnet/internal/domain"
	"github.com/tomhaynes/dragnet/internal/job"
	"github.com/tomhaynes/dragnet/internal/platform/logger"
	"github.com/tomhaynes/dragnet/internal/store"
)

// Common construction errors
var (
	ErrNilNotificationStore = errors.New("notification store cannot be nil")
	ErrNilTransport         = errors.New("transport cannot be nil")
	ErrNilLogger            = errors.New("logger cannot be nil")
)

// Message is the delivery payload handed to a Transport.
type Message struct {
	Recipients []string
	Subject    string
	Body       string
}

// Transport sends a single message to its recipients.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Config holds the tunable retry behavior of the notifier.
type Config struct {
	// RetryBackoffBase is the delay before the first retry. Each further
	// retry doubles it.
	RetryBackoffBase time.Duration

	// RetryBackoffCap bounds the doubled delay.
	RetryBackoffCap time.Duration
}

// DefaultConfig returns the notifier defaults.
func DefaultConfig() Config {
	return Config{
		RetryBackoffBase: 30 * time.Second,
		RetryBackoffCap:  30 * time.Minute,
	}
}

// Notifier creates and executes notification delivery jobs.
type Notifier struct {
	notifications store.NotificationStore
	transport     Transport
	backoffBase   time.Duration
	backoffCap    time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// NewNotifier creates a notification component.
func NewNotifier(
	notifications store.NotificationStore,
	transport Transport,
	config Config,
	log *slog.Logger,
) (*Notifier, error) {
	if notifications == nil {
		return nil, ErrNilNotificationStore
	}
	if transport == nil {
		return nil, ErrNilTransport
	}
	if log == nil {
		return nil, ErrNilLogger
	}

	defaults := DefaultConfig()
	if config.RetryBackoffBase <= 0 {
		config.RetryBackoffBase = defaults.RetryBackoffBase
	}
	if config.RetryBackoffCap <= 0 {
		config.RetryBackoffCap = defaults.RetryBackoffCap
	}

	return &Notifier{
		notifications: notifications,
		transport:     transport,
		backoffBase:   config.RetryBackoffBase,
		backoffCap:    config.RetryBackoffCap,
		logger:        log,
		now:           time.Now,
	}, nil
}

// NewJob creates a delivery sweep job. The job id is the notification id
// whose creation triggered the sweep, so the loop's current-job accessor
// correlates with a record; the sweep itself delivers every eligible
// notification in priority order, not only that one.
func (n *Notifier) NewJob(notificationID uuid.UUID) job.Job {
	return &deliveryJob{notifier: n, notificationID: notificationID}
}

// deliveryJob implements job.Job for one delivery sweep.
type deliveryJob struct {
	notifier       *Notifier
	notificationID uuid.UUID
}

// ID returns the notification id that triggered this sweep.
func (j *deliveryJob) ID() uuid.UUID {
	return j.notificationID
}

// Kind returns the job kind identifier.
func (j *deliveryJob) Kind() job.Kind {
	return job.KindNotification
}

// Execute drains the store of eligible notifications, delivering each in
// priority order. A failed delivery is recorded on its record and the sweep
// moves on; only a store failure aborts the sweep.
func (j *deliveryJob) Execute(ctx context.Context) error {
	n := j.notifier
	log := logger.FromContextOrDefault(ctx, n.logger)

	delivered := 0
	for {
		record, err := n.notifications.NextEligible(ctx, n.now())
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				break
			}
			return fmt.Errorf("failed to pick next notification: %w", err)
		}

		if err := n.deliver(ctx, record, log); err != nil {
			return err
		}
		delivered++
	}

	log.Debug("delivery sweep finished", "attempted", delivered)
	return nil
}

// deliver attempts one notification and records the outcome. The returned
// error is non-nil only when the outcome itself could not be persisted.
func (n *Notifier) deliver(ctx context.Context, record *domain.Notification, log *slog.Logger) error {
	log = log.With("notification_id", record.ID, "priority", record.Priority)

	if err := n.notifications.MarkProcessing(ctx, record.ID); err != nil {
		return fmt.Errorf("failed to mark notification processing: %w", err)
	}

	sendErr := n.transport.Send(ctx, Message{
		Recipients: record.Recipients,
		Subject:    record.Subject,
		Body:       record.Body,
	})
	if sendErr == nil {
		if err := n.notifications.MarkSent(ctx, record.ID, n.now()); err != nil {
			return fmt.Errorf("failed to mark notification sent: %w", err)
		}
		log.Info("notification sent", "recipients", len(record.Recipients))
		return nil
	}

	retryCount := record.RetryCount + 1
	deliveryErr := fmt.Errorf("%w: %v", store.ErrDeliveryFailure, sendErr)

	if retryCount >= record.MaxRetries {
		if err := n.notifications.MarkFailed(ctx, record.ID, retryCount, deliveryErr.Error()); err != nil {
			return fmt.Errorf("failed to mark notification failed: %w", err)
		}
		log.Error("notification failed permanently",
			"error", sendErr,
			"retry_count", retryCount,
			"max_retries", record.MaxRetries)
		return nil
	}

	nextAttempt := n.now().Add(n.backoff(retryCount))
	if err := n.notifications.MarkRetry(ctx, record.ID, retryCount, deliveryErr.Error(), nextAttempt); err != nil {
		return fmt.Errorf("failed to mark notification for retry: %w", err)
	}
	log.Warn("notification delivery failed, scheduled retry",
		"error", sendErr,
		"retry_count", retryCount,
		"next_attempt", nextAttempt)
	return nil
}

// backoff returns the delay before the given attempt: the base doubled per
// prior retry, bounded by the cap.
func (n *Notifier) backoff(retryCount int) time.Duration {
	delay := n.backoffBase
	for i := 1; i < retryCount; i++ {
		delay *= 2
		if delay >= n.backoffCap {
			return n.backoffCap
		}
	}
	if delay > n.backoffCap {
		return n.backoffCap
	}
	return delay
}

// RunRetryMonitor periodically re-triggers a delivery sweep while any
// notification is awaiting its backoff window. It blocks until ctx is
// cancelled; run it in its own goroutine.
func (n *Notifier) RunRetryMonitor(ctx context.Context, interval time.Duration, enqueue func(id uuid.UUID) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	n.logger.Info("retry monitor started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("retry monitor stopped")
			return
		case <-ticker.C:
			record, err := n.notifications.NextEligible(ctx, n.now())
			if err != nil {
				if !errors.Is(err, store.ErrNotFound) {
					n.logger.Error("retry monitor store check failed", "error", err)
				}
				continue
			}

			if err := enqueue(record.ID); err != nil {
				n.logger.Warn("retry monitor could not enqueue sweep",
					"notification_id", record.ID, "error", err)
			}
		}
	}
}
