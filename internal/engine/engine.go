// Package engine wires the job queues and worker loops together and exposes
// the enqueue surface the HTTP layer and recovery loader submit work through.
package engine

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tomhaynes/dragnet/internal/job"
)

// Common construction errors
var (
	ErrNilIngestionJobs    = errors.New("ingestion job factory cannot be nil")
	ErrNilSearchJobs       = errors.New("search job factory cannot be nil")
	ErrNilNotificationJobs = errors.New("notification job factory cannot be nil")
	ErrNilLogger           = errors.New("logger cannot be nil")
)

// IngestionJobs creates ingestion jobs.
type IngestionJobs interface {
	NewJob(taskID uuid.UUID, sourceRef string) job.Job
}

// SearchJobs creates search jobs.
type SearchJobs interface {
	NewJob(searchID uuid.UUID) job.Job
}

// NotificationJobs creates notification delivery jobs.
type NotificationJobs interface {
	NewJob(notificationID uuid.UUID) job.Job
}

// Config holds the tunable queue behavior of the engine.
type Config struct {
	// QueueCapacity bounds each kind's queue. Submissions beyond it fail
	// fast with job.ErrQueueFull.
	QueueCapacity int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{QueueCapacity: 100}
}

// Engine owns one queue and one worker loop per job kind. Within a kind,
// jobs run strictly one at a time in submission order; across kinds they
// run concurrently.
type Engine struct {
	ingestion     IngestionJobs
	searches      SearchJobs
	notifications NotificationJobs

	ingestQueue *job.Queue
	searchQueue *job.Queue
	notifyQueue *job.Queue

	ingestLoop *job.Loop
	searchLoop *job.Loop
	notifyLoop *job.Loop

	logger *slog.Logger
}

// New creates an engine with one queue and loop per job kind.
func New(
	ingestion IngestionJobs,
	searches SearchJobs,
	notifications NotificationJobs,
	config Config,
	log *slog.Logger,
) (*Engine, error) {
	if ingestion == nil {
		return nil, ErrNilIngestionJobs
	}
	if searches == nil {
		return nil, ErrNilSearchJobs
	}
	if notifications == nil {
		return nil, ErrNilNotificationJobs
	}
	if log == nil {
		return nil, ErrNilLogger
	}

	if config.QueueCapacity <= 0 {
		config.QueueCapacity = DefaultConfig().QueueCapacity
	}

	e := &Engine{
		ingestion:     ingestion,
		searches:      searches,
		notifications: notifications,
		logger:        log,
	}

	e.ingestQueue = job.NewQueue(job.KindIngestion, config.QueueCapacity, log)
	e.searchQueue = job.NewQueue(job.KindSearch, config.QueueCapacity, log)
	e.notifyQueue = job.NewQueue(job.KindNotification, config.QueueCapacity, log)

	e.ingestLoop = job.NewLoop(e.ingestQueue, log)
	e.searchLoop = job.NewLoop(e.searchQueue, log)
	e.notifyLoop = job.NewLoop(e.notifyQueue, log)

	return e, nil
}

// Start launches the worker loops.
func (e *Engine) Start() {
	e.ingestLoop.Start()
	e.searchLoop.Start()
	e.notifyLoop.Start()
	e.logger.Info("job engine started")
}

// Stop closes the queues against further submission, then stops the loops.
// In-flight jobs finish; jobs still buffered are dropped and replayed from
// their records by the recovery loader on the next start.
func (e *Engine) Stop() {
	e.ingestQueue.Close()
	e.searchQueue.Close()
	e.notifyQueue.Close()

	e.ingestLoop.Stop()
	e.searchLoop.Stop()
	e.notifyLoop.Stop()

	e.logger.Info("job engine stopped")
}

// EnqueueIngestion submits an ingestion job for the task.
func (e *Engine) EnqueueIngestion(taskID uuid.UUID, sourceRef string) error {
	return e.ingestQueue.Enqueue(e.ingestion.NewJob(taskID, sourceRef))
}

// EnqueueSearch submits a search job.
func (e *Engine) EnqueueSearch(searchID uuid.UUID) error {
	return e.searchQueue.Enqueue(e.searches.NewJob(searchID))
}

// EnqueueNotification submits a notification delivery sweep.
func (e *Engine) EnqueueNotification(notificationID uuid.UUID) error {
	return e.notifyQueue.Enqueue(e.notifications.NewJob(notificationID))
}

// CurrentIngestionJob returns the task id being ingested, or false when the
// ingestion loop is idle.
func (e *Engine) CurrentIngestionJob() (uuid.UUID, bool) {
	return e.ingestLoop.CurrentJob()
}

// CurrentSearchJob returns the search id in flight, or false when the
// search loop is idle.
func (e *Engine) CurrentSearchJob() (uuid.UUID, bool) {
	return e.searchLoop.CurrentJob()
}

// CurrentNotificationJob returns the notification id whose sweep is in
// flight, or false when the notification loop is idle.
func (e *Engine) CurrentNotificationJob() (uuid.UUID, bool) {
	return e.notifyLoop.CurrentJob()
}
