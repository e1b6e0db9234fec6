package job

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Common errors returned by the Queue
var (
	ErrQueueClosed = errors.New("job queue is closed")
	ErrQueueFull   = errors.New("job queue is full")
)

// Queue is a bounded FIFO handoff between producers and a single consumer
// loop. Enqueue never blocks the producer: it fails fast with ErrQueueFull
// when the buffer is at capacity.
type Queue struct {
	kind   Kind
	jobs   chan Envelope
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewQueue creates a queue for the given kind with the specified capacity.
func NewQueue(kind Kind, capacity int, logger *slog.Logger) *Queue {
	if capacity <= 0 {
		capacity = 1
	}

	return &Queue{
		kind:   kind,
		jobs:   make(chan Envelope, capacity),
		logger: logger.With("queue_kind", kind),
	}
}

// Kind returns the job kind this queue carries.
func (q *Queue) Kind() Kind {
	return q.kind
}

// Enqueue adds a job to the tail of the queue.
// Returns an error if the queue is full or closed.
func (q *Queue) Enqueue(j Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- Envelope{Job: j, EnqueuedAt: time.Now().UTC()}:
		q.logger.Debug("job enqueued",
			"job_id", j.ID(),
			"queue_len", len(q.jobs),
			"queue_cap", cap(q.jobs))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.jobs))
	}
}

// Close closes the queue, preventing further submission. The consumer
// drains whatever is already buffered.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.jobs)
		q.logger.Info("job queue closed")
	}
}

// Chan returns a read-only channel for consuming enqueued jobs. Receiving
// suspends the consumer until a job is available.
func (q *Queue) Chan() <-chan Envelope {
	return q.jobs
}
