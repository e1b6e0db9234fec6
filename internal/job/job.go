// Package job implements the asynchronous background-processing engine:
// a bounded FIFO queue per job kind and a worker loop that consumes it
// one job at a time. Producers enqueue and return immediately; the only
// feedback channel is the status each job handler persists.
package job

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind identifies which worker loop a job belongs to. Jobs of the same
// kind never run concurrently.
type Kind string

// The three job kinds of the screening engine.
const (
	KindIngestion    Kind = "ingestion"
	KindSearch       Kind = "search"
	KindNotification Kind = "notification"
)

// Job is a unit of background work. Implementations persist their own
// terminal status; an error returned from Execute is for logging only and
// never reaches the producer.
type Job interface {
	// ID returns the job's identifier. Jobs acting on a persisted record
	// use the record's ID so status polling can correlate the two.
	ID() uuid.UUID

	// Kind returns the job kind identifier.
	Kind() Kind

	// Execute runs the job logic.
	Execute(ctx context.Context) error
}

// Envelope wraps a job while it sits in a queue.
type Envelope struct {
	Job        Job
	EnqueuedAt time.Time
}
