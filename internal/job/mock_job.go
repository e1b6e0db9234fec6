package job

import (
	"context"

	"github.com/google/uuid"
)

// MockJob implements the Job interface for testing.
type MockJob struct {
	JobID     uuid.UUID
	JobKind   Kind
	ExecuteFn func(ctx context.Context) error
}

// NewMockJob creates a MockJob of the given kind with a fresh id and a
// no-op execute function.
func NewMockJob(kind Kind) *MockJob {
	return &MockJob{
		JobID:   uuid.New(),
		JobKind: kind,
		ExecuteFn: func(ctx context.Context) error {
			return nil
		},
	}
}

// ID returns the job's identifier.
func (j *MockJob) ID() uuid.UUID {
	return j.JobID
}

// Kind returns the job kind identifier.
func (j *MockJob) Kind() Kind {
	return j.JobKind
}

// Execute runs the configured execute function.
func (j *MockJob) Execute(ctx context.Context) error {
	return j.ExecuteFn(ctx)
}
