package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/tomhaynes/dragnet/internal/platform/logger"
)

// Loop drives a Queue with exactly one consumer goroutine. Within a kind,
// jobs execute strictly one at a time; the loop tracks the in-flight job
// id for external status polling and isolates handler failures so a single
// bad job never halts consumption.
type Loop struct {
	queue  *Queue
	logger *slog.Logger

	mu      sync.Mutex
	current *uuid.UUID

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	errHandler func(j Job, err error)
}

// NewLoop creates a worker loop for the given queue.
func NewLoop(queue *Queue, log *slog.Logger) *Loop {
	ctx, cancel := context.WithCancel(context.Background())

	l := &Loop{
		queue:      queue,
		logger:     log.With("queue_kind", queue.Kind()),
		ctx:        ctx,
		cancelFunc: cancel,
	}
	l.errHandler = func(j Job, err error) {
		l.logger.Error("job execution failed",
			"job_id", j.ID(),
			"job_kind", j.Kind(),
			"error", err)
	}

	return l
}

// SetErrorHandler allows setting a custom handler for job execution failures.
func (l *Loop) SetErrorHandler(handler func(j Job, err error)) {
	l.errHandler = handler
}

// Start launches the single consumer goroutine.
func (l *Loop) Start() {
	l.wg.Add(1)
	go l.run()
}

// Stop cancels the loop and waits for it to exit. Cancellation is
// cooperative: the in-flight job completes before the loop stops.
func (l *Loop) Stop() {
	l.cancelFunc()
	l.wg.Wait()
}

// CurrentJob returns the id of the in-flight job, or false when the loop
// is idle.
func (l *Loop) CurrentJob() (uuid.UUID, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current == nil {
		return uuid.Nil, false
	}
	return *l.current, true
}

func (l *Loop) run() {
	defer l.wg.Done()

	l.logger.Debug("starting worker loop")

	for {
		select {
		case <-l.ctx.Done():
			l.logger.Debug("stopping worker loop")
			return

		case env, ok := <-l.queue.Chan():
			if !ok {
				l.logger.Debug("queue closed, stopping worker loop")
				return
			}

			l.process(env)
		}
	}
}

// process executes a single job with panic isolation. Handlers persist
// their own terminal status; errors surfacing here are logged and handed
// to the error handler only.
func (l *Loop) process(env Envelope) {
	j := env.Job
	log := l.logger.With(
		"job_id", j.ID(),
		"job_kind", j.Kind(),
	)

	l.setCurrent(j.ID())
	defer l.clearCurrent()

	log.Info("processing job", "queued_for", env.EnqueuedAt)

	err := l.execute(j)
	if err != nil {
		l.errHandler(j, err)
		return
	}

	log.Info("job completed")
}

// execute runs the job and converts a handler panic into an error so the
// loop keeps serving subsequent jobs.
func (l *Loop) execute(j Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panicked: %v", r)
		}
	}()

	// Deliberately not derived from the loop context: shutdown is
	// non-preemptive and must let the in-flight job finish.
	ctx := logger.WithLogger(context.Background(), l.logger)
	return j.Execute(ctx)
}

func (l *Loop) setCurrent(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = &id
}

func (l *Loop) clearCurrent() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = nil
}
