package match

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrPoolStopped is returned when work is submitted after Stop.
var ErrPoolStopped = errors.New("scoring pool is stopped")

// Pool is a fixed-size worker pool for CPU-bound scoring work. Job
// handlers dispatch scoring closures here and suspend until the pool
// returns, so heavy computation never stalls the worker loops.
type Pool struct {
	// work carries submitted closures to the worker goroutines
	work chan func()

	// quit signals workers and pending submissions to stop
	quit chan struct{}

	// workerCount is the number of concurrent workers to start
	workerCount int

	// wg tracks active worker goroutines for clean shutdown
	wg sync.WaitGroup

	// stopOnce guards channel close on shutdown
	stopOnce sync.Once

	// logger for structured logging
	logger *slog.Logger
}

// PoolConfig holds configuration options for the scoring pool.
type PoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start.
	// If zero or negative, defaults to 4.
	WorkerCount int
}

// DefaultPoolConfig returns a PoolConfig with reasonable defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		WorkerCount: 4,
	}
}

// NewPool creates a scoring pool with the specified configuration.
func NewPool(config PoolConfig, logger *slog.Logger) *Pool {
	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 4
		logger.Warn("invalid scoring pool size specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", workerCount)
	}

	return &Pool{
		work:        make(chan func()),
		quit:        make(chan struct{}),
		workerCount: workerCount,
		logger:      logger,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop signals the workers to exit and waits for in-flight work to drain.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
	})
	p.wg.Wait()
}

// Do submits fn to the pool and blocks until it has run. Returns early
// with an error if the pool is stopped or the context is cancelled while
// the submission is still waiting for a free worker.
func (p *Pool) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}

	select {
	case p.work <- wrapped:
	case <-p.quit:
		return ErrPoolStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	<-done
	return nil
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("starting scoring worker", "worker_id", id)

	for {
		select {
		case <-p.quit:
			p.logger.Debug("stopping scoring worker", "worker_id", id)
			return
		case fn := <-p.work:
			fn()
		}
	}
}
