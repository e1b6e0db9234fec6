// Package search executes screening searches: it loads a task's ingested
// rows, dispatches fuzzy scoring to the bounded CPU pool, and persists the
// outcome on the search record.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tomhaynes/dragnet/internal/domain"
	"github.com/tomhaynes/dragnet/internal/job"
	"github.com/tomhaynes/dragnet/internal/match"
	"github.com/tomhaynes/dragnet/internal/platform/logger"
	"github.com/tomhaynes/dragnet/internal/store"
)

// Common construction errors
var (
	ErrNilDatasetStore = errors.New("dataset store cannot be nil")
	ErrNilSearchStore  = errors.New("search store cannot be nil")
	ErrNilPool         = errors.New("scoring pool cannot be nil")
	ErrNilLogger       = errors.New("logger cannot be nil")
)

// Searcher creates and executes search jobs.
type Searcher struct {
	dataset  store.DatasetStore
	searches store.SearchStore
	pool     *match.Pool
	logger   *slog.Logger
}

// NewSearcher creates a search component.
func NewSearcher(
	dataset store.DatasetStore,
	searches store.SearchStore,
	pool *match.Pool,
	log *slog.Logger,
) (*Searcher, error) {
	if dataset == nil {
		return nil, ErrNilDatasetStore
	}
	if searches == nil {
		return nil, ErrNilSearchStore
	}
	if pool == nil {
		return nil, ErrNilPool
	}
	if log == nil {
		return nil, ErrNilLogger
	}

	return &Searcher{
		dataset:  dataset,
		searches: searches,
		pool:     pool,
		logger:   log,
	}, nil
}

// NewJob creates a search job. The job id is the search id so the loop's
// current-job accessor correlates with the search record.
func (s *Searcher) NewJob(searchID uuid.UUID) job.Job {
	return &searchJob{searcher: s, searchID: searchID}
}

// searchJob implements job.Job for one screening run.
type searchJob struct {
	searcher *Searcher
	searchID uuid.UUID
}

// ID returns the search id this job acts on.
func (j *searchJob) ID() uuid.UUID {
	return j.searchID
}

// Kind returns the job kind identifier.
func (j *searchJob) Kind() job.Kind {
	return job.KindSearch
}

// Execute runs the search and persists its terminal status. Failures at
// any step are captured on the record together with the elapsed time up
// to the failure; a search is never retried automatically.
func (j *searchJob) Execute(ctx context.Context) error {
	s := j.searcher
	log := logger.FromContextOrDefault(ctx, s.logger).With("search_id", j.searchID)

	start := time.Now()

	runErr := s.run(ctx, j.searchID, start, log)
	if runErr != nil {
		log.Error("search failed", "error", runErr)

		elapsed := time.Since(start).Milliseconds()
		if err := s.searches.Fail(ctx, j.searchID, runErr.Error(), elapsed); err != nil {
			log.Error("failed to record search failure", "error", err)
			return fmt.Errorf("failed to record search failure: %w", err)
		}
	}

	return runErr
}

func (s *Searcher) run(ctx context.Context, searchID uuid.UUID, start time.Time, log *slog.Logger) error {
	record, err := s.searches.GetByID(ctx, searchID)
	if err != nil {
		return fmt.Errorf("failed to load search record: %w", err)
	}

	if err := s.searches.MarkProcessing(ctx, searchID); err != nil {
		return fmt.Errorf("failed to mark search processing: %w", err)
	}

	// The row set is loaded once and shared read-only by all scoring work.
	// All columns are loaded so a match can carry its complete row; scoring
	// itself touches only the search's columns.
	rows, err := s.dataset.QueryRows(ctx, record.TaskID, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrStorageFailure, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: task %s has no ingested rows", store.ErrStorageFailure, record.TaskID)
	}

	log.Info("executing search",
		"task_id", record.TaskID,
		"kind", record.Kind,
		"query_count", len(record.QueryNames),
		"row_count", len(rows),
		"threshold", record.Threshold)

	var matched []domain.MatchedRecord
	var summary *domain.SearchSummary

	switch record.Kind {
	case domain.SearchKindBulk:
		matched, summary, err = s.runBulk(ctx, record, rows)
	default:
		matched, err = s.runSingle(ctx, record, rows)
	}
	if err != nil {
		return err
	}

	elapsed := time.Since(start).Milliseconds()
	if err := s.searches.Complete(ctx, searchID, matched, summary, len(rows), elapsed); err != nil {
		return fmt.Errorf("failed to record search result: %w", err)
	}

	log.Info("search completed",
		"matches", len(matched),
		"execution_time_ms", elapsed)
	return nil
}

// runSingle scores the one query inside the CPU pool.
func (s *Searcher) runSingle(
	ctx context.Context,
	record *domain.Search,
	rows []domain.DatasetRow,
) ([]domain.MatchedRecord, error) {
	var matched []domain.MatchedRecord

	err := s.pool.Do(ctx, func() {
		matched = match.SearchSingle(record.QueryNames[0], record.Columns, rows, record.Threshold)
	})
	if err != nil {
		return nil, fmt.Errorf("scoring dispatch failed: %w", err)
	}

	return matched, nil
}

// runBulk scores each query independently, fanning out across the pool so
// large watchlists use every scoring worker.
func (s *Searcher) runBulk(
	ctx context.Context,
	record *domain.Search,
	rows []domain.DatasetRow,
) ([]domain.MatchedRecord, *domain.SearchSummary, error) {
	results := make([][]domain.MatchedRecord, len(record.QueryNames))

	g, gctx := errgroup.WithContext(ctx)
	for idx, query := range record.QueryNames {
		g.Go(func() error {
			return s.pool.Do(gctx, func() {
				results[idx] = match.SearchSingle(query, record.Columns, rows, record.Threshold)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("scoring dispatch failed: %w", err)
	}

	matched := make([]domain.MatchedRecord, len(record.QueryNames))
	summary := &domain.SearchSummary{TotalSearched: len(record.QueryNames)}

	for idx, query := range record.QueryNames {
		if len(results[idx]) == 0 {
			matched[idx] = domain.MatchedRecord{QueryName: query, Found: false, Confidence: 0}
			continue
		}

		best := results[idx][0]
		matched[idx] = best

		summary.TotalFound++
		if best.Confidence >= record.Threshold {
			summary.TotalAboveThreshold++
		}
		if best.Confidence > summary.MaxConfidence {
			summary.MaxConfidence = best.Confidence
		}
	}

	return matched, summary, nil
}
