// Package ingest loads uploaded CSV sources into the dataset store. It
// owns delimiter detection, batched row insertion, the terminal status
// write for each screening task, and the bounded column-metadata cache.
package ingest

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomhaynes/dragnet/internal/job"
	"github.com/tomhaynes/dragnet/internal/platform/logger"
	"github.com/tomhaynes/dragnet/internal/store"
)

// sniffSampleSize is how many bytes of the source the delimiter sniffer sees.
const sniffSampleSize = 1024

// Common construction errors
var (
	ErrNilSourceStore  = errors.New("source store cannot be nil")
	ErrNilDatasetStore = errors.New("dataset store cannot be nil")
	ErrNilTaskStore    = errors.New("task store cannot be nil")
	ErrNilLogger       = errors.New("logger cannot be nil")
)

// Config holds configuration for the ingestion component.
type Config struct {
	// BatchSize is how many rows are buffered per dataset insert.
	// If zero or negative, defaults to 1000.
	BatchSize int

	// ColumnCacheSize bounds the column-metadata cache.
	// If zero or negative, defaults to 128.
	ColumnCacheSize int
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:       1000,
		ColumnCacheSize: 128,
	}
}

// Ingestor creates and executes ingestion jobs.
type Ingestor struct {
	sources   store.SourceStore
	dataset   store.DatasetStore
	tasks     store.TaskStore
	columns   *ColumnCache
	batchSize int
	logger    *slog.Logger
}

// NewIngestor creates an ingestion component.
func NewIngestor(
	sources store.SourceStore,
	dataset store.DatasetStore,
	tasks store.TaskStore,
	config Config,
	log *slog.Logger,
) (*Ingestor, error) {
	if sources == nil {
		return nil, ErrNilSourceStore
	}
	if dataset == nil {
		return nil, ErrNilDatasetStore
	}
	if tasks == nil {
		return nil, ErrNilTaskStore
	}
	if log == nil {
		return nil, ErrNilLogger
	}

	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}

	columns, err := NewColumnCache(config.ColumnCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create column cache: %w", err)
	}

	return &Ingestor{
		sources:   sources,
		dataset:   dataset,
		tasks:     tasks,
		columns:   columns,
		batchSize: batchSize,
		logger:    log,
	}, nil
}

// NewJob creates an ingestion job for the task. The job id is the task id
// so the loop's current-job accessor correlates with the task record.
func (i *Ingestor) NewJob(taskID uuid.UUID, sourceRef string) job.Job {
	return &ingestionJob{ingestor: i, taskID: taskID, sourceRef: sourceRef}
}

// Columns returns the task's column names, serving from the cache when
// possible and falling back to the task record.
func (i *Ingestor) Columns(ctx context.Context, taskID uuid.UUID) ([]string, error) {
	if columns, ok := i.columns.Get(taskID); ok {
		return columns, nil
	}

	task, err := i.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if len(task.ColumnNames) > 0 {
		i.columns.Put(taskID, task.ColumnNames)
	}
	return task.ColumnNames, nil
}

// Invalidate drops the task's cached column names. Called when a task is
// deleted or its source is re-ingested.
func (i *Ingestor) Invalidate(taskID uuid.UUID) {
	i.columns.Invalidate(taskID)
}

// ingestionJob implements job.Job for one CSV load.
type ingestionJob struct {
	ingestor  *Ingestor
	taskID    uuid.UUID
	sourceRef string
}

// ID returns the task id this job acts on.
func (j *ingestionJob) ID() uuid.UUID {
	return j.taskID
}

// Kind returns the job kind identifier.
func (j *ingestionJob) Kind() job.Kind {
	return job.KindIngestion
}

// Execute loads the source into the dataset store and writes the task's
// terminal status. Every failure path still completes the task, recording
// the cause and elapsed time; the source artifact is deleted only after
// the terminal status is durably recorded, and only best-effort.
func (j *ingestionJob) Execute(ctx context.Context) error {
	i := j.ingestor
	log := logger.FromContextOrDefault(ctx, i.logger).With(
		"task_id", j.taskID,
		"source_ref", j.sourceRef,
	)

	start := time.Now()
	columns, totalRows, runErr := i.load(ctx, j.taskID, j.sourceRef, log)
	elapsed := time.Since(start).Seconds()

	if runErr != nil {
		log.Error("ingestion failed", "error", runErr, "processing_time", elapsed)
		if err := i.tasks.Complete(ctx, j.taskID, []string{}, 0, elapsed, runErr.Error()); err != nil {
			log.Error("failed to record ingestion failure", "error", err)
			return fmt.Errorf("failed to record ingestion failure: %w", err)
		}
	} else {
		log.Info("ingestion completed",
			"total_rows", totalRows,
			"column_count", len(columns),
			"processing_time", elapsed)
		if err := i.tasks.Complete(ctx, j.taskID, columns, totalRows, elapsed, ""); err != nil {
			log.Error("failed to record ingestion result", "error", err)
			return fmt.Errorf("failed to record ingestion result: %w", err)
		}
		i.columns.Put(j.taskID, columns)
	}

	if err := i.sources.Delete(ctx, j.sourceRef); err != nil {
		log.Warn("failed to delete source artifact", "error", err)
	}

	return runErr
}

// load streams the source into the dataset store and returns the column
// names and row count.
func (i *Ingestor) load(
	ctx context.Context,
	taskID uuid.UUID,
	sourceRef string,
	log *slog.Logger,
) ([]string, int, error) {
	source, err := i.sources.Fetch(ctx, sourceRef)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if err := source.Close(); err != nil {
			log.Warn("failed to close source reader", "error", err)
		}
	}()

	buffered := bufio.NewReaderSize(source, sniffSampleSize)
	sample, err := buffered.Peek(sniffSampleSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, 0, fmt.Errorf("%w: %v", store.ErrParseFailure, err)
	}
	if len(sample) == 0 {
		return nil, 0, fmt.Errorf("%w: source is empty", store.ErrParseFailure)
	}

	delimiter, err := DetectDelimiter(sample)
	if err != nil {
		log.Debug("delimiter sniffing failed, trying fixed candidates", "error", err)
		delimiter, err = FallbackDelimiter(sample)
		if err != nil {
			return nil, 0, err
		}
	}
	log.Debug("detected delimiter", "delimiter", string(delimiter))

	// A replayed job may have written rows before a crash; start clean so
	// replay never duplicates them.
	if err := i.dataset.DeleteRows(ctx, taskID); err != nil {
		return nil, 0, fmt.Errorf("%w: failed to clear previous rows: %v", store.ErrStorageFailure, err)
	}

	reader := csv.NewReader(buffered)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to read header: %v", store.ErrParseFailure, err)
	}
	columns := make([]string, len(header))
	for idx, name := range header {
		columns[idx] = strings.TrimSpace(name)
	}

	batch := make([]map[string]string, 0, i.batchSize)
	totalRows := 0

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("%w: row %d: %v", store.ErrParseFailure, totalRows+1, err)
		}

		values := make(map[string]string, len(columns))
		for idx, column := range columns {
			if idx < len(record) {
				values[column] = record[idx]
			}
		}

		batch = append(batch, values)
		totalRows++

		if len(batch) >= i.batchSize {
			if err := i.dataset.InsertBatch(ctx, taskID, batch); err != nil {
				return nil, 0, fmt.Errorf("%w: %v", store.ErrStorageFailure, err)
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := i.dataset.InsertBatch(ctx, taskID, batch); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", store.ErrStorageFailure, err)
		}
	}

	return columns, totalRows, nil
}
