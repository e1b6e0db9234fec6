package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomhaynes/dragnet/internal/domain"
	"github.com/tomhaynes/dragnet/internal/job"
	"github.com/tomhaynes/dragnet/internal/store"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type ingestFixture struct {
	sources  *store.MockSourceStore
	dataset  *store.MockDatasetStore
	tasks    *store.MockTaskStore
	ingestor *Ingestor
}

func newIngestFixture(t *testing.T, config Config) *ingestFixture {
	t.Helper()

	sources := store.NewMockSourceStore()
	dataset := store.NewMockDatasetStore()
	tasks := store.NewMockTaskStore()

	ingestor, err := NewIngestor(sources, dataset, tasks, config, newTestLogger())
	require.NoError(t, err)

	return &ingestFixture{sources: sources, dataset: dataset, tasks: tasks, ingestor: ingestor}
}

func (f *ingestFixture) newTask(t *testing.T, sourceRef string) *domain.ScreeningTask {
	t.Helper()

	task, err := domain.NewScreeningTask(sourceRef)
	require.NoError(t, err)
	require.NoError(t, f.tasks.Save(context.Background(), task))
	return task
}

func TestIngestionJob_Success(t *testing.T) {
	t.Parallel()

	f := newIngestFixture(t, DefaultConfig())
	f.sources.Put("upload.csv", []byte("name,country\nJohn Smith,US\nMaria Garcia,ES\n"))
	task := f.newTask(t, "upload.csv")

	j := f.ingestor.NewJob(task.ID, task.SourceRef)
	assert.Equal(t, task.ID, j.ID(), "job id is the task id")
	assert.Equal(t, job.KindIngestion, j.Kind())

	err := j.Execute(context.Background())
	require.NoError(t, err)

	stored, err := f.tasks.GetByID(context.Background(), task.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStatusCompleted, stored.Status)
	assert.True(t, stored.IsDone)
	assert.Equal(t, []string{"name", "country"}, stored.ColumnNames)
	assert.Equal(t, 2, stored.TotalRows)
	assert.Empty(t, stored.ErrorMessage)
	assert.GreaterOrEqual(t, stored.ProcessingTime, 0.0)

	assert.Equal(t, 2, f.dataset.RowCount(task.ID))
	assert.False(t, f.sources.Has("upload.csv"), "source artifact is deleted after ingestion")

	columns, ok := f.ingestor.columns.Get(task.ID)
	require.True(t, ok, "columns are cached on success")
	assert.Equal(t, []string{"name", "country"}, columns)
}

func TestIngestionJob_ZeroRowCSV(t *testing.T) {
	t.Parallel()

	f := newIngestFixture(t, DefaultConfig())
	f.sources.Put("empty.csv", []byte("name,country\n"))
	task := f.newTask(t, "empty.csv")

	err := f.ingestor.NewJob(task.ID, task.SourceRef).Execute(context.Background())
	require.NoError(t, err)

	stored, err := f.tasks.GetByID(context.Background(), task.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStatusCompleted, stored.Status)
	assert.True(t, stored.IsDone)
	assert.Equal(t, 0, stored.TotalRows)
	assert.Empty(t, stored.ErrorMessage)
}

func TestIngestionJob_MissingSource(t *testing.T) {
	t.Parallel()

	f := newIngestFixture(t, DefaultConfig())
	task := f.newTask(t, "missing.csv")

	err := f.ingestor.NewJob(task.ID, task.SourceRef).Execute(context.Background())
	assert.ErrorIs(t, err, store.ErrSourceNotFound)

	stored, getErr := f.tasks.GetByID(context.Background(), task.ID)
	require.NoError(t, getErr)

	assert.Equal(t, domain.TaskStatusCompleted, stored.Status)
	assert.True(t, stored.IsDone)
	assert.Contains(t, stored.ErrorMessage, "not found")
	assert.Equal(t, 0, stored.TotalRows)
	assert.Empty(t, stored.ColumnNames)
}

func TestIngestionJob_DelimiterFallback(t *testing.T) {
	t.Parallel()

	f := newIngestFixture(t, DefaultConfig())
	// Inconsistent per-line counts defeat the sniffer; the fallback still
	// finds the semicolon.
	f.sources.Put("odd.csv", []byte("name;notes\nJohn Smith;;knows a, b\n"))
	task := f.newTask(t, "odd.csv")

	err := f.ingestor.NewJob(task.ID, task.SourceRef).Execute(context.Background())
	require.NoError(t, err)

	stored, err := f.tasks.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "notes"}, stored.ColumnNames)
	assert.Equal(t, 1, stored.TotalRows)
}

func TestIngestionJob_EmptySource(t *testing.T) {
	t.Parallel()

	f := newIngestFixture(t, DefaultConfig())
	f.sources.Put("blank.csv", []byte(""))
	task := f.newTask(t, "blank.csv")

	err := f.ingestor.NewJob(task.ID, task.SourceRef).Execute(context.Background())
	assert.ErrorIs(t, err, store.ErrParseFailure)

	stored, getErr := f.tasks.GetByID(context.Background(), task.ID)
	require.NoError(t, getErr)
	assert.True(t, stored.IsDone)
	assert.NotEmpty(t, stored.ErrorMessage)
}

func TestIngestionJob_Batching(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	config.BatchSize = 2

	f := newIngestFixture(t, config)

	var batches []int
	f.dataset.InsertBatchFn = func(ctx context.Context, taskID uuid.UUID, rows []map[string]string) error {
		batches = append(batches, len(rows))
		return nil
	}

	f.sources.Put("batch.csv", []byte("name\na\nb\nc\nd\ne\n"))
	task := f.newTask(t, "batch.csv")

	err := f.ingestor.NewJob(task.ID, task.SourceRef).Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 1}, batches, "rows are inserted in fixed-size batches")
}

func TestIngestionJob_StorageFailure(t *testing.T) {
	t.Parallel()

	f := newIngestFixture(t, DefaultConfig())
	f.dataset.InsertBatchFn = func(ctx context.Context, taskID uuid.UUID, rows []map[string]string) error {
		return errors.New("disk full")
	}
	f.sources.Put("rows.csv", []byte("name\nJohn Smith\n"))
	task := f.newTask(t, "rows.csv")

	err := f.ingestor.NewJob(task.ID, task.SourceRef).Execute(context.Background())
	assert.ErrorIs(t, err, store.ErrStorageFailure)

	stored, getErr := f.tasks.GetByID(context.Background(), task.ID)
	require.NoError(t, getErr)
	assert.True(t, stored.IsDone)
	assert.Contains(t, stored.ErrorMessage, "disk full")
	assert.Equal(t, 0, stored.TotalRows)
}

func TestIngestionJob_SourceDeletedEvenOnFailure(t *testing.T) {
	t.Parallel()

	f := newIngestFixture(t, DefaultConfig())
	f.dataset.InsertBatchFn = func(ctx context.Context, taskID uuid.UUID, rows []map[string]string) error {
		return errors.New("boom")
	}
	f.sources.Put("doomed.csv", []byte("name\nJohn\n"))
	task := f.newTask(t, "doomed.csv")

	_ = f.ingestor.NewJob(task.ID, task.SourceRef).Execute(context.Background())

	assert.False(t, f.sources.Has("doomed.csv"),
		"source artifact is deleted regardless of outcome")
}

func TestIngestionJob_DeleteFailureOnlyLogged(t *testing.T) {
	t.Parallel()

	f := newIngestFixture(t, DefaultConfig())
	f.sources.DeleteFn = func(ctx context.Context, ref string) error {
		return errors.New("delete denied")
	}
	f.sources.Put("sticky.csv", []byte("name\nJohn Smith\n"))
	task := f.newTask(t, "sticky.csv")

	err := f.ingestor.NewJob(task.ID, task.SourceRef).Execute(context.Background())
	assert.NoError(t, err, "a deletion failure is never escalated")

	stored, getErr := f.tasks.GetByID(context.Background(), task.ID)
	require.NoError(t, getErr)
	assert.Empty(t, stored.ErrorMessage)
}

func TestIngestionJob_ReplayClearsPreviousRows(t *testing.T) {
	t.Parallel()

	f := newIngestFixture(t, DefaultConfig())
	task := f.newTask(t, "replay.csv")

	// Simulate a half-finished earlier run.
	require.NoError(t, f.dataset.InsertBatch(context.Background(), task.ID,
		[]map[string]string{{"name": "stale"}}))

	f.sources.Put("replay.csv", []byte("name\nJohn Smith\nMaria Garcia\n"))

	err := f.ingestor.NewJob(task.ID, task.SourceRef).Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, f.dataset.RowCount(task.ID),
		"replay must not duplicate rows written before a crash")
}

func TestIngestor_ColumnsFallsBackToTaskRecord(t *testing.T) {
	t.Parallel()

	f := newIngestFixture(t, DefaultConfig())
	task := f.newTask(t, "cols.csv")
	require.NoError(t, f.tasks.Complete(context.Background(), task.ID,
		[]string{"name", "country"}, 5, 0.1, ""))

	columns, err := f.ingestor.Columns(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "country"}, columns)

	// A second lookup is served from the cache.
	_, ok := f.ingestor.columns.Get(task.ID)
	assert.True(t, ok)
}
