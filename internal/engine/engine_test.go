package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomhaynes/dragnet/internal/job"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// recordingFactory builds mock jobs and records the order they execute in.
type recordingFactory struct {
	kind    job.Kind
	mutex   sync.Mutex
	ran     []uuid.UUID
	release chan struct{}
}

func newRecordingFactory(kind job.Kind) *recordingFactory {
	return &recordingFactory{kind: kind}
}

func (f *recordingFactory) build(id uuid.UUID) job.Job {
	return &job.MockJob{
		JobID:   id,
		JobKind: f.kind,
		ExecuteFn: func(ctx context.Context) error {
			if f.release != nil {
				<-f.release
			}
			f.mutex.Lock()
			defer f.mutex.Unlock()
			f.ran = append(f.ran, id)
			return nil
		},
	}
}

func (f *recordingFactory) executed() []uuid.UUID {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	out := make([]uuid.UUID, len(f.ran))
	copy(out, f.ran)
	return out
}

type ingestionFactory struct{ *recordingFactory }

func (f ingestionFactory) NewJob(taskID uuid.UUID, sourceRef string) job.Job {
	return f.build(taskID)
}

type searchFactory struct{ *recordingFactory }

func (f searchFactory) NewJob(searchID uuid.UUID) job.Job {
	return f.build(searchID)
}

type notificationFactory struct{ *recordingFactory }

func (f notificationFactory) NewJob(notificationID uuid.UUID) job.Job {
	return f.build(notificationID)
}

type engineFixture struct {
	ingestion     ingestionFactory
	searches      searchFactory
	notifications notificationFactory
	engine        *Engine
}

func newEngineFixture(t *testing.T, config Config) *engineFixture {
	t.Helper()

	f := &engineFixture{
		ingestion:     ingestionFactory{newRecordingFactory(job.KindIngestion)},
		searches:      searchFactory{newRecordingFactory(job.KindSearch)},
		notifications: notificationFactory{newRecordingFactory(job.KindNotification)},
	}

	e, err := New(f.ingestion, f.searches, f.notifications, config, newTestLogger())
	require.NoError(t, err)
	f.engine = e
	return f
}

func waitFor(t *testing.T, condition func() bool, msg string) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		if condition() {
			return
		}
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestEngine_RoutesJobsByKind(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, DefaultConfig())
	f.engine.Start()
	defer f.engine.Stop()

	taskID := uuid.New()
	searchID := uuid.New()
	notificationID := uuid.New()

	require.NoError(t, f.engine.EnqueueIngestion(taskID, "upload.csv"))
	require.NoError(t, f.engine.EnqueueSearch(searchID))
	require.NoError(t, f.engine.EnqueueNotification(notificationID))

	waitFor(t, func() bool {
		return len(f.ingestion.executed()) == 1 &&
			len(f.searches.executed()) == 1 &&
			len(f.notifications.executed()) == 1
	}, "jobs did not execute")

	assert.Equal(t, []uuid.UUID{taskID}, f.ingestion.executed())
	assert.Equal(t, []uuid.UUID{searchID}, f.searches.executed())
	assert.Equal(t, []uuid.UUID{notificationID}, f.notifications.executed())
}

func TestEngine_FIFOWithinKind(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, DefaultConfig())
	f.engine.Start()
	defer f.engine.Stop()

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		require.NoError(t, f.engine.EnqueueSearch(id))
	}

	waitFor(t, func() bool { return len(f.searches.executed()) == 3 },
		"search jobs did not execute")
	assert.Equal(t, ids, f.searches.executed(),
		"jobs of a kind run in submission order")
}

func TestEngine_QueueCapacityRejects(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	f := newEngineFixture(t, Config{QueueCapacity: 1})
	f.searches.release = release

	f.engine.Start()
	defer func() {
		close(release)
		f.engine.Stop()
	}()

	// First job occupies the loop, second fills the buffer.
	first := uuid.New()
	require.NoError(t, f.engine.EnqueueSearch(first))
	waitFor(t, func() bool {
		_, busy := f.engine.CurrentSearchJob()
		return busy
	}, "first job never started")

	require.NoError(t, f.engine.EnqueueSearch(uuid.New()))

	err := f.engine.EnqueueSearch(uuid.New())
	assert.ErrorIs(t, err, job.ErrQueueFull)
}

func TestEngine_CurrentJobPerKind(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	f := newEngineFixture(t, DefaultConfig())
	f.ingestion.release = release

	f.engine.Start()
	defer func() {
		f.engine.Stop()
	}()

	taskID := uuid.New()
	require.NoError(t, f.engine.EnqueueIngestion(taskID, "upload.csv"))

	waitFor(t, func() bool {
		id, busy := f.engine.CurrentIngestionJob()
		return busy && id == taskID
	}, "in-flight ingestion not reported")

	_, searchBusy := f.engine.CurrentSearchJob()
	assert.False(t, searchBusy, "idle loops report no current job")

	close(release)
	waitFor(t, func() bool {
		_, busy := f.engine.CurrentIngestionJob()
		return !busy
	}, "current job not cleared after completion")
}

func TestEngine_StopRejectsNewWork(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, DefaultConfig())
	f.engine.Start()
	f.engine.Stop()

	err := f.engine.EnqueueIngestion(uuid.New(), "upload.csv")
	assert.ErrorIs(t, err, job.ErrQueueClosed)
}
