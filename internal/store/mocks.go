package store

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomhaynes/dragnet/internal/domain"
)

// In-memory store implementations for testing. Each behaves as a working
// store by default; individual operations can be overridden through the
// exported Fn fields to inject failures.

// MockSourceStore implements SourceStore over an in-memory byte map.
type MockSourceStore struct {
	mutex    sync.RWMutex
	sources  map[string][]byte
	FetchFn  func(ctx context.Context, ref string) (io.ReadCloser, error)
	DeleteFn func(ctx context.Context, ref string) error
}

// NewMockSourceStore creates a MockSourceStore with default implementations.
func NewMockSourceStore() *MockSourceStore {
	return &MockSourceStore{sources: make(map[string][]byte)}
}

// Put seeds the store with artifact bytes.
func (s *MockSourceStore) Put(ref string, data []byte) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.sources[ref] = data
}

// Has reports whether the artifact still exists.
func (s *MockSourceStore) Has(ref string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, ok := s.sources[ref]
	return ok
}

// Save writes the artifact bytes under the given reference.
func (s *MockSourceStore) Save(ctx context.Context, ref string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.Put(ref, data)
	return nil
}

// Fetch opens the artifact for reading.
func (s *MockSourceStore) Fetch(ctx context.Context, ref string) (io.ReadCloser, error) {
	if s.FetchFn != nil {
		return s.FetchFn(ctx, ref)
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	data, ok := s.sources[ref]
	if !ok {
		return nil, ErrSourceNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes the artifact.
func (s *MockSourceStore) Delete(ctx context.Context, ref string) error {
	if s.DeleteFn != nil {
		return s.DeleteFn(ctx, ref)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.sources, ref)
	return nil
}

// MockDatasetStore implements DatasetStore over in-memory row slices.
type MockDatasetStore struct {
	mutex         sync.RWMutex
	rows          map[uuid.UUID][]domain.DatasetRow
	nextRef       int
	InsertBatchFn func(ctx context.Context, taskID uuid.UUID, rows []map[string]string) error
	QueryRowsFn   func(ctx context.Context, taskID uuid.UUID, columns []string) ([]domain.DatasetRow, error)
}

// NewMockDatasetStore creates a MockDatasetStore with default implementations.
func NewMockDatasetStore() *MockDatasetStore {
	return &MockDatasetStore{rows: make(map[uuid.UUID][]domain.DatasetRow)}
}

// InsertBatch appends a batch of rows for the task.
func (s *MockDatasetStore) InsertBatch(ctx context.Context, taskID uuid.UUID, rows []map[string]string) error {
	if s.InsertBatchFn != nil {
		return s.InsertBatchFn(ctx, taskID, rows)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, values := range rows {
		s.nextRef++
		s.rows[taskID] = append(s.rows[taskID], domain.DatasetRow{
			EntityRef: strconv.Itoa(s.nextRef),
			Values:    values,
		})
	}
	return nil
}

// QueryRows returns all rows of the task.
func (s *MockDatasetStore) QueryRows(ctx context.Context, taskID uuid.UUID, columns []string) ([]domain.DatasetRow, error) {
	if s.QueryRowsFn != nil {
		return s.QueryRowsFn(ctx, taskID, columns)
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	rows := make([]domain.DatasetRow, len(s.rows[taskID]))
	copy(rows, s.rows[taskID])
	return rows, nil
}

// DeleteRows removes every row of the task.
func (s *MockDatasetStore) DeleteRows(ctx context.Context, taskID uuid.UUID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.rows, taskID)
	return nil
}

// RowCount returns how many rows the task currently holds.
func (s *MockDatasetStore) RowCount(taskID uuid.UUID) int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.rows[taskID])
}

// MockTaskStore implements TaskStore over an in-memory map.
type MockTaskStore struct {
	mutex      sync.RWMutex
	tasks      map[uuid.UUID]*domain.ScreeningTask
	SaveFn     func(ctx context.Context, task *domain.ScreeningTask) error
	CompleteFn func(ctx context.Context, id uuid.UUID, columns []string, totalRows int, processingTime float64, errorMsg string) error
}

// NewMockTaskStore creates a MockTaskStore with default implementations.
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{tasks: make(map[uuid.UUID]*domain.ScreeningTask)}
}

// Save persists a new task record.
func (s *MockTaskStore) Save(ctx context.Context, task *domain.ScreeningTask) error {
	if s.SaveFn != nil {
		return s.SaveFn(ctx, task)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

// GetByID retrieves a task.
func (s *MockTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScreeningTask, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

// Complete writes the terminal outcome of an ingestion run.
func (s *MockTaskStore) Complete(
	ctx context.Context,
	id uuid.UUID,
	columns []string,
	totalRows int,
	processingTime float64,
	errorMsg string,
) error {
	if s.CompleteFn != nil {
		return s.CompleteFn(ctx, id, columns, totalRows, processingTime, errorMsg)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	task.Status = domain.TaskStatusCompleted
	task.IsDone = true
	task.ColumnNames = columns
	task.TotalRows = totalRows
	task.ProcessingTime = processingTime
	task.ErrorMessage = errorMsg
	task.UpdatedAt = time.Now().UTC()
	return nil
}

// ListNonTerminal returns tasks that have not reached a terminal state.
func (s *MockTaskStore) ListNonTerminal(ctx context.Context) ([]*domain.ScreeningTask, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var tasks []*domain.ScreeningTask
	for _, task := range s.tasks {
		if !task.Terminal() {
			copied := *task
			tasks = append(tasks, &copied)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })
	return tasks, nil
}

// Delete removes the task record.
func (s *MockTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.tasks, id)
	return nil
}

// MockSearchStore implements SearchStore over an in-memory map.
type MockSearchStore struct {
	mutex            sync.RWMutex
	searches         map[uuid.UUID]*domain.Search
	MarkProcessingFn func(ctx context.Context, id uuid.UUID) error
	CompleteFn       func(ctx context.Context, id uuid.UUID, matched []domain.MatchedRecord, summary *domain.SearchSummary, totalRows int, executionTimeMS int64) error
	FailFn           func(ctx context.Context, id uuid.UUID, errorMsg string, executionTimeMS int64) error
}

// NewMockSearchStore creates a MockSearchStore with default implementations.
func NewMockSearchStore() *MockSearchStore {
	return &MockSearchStore{searches: make(map[uuid.UUID]*domain.Search)}
}

// Save persists a new search record.
func (s *MockSearchStore) Save(ctx context.Context, search *domain.Search) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	copied := *search
	s.searches[search.ID] = &copied
	return nil
}

// GetByID retrieves a search.
func (s *MockSearchStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Search, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	search, ok := s.searches[id]
	if !ok {
		return nil, ErrSearchNotFound
	}
	copied := *search
	return &copied, nil
}

// MarkProcessing transitions the search to processing.
func (s *MockSearchStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	if s.MarkProcessingFn != nil {
		return s.MarkProcessingFn(ctx, id)
	}
	return s.setStatus(id, domain.SearchStatusProcessing)
}

// Complete writes the successful outcome of a search run.
func (s *MockSearchStore) Complete(
	ctx context.Context,
	id uuid.UUID,
	matched []domain.MatchedRecord,
	summary *domain.SearchSummary,
	totalRows int,
	executionTimeMS int64,
) error {
	if s.CompleteFn != nil {
		return s.CompleteFn(ctx, id, matched, summary, totalRows, executionTimeMS)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	search, ok := s.searches[id]
	if !ok {
		return ErrSearchNotFound
	}
	search.Status = domain.SearchStatusCompleted
	search.MatchedRecords = matched
	search.Summary = summary
	search.TotalRows = totalRows
	search.ExecutionTimeMS = executionTimeMS
	search.UpdatedAt = time.Now().UTC()
	return nil
}

// Fail writes the failed outcome of a search run.
func (s *MockSearchStore) Fail(ctx context.Context, id uuid.UUID, errorMsg string, executionTimeMS int64) error {
	if s.FailFn != nil {
		return s.FailFn(ctx, id, errorMsg, executionTimeMS)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	search, ok := s.searches[id]
	if !ok {
		return ErrSearchNotFound
	}
	search.Status = domain.SearchStatusFailed
	search.ErrorMessage = errorMsg
	search.ExecutionTimeMS = executionTimeMS
	search.UpdatedAt = time.Now().UTC()
	return nil
}

// ListNonTerminal returns searches that have not reached a terminal state.
func (s *MockSearchStore) ListNonTerminal(ctx context.Context) ([]*domain.Search, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var searches []*domain.Search
	for _, search := range s.searches {
		if !search.Terminal() {
			copied := *search
			searches = append(searches, &copied)
		}
	}
	sort.Slice(searches, func(i, j int) bool { return searches[i].CreatedAt.Before(searches[j].CreatedAt) })
	return searches, nil
}

// ResetToPending returns a processing search to pending.
func (s *MockSearchStore) ResetToPending(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(id, domain.SearchStatusPending)
}

func (s *MockSearchStore) setStatus(id uuid.UUID, status domain.SearchStatus) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	search, ok := s.searches[id]
	if !ok {
		return ErrSearchNotFound
	}
	search.Status = status
	search.UpdatedAt = time.Now().UTC()
	return nil
}

// MockNotificationStore implements NotificationStore over an in-memory map.
type MockNotificationStore struct {
	mutex          sync.RWMutex
	notifications  map[uuid.UUID]*domain.Notification
	NextEligibleFn func(ctx context.Context, now time.Time) (*domain.Notification, error)
	MarkSentFn     func(ctx context.Context, id uuid.UUID, sentAt time.Time) error
}

// NewMockNotificationStore creates a MockNotificationStore with default implementations.
func NewMockNotificationStore() *MockNotificationStore {
	return &MockNotificationStore{notifications: make(map[uuid.UUID]*domain.Notification)}
}

// Save persists a new notification record.
func (s *MockNotificationStore) Save(ctx context.Context, notification *domain.Notification) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	copied := *notification
	s.notifications[notification.ID] = &copied
	return nil
}

// GetByID retrieves a notification.
func (s *MockNotificationStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	notification, ok := s.notifications[id]
	if !ok {
		return nil, ErrNotificationNotFound
	}
	copied := *notification
	return &copied, nil
}

// NextEligible returns the highest-priority eligible notification, FIFO
// within a priority tier.
func (s *MockNotificationStore) NextEligible(ctx context.Context, now time.Time) (*domain.Notification, error) {
	if s.NextEligibleFn != nil {
		return s.NextEligibleFn(ctx, now)
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var eligible []*domain.Notification
	for _, notification := range s.notifications {
		if notification.Eligible(now) {
			eligible = append(eligible, notification)
		}
	}
	if len(eligible) == 0 {
		return nil, ErrNotificationNotFound
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Priority != eligible[j].Priority {
			return eligible[i].Priority > eligible[j].Priority
		}
		return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
	})

	copied := *eligible[0]
	return &copied, nil
}

// MarkProcessing transitions the notification to processing.
func (s *MockNotificationStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return s.update(id, func(n *domain.Notification) {
		n.Status = domain.NotificationStatusProcessing
	})
}

// MarkSent records a successful delivery.
func (s *MockNotificationStore) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	if s.MarkSentFn != nil {
		return s.MarkSentFn(ctx, id, sentAt)
	}
	return s.update(id, func(n *domain.Notification) {
		n.Status = domain.NotificationStatusSent
		n.SentAt = &sentAt
		n.ErrorMessage = ""
	})
}

// MarkRetry records a failed attempt with retries remaining.
func (s *MockNotificationStore) MarkRetry(
	ctx context.Context,
	id uuid.UUID,
	retryCount int,
	errorMsg string,
	nextAttempt time.Time,
) error {
	return s.update(id, func(n *domain.Notification) {
		n.Status = domain.NotificationStatusRetry
		n.RetryCount = retryCount
		n.ErrorMessage = errorMsg
		n.ScheduledAt = &nextAttempt
	})
}

// MarkFailed records a terminally failed delivery.
func (s *MockNotificationStore) MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, errorMsg string) error {
	return s.update(id, func(n *domain.Notification) {
		n.Status = domain.NotificationStatusFailed
		n.RetryCount = retryCount
		n.ErrorMessage = errorMsg
	})
}

// ListNonTerminal returns notifications that have not reached a terminal state.
func (s *MockNotificationStore) ListNonTerminal(ctx context.Context) ([]*domain.Notification, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var notifications []*domain.Notification
	for _, notification := range s.notifications {
		if !notification.Terminal() {
			copied := *notification
			notifications = append(notifications, &copied)
		}
	}
	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.Before(notifications[j].CreatedAt)
	})
	return notifications, nil
}

// ResetToPending returns a processing notification to pending.
func (s *MockNotificationStore) ResetToPending(ctx context.Context, id uuid.UUID) error {
	return s.update(id, func(n *domain.Notification) {
		n.Status = domain.NotificationStatusPending
	})
}

func (s *MockNotificationStore) update(id uuid.UUID, fn func(*domain.Notification)) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	notification, ok := s.notifications[id]
	if !ok {
		return ErrNotificationNotFound
	}
	fn(notification)
	notification.UpdatedAt = time.Now().UTC()
	return nil
}
