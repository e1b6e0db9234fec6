package api

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// mockEngine implements JobEngine, recording submissions and failing on
// demand.
type mockEngine struct {
	mutex         sync.Mutex
	ingestions    []uuid.UUID
	searches      []uuid.UUID
	notifications []uuid.UUID

	EnqueueErr error

	currentIngestion    *uuid.UUID
	currentSearch       *uuid.UUID
	currentNotification *uuid.UUID
}

func (e *mockEngine) EnqueueIngestion(taskID uuid.UUID, sourceRef string) error {
	if e.EnqueueErr != nil {
		return e.EnqueueErr
	}
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.ingestions = append(e.ingestions, taskID)
	return nil
}

func (e *mockEngine) EnqueueSearch(searchID uuid.UUID) error {
	if e.EnqueueErr != nil {
		return e.EnqueueErr
	}
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.searches = append(e.searches, searchID)
	return nil
}

func (e *mockEngine) EnqueueNotification(notificationID uuid.UUID) error {
	if e.EnqueueErr != nil {
		return e.EnqueueErr
	}
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.notifications = append(e.notifications, notificationID)
	return nil
}

func (e *mockEngine) CurrentIngestionJob() (uuid.UUID, bool) {
	if e.currentIngestion == nil {
		return uuid.Nil, false
	}
	return *e.currentIngestion, true
}

func (e *mockEngine) CurrentSearchJob() (uuid.UUID, bool) {
	if e.currentSearch == nil {
		return uuid.Nil, false
	}
	return *e.currentSearch, true
}

func (e *mockEngine) CurrentNotificationJob() (uuid.UUID, bool) {
	if e.currentNotification == nil {
		return uuid.Nil, false
	}
	return *e.currentNotification, true
}

// mockColumns implements ColumnProvider over a fixed map.
type mockColumns struct {
	columns     map[uuid.UUID][]string
	err         error
	invalidated []uuid.UUID
}

func (c *mockColumns) Columns(ctx context.Context, taskID uuid.UUID) ([]string, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.columns[taskID], nil
}

func (c *mockColumns) Invalidate(taskID uuid.UUID) {
	c.invalidated = append(c.invalidated, taskID)
}

// serve dispatches the request through a chi router so URL parameters
// resolve the way they do in production.
func serve(t *testing.T, method, pattern string, handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	r := chi.NewRouter()
	r.MethodFunc(method, pattern, handler)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// multipartUpload builds a multipart request body carrying one file field.
func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}
