package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomhaynes/dragnet/internal/domain"
	"github.com/tomhaynes/dragnet/internal/job"
	"github.com/tomhaynes/dragnet/internal/store"
)

type notificationHandlerFixture struct {
	notifications *store.MockNotificationStore
	engine        *mockEngine
	handler       *NotificationHandler
}

func newNotificationHandlerFixture(t *testing.T) *notificationHandlerFixture {
	t.Helper()

	f := &notificationHandlerFixture{
		notifications: store.NewMockNotificationStore(),
		engine:        &mockEngine{},
	}
	f.handler = NewNotificationHandler(f.notifications, f.engine)
	return f
}

func postNotification(t *testing.T, f *notificationHandlerFixture, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/notifications", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return serve(t, http.MethodPost, "/api/notifications", f.handler.CreateNotification, req)
}

func TestCreateNotification(t *testing.T) {
	t.Parallel()

	f := newNotificationHandlerFixture(t)

	rec := postNotification(t, f, `{
		"recipients": ["ops@example.com"],
		"subject": "screening finished",
		"body": "all done",
		"priority": 2
	}`)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp NotificationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, 2, resp.Priority)
	assert.Equal(t, domain.DefaultMaxRetries, resp.MaxRetries,
		"omitted max_retries falls back to the default budget")

	id, err := uuid.Parse(resp.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, f.engine.notifications)

	stored, err := f.notifications.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []string{"ops@example.com"}, stored.Recipients)
}

func TestCreateNotification_ValidationErrors(t *testing.T) {
	t.Parallel()

	f := newNotificationHandlerFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "no recipients", body: `{"recipients": [], "subject": "x"}`},
		{name: "bad address", body: `{"recipients": ["not-an-email"], "subject": "x"}`},
		{name: "missing subject", body: `{"recipients": ["ops@example.com"]}`},
		{name: "malformed json", body: `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := postNotification(t, f, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateNotification_QueueFullStillAccepted(t *testing.T) {
	t.Parallel()

	f := newNotificationHandlerFixture(t)
	f.engine.EnqueueErr = job.ErrQueueFull

	rec := postNotification(t, f, `{
		"recipients": ["ops@example.com"],
		"subject": "screening finished"
	}`)

	assert.Equal(t, http.StatusAccepted, rec.Code,
		"the retry monitor picks the record up later")
}

func TestGetNotification(t *testing.T) {
	t.Parallel()

	f := newNotificationHandlerFixture(t)

	notification, err := domain.NewNotification(
		[]string{"ops@example.com"}, "hello", "body", 0, 0, nil)
	require.NoError(t, err)
	require.NoError(t, f.notifications.Save(context.Background(), notification))

	req := httptest.NewRequest(http.MethodGet, "/api/notifications/"+notification.ID.String(), nil)
	rec := serve(t, http.MethodGet, "/api/notifications/{id}", f.handler.GetNotification, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp NotificationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hello", resp.Subject)
}

func TestGetNotification_NotFound(t *testing.T) {
	t.Parallel()

	f := newNotificationHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/notifications/"+uuid.NewString(), nil)
	rec := serve(t, http.MethodGet, "/api/notifications/{id}", f.handler.GetNotification, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCurrentJobs(t *testing.T) {
	t.Parallel()

	engine := &mockEngine{}
	ingestionID := uuid.New()
	engine.currentIngestion = &ingestionID

	handler := NewJobHandler(engine)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/current", nil)
	rec := serve(t, http.MethodGet, "/api/jobs/current", handler.GetCurrentJobs, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp CurrentJobsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.NotNil(t, resp.Ingestion)
	assert.Equal(t, ingestionID.String(), *resp.Ingestion)
	assert.Nil(t, resp.Search)
	assert.Nil(t, resp.Notification)
}
