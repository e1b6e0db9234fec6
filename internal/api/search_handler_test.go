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
	"github.com/tomhaynes/dragnet/internal/store"
)

type searchHandlerFixture struct {
	searches *store.MockSearchStore
	tasks    *store.MockTaskStore
	engine   *mockEngine
	handler  *SearchHandler
}

func newSearchHandlerFixture(t *testing.T) *searchHandlerFixture {
	t.Helper()

	f := &searchHandlerFixture{
		searches: store.NewMockSearchStore(),
		tasks:    store.NewMockTaskStore(),
		engine:   &mockEngine{},
	}
	f.handler = NewSearchHandler(f.searches, f.tasks, f.engine)
	return f
}

// seedIngestedTask stores a task that finished ingestion successfully.
func (f *searchHandlerFixture) seedIngestedTask(t *testing.T) *domain.ScreeningTask {
	t.Helper()

	task, err := domain.NewScreeningTask("upload.csv")
	require.NoError(t, err)
	require.NoError(t, f.tasks.Save(context.Background(), task))
	require.NoError(t, f.tasks.Complete(context.Background(), task.ID,
		[]string{"name"}, 10, 0.5, ""))
	return task
}

func postSearch(t *testing.T, f *searchHandlerFixture, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/searches", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return serve(t, http.MethodPost, "/api/searches", f.handler.CreateSearch, req)
}

func TestCreateSearch(t *testing.T) {
	t.Parallel()

	f := newSearchHandlerFixture(t)
	task := f.seedIngestedTask(t)

	rec := postSearch(t, f, `{
		"task_id": "`+task.ID.String()+`",
		"kind": "single",
		"query_names": ["John Smith"],
		"columns": ["name"],
		"threshold": 70
	}`)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, task.ID.String(), resp.TaskID)

	searchID, err := uuid.Parse(resp.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{searchID}, f.engine.searches)

	stored, err := f.searches.GetByID(context.Background(), searchID)
	require.NoError(t, err)
	assert.Equal(t, domain.SearchKindSingle, stored.Kind)
	assert.Equal(t, 70.0, stored.Threshold)
}

func TestCreateSearch_ValidationErrors(t *testing.T) {
	t.Parallel()

	f := newSearchHandlerFixture(t)
	task := f.seedIngestedTask(t)

	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing query names",
			body: `{"task_id": "` + task.ID.String() + `", "kind": "single", "columns": ["name"], "threshold": 70}`,
		},
		{
			name: "unknown kind",
			body: `{"task_id": "` + task.ID.String() + `", "kind": "fancy", "query_names": ["x"], "columns": ["name"], "threshold": 70}`,
		},
		{
			name: "threshold above range",
			body: `{"task_id": "` + task.ID.String() + `", "kind": "single", "query_names": ["x"], "columns": ["name"], "threshold": 150}`,
		},
		{
			name: "malformed json",
			body: `{`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := postSearch(t, f, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateSearch_TaskNotIngested(t *testing.T) {
	t.Parallel()

	f := newSearchHandlerFixture(t)

	pending, err := domain.NewScreeningTask("pending.csv")
	require.NoError(t, err)
	require.NoError(t, f.tasks.Save(context.Background(), pending))

	rec := postSearch(t, f, `{
		"task_id": "`+pending.ID.String()+`",
		"kind": "single",
		"query_names": ["John Smith"],
		"columns": ["name"],
		"threshold": 70
	}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, f.engine.searches)
}

func TestCreateSearch_TaskIngestionFailed(t *testing.T) {
	t.Parallel()

	f := newSearchHandlerFixture(t)

	task, err := domain.NewScreeningTask("broken.csv")
	require.NoError(t, err)
	require.NoError(t, f.tasks.Save(context.Background(), task))
	require.NoError(t, f.tasks.Complete(context.Background(), task.ID,
		nil, 0, 0.1, "parse failure"))

	rec := postSearch(t, f, `{
		"task_id": "`+task.ID.String()+`",
		"kind": "single",
		"query_names": ["John Smith"],
		"columns": ["name"],
		"threshold": 70
	}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateSearch_TaskMissing(t *testing.T) {
	t.Parallel()

	f := newSearchHandlerFixture(t)

	rec := postSearch(t, f, `{
		"task_id": "`+uuid.NewString()+`",
		"kind": "single",
		"query_names": ["John Smith"],
		"columns": ["name"],
		"threshold": 70
	}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSearch(t *testing.T) {
	t.Parallel()

	f := newSearchHandlerFixture(t)

	search, err := domain.NewSearch(uuid.New(), domain.SearchKindBulk,
		[]string{"a", "b"}, []string{"name"}, 70, "sanctions-2025")
	require.NoError(t, err)
	require.NoError(t, f.searches.Save(context.Background(), search))

	req := httptest.NewRequest(http.MethodGet, "/api/searches/"+search.ID.String(), nil)
	rec := serve(t, http.MethodGet, "/api/searches/{id}", f.handler.GetSearch, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "bulk", resp.Kind)
	assert.Equal(t, "sanctions-2025", resp.WatchlistRef)
}

func TestGetSearch_NotFound(t *testing.T) {
	t.Parallel()

	f := newSearchHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/searches/"+uuid.NewString(), nil)
	rec := serve(t, http.MethodGet, "/api/searches/{id}", f.handler.GetSearch, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
