package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/imagetask-api/internal/api/shared"
	"github.com/phrazzld/imagetask-api/internal/domain"
	"github.com/phrazzld/imagetask-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTaskService implements service.TaskService with function fields.
type stubTaskService struct {
	createFn func(ctx context.Context, ref string) (*domain.Task, error)
	getFn    func(ctx context.Context, id string) (domain.TaskView, error)
}

func (s *stubTaskService) CreateTask(ctx context.Context, ref string) (*domain.Task, error) {
	return s.createFn(ctx, ref)
}

func (s *stubTaskService) GetTask(ctx context.Context, id string) (domain.TaskView, error) {
	return s.getFn(ctx, id)
}

func (s *stubTaskService) RecoverPendingTasks(context.Context) (int, error) {
	return 0, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(svc service.TaskService) http.Handler {
	h := NewTaskHandler(svc, testLogger())
	r := chi.NewRouter()
	r.Post("/api/tasks", h.CreateTask)
	r.Get("/api/tasks/{"+TaskIDParam+"}", h.GetTask)
	return r
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateTaskHandler(t *testing.T) {
	t.Parallel()

	t.Run("created", func(t *testing.T) {
		t.Parallel()
		var gotRef string
		svc := &stubTaskService{createFn: func(_ context.Context, ref string) (*domain.Task, error) {
			gotRef = ref
			return &domain.Task{ID: "t-1", Status: domain.TaskStatusPending, Price: 12.34, SourceReference: ref}, nil
		}}

		rec := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/tasks", `{"path":"images/photo.jpg"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "images/photo.jpg", gotRef)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"taskId":"t-1","status":"pending","price":12.34}`, rec.Body.String())
	})

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"malformed json", `{"path":`},
		{"unknown field", `{"path":"images/photo.jpg","extra":1}`},
		{"missing path", `{}`},
		{"short path", `{"path":"ab"}`},
		{"url without file", `{"path":"https://example.com/"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubTaskService{createFn: func(context.Context, string) (*domain.Task, error) {
				t.Fatal("service must not be called for invalid input")
				return nil, nil
			}}

			rec := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/tasks", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp shared.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}

	t.Run("service validation error", func(t *testing.T) {
		t.Parallel()
		svc := &stubTaskService{createFn: func(context.Context, string) (*domain.Task, error) {
			return nil, domain.NewValidationError("path", "does not exist", domain.ErrInvalidSourceReference)
		}}

		rec := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/tasks", `{"path":"images/missing.jpg"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid path: does not exist")
	})

	t.Run("persistence failure hides details", func(t *testing.T) {
		t.Parallel()
		svc := &stubTaskService{createFn: func(context.Context, string) (*domain.Task, error) {
			return nil, service.NewTaskServiceError("create_task", "failed to save task",
				errors.New("pq: relation \"tasks\" does not exist"))
		}}

		rec := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/tasks", `{"path":"images/photo.jpg"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "relation")
	})

	t.Run("failed task is still created", func(t *testing.T) {
		t.Parallel()
		svc := &stubTaskService{createFn: func(context.Context, string) (*domain.Task, error) {
			return &domain.Task{ID: "t-2", Status: domain.TaskStatusFailed, Price: 7}, nil
		}}

		rec := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/tasks", `{"path":"images/photo.jpg"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, `{"taskId":"t-2","status":"failed","price":7}`, rec.Body.String())
	})
}

func TestGetTaskHandler(t *testing.T) {
	t.Parallel()

	t.Run("completed task with images", func(t *testing.T) {
		t.Parallel()
		svc := &stubTaskService{getFn: func(_ context.Context, id string) (domain.TaskView, error) {
			return domain.TaskView{
				TaskID: id,
				Status: domain.TaskStatusCompleted,
				Price:  25.5,
				Images: []domain.TaskImage{
					{Resolution: "1024", Path: "images/photo/1024/abc.jpg"},
					{Resolution: "800", Path: "images/photo/800/abc.jpg"},
				},
			}, nil
		}}

		rec := doRequest(t, newTestRouter(svc), http.MethodGet, "/api/tasks/t-1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{
			"taskId": "t-1",
			"status": "completed",
			"price": 25.5,
			"images": [
				{"resolution": "1024", "path": "images/photo/1024/abc.jpg"},
				{"resolution": "800", "path": "images/photo/800/abc.jpg"}
			]
		}`, rec.Body.String())
	})

	t.Run("pending task omits images", func(t *testing.T) {
		t.Parallel()
		svc := &stubTaskService{getFn: func(_ context.Context, id string) (domain.TaskView, error) {
			return domain.TaskView{TaskID: id, Status: domain.TaskStatusPending, Price: 5}, nil
		}}

		rec := doRequest(t, newTestRouter(svc), http.MethodGet, "/api/tasks/t-1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"taskId":"t-1","status":"pending","price":5}`, rec.Body.String())
	})

	t.Run("unknown task", func(t *testing.T) {
		t.Parallel()
		svc := &stubTaskService{getFn: func(context.Context, string) (domain.TaskView, error) {
			return domain.TaskView{}, service.ErrTaskNotFound
		}}

		rec := doRequest(t, newTestRouter(svc), http.MethodGet, "/api/tasks/missing", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "Task not found")
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()
		svc := &stubTaskService{getFn: func(context.Context, string) (domain.TaskView, error) {
			return domain.TaskView{}, service.NewTaskServiceError("get_task", "failed to retrieve task",
				errors.New("connection refused"))
		}}

		rec := doRequest(t, newTestRouter(svc), http.MethodGet, "/api/tasks/t-1", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})
}
