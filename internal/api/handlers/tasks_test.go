package handlers_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorkemoa/todobus/internal/api/handlers"
	"github.com/gorkemoa/todobus/internal/api/middleware"
	"github.com/gorkemoa/todobus/internal/database/models"
	"github.com/gorkemoa/todobus/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTaskTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := handlers.NewTaskHandler(tc.DB, logger)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(tc.JWTService))
		r.Route("/api/v1/tasks", func(r chi.Router) {
			r.Get("/", handler.List)
			r.Post("/", handler.Create)
			r.Get("/recent", handler.Recent)
			r.Get("/{id}", handler.Get)
			r.Patch("/{id}", handler.Update)
			r.Delete("/{id}", handler.Delete)
		})
	})

	return r, tc
}

func projectProgress(t *testing.T, tc *testutil.TestSetup, projectID interface{}) int {
	t.Helper()
	var project models.Project
	require.NoError(t, tc.DB.First(&project, projectID).Error)
	return project.Progress
}

func TestTaskHandler_Create(t *testing.T) {
	router, tc := setupTaskTestRouter(t)
	defer tc.Cleanup()

	project := testutil.CreateTestProject(t, tc.DB, tc.Group)

	t.Run("creates a pending task and recomputes progress", func(t *testing.T) {
		body := map[string]string{
			"title":      "Write the brief",
			"project_id": project.ID.String(),
		}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/tasks/", body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusCreated)

		var resp handlers.TaskResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "Write the brief", resp.Title)
		assert.Equal(t, string(models.TaskPending), resp.Status)
		assert.Equal(t, string(models.PriorityMedium), resp.Priority)
		assert.Nil(t, resp.CompletedAt)

		assert.Equal(t, 0, projectProgress(t, tc, project.ID))
	})

	t.Run("assignee must be a group member", func(t *testing.T) {
		outsider := testutil.CreateTestUser(t, tc.DB)

		body := map[string]string{
			"title":       "Unassignable",
			"project_id":  project.ID.String(),
			"assignee_id": outsider.ID.String(),
		}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/tasks/", body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("non-member cannot create", func(t *testing.T) {
		outsider := testutil.CreateTestUser(t, tc.DB)
		token := testutil.GenerateTestToken(t, tc.JWTService, outsider)

		body := map[string]string{
			"title":      "Sneaky",
			"project_id": project.ID.String(),
		}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/tasks/", body, token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("missing title", func(t *testing.T) {
		body := map[string]string{"project_id": project.ID.String()}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/tasks/", body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestTaskHandler_StatusTransitions(t *testing.T) {
	router, tc := setupTaskTestRouter(t)
	defer tc.Cleanup()

	project := testutil.CreateTestProject(t, tc.DB, tc.Group)
	task := testutil.CreateTestTask(t, tc.DB, project, tc.User, models.TaskPending)
	testutil.CreateTestTask(t, tc.DB, project, tc.User, models.TaskPending)
	testutil.CreateTestTask(t, tc.DB, project, tc.User, models.TaskPending)

	path := "/api/v1/tasks/" + task.ID.String()

	t.Run("completing stamps completed_at and bumps progress", func(t *testing.T) {
		body := map[string]string{"status": "completed"}

		req := testutil.AuthenticatedRequest(t, "PATCH", path, body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp handlers.TaskResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, string(models.TaskCompleted), resp.Status)
		assert.NotNil(t, resp.CompletedAt)

		// 1 of 3 tasks done.
		assert.Equal(t, 33, projectProgress(t, tc, project.ID))
	})

	t.Run("reopening clears completed_at and drops progress", func(t *testing.T) {
		body := map[string]string{"status": "in_progress"}

		req := testutil.AuthenticatedRequest(t, "PATCH", path, body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)

		var stored models.Task
		require.NoError(t, tc.DB.First(&stored, task.ID).Error)
		assert.Equal(t, models.TaskInProgress, stored.Status)
		assert.Nil(t, stored.CompletedAt)

		assert.Equal(t, 0, projectProgress(t, tc, project.ID))
	})

	t.Run("title change alone leaves progress untouched", func(t *testing.T) {
		require.NoError(t, tc.DB.Model(&models.Project{}).
			Where("id = ?", project.ID).
			Update("progress", 42).Error)

		body := map[string]string{"title": "Renamed task"}

		req := testutil.AuthenticatedRequest(t, "PATCH", path, body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Equal(t, 42, projectProgress(t, tc, project.ID))
	})

	t.Run("invalid status", func(t *testing.T) {
		body := map[string]string{"status": "done"}

		req := testutil.AuthenticatedRequest(t, "PATCH", path, body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestTaskHandler_Delete(t *testing.T) {
	router, tc := setupTaskTestRouter(t)
	defer tc.Cleanup()

	project := testutil.CreateTestProject(t, tc.DB, tc.Group)

	t.Run("deleting a completed task recomputes progress", func(t *testing.T) {
		done := testutil.CreateTestTask(t, tc.DB, project, tc.User, models.TaskCompleted)
		testutil.CreateTestTask(t, tc.DB, project, tc.User, models.TaskPending)

		req := testutil.AuthenticatedRequest(t, "DELETE", "/api/v1/tasks/"+done.ID.String(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)

		// Only the pending task remains.
		assert.Equal(t, 0, projectProgress(t, tc, project.ID))
	})

	t.Run("unknown task", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "DELETE", "/api/v1/tasks/6ba7b810-9dad-41d1-80b4-00c04fd430c8", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})
}

func TestTaskHandler_List(t *testing.T) {
	router, tc := setupTaskTestRouter(t)
	defer tc.Cleanup()

	project := testutil.CreateTestProject(t, tc.DB, tc.Group)
	testutil.CreateTestTask(t, tc.DB, project, tc.User, models.TaskPending)
	testutil.CreateTestTask(t, tc.DB, project, tc.User, models.TaskCompleted)

	type pagedTasks struct {
		Data       []handlers.TaskResponse `json:"data"`
		Total      int64                   `json:"total"`
		Page       int                     `json:"page"`
		PerPage    int                     `json:"per_page"`
		TotalPages int                     `json:"total_pages"`
	}

	t.Run("lists tasks for a project", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/tasks/?project_id="+project.ID.String(), nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp pagedTasks
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Len(t, resp.Data, 2)
		assert.Equal(t, int64(2), resp.Total)
		assert.Equal(t, 1, resp.Page)
	})

	t.Run("status filter", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/tasks/?project_id="+project.ID.String()+"&status=completed", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp pagedTasks
		testutil.ParseJSONResponse(t, rr, &resp)
		require.Len(t, resp.Data, 1)
		assert.Equal(t, string(models.TaskCompleted), resp.Data[0].Status)
	})

	t.Run("pagination caps the page size", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/tasks/?project_id="+project.ID.String()+"&page=1&per_page=1", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp pagedTasks
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Len(t, resp.Data, 1)
		assert.Equal(t, int64(2), resp.Total)
		assert.Equal(t, 2, resp.TotalPages)
	})

	t.Run("project_id is required", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/tasks/", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestTaskHandler_Recent(t *testing.T) {
	router, tc := setupTaskTestRouter(t)
	defer tc.Cleanup()

	project := testutil.CreateTestProject(t, tc.DB, tc.Group)
	testutil.CreateTestTask(t, tc.DB, project, tc.User, models.TaskPending)

	// Tasks in a foreign group stay out of the feed.
	other := testutil.CreateTestUser(t, tc.DB)
	otherGroup := testutil.CreateTestGroup(t, tc.DB, other)
	otherProject := testutil.CreateTestProject(t, tc.DB, otherGroup)
	testutil.CreateTestTask(t, tc.DB, otherProject, other, models.TaskPending)

	req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/tasks/recent", nil, tc.Token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	testutil.AssertStatus(t, rr, http.StatusOK)

	var resp []handlers.TaskResponse
	testutil.ParseJSONResponse(t, rr, &resp)
	require.Len(t, resp, 1)
	assert.Equal(t, project.ID.String(), resp[0].ProjectID)
}
