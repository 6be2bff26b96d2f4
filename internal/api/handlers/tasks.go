package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorkemoa/todobus/internal/api/dto"
	"github.com/gorkemoa/todobus/internal/api/middleware"
	"github.com/gorkemoa/todobus/internal/api/validation"
	"github.com/gorkemoa/todobus/internal/database/models"
	"github.com/gorkemoa/todobus/internal/groups"
	"github.com/gorkemoa/todobus/internal/progress"
	"gorm.io/gorm"
)

type TaskHandler struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewTaskHandler(db *gorm.DB, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{db: db, logger: logger}
}

func validTaskStatus(s string) bool {
	switch models.TaskStatus(s) {
	case models.TaskPending, models.TaskInProgress, models.TaskCompleted, models.TaskCancelled:
		return true
	}
	return false
}

func validTaskPriority(p string) bool {
	switch models.TaskPriority(p) {
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh:
		return true
	}
	return false
}

type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	ProjectID   string     `json:"project_id"`
	Priority    string     `json:"priority,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	AssigneeID  string     `json:"assignee_id,omitempty"`
}

func (r CreateTaskRequest) Validate() map[string]string {
	errs := make(map[string]string)
	if r.Title == "" {
		errs["title"] = "Task title is required"
	}
	if r.ProjectID == "" {
		errs["project_id"] = "Project ID is required"
	} else if !validation.IsValidUUID(r.ProjectID) {
		errs["project_id"] = "Project ID must be a valid UUID"
	}
	if r.Priority != "" && !validTaskPriority(r.Priority) {
		errs["priority"] = "Priority must be low, medium or high"
	}
	if r.AssigneeID != "" && !validation.IsValidUUID(r.AssigneeID) {
		errs["assignee_id"] = "Assignee ID must be a valid UUID"
	}
	return errs
}

type UpdateTaskRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *string    `json:"status,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	AssigneeID  *string    `json:"assignee_id,omitempty"`
}

func (r UpdateTaskRequest) Validate() map[string]string {
	errs := make(map[string]string)
	if r.Title != nil && *r.Title == "" {
		errs["title"] = "Task title cannot be empty"
	}
	if r.Status != nil && !validTaskStatus(*r.Status) {
		errs["status"] = "Status must be pending, in_progress, completed or cancelled"
	}
	if r.Priority != nil && !validTaskPriority(*r.Priority) {
		errs["priority"] = "Priority must be low, medium or high"
	}
	if r.AssigneeID != nil && *r.AssigneeID != "" && !validation.IsValidUUID(*r.AssigneeID) {
		errs["assignee_id"] = "Assignee ID must be a valid UUID"
	}
	return errs
}

type TaskResponse struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	ProjectID   string   `json:"project_id"`
	ProjectName string   `json:"project_name,omitempty"`
	DueDate     *string  `json:"due_date,omitempty"`
	AssigneeID  *string  `json:"assignee_id,omitempty"`
	Assignee    *UserRef `json:"assignee,omitempty"`
	CompletedAt *string  `json:"completed_at,omitempty"`
	CreatedAt   string   `json:"created_at"`
}

func taskToResponse(t *models.Task) TaskResponse {
	resp := TaskResponse{
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		ProjectID:   t.ProjectID.String(),
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
	}
	if t.Project != nil {
		resp.ProjectName = t.Project.Name
	}
	if t.DueDate != nil {
		due := t.DueDate.Format(time.RFC3339)
		resp.DueDate = &due
	}
	if t.AssigneeID != nil {
		id := t.AssigneeID.String()
		resp.AssigneeID = &id
	}
	if t.Assignee != nil {
		resp.Assignee = &UserRef{
			ID:    t.Assignee.ID.String(),
			Name:  t.Assignee.Name,
			Email: t.Assignee.Email,
		}
	}
	if t.CompletedAt != nil {
		at := t.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &at
	}
	return resp
}

// requireTaskProject loads the project and verifies group membership.
func (h *TaskHandler) requireTaskProject(w http.ResponseWriter, r *http.Request, projectID, userID uuid.UUID) *models.Project {
	var project models.Project
	if err := h.db.WithContext(r.Context()).First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Project not found"})
			return nil
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load project"})
		return nil
	}

	if _, err := groups.Membership(r.Context(), h.db, project.GroupID, userID); err != nil {
		if errors.Is(err, groups.ErrNotMember) {
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Not a member of this group"})
			return nil
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load project"})
		return nil
	}

	return &project
}

// recompute refreshes the project's cached progress. Failures are logged,
// not surfaced: the task mutation already committed.
func (h *TaskHandler) recompute(r *http.Request, projectID uuid.UUID) {
	if _, err := progress.Recompute(r.Context(), h.db, projectID); err != nil {
		h.logger.Error("failed to recompute project progress", "project_id", projectID, "error", err)
	}
}

// List handles GET /api/v1/tasks?project_id=...
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	raw := r.URL.Query().Get("project_id")
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "project_id query parameter is required"})
		return
	}
	projectID, err := uuid.Parse(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid project ID"})
		return
	}

	if h.requireTaskProject(w, r, projectID, userID) == nil {
		return
	}

	query := h.db.WithContext(r.Context()).
		Model(&models.Task{}).
		Where("project_id = ?", projectID)

	if status := r.URL.Query().Get("status"); status != "" {
		if !validTaskStatus(status) {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid status filter"})
			return
		}
		query = query.Where("status = ?", status)
	}

	page := dto.PaginationParams{
		Page:    atoiOrZero(r.URL.Query().Get("page")),
		PerPage: atoiOrZero(r.URL.Query().Get("per_page")),
	}
	page.Normalize()

	// Count and Find run on separate sessions; a finished query must not
	// be chained further.
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list tasks"})
		return
	}

	var list []models.Task
	if err := query.Session(&gorm.Session{}).
		Preload("Assignee").
		Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.PerPage).
		Find(&list).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list tasks"})
		return
	}

	response := make([]TaskResponse, len(list))
	for i := range list {
		response[i] = taskToResponse(&list[i])
	}

	totalPages := int((total + int64(page.PerPage) - 1) / int64(page.PerPage))

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       response,
		Total:      total,
		Page:       page.Page,
		PerPage:    page.PerPage,
		TotalPages: totalPages,
	})
}

func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// Recent handles GET /api/v1/tasks/recent
// The dashboard feed: latest tasks across every group the user belongs to.
func (h *TaskHandler) Recent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	groupIDs, err := groups.MemberGroupIDs(r.Context(), h.db, userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list tasks"})
		return
	}
	if len(groupIDs) == 0 {
		writeJSON(w, http.StatusOK, []TaskResponse{})
		return
	}

	var projectIDs []uuid.UUID
	if err := h.db.WithContext(r.Context()).
		Model(&models.Project{}).
		Where("group_id IN ?", groupIDs).
		Pluck("id", &projectIDs).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list tasks"})
		return
	}
	if len(projectIDs) == 0 {
		writeJSON(w, http.StatusOK, []TaskResponse{})
		return
	}

	var list []models.Task
	if err := h.db.WithContext(r.Context()).
		Preload("Project").
		Preload("Assignee").
		Where("project_id IN ?", projectIDs).
		Order("created_at DESC").
		Limit(20).
		Find(&list).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list tasks"})
		return
	}

	response := make([]TaskResponse, len(list))
	for i := range list {
		response[i] = taskToResponse(&list[i])
	}

	writeJSON(w, http.StatusOK, response)
}

// Create handles POST /api/v1/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	projectID := uuid.MustParse(req.ProjectID)

	project := h.requireTaskProject(w, r, projectID, userID)
	if project == nil {
		return
	}

	task := models.Task{
		Title:       req.Title,
		Description: req.Description,
		Status:      models.TaskPending,
		Priority:    models.PriorityMedium,
		ProjectID:   projectID,
		DueDate:     req.DueDate,
		CreatedByID: userID,
	}
	if req.Priority != "" {
		task.Priority = models.TaskPriority(req.Priority)
	}
	if req.AssigneeID != "" {
		assigneeID := uuid.MustParse(req.AssigneeID)
		// The assignee must belong to the same group as the project.
		if _, err := groups.Membership(r.Context(), h.db, project.GroupID, assigneeID); err != nil {
			if errors.Is(err, groups.ErrNotMember) {
				writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Assignee is not a member of this group"})
				return
			}
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create task"})
			return
		}
		task.AssigneeID = &assigneeID
	}

	if err := h.db.WithContext(r.Context()).Create(&task).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create task"})
		return
	}

	h.recompute(r, projectID)

	writeJSON(w, http.StatusCreated, taskToResponse(&task))
}

// Get handles GET /api/v1/tasks/:id
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid task ID"})
		return
	}

	var task models.Task
	if err := h.db.WithContext(r.Context()).
		Preload("Project").
		Preload("Assignee").
		First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Task not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get task"})
		return
	}

	if h.requireTaskProject(w, r, task.ProjectID, userID) == nil {
		return
	}

	writeJSON(w, http.StatusOK, taskToResponse(&task))
}

// Update handles PATCH /api/v1/tasks/:id
// A status change into completed stamps CompletedAt; a change out of it
// clears the stamp. Progress is recomputed only when status changed.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid task ID"})
		return
	}

	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	var task models.Task
	if err := h.db.WithContext(r.Context()).First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Task not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get task"})
		return
	}

	project := h.requireTaskProject(w, r, task.ProjectID, userID)
	if project == nil {
		return
	}

	updates := make(map[string]interface{})
	if req.Title != nil {
		updates["title"] = *req.Title
		task.Title = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
		task.Description = *req.Description
	}
	if req.Priority != nil {
		updates["priority"] = *req.Priority
		task.Priority = models.TaskPriority(*req.Priority)
	}
	if req.DueDate != nil {
		updates["due_date"] = *req.DueDate
		task.DueDate = req.DueDate
	}
	if req.AssigneeID != nil {
		if *req.AssigneeID == "" {
			updates["assignee_id"] = nil
			task.AssigneeID = nil
		} else {
			assigneeID := uuid.MustParse(*req.AssigneeID)
			if _, err := groups.Membership(r.Context(), h.db, project.GroupID, assigneeID); err != nil {
				if errors.Is(err, groups.ErrNotMember) {
					writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Assignee is not a member of this group"})
					return
				}
				writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update task"})
				return
			}
			updates["assignee_id"] = assigneeID
			task.AssigneeID = &assigneeID
		}
	}

	statusChanged := false
	if req.Status != nil && models.TaskStatus(*req.Status) != task.Status {
		statusChanged = true
		newStatus := models.TaskStatus(*req.Status)
		updates["status"] = newStatus

		if newStatus == models.TaskCompleted {
			now := time.Now()
			updates["completed_at"] = now
			task.CompletedAt = &now
		} else if task.Status == models.TaskCompleted {
			updates["completed_at"] = nil
			task.CompletedAt = nil
		}
		task.Status = newStatus
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(r.Context()).
			Model(&models.Task{}).
			Where("id = ?", taskID).
			Updates(updates).Error; err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update task"})
			return
		}
	}

	if statusChanged {
		h.recompute(r, task.ProjectID)
	}

	writeJSON(w, http.StatusOK, taskToResponse(&task))
}

// Delete handles DELETE /api/v1/tasks/:id
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid task ID"})
		return
	}

	var task models.Task
	if err := h.db.WithContext(r.Context()).First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Task not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get task"})
		return
	}

	if h.requireTaskProject(w, r, task.ProjectID, userID) == nil {
		return
	}

	if err := h.db.WithContext(r.Context()).Delete(&task).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete task"})
		return
	}

	h.recompute(r, task.ProjectID)

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Task deleted"})
}
