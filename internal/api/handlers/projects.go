package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorkemoa/todobus/internal/api/dto"
	"github.com/gorkemoa/todobus/internal/api/middleware"
	"github.com/gorkemoa/todobus/internal/api/validation"
	"github.com/gorkemoa/todobus/internal/database/models"
	"github.com/gorkemoa/todobus/internal/groups"
	"gorm.io/gorm"
)

type ProjectHandler struct {
	db *gorm.DB
}

func NewProjectHandler(db *gorm.DB) *ProjectHandler {
	return &ProjectHandler{db: db}
}

type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	GroupID     string `json:"group_id"`
}

func (r CreateProjectRequest) Validate() map[string]string {
	errs := make(map[string]string)
	if r.Name == "" {
		errs["name"] = "Project name is required"
	}
	if r.GroupID == "" {
		errs["group_id"] = "Group ID is required"
	} else if !validation.IsValidUUID(r.GroupID) {
		errs["group_id"] = "Group ID must be a valid UUID"
	}
	return errs
}

type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
}

func (r UpdateProjectRequest) Validate() map[string]string {
	errs := make(map[string]string)
	if r.Name != nil && *r.Name == "" {
		errs["name"] = "Project name cannot be empty"
	}
	if r.Status != nil && *r.Status != string(models.ProjectOpen) && *r.Status != string(models.ProjectClosed) {
		errs["status"] = "Status must be open or closed"
	}
	return errs
}

type ProjectResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	GroupID     string `json:"group_id"`
	Status      string `json:"status"`
	Progress    int    `json:"progress"`
	TaskCount   int    `json:"task_count"`
	CreatedAt   string `json:"created_at"`
}

func projectToResponse(p *models.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		GroupID:     p.GroupID.String(),
		Status:      string(p.Status),
		Progress:    p.Progress,
		TaskCount:   len(p.Tasks),
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
}

// requireProjectAccess loads the project and verifies the caller belongs to
// its group. Writes the error response on failure.
func (h *ProjectHandler) requireProjectAccess(w http.ResponseWriter, r *http.Request, projectID, userID uuid.UUID) *models.Project {
	var project models.Project
	if err := h.db.WithContext(r.Context()).First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Project not found"})
			return nil
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get project"})
		return nil
	}

	if _, err := groups.Membership(r.Context(), h.db, project.GroupID, userID); err != nil {
		if errors.Is(err, groups.ErrNotMember) {
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Not a member of this group"})
			return nil
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get project"})
		return nil
	}

	return &project
}

// List handles GET /api/v1/projects?group_id=...
// Without group_id it returns projects across every group the user belongs to.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	query := h.db.WithContext(r.Context()).Preload("Tasks").Order("created_at DESC")

	if raw := r.URL.Query().Get("group_id"); raw != "" {
		groupID, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid group ID"})
			return
		}
		if _, err := groups.Membership(r.Context(), h.db, groupID, userID); err != nil {
			if errors.Is(err, groups.ErrNotMember) {
				writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Not a member of this group"})
				return
			}
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list projects"})
			return
		}
		query = query.Where("group_id = ?", groupID)
	} else {
		groupIDs, err := groups.MemberGroupIDs(r.Context(), h.db, userID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list projects"})
			return
		}
		if len(groupIDs) == 0 {
			writeJSON(w, http.StatusOK, []ProjectResponse{})
			return
		}
		query = query.Where("group_id IN ?", groupIDs)
	}

	var projects []models.Project
	if err := query.Find(&projects).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list projects"})
		return
	}

	response := make([]ProjectResponse, len(projects))
	for i := range projects {
		response[i] = projectToResponse(&projects[i])
	}

	writeJSON(w, http.StatusOK, response)
}

// Create handles POST /api/v1/projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	groupID := uuid.MustParse(req.GroupID)

	if _, err := groups.Find(r.Context(), h.db, groupID); err != nil {
		if errors.Is(err, groups.ErrGroupNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Group not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create project"})
		return
	}

	if _, err := groups.Membership(r.Context(), h.db, groupID, userID); err != nil {
		if errors.Is(err, groups.ErrNotMember) {
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Not a member of this group"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create project"})
		return
	}

	project := models.Project{
		Name:        req.Name,
		Description: req.Description,
		GroupID:     groupID,
		Status:      models.ProjectOpen,
	}
	if err := h.db.WithContext(r.Context()).Create(&project).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create project"})
		return
	}

	writeJSON(w, http.StatusCreated, projectToResponse(&project))
}

// Get handles GET /api/v1/projects/:id
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid project ID"})
		return
	}

	project := h.requireProjectAccess(w, r, projectID, userID)
	if project == nil {
		return
	}

	if err := h.db.WithContext(r.Context()).
		Preload("Tasks").
		First(project, projectID).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get project"})
		return
	}

	writeJSON(w, http.StatusOK, projectToResponse(project))
}

// Update handles PATCH /api/v1/projects/:id
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid project ID"})
		return
	}

	var req UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	project := h.requireProjectAccess(w, r, projectID, userID)
	if project == nil {
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
		project.Name = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
		project.Description = *req.Description
	}
	if req.Status != nil {
		updates["status"] = *req.Status
		project.Status = models.ProjectStatus(*req.Status)
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(r.Context()).
			Model(project).
			Updates(updates).Error; err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update project"})
			return
		}
	}

	writeJSON(w, http.StatusOK, projectToResponse(project))
}

// Delete handles DELETE /api/v1/projects/:id
// Tasks go with the project in one transaction.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid project ID"})
		return
	}

	project := h.requireProjectAccess(w, r, projectID, userID)
	if project == nil {
		return
	}

	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", projectID).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Project{}, projectID).Error
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete project"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Project deleted"})
}
