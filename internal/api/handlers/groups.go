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
	"github.com/gorkemoa/todobus/internal/database/models"
	"github.com/gorkemoa/todobus/internal/groups"
	"gorm.io/gorm"
)

type GroupHandler struct {
	db *gorm.DB
}

func NewGroupHandler(db *gorm.DB) *GroupHandler {
	return &GroupHandler{db: db}
}

type CreateGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (r CreateGroupRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name == "" {
		errors["name"] = "Group name is required"
	}
	return errors
}

type MemberResponse struct {
	ID      string  `json:"id"`
	GroupID string  `json:"group_id"`
	Role    string  `json:"role"`
	User    UserRef `json:"user"`
}

type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type ProjectRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Progress int    `json:"progress"`
}

type GroupResponse struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Members     []MemberResponse `json:"members,omitempty"`
	Projects    []ProjectRef     `json:"projects,omitempty"`
	CreatedAt   string           `json:"created_at"`
}

func memberToResponse(m *models.GroupMember) MemberResponse {
	resp := MemberResponse{
		ID:      m.ID.String(),
		GroupID: m.GroupID.String(),
		Role:    string(m.Role),
	}
	if m.User != nil {
		resp.User = UserRef{
			ID:    m.User.ID.String(),
			Name:  m.User.Name,
			Email: m.User.Email,
		}
	}
	return resp
}

func groupToResponse(g *models.Group) GroupResponse {
	resp := GroupResponse{
		ID:          g.ID.String(),
		Name:        g.Name,
		Description: g.Description,
		CreatedAt:   g.CreatedAt.Format(time.RFC3339),
	}
	for i := range g.Members {
		resp.Members = append(resp.Members, memberToResponse(&g.Members[i]))
	}
	for _, p := range g.Projects {
		resp.Projects = append(resp.Projects, ProjectRef{
			ID:       p.ID.String(),
			Name:     p.Name,
			Progress: p.Progress,
		})
	}
	return resp
}

// List handles GET /api/v1/groups
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	groupIDs, err := groups.MemberGroupIDs(r.Context(), h.db, userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list groups"})
		return
	}

	var list []models.Group
	if len(groupIDs) > 0 {
		if err := h.db.WithContext(r.Context()).
			Preload("Members.User").
			Preload("Projects").
			Where("id IN ?", groupIDs).
			Order("created_at DESC").
			Find(&list).Error; err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list groups"})
			return
		}
	}

	response := make([]GroupResponse, len(list))
	for i := range list {
		response[i] = groupToResponse(&list[i])
	}

	writeJSON(w, http.StatusOK, response)
}

// Create handles POST /api/v1/groups
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	group := models.Group{
		Name:        req.Name,
		Description: req.Description,
	}

	// The creator becomes an admin member in the same transaction.
	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		member := models.GroupMember{
			GroupID: group.ID,
			UserID:  userID,
			Role:    models.RoleAdmin,
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create group"})
		return
	}

	writeJSON(w, http.StatusCreated, groupToResponse(&group))
}

// Get handles GET /api/v1/groups/:id
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	groupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid group ID"})
		return
	}

	if _, err := groups.Membership(r.Context(), h.db, groupID, userID); err != nil {
		if errors.Is(err, groups.ErrNotMember) {
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Not a member of this group"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get group"})
		return
	}

	var group models.Group
	if err := h.db.WithContext(r.Context()).
		Preload("Members.User").
		Preload("Projects").
		First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Group not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get group"})
		return
	}

	writeJSON(w, http.StatusOK, groupToResponse(&group))
}

// Update handles PUT /api/v1/groups/:id
func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	groupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid group ID"})
		return
	}

	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	if !h.requireAdmin(w, r, groupID, userID) {
		return
	}

	var group models.Group
	if err := h.db.WithContext(r.Context()).First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Group not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get group"})
		return
	}

	updates := map[string]interface{}{
		"name":        req.Name,
		"description": req.Description,
	}
	if err := h.db.WithContext(r.Context()).Model(&group).Updates(updates).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update group"})
		return
	}

	group.Name = req.Name
	group.Description = req.Description

	writeJSON(w, http.StatusOK, groupToResponse(&group))
}

// Delete handles DELETE /api/v1/groups/:id
// The group owns its members, invitations, projects and tasks; all of them
// go in one transaction.
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	groupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid group ID"})
		return
	}

	if !h.requireAdmin(w, r, groupID, userID) {
		return
	}

	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		var projectIDs []uuid.UUID
		if err := tx.Model(&models.Project{}).
			Where("group_id = ?", groupID).
			Pluck("id", &projectIDs).Error; err != nil {
			return err
		}

		if len(projectIDs) > 0 {
			if err := tx.Where("project_id IN ?", projectIDs).Delete(&models.Task{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", projectIDs).Delete(&models.Project{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.Invitation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.GroupMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Group{}, groupID).Error
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete group"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Group deleted"})
}

// requireAdmin writes the error response and returns false unless the user
// is an admin member of the group.
func (h *GroupHandler) requireAdmin(w http.ResponseWriter, r *http.Request, groupID, userID uuid.UUID) bool {
	if _, err := groups.RequireAdmin(r.Context(), h.db, groupID, userID); err != nil {
		switch {
		case errors.Is(err, groups.ErrNotMember), errors.Is(err, groups.ErrNotAdmin):
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Admin role required"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to check membership"})
		}
		return false
	}
	return true
}
