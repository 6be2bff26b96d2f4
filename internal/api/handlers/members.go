package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorkemoa/todobus/internal/api/dto"
	"github.com/gorkemoa/todobus/internal/api/middleware"
	"github.com/gorkemoa/todobus/internal/database/models"
	"github.com/gorkemoa/todobus/internal/groups"
	"gorm.io/gorm"
)

type AddMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
}

func (r AddMemberRequest) Validate() map[string]string {
	errs := make(map[string]string)
	if r.UserID == "" {
		errs["user_id"] = "User ID is required"
	} else if _, err := uuid.Parse(r.UserID); err != nil {
		errs["user_id"] = "User ID must be a valid UUID"
	}
	if r.Role != "" && r.Role != string(models.RoleAdmin) && r.Role != string(models.RoleMember) {
		errs["role"] = "Role must be admin or member"
	}
	return errs
}

type UpdateMemberRequest struct {
	Role string `json:"role"`
}

func (r UpdateMemberRequest) Validate() map[string]string {
	errs := make(map[string]string)
	if r.Role != string(models.RoleAdmin) && r.Role != string(models.RoleMember) {
		errs["role"] = "Role must be admin or member"
	}
	return errs
}

// ListMembers handles GET /api/v1/groups/:id/members
func (h *GroupHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
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
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list members"})
		return
	}

	var members []models.GroupMember
	if err := h.db.WithContext(r.Context()).
		Preload("User").
		Where("group_id = ?", groupID).
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list members"})
		return
	}

	response := make([]MemberResponse, len(members))
	for i := range members {
		response[i] = memberToResponse(&members[i])
	}

	writeJSON(w, http.StatusOK, response)
}

// AddMember handles POST /api/v1/groups/:id/members
// Directly adds an existing user, bypassing the invitation flow. Admin only.
func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	groupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid group ID"})
		return
	}

	var req AddMemberRequest
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

	targetID := uuid.MustParse(req.UserID)

	var target models.User
	if err := h.db.WithContext(r.Context()).First(&target, targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "User not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to add member"})
		return
	}

	if _, err := groups.Membership(r.Context(), h.db, groupID, targetID); err == nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "User is already a member"})
		return
	} else if !errors.Is(err, groups.ErrNotMember) {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to add member"})
		return
	}

	role := models.RoleMember
	if req.Role == string(models.RoleAdmin) {
		role = models.RoleAdmin
	}

	member := models.GroupMember{
		GroupID: groupID,
		UserID:  targetID,
		Role:    role,
	}
	if err := h.db.WithContext(r.Context()).Create(&member).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to add member"})
		return
	}

	member.User = &target
	writeJSON(w, http.StatusCreated, memberToResponse(&member))
}

// UpdateMemberRole handles PATCH /api/v1/groups/:id/members/:userID
func (h *GroupHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	groupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid group ID"})
		return
	}
	targetID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid user ID"})
		return
	}

	var req UpdateMemberRequest
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

	// Admins cannot demote themselves; another admin has to do it.
	if targetID == userID && req.Role != string(models.RoleAdmin) {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Cannot change your own role"})
		return
	}

	member, err := groups.Membership(r.Context(), h.db, groupID, targetID)
	if err != nil {
		if errors.Is(err, groups.ErrNotMember) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Member not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update member"})
		return
	}

	if err := h.db.WithContext(r.Context()).
		Model(member).
		Update("role", req.Role).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update member"})
		return
	}

	member.Role = models.MemberRole(req.Role)
	writeJSON(w, http.StatusOK, memberToResponse(member))
}

// RemoveMember handles DELETE /api/v1/groups/:id/members/:userID
// Admins can remove anyone but themselves; members can leave on their own.
func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	groupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid group ID"})
		return
	}
	targetID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid user ID"})
		return
	}

	if targetID != userID {
		if !h.requireAdmin(w, r, groupID, userID) {
			return
		}
	} else {
		// Leaving: the last admin cannot walk away from the group.
		member, err := groups.Membership(r.Context(), h.db, groupID, userID)
		if err != nil {
			if errors.Is(err, groups.ErrNotMember) {
				writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Member not found"})
				return
			}
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to remove member"})
			return
		}
		if member.Role == models.RoleAdmin {
			var admins int64
			if err := h.db.WithContext(r.Context()).
				Model(&models.GroupMember{}).
				Where("group_id = ? AND role = ?", groupID, models.RoleAdmin).
				Count(&admins).Error; err != nil {
				writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to remove member"})
				return
			}
			if admins <= 1 {
				writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Cannot remove the last admin"})
				return
			}
		}
	}

	member, err := groups.Membership(r.Context(), h.db, groupID, targetID)
	if err != nil {
		if errors.Is(err, groups.ErrNotMember) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Member not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to remove member"})
		return
	}

	if err := h.db.WithContext(r.Context()).Delete(member).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to remove member"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Member removed"})
}
