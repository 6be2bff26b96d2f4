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
	"github.com/gorkemoa/todobus/internal/invites"
	"gorm.io/gorm"
)

type InvitationHandler struct {
	db      *gorm.DB
	service *invites.Service
}

func NewInvitationHandler(db *gorm.DB, service *invites.Service) *InvitationHandler {
	return &InvitationHandler{db: db, service: service}
}

type CreateInvitationRequest struct {
	GroupID string `json:"group_id"`
	Email   string `json:"email"`
}

func (r CreateInvitationRequest) Validate() map[string]string {
	errs := make(map[string]string)
	if r.GroupID == "" {
		errs["group_id"] = "Group ID is required"
	} else if !validation.IsValidUUID(r.GroupID) {
		errs["group_id"] = "Group ID must be a valid UUID"
	}
	if r.Email == "" {
		errs["email"] = "Email is required"
	} else if !validation.IsValidEmail(r.Email) {
		errs["email"] = "Email is not valid"
	}
	return errs
}

type InvitationResponse struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	Status      string  `json:"status"`
	GroupID     string  `json:"group_id"`
	GroupName   string  `json:"group_name,omitempty"`
	InviterName string  `json:"inviter_name,omitempty"`
	Token       string  `json:"token,omitempty"`
	ExpiresAt   string  `json:"expires_at"`
	AcceptedAt  *string `json:"accepted_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func invitationToResponse(inv *models.Invitation, includeToken bool) InvitationResponse {
	resp := InvitationResponse{
		ID:        inv.ID.String(),
		Email:     inv.Email,
		Status:    string(inv.Status),
		GroupID:   inv.GroupID.String(),
		ExpiresAt: inv.ExpiresAt.Format(time.RFC3339),
		CreatedAt: inv.CreatedAt.Format(time.RFC3339),
	}
	if includeToken {
		resp.Token = inv.Token
	}
	if inv.Group != nil {
		resp.GroupName = inv.Group.Name
	}
	if inv.InvitedBy != nil {
		resp.InviterName = inv.InvitedBy.Name
	}
	if inv.AcceptedAt != nil {
		at := inv.AcceptedAt.Format(time.RFC3339)
		resp.AcceptedAt = &at
	}
	return resp
}

func (h *InvitationHandler) actingUser(r *http.Request) (*models.User, error) {
	userID := middleware.GetUserID(r.Context())
	var user models.User
	if err := h.db.WithContext(r.Context()).First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Create handles POST /api/v1/invitations
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	user, err := h.actingUser(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthorized"})
		return
	}

	groupID := uuid.MustParse(req.GroupID)

	invitation, err := h.service.Create(r.Context(), groupID, req.Email, user)
	if err != nil {
		switch {
		case errors.Is(err, invites.ErrGroupNotFound):
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Group not found"})
		case errors.Is(err, invites.ErrForbidden):
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Only group admins can invite"})
		case errors.Is(err, invites.ErrAlreadyMember):
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "User is already a member of this group"})
		case errors.Is(err, invites.ErrAlreadyInvited):
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "A pending invitation already exists for this email"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create invitation"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, invitationToResponse(invitation, true))
}

// Check handles GET /api/v1/invitations/{token}/status
// Public: the invite landing page calls this before the user signs in.
func (h *InvitationHandler) Check(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	result, err := h.service.Check(r.Context(), token)
	if err != nil {
		if errors.Is(err, invites.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Invitation not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to check invitation"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Accept handles POST /api/v1/invitations/{token}/accept
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	user, err := h.actingUser(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthorized"})
		return
	}

	result, err := h.service.Accept(r.Context(), token, user)
	if err != nil {
		switch {
		case errors.Is(err, invites.ErrNotFound):
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Invitation not found"})
		case errors.Is(err, invites.ErrAlreadyAccepted):
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invitation has already been accepted"})
		case errors.Is(err, invites.ErrExpired):
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invitation has expired"})
		case errors.Is(err, invites.ErrEmailMismatch):
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "This invitation was sent to a different email address"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to accept invitation"})
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Mine handles GET /api/v1/invitations/mine
// Pending invitations addressed to the signed-in user's email.
func (h *InvitationHandler) Mine(w http.ResponseWriter, r *http.Request) {
	email := middleware.GetUserEmail(r.Context())

	invitations, err := h.service.ListPendingFor(r.Context(), email)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list invitations"})
		return
	}

	response := make([]InvitationResponse, len(invitations))
	for i := range invitations {
		response[i] = invitationToResponse(&invitations[i], true)
	}

	writeJSON(w, http.StatusOK, response)
}

// Sent handles GET /api/v1/invitations/sent
// Every invitation the signed-in user has issued, any status.
func (h *InvitationHandler) Sent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	invitations, err := h.service.ListSentBy(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list invitations"})
		return
	}

	response := make([]InvitationResponse, len(invitations))
	for i := range invitations {
		response[i] = invitationToResponse(&invitations[i], false)
	}

	writeJSON(w, http.StatusOK, response)
}
