// Package invites implements the invitation lifecycle: issuing e-mail
// invitations to join a group, validating them by token, and resolving
// acceptance. The only stored transition is pending -> accepted; expiry is
// a read-time judgment against the wall clock, never written back.
package invites

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorkemoa/todobus/internal/database/models"
	"github.com/gorkemoa/todobus/internal/tasks"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

var (
	ErrGroupNotFound   = errors.New("group not found")
	ErrForbidden       = errors.New("only group admins can invite")
	ErrAlreadyMember   = errors.New("email already belongs to a group member")
	ErrAlreadyInvited  = errors.New("a pending invitation already exists for this email")
	ErrNotFound        = errors.New("invitation not found")
	ErrExpired         = errors.New("invitation has expired")
	ErrAlreadyAccepted = errors.New("invitation has already been accepted")
	ErrEmailMismatch   = errors.New("invitation is bound to a different email")
)

type Service struct {
	db          *gorm.DB
	asynqClient *asynq.Client
	logger      *slog.Logger
	baseURL     string
	expiry      time.Duration
}

func NewService(db *gorm.DB, asynqClient *asynq.Client, logger *slog.Logger, baseURL string, expiry time.Duration) *Service {
	return &Service{
		db:          db,
		asynqClient: asynqClient,
		logger:      logger,
		baseURL:     baseURL,
		expiry:      expiry,
	}
}

// InviteURL is the link embedded in invitation e-mails and consumed by the
// front end.
func (s *Service) InviteURL(token string) string {
	return s.baseURL + "/invite/" + token
}

// Create issues a pending invitation for the given e-mail address. The
// acting user must be an admin member of the group. The duplicate checks
// and the insert share one transaction. The invite e-mail is dispatched
// asynchronously after commit; a failed enqueue never rolls the invitation
// back.
func (s *Service) Create(ctx context.Context, groupID uuid.UUID, email string, actingUser *models.User) (*models.Invitation, error) {
	var group models.Group
	if err := s.db.WithContext(ctx).First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}

	invitation := models.Invitation{
		Token:       uuid.NewString(),
		Email:       email,
		Status:      models.InvitationPending,
		GroupID:     groupID,
		InvitedByID: actingUser.ID,
		ExpiresAt:   time.Now().Add(s.expiry),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var member models.GroupMember
		if err := tx.Where("group_id = ? AND user_id = ? AND role = ?",
			groupID, actingUser.ID, models.RoleAdmin).First(&member).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrForbidden
			}
			return err
		}

		// Reject if the address already belongs to a current member.
		var invited models.User
		if err := tx.Where("LOWER(email) = LOWER(?)", email).First(&invited).Error; err == nil {
			var existing models.GroupMember
			if err := tx.Where("group_id = ? AND user_id = ?", groupID, invited.ID).
				First(&existing).Error; err == nil {
				return ErrAlreadyMember
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var pending models.Invitation
		if err := tx.Where("group_id = ? AND LOWER(email) = LOWER(?) AND status = ?",
			groupID, email, models.InvitationPending).First(&pending).Error; err == nil {
			return ErrAlreadyInvited
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		return tx.Create(&invitation).Error
	})
	if err != nil {
		return nil, err
	}

	invitation.Group = &group
	invitation.InvitedBy = actingUser

	s.enqueueInviteEmail(&invitation, actingUser, &group)

	return &invitation, nil
}

func (s *Service) enqueueInviteEmail(invitation *models.Invitation, inviter *models.User, group *models.Group) {
	if s.asynqClient == nil {
		return
	}

	task, err := tasks.NewInviteEmailTask(tasks.InviteEmailPayload{
		InvitationID: invitation.ID,
		To:           invitation.Email,
		InviterName:  inviter.Name,
		GroupName:    group.Name,
		InviteURL:    s.InviteURL(invitation.Token),
	})
	if err != nil {
		s.logger.Error("failed to build invite email task", "invitation_id", invitation.ID, "error", err)
		return
	}

	// Fire-and-forget: the invitation stands even if the e-mail never goes out.
	if _, err := s.asynqClient.Enqueue(task); err != nil {
		s.logger.Warn("failed to enqueue invite email", "invitation_id", invitation.ID, "error", err)
	}
}

type Status string

const (
	StatusValid    Status = "valid"
	StatusExpired  Status = "expired"
	StatusAccepted Status = "accepted"
)

type CheckResult struct {
	Status      Status    `json:"status"`
	GroupID     uuid.UUID `json:"group_id"`
	GroupName   string    `json:"group_name"`
	InviterName string    `json:"inviter_name"`
	Email       string    `json:"email"`
}

// Check looks an invitation up by token and classifies it for display:
// accepted, expired (pending but past expiry at call time), or valid.
func (s *Service) Check(ctx context.Context, token string) (*CheckResult, error) {
	var invitation models.Invitation
	err := s.db.WithContext(ctx).
		Preload("Group").
		Preload("InvitedBy").
		Where("token = ?", token).
		First(&invitation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	result := &CheckResult{
		GroupID: invitation.GroupID,
		Email:   invitation.Email,
	}
	if invitation.Group != nil {
		result.GroupName = invitation.Group.Name
	}
	if invitation.InvitedBy != nil {
		result.InviterName = invitation.InvitedBy.Name
	}

	switch {
	case invitation.Status == models.InvitationAccepted:
		result.Status = StatusAccepted
	case invitation.Expired(time.Now()):
		result.Status = StatusExpired
	default:
		result.Status = StatusValid
	}

	return result, nil
}

type AcceptResult struct {
	GroupID       uuid.UUID `json:"group_id"`
	GroupName     string    `json:"group_name"`
	AlreadyMember bool      `json:"already_member"`
}

// Accept resolves the invitation for the acting user. The invitation is
// bound to the invited address: the acting user's e-mail must match it
// case-insensitively. If the user already belongs to the group the
// invitation is only marked accepted; otherwise the status flip and the
// membership insert run as a single all-or-nothing transaction.
func (s *Service) Accept(ctx context.Context, token string, actingUser *models.User) (*AcceptResult, error) {
	var invitation models.Invitation
	err := s.db.WithContext(ctx).
		Preload("Group").
		Where("token = ?", token).
		First(&invitation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if invitation.Status == models.InvitationAccepted {
		return nil, ErrAlreadyAccepted
	}
	if invitation.Expired(time.Now()) {
		return nil, ErrExpired
	}
	if !strings.EqualFold(invitation.Email, actingUser.Email) {
		return nil, ErrEmailMismatch
	}

	result := &AcceptResult{GroupID: invitation.GroupID}
	if invitation.Group != nil {
		result.GroupName = invitation.Group.Name
	}

	now := time.Now()
	accepted := map[string]interface{}{
		"status":      models.InvitationAccepted,
		"accepted_at": now,
	}

	// Edge case: the user was added through another path since the invite
	// went out. Mark the invitation accepted without duplicating the
	// membership.
	var existing models.GroupMember
	err = s.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", invitation.GroupID, actingUser.ID).
		First(&existing).Error
	if err == nil {
		result.AlreadyMember = true
		if err := s.db.WithContext(ctx).
			Model(&models.Invitation{}).
			Where("id = ?", invitation.ID).
			Updates(accepted).Error; err != nil {
			return nil, err
		}
		return result, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Invitation{}).
			Where("id = ?", invitation.ID).
			Updates(accepted).Error; err != nil {
			return err
		}

		member := models.GroupMember{
			GroupID: invitation.GroupID,
			UserID:  actingUser.ID,
			Role:    models.RoleMember,
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ListPendingFor returns pending invitations addressed to the given e-mail,
// newest first.
func (s *Service) ListPendingFor(ctx context.Context, email string) ([]models.Invitation, error) {
	var invitations []models.Invitation
	err := s.db.WithContext(ctx).
		Preload("Group").
		Preload("InvitedBy").
		Where("LOWER(email) = LOWER(?) AND status = ?", email, models.InvitationPending).
		Order("created_at DESC").
		Find(&invitations).Error
	if err != nil {
		return nil, err
	}
	return invitations, nil
}

// ListSentBy returns every invitation the user has issued, newest first.
func (s *Service) ListSentBy(ctx context.Context, userID uuid.UUID) ([]models.Invitation, error) {
	var invitations []models.Invitation
	err := s.db.WithContext(ctx).
		Preload("Group").
		Where("invited_by_id = ?", userID).
		Order("created_at DESC").
		Find(&invitations).Error
	if err != nil {
		return nil, err
	}
	return invitations, nil
}
