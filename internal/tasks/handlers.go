package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gorkemoa/todobus/internal/database/models"
	"github.com/gorkemoa/todobus/internal/mailer"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
	sender mailer.Sender
}

func NewHandler(db *gorm.DB, logger *slog.Logger, sender mailer.Sender) *Handler {
	return &Handler{
		db:     db,
		logger: logger,
		sender: sender,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeInviteEmail, h.HandleInviteEmail)
}

// HandleInviteEmail delivers one invitation e-mail. The invitation may have
// been accepted or deleted between enqueue and delivery; in that case the
// send is skipped rather than retried.
func (h *Handler) HandleInviteEmail(ctx context.Context, t *asynq.Task) error {
	var payload InviteEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	var invitation models.Invitation
	err := h.db.WithContext(ctx).
		Where("id = ?", payload.InvitationID).
		First(&invitation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.logger.Info("invitation gone, skipping email", "invitation_id", payload.InvitationID)
			return nil
		}
		return err
	}
	if invitation.Status != models.InvitationPending {
		h.logger.Info("invitation no longer pending, skipping email",
			"invitation_id", payload.InvitationID,
			"status", invitation.Status,
		)
		return nil
	}

	msg := mailer.InviteMessage(payload.To, payload.InviterName, payload.GroupName, payload.InviteURL)
	if err := h.sender.Send(msg); err != nil {
		h.logger.Error("failed to send invite email",
			"invitation_id", payload.InvitationID,
			"error", err,
		)
		return err
	}

	h.logger.Info("sent invite email",
		"invitation_id", payload.InvitationID,
		"group", payload.GroupName,
	)

	return nil
}
