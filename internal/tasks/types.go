package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeInviteEmail = "email:invite"
)

// InviteEmailPayload carries everything the worker needs to render and
// send one invitation e-mail.
type InviteEmailPayload struct {
	InvitationID uuid.UUID `json:"invitation_id"`
	To           string    `json:"to"`
	InviterName  string    `json:"inviter_name"`
	GroupName    string    `json:"group_name"`
	InviteURL    string    `json:"invite_url"`
}

func NewInviteEmailTask(payload InviteEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeInviteEmail, data), nil
}
