package models

import (
	"time"

	"github.com/google/uuid"
)

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
)

// Invitation grants one e-mail address a time-boxed, single-use right to
// join one group. Expiry is never stored as a status: a pending invitation
// past ExpiresAt stays "pending" in storage and is judged expired at read
// time.
type Invitation struct {
	Base
	Token       string           `gorm:"uniqueIndex;not null" json:"token"`
	Email       string           `gorm:"not null;index:idx_invitations_group_email" json:"email"`
	Status      InvitationStatus `gorm:"not null;index;default:'pending'" json:"status"`
	GroupID     uuid.UUID        `gorm:"type:uuid;not null;index:idx_invitations_group_email" json:"group_id"`
	InvitedByID uuid.UUID        `gorm:"type:uuid;not null" json:"invited_by_id"`
	ExpiresAt   time.Time        `gorm:"not null" json:"expires_at"`
	AcceptedAt  *time.Time       `json:"accepted_at,omitempty"`

	// Relationships
	Group     *Group `gorm:"foreignKey:GroupID" json:"-"`
	InvitedBy *User  `gorm:"foreignKey:InvitedByID" json:"-"`
}

func (Invitation) TableName() string {
	return "invitations"
}

// Expired reports whether the invitation is past its expiry at the given
// instant. Only meaningful for pending invitations.
func (i *Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
