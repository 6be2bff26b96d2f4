package models

import "github.com/google/uuid"

type MemberRole string

const (
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

type Group struct {
	Base
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description,omitempty"`

	// Relationships
	Members     []GroupMember `gorm:"foreignKey:GroupID" json:"members,omitempty"`
	Invitations []Invitation  `gorm:"foreignKey:GroupID" json:"-"`
	Projects    []Project     `gorm:"foreignKey:GroupID" json:"projects,omitempty"`
}

func (Group) TableName() string {
	return "groups"
}

type GroupMember struct {
	Base
	GroupID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_group_members_group_user" json:"group_id"`
	UserID  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_group_members_group_user" json:"user_id"`
	Role    MemberRole `gorm:"not null;default:'member'" json:"role"`

	// Relationships
	Group *Group `gorm:"foreignKey:GroupID" json:"-"`
	User  *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (GroupMember) TableName() string {
	return "group_members"
}
