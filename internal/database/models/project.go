package models

import "github.com/google/uuid"

type ProjectStatus string

const (
	ProjectOpen   ProjectStatus = "open"
	ProjectClosed ProjectStatus = "closed"
)

type Project struct {
	Base
	Name        string        `gorm:"not null" json:"name"`
	Description string        `json:"description,omitempty"`
	GroupID     uuid.UUID     `gorm:"type:uuid;not null;index" json:"group_id"`
	Status      ProjectStatus `gorm:"not null;default:'open'" json:"status"`

	// Progress is a derived cache of task completion, recomputed after
	// task mutations. Never settable by clients.
	Progress int `gorm:"not null;default:0" json:"progress"`

	// Relationships
	Group *Group `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	Tasks []Task `gorm:"foreignKey:ProjectID" json:"tasks,omitempty"`
}

func (Project) TableName() string {
	return "projects"
}
