package models

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

type Task struct {
	Base
	Title       string       `gorm:"not null" json:"title"`
	Description string       `json:"description,omitempty"`
	Status      TaskStatus   `gorm:"not null;index;default:'pending'" json:"status"`
	Priority    TaskPriority `gorm:"not null;default:'medium'" json:"priority"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	ProjectID   uuid.UUID    `gorm:"type:uuid;not null;index" json:"project_id"`
	AssigneeID  *uuid.UUID   `gorm:"type:uuid;index" json:"assignee_id,omitempty"`
	CreatedByID uuid.UUID    `gorm:"type:uuid;not null" json:"created_by_id"`

	// CompletedAt is set when status transitions into completed and
	// cleared when it transitions out.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Relationships
	Project   *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Assignee  *User    `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	CreatedBy *User    `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
}

func (Task) TableName() string {
	return "tasks"
}
