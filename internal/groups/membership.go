package groups

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/gorkemoa/todobus/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrNotMember     = errors.New("not a member of the group")
	ErrNotAdmin      = errors.New("not an admin of the group")
)

// Membership returns the caller's member row for the group, or ErrNotMember.
// Every group- and project-scoped operation resolves this before touching
// data.
func Membership(ctx context.Context, db *gorm.DB, groupID, userID uuid.UUID) (*models.GroupMember, error) {
	var member models.GroupMember
	err := db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotMember
		}
		return nil, err
	}
	return &member, nil
}

// RequireAdmin is Membership plus a role check.
func RequireAdmin(ctx context.Context, db *gorm.DB, groupID, userID uuid.UUID) (*models.GroupMember, error) {
	member, err := Membership(ctx, db, groupID, userID)
	if err != nil {
		return nil, err
	}
	if member.Role != models.RoleAdmin {
		return nil, ErrNotAdmin
	}
	return member, nil
}

// Find loads a group by ID, mapping gorm.ErrRecordNotFound to ErrGroupNotFound.
func Find(ctx context.Context, db *gorm.DB, groupID uuid.UUID) (*models.Group, error) {
	var group models.Group
	if err := db.WithContext(ctx).First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return &group, nil
}

// MemberGroupIDs returns the IDs of every group the user belongs to.
func MemberGroupIDs(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := db.WithContext(ctx).
		Model(&models.GroupMember{}).
		Where("user_id = ?", userID).
		Pluck("group_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
