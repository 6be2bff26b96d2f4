// Package progress keeps Project.Progress consistent with the project's
// task set. The stored percentage is a cache: Compute is the pure function
// of the task counts, Recompute is the persistence hook invoked after task
// mutations that can change completion counts.
package progress

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/gorkemoa/todobus/internal/database/models"
	"gorm.io/gorm"
)

// Compute returns the completion percentage for the given counts.
// Zero tasks means zero progress. Rounding is half-up via math.Round,
// so 1 of 3 completed yields 33 and 2 of 3 yields 67.
func Compute(total, completed int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}

// Recompute counts the project's tasks and persists the derived percentage
// unconditionally (last-writer-wins, no optimistic-concurrency check).
// The computation is idempotent given the same task set, so calling it for
// mutations that could not have changed counts is harmless.
func Recompute(ctx context.Context, db *gorm.DB, projectID uuid.UUID) (int, error) {
	var total, completed int64

	if err := db.WithContext(ctx).
		Model(&models.Task{}).
		Where("project_id = ?", projectID).
		Count(&total).Error; err != nil {
		return 0, fmt.Errorf("counting tasks: %w", err)
	}

	if err := db.WithContext(ctx).
		Model(&models.Task{}).
		Where("project_id = ? AND status = ?", projectID, models.TaskCompleted).
		Count(&completed).Error; err != nil {
		return 0, fmt.Errorf("counting completed tasks: %w", err)
	}

	pct := Compute(int(total), int(completed))

	if err := db.WithContext(ctx).
		Model(&models.Project{}).
		Where("id = ?", projectID).
		Update("progress", pct).Error; err != nil {
		return 0, fmt.Errorf("persisting progress: %w", err)
	}

	return pct, nil
}
