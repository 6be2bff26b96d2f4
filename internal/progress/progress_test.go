package progress_test

import (
	"testing"

	"github.com/gorkemoa/todobus/internal/database/models"
	"github.com/gorkemoa/todobus/internal/progress"
	"github.com/gorkemoa/todobus/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		completed int
		expected  int
	}{
		{"no_tasks", 0, 0, 0},
		{"none_done", 4, 0, 0},
		{"all_done", 4, 4, 100},
		{"half", 4, 2, 50},
		{"one_third_rounds_down", 3, 1, 33},
		{"two_thirds_rounds_up", 3, 2, 67},
		{"one_of_eight", 8, 1, 13},
		{"single_done", 1, 1, 100},
		{"single_open", 1, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, progress.Compute(tt.total, tt.completed))
		})
	}
}

func TestRecompute(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	group := testutil.CreateTestGroup(t, db, user)
	project := testutil.CreateTestProject(t, db, group)
	ctx := testutil.TestContext(t)

	t.Run("empty project is zero", func(t *testing.T) {
		pct, err := progress.Recompute(ctx, db, project.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, pct)
	})

	t.Run("counts only completed tasks", func(t *testing.T) {
		testutil.CreateTestTask(t, db, project, user, models.TaskCompleted)
		testutil.CreateTestTask(t, db, project, user, models.TaskPending)
		testutil.CreateTestTask(t, db, project, user, models.TaskInProgress)

		pct, err := progress.Recompute(ctx, db, project.ID)
		require.NoError(t, err)
		assert.Equal(t, 33, pct)

		var stored models.Project
		require.NoError(t, db.First(&stored, project.ID).Error)
		assert.Equal(t, 33, stored.Progress)
	})

	t.Run("cancelled tasks still count toward the total", func(t *testing.T) {
		testutil.CreateTestTask(t, db, project, user, models.TaskCancelled)

		pct, err := progress.Recompute(ctx, db, project.ID)
		require.NoError(t, err)
		assert.Equal(t, 25, pct)
	})

	t.Run("all completed is one hundred", func(t *testing.T) {
		require.NoError(t, db.Model(&models.Task{}).
			Where("project_id = ?", project.ID).
			Update("status", models.TaskCompleted).Error)

		pct, err := progress.Recompute(ctx, db, project.ID)
		require.NoError(t, err)
		assert.Equal(t, 100, pct)
	})
}
