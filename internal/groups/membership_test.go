package groups_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/gorkemoa/todobus/internal/database/models"
	"github.com/gorkemoa/todobus/internal/groups"
	"github.com/gorkemoa/todobus/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMembership(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	ctx := testutil.TestContext(t)
	admin := testutil.CreateTestUser(t, db)
	group := testutil.CreateTestGroup(t, db, admin)

	t.Run("member row is returned", func(t *testing.T) {
		member, err := groups.Membership(ctx, db, group.ID, admin.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, member.Role)
	})

	t.Run("non-member", func(t *testing.T) {
		outsider := testutil.CreateTestUser(t, db)
		_, err := groups.Membership(ctx, db, group.ID, outsider.ID)
		assert.ErrorIs(t, err, groups.ErrNotMember)
	})
}

func TestRequireAdmin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	ctx := testutil.TestContext(t)
	admin := testutil.CreateTestUser(t, db)
	group := testutil.CreateTestGroup(t, db, admin)

	t.Run("admin passes", func(t *testing.T) {
		_, err := groups.RequireAdmin(ctx, db, group.ID, admin.ID)
		assert.NoError(t, err)
	})

	t.Run("plain member fails", func(t *testing.T) {
		member := testutil.CreateTestUser(t, db)
		testutil.AddTestMember(t, db, group, member, models.RoleMember)

		_, err := groups.RequireAdmin(ctx, db, group.ID, member.ID)
		assert.ErrorIs(t, err, groups.ErrNotAdmin)
	})

	t.Run("outsider fails", func(t *testing.T) {
		outsider := testutil.CreateTestUser(t, db)
		_, err := groups.RequireAdmin(ctx, db, group.ID, outsider.ID)
		assert.ErrorIs(t, err, groups.ErrNotMember)
	})
}

func TestFind(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	ctx := testutil.TestContext(t)
	admin := testutil.CreateTestUser(t, db)
	group := testutil.CreateTestGroup(t, db, admin)

	found, err := groups.Find(ctx, db, group.ID)
	require.NoError(t, err)
	assert.Equal(t, group.Name, found.Name)

	_, err = groups.Find(ctx, db, uuid.New())
	assert.ErrorIs(t, err, groups.ErrGroupNotFound)
}

func TestMemberGroupIDs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	ctx := testutil.TestContext(t)
	user := testutil.CreateTestUser(t, db)
	a := testutil.CreateTestGroup(t, db, user)
	b := testutil.CreateTestGroup(t, db, user)
	testutil.CreateTestGroup(t, db, testutil.CreateTestUser(t, db))

	ids, err := groups.MemberGroupIDs(ctx, db, user.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, ids)
}
