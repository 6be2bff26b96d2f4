package tasks_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/gorkemoa/todobus/internal/database/models"
	"github.com/gorkemoa/todobus/internal/mailer"
	"github.com/gorkemoa/todobus/internal/tasks"
	"github.com/gorkemoa/todobus/internal/testutil"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent []mailer.Message
	err  error
}

func (r *recordingSender) Send(msg mailer.Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func TestHandleInviteEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	admin := testutil.CreateTestUser(t, db)
	group := testutil.CreateTestGroup(t, db, admin)

	newTask := func(t *testing.T, inv *models.Invitation) *asynq.Task {
		t.Helper()
		task, err := tasks.NewInviteEmailTask(tasks.InviteEmailPayload{
			InvitationID: inv.ID,
			To:           inv.Email,
			InviterName:  admin.Name,
			GroupName:    group.Name,
			InviteURL:    "http://localhost:3000/invite/" + inv.Token,
		})
		require.NoError(t, err)
		return task
	}

	t.Run("delivers the invite email", func(t *testing.T) {
		inv := testutil.CreateTestInvitation(t, db, group, admin, "recipient@example.com")
		sender := &recordingSender{}
		handler := tasks.NewHandler(db, logger, sender)

		err := handler.HandleInviteEmail(context.Background(), newTask(t, inv))
		require.NoError(t, err)

		require.Len(t, sender.sent, 1)
		msg := sender.sent[0]
		assert.Equal(t, "recipient@example.com", msg.To)
		assert.Contains(t, msg.Subject, group.Name)
		assert.Contains(t, msg.HTML, "http://localhost:3000/invite/"+inv.Token)
		assert.Contains(t, msg.HTML, admin.Name)
	})

	t.Run("skips an invitation that is no longer pending", func(t *testing.T) {
		inv := testutil.CreateTestInvitation(t, db, group, admin, "gone@example.com")
		require.NoError(t, db.Model(inv).
			Update("status", models.InvitationAccepted).Error)

		sender := &recordingSender{}
		handler := tasks.NewHandler(db, logger, sender)

		err := handler.HandleInviteEmail(context.Background(), newTask(t, inv))
		require.NoError(t, err)
		assert.Empty(t, sender.sent)
	})

	t.Run("skips a deleted invitation", func(t *testing.T) {
		inv := testutil.CreateTestInvitation(t, db, group, admin, "deleted@example.com")
		task := newTask(t, inv)
		require.NoError(t, db.Unscoped().Delete(inv).Error)

		sender := &recordingSender{}
		handler := tasks.NewHandler(db, logger, sender)

		err := handler.HandleInviteEmail(context.Background(), task)
		require.NoError(t, err)
		assert.Empty(t, sender.sent)
	})

	t.Run("send failure is returned for retry", func(t *testing.T) {
		inv := testutil.CreateTestInvitation(t, db, group, admin, "retry@example.com")
		sender := &recordingSender{err: assert.AnError}
		handler := tasks.NewHandler(db, logger, sender)

		err := handler.HandleInviteEmail(context.Background(), newTask(t, inv))
		assert.Error(t, err)
	})
}
