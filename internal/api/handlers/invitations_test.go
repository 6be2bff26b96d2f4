package handlers_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorkemoa/todobus/internal/api/handlers"
	"github.com/gorkemoa/todobus/internal/api/middleware"
	"github.com/gorkemoa/todobus/internal/database/models"
	"github.com/gorkemoa/todobus/internal/invites"
	"github.com/gorkemoa/todobus/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupInvitationTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := invites.NewService(tc.DB, nil, logger, "http://localhost:3000", 7*24*time.Hour)
	handler := handlers.NewInvitationHandler(tc.DB, service)

	r := chi.NewRouter()
	r.Get("/api/v1/invitations/{token}/status", handler.Check)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(tc.JWTService))
		r.Route("/api/v1/invitations", func(r chi.Router) {
			r.Post("/", handler.Create)
			r.Get("/mine", handler.Mine)
			r.Get("/sent", handler.Sent)
			r.Post("/{token}/accept", handler.Accept)
		})
	})

	return r, tc
}

func TestInvitationHandler_Create(t *testing.T) {
	router, tc := setupInvitationTestRouter(t)
	defer tc.Cleanup()

	t.Run("admin invites by email", func(t *testing.T) {
		body := map[string]string{
			"group_id": tc.Group.ID.String(),
			"email":    "friend@example.com",
		}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/invitations/", body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusCreated)

		var resp handlers.InvitationResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "friend@example.com", resp.Email)
		assert.Equal(t, string(models.InvitationPending), resp.Status)
		assert.NotEmpty(t, resp.Token)
		assert.NotEmpty(t, resp.ExpiresAt)
	})

	t.Run("duplicate pending invitation", func(t *testing.T) {
		body := map[string]string{
			"group_id": tc.Group.ID.String(),
			"email":    "friend@example.com",
		}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/invitations/", body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("inviting an existing member", func(t *testing.T) {
		body := map[string]string{
			"group_id": tc.Group.ID.String(),
			"email":    tc.User.Email,
		}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/invitations/", body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("non-admin cannot invite", func(t *testing.T) {
		member := testutil.CreateTestUser(t, tc.DB)
		testutil.AddTestMember(t, tc.DB, tc.Group, member, models.RoleMember)
		token := testutil.GenerateTestToken(t, tc.JWTService, member)

		body := map[string]string{
			"group_id": tc.Group.ID.String(),
			"email":    "blocked@example.com",
		}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/invitations/", body, token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("invalid email", func(t *testing.T) {
		body := map[string]string{
			"group_id": tc.Group.ID.String(),
			"email":    "not-an-email",
		}

		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/invitations/", body, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestInvitationHandler_Check(t *testing.T) {
	router, tc := setupInvitationTestRouter(t)
	defer tc.Cleanup()

	t.Run("valid token needs no auth", func(t *testing.T) {
		inv := testutil.CreateTestInvitation(t, tc.DB, tc.Group, tc.User, "visitor@example.com")

		req := testutil.UnauthenticatedRequest(t, "GET", "/api/v1/invitations/"+inv.Token+"/status", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp invites.CheckResult
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, invites.StatusValid, resp.Status)
		assert.Equal(t, tc.Group.Name, resp.GroupName)
		assert.Equal(t, "visitor@example.com", resp.Email)
	})

	t.Run("expired token", func(t *testing.T) {
		inv := testutil.CreateTestInvitation(t, tc.DB, tc.Group, tc.User, "old@example.com")
		require.NoError(t, tc.DB.Model(inv).
			Update("expires_at", time.Now().Add(-time.Hour)).Error)

		req := testutil.UnauthenticatedRequest(t, "GET", "/api/v1/invitations/"+inv.Token+"/status", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp invites.CheckResult
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, invites.StatusExpired, resp.Status)
	})

	t.Run("unknown token", func(t *testing.T) {
		req := testutil.UnauthenticatedRequest(t, "GET", "/api/v1/invitations/nope/status", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})
}

func TestInvitationHandler_Accept(t *testing.T) {
	router, tc := setupInvitationTestRouter(t)
	defer tc.Cleanup()

	t.Run("invited user joins", func(t *testing.T) {
		invitee := testutil.CreateTestUserWithEmail(t, tc.DB, "joins@example.com")
		token := testutil.GenerateTestToken(t, tc.JWTService, invitee)
		inv := testutil.CreateTestInvitation(t, tc.DB, tc.Group, tc.User, "joins@example.com")

		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/invitations/"+inv.Token+"/accept", nil, token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp invites.AcceptResult
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, tc.Group.ID, resp.GroupID)
		assert.False(t, resp.AlreadyMember)
	})

	t.Run("wrong user is forbidden", func(t *testing.T) {
		other := testutil.CreateTestUserWithEmail(t, tc.DB, "wrong@example.com")
		token := testutil.GenerateTestToken(t, tc.JWTService, other)
		inv := testutil.CreateTestInvitation(t, tc.DB, tc.Group, tc.User, "right@example.com")

		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/invitations/"+inv.Token+"/accept", nil, token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("expired invitation", func(t *testing.T) {
		invitee := testutil.CreateTestUserWithEmail(t, tc.DB, "tardy@example.com")
		token := testutil.GenerateTestToken(t, tc.JWTService, invitee)
		inv := testutil.CreateTestInvitation(t, tc.DB, tc.Group, tc.User, "tardy@example.com")
		require.NoError(t, tc.DB.Model(inv).
			Update("expires_at", time.Now().Add(-time.Hour)).Error)

		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/invitations/"+inv.Token+"/accept", nil, token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("requires authentication", func(t *testing.T) {
		inv := testutil.CreateTestInvitation(t, tc.DB, tc.Group, tc.User, "anon@example.com")

		req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/invitations/"+inv.Token+"/accept", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})
}

func TestInvitationHandler_Lists(t *testing.T) {
	router, tc := setupInvitationTestRouter(t)
	defer tc.Cleanup()

	invitee := testutil.CreateTestUserWithEmail(t, tc.DB, "inbox@example.com")
	inviteeToken := testutil.GenerateTestToken(t, tc.JWTService, invitee)
	testutil.CreateTestInvitation(t, tc.DB, tc.Group, tc.User, "inbox@example.com")

	t.Run("mine shows pending invitations for my email", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/invitations/mine", nil, inviteeToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp []handlers.InvitationResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		require.Len(t, resp, 1)
		assert.Equal(t, "inbox@example.com", resp[0].Email)
		assert.Equal(t, tc.Group.Name, resp[0].GroupName)
	})

	t.Run("sent shows what I issued", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/invitations/sent", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp []handlers.InvitationResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		require.Len(t, resp, 1)
		// The token stays out of the sender's view.
		assert.Empty(t, resp[0].Token)
	})

	t.Run("empty inbox", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/invitations/mine", nil, tc.Token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp []handlers.InvitationResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Empty(t, resp)
	})
}
