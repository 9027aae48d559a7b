package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phishquest/phishquest-api/internal/models"
)

func newClaimsCapturingHandler(captured **models.TokenClaims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = GetUserFromContext(r)
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager(testJWTSecret, time.Hour)

	t.Run("missing header", func(t *testing.T) {
		var captured *models.TokenClaims
		handler := AuthMiddleware(tm)(newClaimsCapturingHandler(&captured))

		req := httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Nil(t, captured)
	})

	t.Run("malformed header", func(t *testing.T) {
		var captured *models.TokenClaims
		handler := AuthMiddleware(tm)(newClaimsCapturingHandler(&captured))

		for _, header := range []string{"Basic abc123", "Bearer", "token-without-scheme"} {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
			req.Header.Set("Authorization", header)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		var captured *models.TokenClaims
		handler := AuthMiddleware(tm)(newClaimsCapturingHandler(&captured))

		req := httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
		req.Header.Set("Authorization", "Bearer not-a-real-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token injects claims", func(t *testing.T) {
		token, err := tm.GenerateSessionToken(42, "player_one")
		require.NoError(t, err)

		var captured *models.TokenClaims
		handler := AuthMiddleware(tm)(newClaimsCapturingHandler(&captured))

		req := httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, captured)
		assert.Equal(t, int64(42), captured.UserID)
		assert.Equal(t, "player_one", captured.Username)
	})
}

func TestRequireSession(t *testing.T) {
	tm := NewTokenManager(testJWTSecret, time.Hour)

	t.Run("session token passes", func(t *testing.T) {
		token, err := tm.GenerateSessionToken(42, "player_one")
		require.NoError(t, err)

		var captured *models.TokenClaims
		handler := AuthMiddleware(tm)(RequireSession(newClaimsCapturingHandler(&captured)))

		req := httptest.NewRequest(http.MethodGet, "/api/progress", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("setup token is rejected", func(t *testing.T) {
		token, err := tm.GenerateSetupToken(42, "player_one")
		require.NoError(t, err)

		var captured *models.TokenClaims
		handler := AuthMiddleware(tm)(RequireSession(newClaimsCapturingHandler(&captured)))

		req := httptest.NewRequest(http.MethodGet, "/api/progress", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Nil(t, captured)
	})

	t.Run("no claims in context", func(t *testing.T) {
		var captured *models.TokenClaims
		handler := RequireSession(newClaimsCapturingHandler(&captured))

		req := httptest.NewRequest(http.MethodGet, "/api/progress", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestGetUserFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, GetUserFromContext(req))
}
