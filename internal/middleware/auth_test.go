package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muazhazali/lepakmasjid/internal/auth"
	"github.com/muazhazali/lepakmasjid/internal/models"
)

func bearer(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := auth.GenerateJWT(userID, userID+"@example.com", role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func authRequest(header string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	return req
}

// ---------------------------------------------------------------------------
// Authenticate
// ---------------------------------------------------------------------------

func TestAuthenticate_AnonymousContinues(t *testing.T) {
	var uid string
	w := serve(authRequest(""), Authenticate(), func(c *gin.Context) {
		uid = CurrentUserID(c)
		c.Status(http.StatusOK)
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, uid)
}

func TestAuthenticate_ValidToken(t *testing.T) {
	var (
		uid, role string
		claims    *auth.Claims
	)
	w := serve(authRequest(bearer(t, "u1", models.RoleAdmin)), Authenticate(), func(c *gin.Context) {
		uid = CurrentUserID(c)
		role = c.GetString(RoleKey)
		claims, _ = CurrentClaims(c)
		c.Status(http.StatusOK)
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", uid)
	assert.Equal(t, models.RoleAdmin, role)
	require.NotNil(t, claims)
	assert.True(t, claims.IsAdmin())
}

func TestAuthenticate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"empty token", "Bearer "},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(authRequest(tt.header), Authenticate(), ok)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	tok, err := auth.GenerateJWT("u1", "u1@example.com", "", -time.Minute)
	require.NoError(t, err)
	w := serve(authRequest("Bearer "+tok), Authenticate(), ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Session expired")
}

// ---------------------------------------------------------------------------
// RequireAuth / RequireAdmin
// ---------------------------------------------------------------------------

func TestRequireAuth(t *testing.T) {
	w := serve(authRequest(""), Authenticate(), RequireAuth(), ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(authRequest(bearer(t, "u1", "")), Authenticate(), RequireAuth(), ok)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"plain user", bearer(t, "u1", ""), http.StatusForbidden},
		{"admin", bearer(t, "a1", models.RoleAdmin), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(authRequest(tt.header), Authenticate(), RequireAdmin(), ok)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRequireRole_AnyOf(t *testing.T) {
	w := serve(authRequest(bearer(t, "m1", "moderator")), Authenticate(), RequireRole(models.RoleAdmin, "moderator"), ok)
	assert.Equal(t, http.StatusOK, w.Code)
}
