// Package middleware provides the gin middleware shared by every route:
// request ids, metrics, request logging, security headers, CORS, rate
// limiting, authentication, role checks and audit context.
//
// Ordering is fixed in internal/api/router.go:
//
//	Recovery → RequestID → Metrics → Logger → CORS → Security → RateLimit → Auth → AuditContext → Handler
//
// Rate limiting runs before auth so brute-force login attempts are rejected
// before any Record Source work.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/muazhazali/lepakmasjid/internal/auth"
)

// Context keys set by Authenticate.
const (
	UserIDKey = "user_id"
	EmailKey  = "email"
	RoleKey   = "role"
	ClaimsKey = "claims"
)

// Authenticate reads an optional "Authorization: Bearer <token>" header. A
// valid token populates the user keys; a missing header continues
// anonymously; a malformed or invalid token is rejected with 401 so clients
// notice expired sessions.
func Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header must be 'Bearer <token>'",
			})
			return
		}

		claims, err := auth.ValidateJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Session expired. Please sign in again.",
			})
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(UserIDKey, claims.UserID)
		c.Set(EmailKey, claims.Email)
		c.Set(RoleKey, claims.Role)
		c.Next()
	}
}

// RequireAuth rejects anonymous requests. It must run after Authenticate.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Please sign in to continue.",
			})
			return
		}
		c.Next()
	}
}

// CurrentUserID returns the authenticated user's id, or "".
func CurrentUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// CurrentClaims returns the validated token claims, if any.
func CurrentClaims(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}
