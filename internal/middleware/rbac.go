package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muazhazali/lepakmasjid/internal/models"
)

// RequireAdmin allows only tokens carrying the admin role. The role is read
// from the token, so a demotion takes effect when the session is renewed.
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin)
}

// RequireRole allows only tokens carrying one of roles. Anonymous requests
// get 401, authenticated ones without the role get 403.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Please sign in to continue.",
			})
			return
		}
		role := c.GetString(RoleKey)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "Access denied. Please check your permissions.",
		})
	}
}
