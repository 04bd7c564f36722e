package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/muazhazali/lepakmasjid/internal/audit"
)

// AuditContext attaches the actor, client IP and user agent to the request
// context so services can record audit entries without seeing gin. It must
// run after Authenticate; anonymous requests carry an empty actor and their
// mutations are not audited.
func AuditContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := audit.WithRequestInfo(c.Request.Context(), audit.RequestInfo{
			ActorID:   CurrentUserID(c),
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
