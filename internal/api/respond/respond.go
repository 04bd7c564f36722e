// Package respond writes the JSON error shape shared by every handler:
// {"error": "<user-safe message>"} with a status derived from the error kind.
package respond

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muazhazali/lepakmasjid/internal/apperrors"
)

// Error maps err to its status and safe message. Server-side failures are
// logged with the request id; client errors are not.
func Error(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", c.GetString("request_id"),
			"error", err,
		)
	}
	c.JSON(status, gin.H{"error": apperrors.Message(err)})
}

// BadRequest responds 400 with message.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

// BindJSON decodes the request body into v. It responds 400 and returns false
// when the body is missing or malformed; validation is left to the services.
func BindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body is too large"})
		case errors.Is(err, io.EOF):
			BadRequest(c, "Request body is required")
		default:
			BadRequest(c, "Invalid request body")
		}
		return false
	}
	return true
}
