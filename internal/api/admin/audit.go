// audit.go implements read access to the audit log.
package admin

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/muazhazali/lepakmasjid/internal/api/respond"
	"github.com/muazhazali/lepakmasjid/internal/audit"
	"github.com/muazhazali/lepakmasjid/internal/models"
)

// AuditQuery is the subset of audit.Query used by the handlers.
type AuditQuery interface {
	List(ctx context.Context, f models.AuditFilter, page, perPage int) (*audit.Page, error)
	Get(ctx context.Context, id string) (*models.AuditLog, error)
}

// AuditHandlers serves /api/v1/admin/audit-logs.
type AuditHandlers struct {
	query AuditQuery
}

func NewAuditHandlers(query AuditQuery) *AuditHandlers {
	return &AuditHandlers{query: query}
}

// @Summary      List audit logs
// @Tags         Audit
// @Security     Bearer
// @Produce      json
// @Param        action      query  string  false  "create | update | delete | approve | reject"
// @Param        entityType  query  string  false  "mosque | submission | user"
// @Param        actorId     query  string  false  "Actor user ID"
// @Param        startDate   query  string  false  "Inclusive lower bound"
// @Param        endDate     query  string  false  "Inclusive upper bound"
// @Param        page        query  int     false  "Page number (default 1)"
// @Param        perPage     query  int     false  "Items per page (default 50, max 200)"
// @Success      200  {object}  audit.Page
// @Failure      400  {object}  map[string]interface{}  "Invalid filter"
// @Router       /api/v1/admin/audit-logs [get]
func (h *AuditHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var f models.AuditFilter
		if err := c.ShouldBindQuery(&f); err != nil {
			respond.BadRequest(c, "Invalid filter")
			return
		}
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		perPage, _ := strconv.Atoi(c.DefaultQuery("perPage", "50"))

		res, err := h.query.List(c.Request.Context(), f, page, perPage)
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// @Summary      Get audit log entry
// @Tags         Audit
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Audit log ID"
// @Success      200  {object}  models.AuditLog
// @Failure      404  {object}  map[string]interface{}  "Audit log not found"
// @Router       /api/v1/admin/audit-logs/{id} [get]
func (h *AuditHandlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entry, err := h.query.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}
