// Package activities implements the admin endpoints for mosque activities.
// Public reads go through the mosque endpoints.
package activities

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muazhazali/lepakmasjid/internal/api/respond"
	"github.com/muazhazali/lepakmasjid/internal/cache"
	"github.com/muazhazali/lepakmasjid/internal/middleware"
	"github.com/muazhazali/lepakmasjid/internal/models"
)

// ActivityService is the subset of activities.Service used by the handlers.
type ActivityService interface {
	Get(ctx context.Context, id string) (*models.Activity, error)
	Create(ctx context.Context, in models.ActivityInput, createdBy string) (*models.Activity, error)
	Update(ctx context.Context, id string, upd models.ActivityUpdate) (*models.Activity, error)
	Delete(ctx context.Context, id string) error
}

// Handlers serves /api/v1/admin/activities.
type Handlers struct {
	svc   ActivityService
	cache *cache.Cache
}

// NewHandlers creates the activity handlers. c may be nil.
func NewHandlers(svc ActivityService, c *cache.Cache) *Handlers {
	return &Handlers{svc: svc, cache: c}
}

// @Summary      Get activity
// @Tags         Admin
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Activity ID"
// @Success      200  {object}  models.Activity
// @Router       /api/v1/admin/activities/{id} [get]
func (h *Handlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := h.svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

// @Summary      Create activity
// @Tags         Admin
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      201  {object}  models.Activity
// @Router       /api/v1/admin/activities [post]
func (h *Handlers) CreateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in models.ActivityInput
		if !respond.BindJSON(c, &in) {
			return
		}
		a, err := h.svc.Create(c.Request.Context(), in, middleware.CurrentUserID(c))
		if err != nil {
			respond.Error(c, err)
			return
		}
		h.cache.Invalidate(c.Request.Context(), cache.Mosques)
		c.JSON(http.StatusCreated, a)
	}
}

// @Summary      Update activity
// @Tags         Admin
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id  path  string  true  "Activity ID"
// @Success      200  {object}  models.Activity
// @Router       /api/v1/admin/activities/{id} [patch]
func (h *Handlers) UpdateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var upd models.ActivityUpdate
		if !respond.BindJSON(c, &upd) {
			return
		}
		a, err := h.svc.Update(c.Request.Context(), c.Param("id"), upd)
		if err != nil {
			respond.Error(c, err)
			return
		}
		h.cache.Invalidate(c.Request.Context(), cache.Mosques)
		c.JSON(http.StatusOK, a)
	}
}

// @Summary      Delete activity
// @Tags         Admin
// @Security     Bearer
// @Param        id  path  string  true  "Activity ID"
// @Success      204
// @Router       /api/v1/admin/activities/{id} [delete]
func (h *Handlers) DeleteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
			respond.Error(c, err)
			return
		}
		h.cache.Invalidate(c.Request.Context(), cache.Mosques)
		c.Status(http.StatusNoContent)
	}
}
