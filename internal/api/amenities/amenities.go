// Package amenities implements the amenity catalog endpoints and the admin
// endpoints that edit the amenities attached to a mosque.
package amenities

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muazhazali/lepakmasjid/internal/api/respond"
	"github.com/muazhazali/lepakmasjid/internal/apperrors"
	"github.com/muazhazali/lepakmasjid/internal/cache"
	"github.com/muazhazali/lepakmasjid/internal/models"
)

// AmenityService is the subset of amenities.Service used by the handlers.
type AmenityService interface {
	List(ctx context.Context) ([]models.Amenity, error)
	CreateCustom(ctx context.Context, in models.AmenityInput) (*models.Amenity, error)
	GetByMosque(ctx context.Context, mosqueID string) ([]models.MosqueAmenity, error)
	CreateMosqueAmenity(ctx context.Context, mosqueID string, in models.MosqueAmenityInput) (*models.MosqueAmenity, error)
	UpdateMosqueAmenity(ctx context.Context, id string, upd models.MosqueAmenityUpdate) (*models.MosqueAmenity, error)
	DeleteMosqueAmenity(ctx context.Context, id string) error
	ReplaceAll(ctx context.Context, mosqueID string, desired []models.MosqueAmenityInput) ([]models.MosqueAmenity, error)
}

// Handlers serves /api/v1/amenities and the admin amenity routes.
type Handlers struct {
	svc   AmenityService
	cache *cache.Cache
}

// NewHandlers creates the amenity handlers. c may be nil.
func NewHandlers(svc AmenityService, c *cache.Cache) *Handlers {
	return &Handlers{svc: svc, cache: c}
}

// createRequest attaches one amenity row to a mosque.
type createRequest struct {
	MosqueID string `json:"mosque_id"`
	models.MosqueAmenityInput
}

// replaceRequest is the desired amenity set of a mosque. A missing list is
// rejected; an empty list removes every row.
type replaceRequest struct {
	Amenities *[]models.MosqueAmenityInput `json:"amenities"`
}

// @Summary      Amenity catalog
// @Tags         Amenities
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "items: []models.Amenity"
// @Router       /api/v1/amenities [get]
func (h *Handlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := cache.Remember(c.Request.Context(), h.cache, cache.Amenities, "catalog", h.svc.List)
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

// @Summary      Create custom amenity
// @Tags         Admin
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      201  {object}  models.Amenity
// @Failure      400  {object}  map[string]interface{}  "Invalid key"
// @Failure      409  {object}  map[string]interface{}  "Key already exists"
// @Router       /api/v1/admin/amenities [post]
func (h *Handlers) CreateCustomHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in models.AmenityInput
		if !respond.BindJSON(c, &in) {
			return
		}
		a, err := h.svc.CreateCustom(c.Request.Context(), in)
		if err != nil {
			respond.Error(c, err)
			return
		}
		h.cache.Invalidate(c.Request.Context(), cache.Amenities)
		c.JSON(http.StatusCreated, a)
	}
}

// @Summary      List mosque amenities
// @Tags         Admin
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Mosque ID"
// @Success      200  {object}  map[string]interface{}  "items: []models.MosqueAmenity"
// @Router       /api/v1/admin/mosques/{id}/amenities [get]
func (h *Handlers) ListByMosqueHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := h.svc.GetByMosque(c.Request.Context(), c.Param("id"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": rows})
	}
}

// @Summary      Replace mosque amenities
// @Description  Makes the mosque's amenity rows equal to the given set, touching only the difference.
// @Description  Responds 207 with the resulting rows when some changes could not be applied.
// @Tags         Admin
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id  path  string  true  "Mosque ID"
// @Success      200  {object}  map[string]interface{}  "items: []models.MosqueAmenity"
// @Success      207  {object}  map[string]interface{}  "error, items"
// @Router       /api/v1/admin/mosques/{id}/amenities [put]
func (h *Handlers) ReplaceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req replaceRequest
		if !respond.BindJSON(c, &req) {
			return
		}
		if req.Amenities == nil {
			respond.BadRequest(c, "amenities is required")
			return
		}

		rows, err := h.svc.ReplaceAll(c.Request.Context(), c.Param("id"), *req.Amenities)
		if err != nil && !errors.Is(err, apperrors.ErrPartialUpdate) {
			respond.Error(c, err)
			return
		}
		h.cache.Invalidate(c.Request.Context(), cache.Mosques)
		if err != nil {
			c.JSON(http.StatusMultiStatus, gin.H{"error": apperrors.Message(err), "items": rows})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": rows})
	}
}

// @Summary      Attach amenity
// @Tags         Admin
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      201  {object}  models.MosqueAmenity
// @Router       /api/v1/admin/mosque-amenities [post]
func (h *Handlers) CreateRowHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRequest
		if !respond.BindJSON(c, &req) {
			return
		}
		row, err := h.svc.CreateMosqueAmenity(c.Request.Context(), req.MosqueID, req.MosqueAmenityInput)
		if err != nil {
			respond.Error(c, err)
			return
		}
		h.cache.Invalidate(c.Request.Context(), cache.Mosques)
		c.JSON(http.StatusCreated, row)
	}
}

// @Summary      Update attached amenity
// @Tags         Admin
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id  path  string  true  "Mosque amenity ID"
// @Success      200  {object}  models.MosqueAmenity
// @Router       /api/v1/admin/mosque-amenities/{id} [patch]
func (h *Handlers) UpdateRowHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var upd models.MosqueAmenityUpdate
		if !respond.BindJSON(c, &upd) {
			return
		}
		row, err := h.svc.UpdateMosqueAmenity(c.Request.Context(), c.Param("id"), upd)
		if err != nil {
			respond.Error(c, err)
			return
		}
		h.cache.Invalidate(c.Request.Context(), cache.Mosques)
		c.JSON(http.StatusOK, row)
	}
}

// @Summary      Detach amenity
// @Tags         Admin
// @Security     Bearer
// @Param        id  path  string  true  "Mosque amenity ID"
// @Success      204
// @Router       /api/v1/admin/mosque-amenities/{id} [delete]
func (h *Handlers) DeleteRowHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.svc.DeleteMosqueAmenity(c.Request.Context(), c.Param("id")); err != nil {
			respond.Error(c, err)
			return
		}
		h.cache.Invalidate(c.Request.Context(), cache.Mosques)
		c.Status(http.StatusNoContent)
	}
}
