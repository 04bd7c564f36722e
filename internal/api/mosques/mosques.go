// Package mosques implements the public mosque directory endpoints and the
// admin mosque management endpoints.
package mosques

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/muazhazali/lepakmasjid/internal/api/respond"
	"github.com/muazhazali/lepakmasjid/internal/cache"
	"github.com/muazhazali/lepakmasjid/internal/models"
	mosquesvc "github.com/muazhazali/lepakmasjid/internal/mosques"
)

// imageURLTTL is how long a signed image URL stays valid. It must outlive the
// mosques cache window.
const imageURLTTL = time.Hour

// MosqueService is the subset of mosques.Service used by the handlers.
type MosqueService interface {
	List(ctx context.Context, q mosquesvc.Query) (*mosquesvc.Page, error)
	ListAll(ctx context.Context, q mosquesvc.Query) ([]models.Mosque, error)
	Get(ctx context.Context, id string) (*models.Mosque, error)
	Create(ctx context.Context, in models.MosqueInput, image io.Reader) (*models.Mosque, error)
	Update(ctx context.Context, id string, upd models.MosqueUpdate, image io.Reader, deleteImage bool) (*models.Mosque, error)
	Delete(ctx context.Context, id string) error
	ListAllAdmin(ctx context.Context) ([]models.Mosque, error)
}

// ActivityLister lists the active activities of one mosque.
type ActivityLister interface {
	ListByMosque(ctx context.Context, mosqueID string) ([]models.Activity, error)
}

// ImageResolver turns a stored image reference into a fetchable URL.
type ImageResolver interface {
	URL(ctx context.Context, ref string, ttl time.Duration) (string, error)
}

// Handlers serves /api/v1/mosques and /api/v1/admin/mosques.
type Handlers struct {
	mosques    MosqueService
	activities ActivityLister
	images     ImageResolver
	cache      *cache.Cache
	maxUpload  int64
}

// NewHandlers creates the mosque handlers. images and c may be nil.
func NewHandlers(mosques MosqueService, activities ActivityLister, images ImageResolver, c *cache.Cache, maxUpload int64) *Handlers {
	return &Handlers{
		mosques:    mosques,
		activities: activities,
		images:     images,
		cache:      c,
		maxUpload:  maxUpload,
	}
}

// resolveImages fills ImageURL for every mosque with a stored image. A
// failure leaves the URL empty.
func (h *Handlers) resolveImages(ctx context.Context, items []models.Mosque) {
	if h.images == nil {
		return
	}
	for i := range items {
		if items[i].Image == "" {
			continue
		}
		u, err := h.images.URL(ctx, items[i].Image, imageURLTTL)
		if err != nil {
			slog.WarnContext(ctx, "mosque image unavailable", "mosque_id", items[i].ID, "error", err)
			continue
		}
		items[i].ImageURL = u
	}
}

// parseQuery reads the listing query string. Malformed numbers fall back to
// the defaults applied by the service.
func parseQuery(c *gin.Context) mosquesvc.Query {
	q := mosquesvc.Query{
		State:     c.Query("state"),
		Amenities: mosquesvc.ParseAmenityList(c.Query("amenities")),
		Search:    c.Query("search"),
		SortBy:    c.Query("sortBy"),
	}
	q.Page, _ = strconv.Atoi(c.Query("page"))
	q.PerPage, _ = strconv.Atoi(c.Query("perPage"))
	return q
}

// cacheKey is a canonical encoding of q; url.Values sorts its keys.
func cacheKey(prefix string, q mosquesvc.Query) string {
	v := url.Values{}
	v.Set("state", q.State)
	for _, a := range q.Amenities {
		v.Add("amenities", a)
	}
	v.Set("search", q.Search)
	v.Set("sortBy", q.SortBy)
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("perPage", strconv.Itoa(q.PerPage))
	return prefix + ":" + v.Encode()
}

// @Summary      List mosques
// @Description  One page of approved mosques with amenities and activities attached.
// @Tags         Mosques
// @Produce      json
// @Param        state      query  string  false  "Malaysian state, or 'all'"
// @Param        amenities  query  string  false  "Comma-separated catalog amenity record IDs; every one is required"
// @Param        search     query  string  false  "Matches name, address and state"
// @Param        sortBy     query  string  false  "nearest | most_amenities | alphabetical"
// @Param        page       query  int     false  "Page number (default 1)"
// @Param        perPage    query  int     false  "Items per page (default 12)"
// @Success      200  {object}  mosques.Page
// @Failure      400  {object}  map[string]interface{}  "Invalid filter"
// @Failure      502  {object}  map[string]interface{}  "Record Source unavailable"
// @Router       /api/v1/mosques [get]
func (h *Handlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		q := parseQuery(c)
		page, err := cache.Remember(c.Request.Context(), h.cache, cache.Mosques, cacheKey("page", q),
			func(ctx context.Context) (*mosquesvc.Page, error) {
				p, err := h.mosques.List(ctx, q)
				if err != nil {
					return nil, err
				}
				h.resolveImages(ctx, p.Items)
				return p, nil
			})
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// @Summary      List all mosques
// @Description  Every approved mosque matching the filters, without paging. Used by the map view.
// @Tags         Mosques
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "items: []models.Mosque"
// @Router       /api/v1/mosques/all [get]
func (h *Handlers) ListAllHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		q := parseQuery(c)
		q.Page, q.PerPage = 0, 0
		items, err := cache.Remember(c.Request.Context(), h.cache, cache.Mosques, cacheKey("all", q),
			func(ctx context.Context) ([]models.Mosque, error) {
				items, err := h.mosques.ListAll(ctx, q)
				if err != nil {
					return nil, err
				}
				h.resolveImages(ctx, items)
				return items, nil
			})
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

// @Summary      Get mosque
// @Tags         Mosques
// @Produce      json
// @Param        id  path  string  true  "Mosque ID"
// @Success      200  {object}  models.Mosque
// @Failure      400  {object}  map[string]interface{}  "Invalid mosque ID format"
// @Failure      404  {object}  map[string]interface{}  "Mosque not found"
// @Router       /api/v1/mosques/{id} [get]
func (h *Handlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		m, err := cache.Remember(c.Request.Context(), h.cache, cache.Mosques, "get:"+id,
			func(ctx context.Context) (*models.Mosque, error) {
				m, err := h.mosques.Get(ctx, id)
				if err != nil {
					return nil, err
				}
				one := []models.Mosque{*m}
				h.resolveImages(ctx, one)
				return &one[0], nil
			})
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

// @Summary      List mosque activities
// @Tags         Mosques
// @Produce      json
// @Param        id  path  string  true  "Mosque ID"
// @Success      200  {object}  map[string]interface{}  "items: []models.Activity"
// @Router       /api/v1/mosques/{id}/activities [get]
func (h *Handlers) ActivitiesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		items, err := cache.Remember(c.Request.Context(), h.cache, cache.Mosques, "activities:"+id,
			func(ctx context.Context) ([]models.Activity, error) {
				return h.activities.ListByMosque(ctx, id)
			})
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}
