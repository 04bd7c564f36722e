// Package submissions implements the contribution endpoints: contributors
// propose new mosques or edits, and admins approve or reject them.
package submissions

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muazhazali/lepakmasjid/internal/api/respond"
	"github.com/muazhazali/lepakmasjid/internal/apperrors"
	"github.com/muazhazali/lepakmasjid/internal/cache"
	"github.com/muazhazali/lepakmasjid/internal/middleware"
	"github.com/muazhazali/lepakmasjid/internal/models"
)

// SubmissionService is the subset of submissions.Service used by the handlers.
type SubmissionService interface {
	List(ctx context.Context, status string) ([]models.Submission, error)
	ListMine(ctx context.Context, userID, status string) ([]models.Submission, error)
	Get(ctx context.Context, id string) (*models.Submission, error)
	Create(ctx context.Context, userID string, in models.SubmissionInput) (*models.Submission, error)
	Approve(ctx context.Context, id, reviewerID string) (*models.Submission, error)
	Reject(ctx context.Context, id, reviewerID string, in models.RejectInput) (*models.Submission, error)
}

// Handlers serves /api/v1/submissions, /api/v1/me/submissions and the admin
// review routes.
type Handlers struct {
	svc   SubmissionService
	cache *cache.Cache
}

// NewHandlers creates the submission handlers. c may be nil.
func NewHandlers(svc SubmissionService, c *cache.Cache) *Handlers {
	return &Handlers{svc: svc, cache: c}
}

// @Summary      Submit a contribution
// @Tags         Submissions
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      201  {object}  models.Submission
// @Failure      400  {object}  map[string]interface{}  "Invalid submission"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Router       /api/v1/submissions [post]
func (h *Handlers) CreateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in models.SubmissionInput
		if !respond.BindJSON(c, &in) {
			return
		}
		sub, err := h.svc.Create(c.Request.Context(), middleware.CurrentUserID(c), in)
		if err != nil {
			respond.Error(c, err)
			return
		}
		h.cache.Invalidate(c.Request.Context(), cache.Submissions)
		c.JSON(http.StatusCreated, sub)
	}
}

// @Summary      My submissions
// @Tags         Submissions
// @Security     Bearer
// @Produce      json
// @Param        status  query  string  false  "pending | approved | rejected"
// @Success      200  {object}  map[string]interface{}  "items: []models.Submission"
// @Router       /api/v1/me/submissions [get]
func (h *Handlers) ListMineHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := h.svc.ListMine(c.Request.Context(), middleware.CurrentUserID(c), c.Query("status"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

// @Summary      Get submission
// @Description  Contributors see their own submissions; admins see all.
// @Tags         Submissions
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Submission ID"
// @Success      200  {object}  models.Submission
// @Failure      404  {object}  map[string]interface{}  "Submission not found"
// @Router       /api/v1/submissions/{id} [get]
func (h *Handlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, err := h.svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		claims, _ := middleware.CurrentClaims(c)
		isAdmin := claims != nil && claims.IsAdmin()
		if !isAdmin && sub.SubmittedBy != middleware.CurrentUserID(c) {
			respond.Error(c, apperrors.NotFound("Submission not found"))
			return
		}
		c.JSON(http.StatusOK, sub)
	}
}

// @Summary      List submissions (admin)
// @Tags         Admin
// @Security     Bearer
// @Produce      json
// @Param        status  query  string  false  "pending | approved | rejected"
// @Success      200  {object}  map[string]interface{}  "items: []models.Submission"
// @Router       /api/v1/admin/submissions [get]
func (h *Handlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := c.Query("status")
		items, err := cache.Remember(c.Request.Context(), h.cache, cache.Submissions, "status="+status,
			func(ctx context.Context) ([]models.Submission, error) {
				return h.svc.List(ctx, status)
			})
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

// @Summary      Approve submission
// @Description  Applies the proposed mosque data. Only pending submissions can be approved.
// @Tags         Admin
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Submission ID"
// @Success      200  {object}  models.Submission
// @Failure      409  {object}  map[string]interface{}  "Submission already reviewed"
// @Router       /api/v1/admin/submissions/{id}/approve [post]
func (h *Handlers) ApproveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, err := h.svc.Approve(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
		// A failed approval may still have written the mosque.
		h.cache.Invalidate(c.Request.Context(), cache.Submissions, cache.Mosques)
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, sub)
	}
}

// @Summary      Reject submission
// @Tags         Admin
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id  path  string  true  "Submission ID"
// @Success      200  {object}  models.Submission
// @Failure      400  {object}  map[string]interface{}  "Reason is required"
// @Failure      409  {object}  map[string]interface{}  "Submission already reviewed"
// @Router       /api/v1/admin/submissions/{id}/reject [post]
func (h *Handlers) RejectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in models.RejectInput
		if !respond.BindJSON(c, &in) {
			return
		}
		sub, err := h.svc.Reject(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), in)
		if err != nil {
			respond.Error(c, err)
			return
		}
		h.cache.Invalidate(c.Request.Context(), cache.Submissions)
		c.JSON(http.StatusOK, sub)
	}
}
