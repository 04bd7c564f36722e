// users.go implements the admin user management endpoints.
package admin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muazhazali/lepakmasjid/internal/api/respond"
	"github.com/muazhazali/lepakmasjid/internal/apperrors"
	"github.com/muazhazali/lepakmasjid/internal/middleware"
	"github.com/muazhazali/lepakmasjid/internal/models"
)

// UserService is the subset of users.Service used by the admin handlers.
type UserService interface {
	List(ctx context.Context) ([]models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

// UserHandlers handles user management endpoints
type UserHandlers struct {
	users UserService
}

// NewUserHandlers creates a new UserHandlers instance
func NewUserHandlers(users UserService) *UserHandlers {
	return &UserHandlers{users: users}
}

// @Summary      List users
// @Description  Every account, newest first.
// @Tags         Users
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "items: []models.User"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Router       /api/v1/admin/users [get]
func (h *UserHandlers) ListUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := h.users.List(c.Request.Context())
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

// @Summary      Get user
// @Tags         Users
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "User ID"
// @Success      200  {object}  models.User
// @Failure      404  {object}  map[string]interface{}  "User not found"
// @Router       /api/v1/admin/users/{id} [get]
func (h *UserHandlers) GetUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := h.users.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// @Summary      Update user
// @Description  Changes name, email, role or verification. Admins cannot remove their own admin role.
// @Tags         Users
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id  path  string  true  "User ID"
// @Success      200  {object}  models.User
// @Router       /api/v1/admin/users/{id} [patch]
func (h *UserHandlers) UpdateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var upd models.UserUpdate
		if !respond.BindJSON(c, &upd) {
			return
		}
		id := c.Param("id")
		if id == middleware.CurrentUserID(c) && upd.Role != nil && *upd.Role != models.RoleAdmin {
			respond.Error(c, apperrors.Forbidden("You cannot remove your own admin role"))
			return
		}
		u, err := h.users.Update(c.Request.Context(), id, upd)
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// @Summary      Delete user
// @Tags         Users
// @Security     Bearer
// @Param        id  path  string  true  "User ID"
// @Success      204
// @Failure      403  {object}  map[string]interface{}  "Cannot delete yourself"
// @Router       /api/v1/admin/users/{id} [delete]
func (h *UserHandlers) DeleteUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if id == middleware.CurrentUserID(c) {
			respond.Error(c, apperrors.Forbidden("You cannot delete your own account here"))
			return
		}
		if err := h.users.Delete(c.Request.Context(), id); err != nil {
			respond.Error(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
