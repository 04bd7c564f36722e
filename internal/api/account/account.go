// Package account implements sign-up, sign-in, password reset and the
// self-service profile endpoints under /api/v1/me.
package account

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muazhazali/lepakmasjid/internal/api/respond"
	"github.com/muazhazali/lepakmasjid/internal/middleware"
	"github.com/muazhazali/lepakmasjid/internal/models"
	"github.com/muazhazali/lepakmasjid/internal/users"
)

// UserService is the subset of users.Service used by the handlers.
type UserService interface {
	Register(ctx context.Context, in models.RegisterInput) (*users.Session, error)
	Login(ctx context.Context, in models.LoginInput) (*users.Session, error)
	RequestPasswordReset(ctx context.Context, in models.PasswordResetInput) error
	Get(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.User, error)
	UpdatePassword(ctx context.Context, userID string, in models.PasswordChange) error
}

// Handlers serves /api/v1/auth and /api/v1/me.
type Handlers struct {
	users UserService
}

func NewHandlers(users UserService) *Handlers {
	return &Handlers{users: users}
}

// @Summary      Register
// @Description  Creates a regular account and returns a session token.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Success      201  {object}  users.Session
// @Failure      400  {object}  map[string]interface{}  "Invalid input"
// @Failure      403  {object}  map[string]interface{}  "Registration is disabled"
// @Failure      409  {object}  map[string]interface{}  "Email already registered"
// @Router       /api/v1/auth/register [post]
func (h *Handlers) RegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in models.RegisterInput
		if !respond.BindJSON(c, &in) {
			return
		}
		s, err := h.users.Register(c.Request.Context(), in)
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusCreated, s)
	}
}

// @Summary      Sign in
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Success      200  {object}  users.Session
// @Failure      401  {object}  map[string]interface{}  "Invalid email or password"
// @Router       /api/v1/auth/login [post]
func (h *Handlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in models.LoginInput
		if !respond.BindJSON(c, &in) {
			return
		}
		s, err := h.users.Login(c.Request.Context(), in)
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

// @Summary      Request password reset
// @Description  Always responds 202 for well-formed requests, whether or not the email is registered.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Success      202  {object}  map[string]interface{}
// @Router       /api/v1/auth/password-reset [post]
func (h *Handlers) PasswordResetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in models.PasswordResetInput
		if !respond.BindJSON(c, &in) {
			return
		}
		if err := h.users.RequestPasswordReset(c.Request.Context(), in); err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"message": "If the email is registered, a reset link is on its way.",
		})
	}
}

// @Summary      Current user
// @Tags         Account
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  models.User
// @Router       /api/v1/me [get]
func (h *Handlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := h.users.Get(c.Request.Context(), middleware.CurrentUserID(c))
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// @Summary      Update profile
// @Tags         Account
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      200  {object}  models.User
// @Router       /api/v1/me [patch]
func (h *Handlers) UpdateProfileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var upd models.ProfileUpdate
		if !respond.BindJSON(c, &upd) {
			return
		}
		u, err := h.users.UpdateProfile(c.Request.Context(), middleware.CurrentUserID(c), upd)
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// @Summary      Change password
// @Tags         Account
// @Security     Bearer
// @Accept       json
// @Success      204
// @Failure      400  {object}  map[string]interface{}  "Current password is incorrect"
// @Router       /api/v1/me/password [post]
func (h *Handlers) UpdatePasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in models.PasswordChange
		if !respond.BindJSON(c, &in) {
			return
		}
		if err := h.users.UpdatePassword(c.Request.Context(), middleware.CurrentUserID(c), in); err != nil {
			respond.Error(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
