package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"blog/internal/domain/models"
	"blog/internal/http/dto"
	"blog/internal/http/middleware"
	"blog/internal/http/response"
	"blog/internal/services/users"

	"github.com/gin-gonic/gin"
)

type Users interface {
	Profile(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, upd users.ProfileUpdate) (*models.User, error)
	DeleteAccount(ctx context.Context, userID string) error
	ListUsers(ctx context.Context, actor *models.User, page models.Page) (models.List[*models.User], error)
	DeleteUser(ctx context.Context, actor *models.User, userID string) error
}

// SessionCookie clears the refresh cookie of a deleted account.
type SessionCookie interface {
	Clear(c *gin.Context)
}

type handler struct {
	logger *slog.Logger
	users  Users
	cookie SessionCookie
}

// Register mounts the profile endpoints on r. Every route needs requireAuth;
// listing and deleting other users also need requireAdmin.
func Register(
	r gin.IRouter,
	logger *slog.Logger,
	users Users,
	cookie SessionCookie,
	requireAuth gin.HandlerFunc,
	requireAdmin gin.HandlerFunc,
) {
	h := &handler{logger: logger, users: users, cookie: cookie}

	me := r.Group("/me", requireAuth)
	me.GET("", h.me)
	me.PATCH("", h.updateMe)
	me.DELETE("", h.deleteMe)

	r.GET("", requireAuth, requireAdmin, h.list)
	r.DELETE("/:id", requireAuth, requireAdmin, h.delete)
}

type updateProfileRequest struct {
	Username  *string `json:"username" binding:"omitempty,min=3,max=30"`
	Email     *string `json:"email" binding:"omitempty,email,max=254"`
	Bio       *string `json:"bio" binding:"omitempty,max=500"`
	AvatarURL *string `json:"avatarUrl" binding:"omitempty,url,max=2048"`
	Password  *string `json:"password" binding:"omitempty,min=8,max=72"`
}

func (h *handler) me(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)

	user, err := h.users.Profile(c.Request.Context(), actor.ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromUser(user))
}

func (h *handler) updateMe(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Bind(c, err)
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), actor.ID, users.ProfileUpdate{
		Username:  req.Username,
		Email:     req.Email,
		Bio:       req.Bio,
		AvatarURL: req.AvatarURL,
		Password:  req.Password,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromUser(user))
}

func (h *handler) deleteMe(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)

	if err := h.users.DeleteAccount(c.Request.Context(), actor.ID); err != nil {
		h.fail(c, err)
		return
	}

	h.cookie.Clear(c)
	c.Status(http.StatusNoContent)
}

func (h *handler) list(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)

	var q dto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Bind(c, err)
		return
	}

	list, err := h.users.ListUsers(c.Request.Context(), actor, q.Model())
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromList(list, dto.FromUser))
}

func (h *handler) delete(c *gin.Context) {
	actor, _ := middleware.CurrentUser(c)

	if err := h.users.DeleteUser(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, users.ErrUserNotFound):
		response.Abort(c, response.NotFound("User not found"))
	case errors.Is(err, users.ErrForbidden):
		response.Abort(c, response.Forbidden("Admin role required"))
	case errors.Is(err, users.ErrEmailTaken):
		response.Abort(c, response.Validation("Email is already in use"))
	case errors.Is(err, users.ErrUsernameTaken):
		response.Abort(c, response.Validation("Username is already taken"))
	case errors.Is(err, users.ErrUserAlreadyExists):
		response.Abort(c, response.Validation("Email or username is already in use"))
	case errors.Is(err, users.ErrInvalidUsername):
		response.Abort(c, response.Validation("Username is not acceptable"))
	case errors.Is(err, users.ErrInvalidPassword):
		response.Abort(c, response.Validation("Password is not acceptable"))
	default:
		response.Internal(c, h.logger, err)
	}
}
