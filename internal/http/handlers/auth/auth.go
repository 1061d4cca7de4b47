package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"blog/internal/domain/models"
	"blog/internal/http/dto"
	"blog/internal/http/middleware"
	"blog/internal/http/response"
	"blog/internal/services/auth"

	"github.com/gin-gonic/gin"
)

const (
	EventRegister = "register"
	EventLogin    = "login"
	EventRefresh  = "refresh"
	EventLogout   = "logout"
)

type Auth interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Session, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, userID, refreshToken string) error
}

type Observer interface {
	ObserveAuth(event string, err error)
}

type handler struct {
	logger   *slog.Logger
	auth     Auth
	observer Observer
	cookie   Cookie
}

// Register mounts the session endpoints on r. requireAuth guards logout.
func Register(
	r gin.IRouter,
	logger *slog.Logger,
	auth Auth,
	observer Observer,
	cookie Cookie,
	requireAuth gin.HandlerFunc,
) {
	h := &handler{logger: logger, auth: auth, observer: observer, cookie: cookie}

	r.POST("/register", h.register)
	r.POST("/login", h.login)
	r.POST("/refresh-token", h.refresh)
	r.POST("/logout", requireAuth, h.logout)
}

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=30"`
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Role     string `json:"role" binding:"omitempty,oneof=admin user"`
	Bio      string `json:"bio" binding:"max=500"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Bind(c, err)
		return
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		response.Abort(c, response.Validation("role must be one of: admin user"))
		return
	}

	session, err := h.auth.Register(c.Request.Context(), auth.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
		Bio:      req.Bio,
	})
	h.observe(EventRegister, err)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrForbiddenRole):
			response.Abort(c, response.Forbidden("Admin role is not permitted for this email"))
		case errors.Is(err, auth.ErrEmailTaken):
			response.Abort(c, response.Validation("Email is already in use"))
		case errors.Is(err, auth.ErrUsernameTaken):
			response.Abort(c, response.Validation("Username is already taken"))
		case errors.Is(err, auth.ErrUserAlreadyExists):
			response.Abort(c, response.Validation("User already exists"))
		case errors.Is(err, auth.ErrInvalidUsername):
			response.Abort(c, response.Validation("Username is not acceptable"))
		case errors.Is(err, auth.ErrInvalidPassword):
			response.Abort(c, response.Validation("Password is not acceptable"))
		default:
			response.Internal(c, h.logger, err)
		}
		return
	}

	h.cookie.Set(c, session.RefreshToken)
	c.JSON(http.StatusCreated, dto.Session{
		User:        dto.FromUser(session.User),
		AccessToken: session.AccessToken,
	})
}

func (h *handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Bind(c, err)
		return
	}

	session, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	h.observe(EventLogin, err)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			response.Abort(c, response.Validation("User email or password is incorrect"))
			return
		}
		response.Internal(c, h.logger, err)
		return
	}

	h.cookie.Set(c, session.RefreshToken)
	c.JSON(http.StatusOK, dto.Session{
		User:        dto.FromUser(session.User),
		AccessToken: session.AccessToken,
	})
}

func (h *handler) refresh(c *gin.Context) {
	token := h.cookie.Read(c)
	if token == "" {
		h.observe(EventRefresh, auth.ErrRefreshTokenRequired)
		response.Abort(c, response.Validation("Refresh token required"))
		return
	}

	accessToken, err := h.auth.Refresh(c.Request.Context(), token)
	h.observe(EventRefresh, err)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrRefreshTokenExpired):
			h.cookie.Clear(c)
			response.Abort(c, response.Unauthorized("Refresh token expired, login again"))
		case errors.Is(err, auth.ErrRefreshTokenNotFound), errors.Is(err, auth.ErrInvalidRefreshToken):
			h.cookie.Clear(c)
			response.Abort(c, response.Unauthorized("Invalid refresh token"))
		case errors.Is(err, auth.ErrRefreshTokenRequired):
			response.Abort(c, response.Validation("Refresh token required"))
		default:
			response.Internal(c, h.logger, err)
		}
		return
	}

	c.JSON(http.StatusOK, dto.AccessToken{AccessToken: accessToken})
}

func (h *handler) logout(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Abort(c, response.Unauthorized("Access token required"))
		return
	}

	err := h.auth.Logout(c.Request.Context(), user.ID, h.cookie.Read(c))
	h.observe(EventLogout, err)
	if err != nil {
		response.Internal(c, h.logger, err)
		return
	}

	h.cookie.Clear(c)
	c.Status(http.StatusNoContent)
}

func (h *handler) observe(event string, err error) {
	if h.observer != nil {
		h.observer.ObserveAuth(event, err)
	}
}
