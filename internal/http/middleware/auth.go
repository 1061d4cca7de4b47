package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"blog/internal/domain/models"
	"blog/internal/http/response"
	"blog/internal/services/auth"

	"github.com/gin-gonic/gin"
)

const userKey = "auth.user"

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

// RequireAuth resolves the bearer access token to a user and stores it in
// the context. Expired tokens get TOKEN_EXPIRED so clients know to refresh.
func RequireAuth(logger *slog.Logger, authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Abort(c, response.Unauthorized("Access token required"))
			return
		}

		user, err := authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrAccessTokenExpired):
				response.Abort(c, response.TokenExpired("Access token expired"))
			case errors.Is(err, auth.ErrInvalidAccessToken):
				response.Abort(c, response.Unauthorized("Invalid access token"))
			default:
				response.Internal(c, logger, err)
			}
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// RequireRole lets only users holding role through. It must run after
// RequireAuth.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			response.Abort(c, response.Unauthorized("Access token required"))
			return
		}
		if user.Role != role {
			response.Abort(c, response.Forbidden("Insufficient role"))
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user stored by RequireAuth.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
