package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	RefreshCookieName = "refreshToken"
	RefreshCookiePath = "/api/v1/auth"
)

// Cookie writes and clears the refresh token cookie.
type Cookie struct {
	Secure bool
	MaxAge time.Duration
}

func (k Cookie) Set(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     RefreshCookiePath,
		MaxAge:   int(k.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   k.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (k Cookie) Clear(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     RefreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   k.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Read returns the refresh token cookie value, or "" when absent.
func (k Cookie) Read(c *gin.Context) string {
	token, err := c.Cookie(RefreshCookieName)
	if err != nil {
		return ""
	}
	return token
}
