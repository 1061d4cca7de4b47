package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"blog/internal/domain/models"
	"blog/internal/http/middleware"
	"blog/internal/http/response"
	"blog/internal/services/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var discard = slog.New(slog.DiscardHandler)

type stubAuthenticator struct {
	user *models.User
	err  error
}

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if token != "good" {
		return nil, auth.ErrInvalidAccessToken
	}
	return s.user, nil
}

type counter struct {
	mu       sync.Mutex
	requests []string
	limited  int
	panics   int
}

func (c *counter) ObserveRequest(method, route string, status int, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, method+" "+route+" "+http.StatusText(status))
}

func (c *counter) RateLimited() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limited++
}

func (c *counter) PanicRecovered() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.panics++
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response.Body {
	t.Helper()
	var body response.Body
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(response.RequestIDKey))
	})

	t.Run("generated", func(t *testing.T) {
		rec := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))

		id := rec.Header().Get(middleware.RequestIDHeader)
		_, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, id, rec.Body.String())
	})

	t.Run("propagated", func(t *testing.T) {
		want := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.RequestIDHeader, want)

		rec := serve(r, req)

		assert.Equal(t, want, rec.Header().Get(middleware.RequestIDHeader))
		assert.Equal(t, want, rec.Body.String())
	})

	t.Run("garbage replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.RequestIDHeader, "<script>")

		rec := serve(r, req)

		assert.NotEqual(t, "<script>", rec.Header().Get(middleware.RequestIDHeader))
	})
}

func TestRecovery(t *testing.T) {
	obs := &counter{}
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery(discard, obs))
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, response.CodeInternal, body.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, rec.Header().Get(middleware.RequestIDHeader), body.Error.RequestID)
	assert.NotContains(t, rec.Body.String(), "boom")
	assert.Equal(t, 1, obs.panics)
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	obs := &counter{}
	r := gin.New()
	r.Use(middleware.Metrics(obs))
	r.GET("/posts/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	serve(r, httptest.NewRequest(http.MethodGet, "/posts/abc", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, []string{
		"GET /posts/:id No Content",
		"GET  Not Found",
	}, obs.requests)
}

func TestRequireAuth(t *testing.T) {
	user := &models.User{ID: "u1", Role: models.RoleUser}

	tests := []struct {
		name     string
		authz    string
		authErr  error
		wantCode int
		wantBody string
	}{
		{name: "missing header", authz: "", wantCode: http.StatusUnauthorized, wantBody: response.CodeUnauthorized},
		{name: "wrong scheme", authz: "Basic good", wantCode: http.StatusUnauthorized, wantBody: response.CodeUnauthorized},
		{name: "empty bearer", authz: "Bearer ", wantCode: http.StatusUnauthorized, wantBody: response.CodeUnauthorized},
		{name: "invalid token", authz: "Bearer bad", wantCode: http.StatusUnauthorized, wantBody: response.CodeUnauthorized},
		{
			name:     "expired token",
			authz:    "Bearer good",
			authErr:  auth.ErrAccessTokenExpired,
			wantCode: http.StatusUnauthorized,
			wantBody: response.CodeTokenExpired,
		},
		{
			name:     "store failure",
			authz:    "Bearer good",
			authErr:  errors.New("mongo down"),
			wantCode: http.StatusInternalServerError,
			wantBody: response.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(middleware.RequireAuth(discard, stubAuthenticator{user: user, err: tt.authErr}))
			r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authz != "" {
				req.Header.Set("Authorization", tt.authz)
			}
			rec := serve(r, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantBody, decode(t, rec).Code)
		})
	}

	t.Run("ok", func(t *testing.T) {
		r := gin.New()
		r.Use(middleware.RequireAuth(discard, stubAuthenticator{user: user}))
		r.GET("/", func(c *gin.Context) {
			got, ok := middleware.CurrentUser(c)
			require.True(t, ok)
			c.String(http.StatusOK, got.ID)
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "bearer good")
		rec := serve(r, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", rec.Body.String())
	})
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		role     models.Role
		wantCode int
	}{
		{name: "admin passes", role: models.RoleAdmin, wantCode: http.StatusOK},
		{name: "user forbidden", role: models.RoleUser, wantCode: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := &models.User{ID: "u1", Role: tt.role}
			r := gin.New()
			r.Use(
				middleware.RequireAuth(discard, stubAuthenticator{user: user}),
				middleware.RequireRole(models.RoleAdmin),
			)
			r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer good")
			rec := serve(r, req)

			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}

	t.Run("without auth", func(t *testing.T) {
		r := gin.New()
		r.Use(middleware.RequireRole(models.RoleAdmin))
		r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

		rec := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRateLimiter(t *testing.T) {
	obs := &counter{}
	rl := middleware.NewRateLimiter(0.001, 2, obs)
	t.Cleanup(rl.Stop)

	r := gin.New()
	r.Use(rl.Middleware())
	r.POST("/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = ip + ":1234"
		return serve(r, req)
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, call("10.0.0.1").Code)

	rec := call("10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, response.CodeTooManyRequests, decode(t, rec).Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, 1, obs.limited)

	assert.Equal(t, http.StatusOK, call("10.0.0.2").Code)
	assert.Equal(t, 2, rl.Len())

	rl.Stop()
	rl.Stop()
}

func TestTimeout_SetsDeadline(t *testing.T) {
	r := gin.New()
	r.Use(middleware.Timeout(time.Second))
	r.GET("/", func(c *gin.Context) {
		_, ok := c.Request.Context().Deadline()
		assert.True(t, ok)
		c.Status(http.StatusOK)
	})

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(middleware.SecurityHeaders())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestLogger_DoesNotAlterResponse(t *testing.T) {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(discard))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusTeapot, "tea") })

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "tea", rec.Body.String())
}
