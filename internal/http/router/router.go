package router

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"blog/internal/domain/models"
	authhandler "blog/internal/http/handlers/auth"
	bloghandler "blog/internal/http/handlers/blog"
	"blog/internal/http/handlers/health"
	usershandler "blog/internal/http/handlers/users"
	"blog/internal/http/middleware"
	"blog/internal/http/response"
	"blog/internal/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const APIPrefix = "/api/v1"

// AuthService is the session controller as the transport sees it.
type AuthService interface {
	authhandler.Auth
	middleware.Authenticator
}

// Observer collects the HTTP side metrics.
type Observer interface {
	middleware.RequestObserver
	middleware.PanicObserver
	authhandler.Observer
}

type Config struct {
	Timeout        time.Duration
	AllowedOrigins []string
	Cookie         authhandler.Cookie
}

type Deps struct {
	Auth     AuthService
	Users    usershandler.Users
	Blog     bloghandler.Blog
	Observer Observer
	Gatherer prometheus.Gatherer
	Health   map[string]health.Pinger
	// Limiter throttles the auth endpoints. Nil disables it.
	Limiter *middleware.RateLimiter
}

// New builds the HTTP handler of the API.
func New(logger *slog.Logger, cfg Config, deps Deps) *gin.Engine {
	r := gin.New()
	r.ContextWithFallback = true

	r.Use(
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Metrics(deps.Observer),
		middleware.Recovery(logger, deps.Observer),
		middleware.SecurityHeaders(),
	)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	}

	r.NoRoute(func(c *gin.Context) {
		response.Abort(c, response.NotFound("Route not found"))
	})

	health.Register(r, logger, deps.Health)
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(deps.Gatherer)))
	}

	requireAuth := middleware.RequireAuth(logger, deps.Auth)
	requireAdmin := middleware.RequireRole(models.RoleAdmin)

	v1 := r.Group(APIPrefix, middleware.Timeout(cfg.Timeout))

	authGroup := v1.Group("/auth")
	if deps.Limiter != nil {
		authGroup.Use(deps.Limiter.Middleware())
	}
	authhandler.Register(authGroup, logger, deps.Auth, deps.Observer, cfg.Cookie, requireAuth)

	usershandler.Register(v1.Group("/users"), logger, deps.Users, cfg.Cookie, requireAuth, requireAdmin)
	bloghandler.Register(v1, logger, deps.Blog, requireAuth)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPatch,
		http.MethodDelete,
		http.MethodOptions,
	}
	cfg.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
		middleware.RequestIDHeader,
	}
	cfg.ExposeHeaders = []string{middleware.RequestIDHeader}
	cfg.MaxAge = 12 * time.Hour

	if slices.Contains(origins, "*") {
		// Credentials cannot be combined with a wildcard origin.
		cfg.AllowAllOrigins = true
		return cfg
	}

	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
