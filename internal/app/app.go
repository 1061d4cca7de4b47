package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	httpapp "blog/internal/app/http"
	"blog/internal/config"
	authhandler "blog/internal/http/handlers/auth"
	"blog/internal/http/handlers/health"
	"blog/internal/http/middleware"
	"blog/internal/http/router"
	"blog/internal/jobs"
	"blog/internal/lib/jwt"
	"blog/internal/lib/sanitize"
	"blog/internal/lib/sl"
	"blog/internal/metrics"
	"blog/internal/services/auth"
	"blog/internal/services/blog"
	"blog/internal/services/users"
	"blog/internal/storage/mongodb"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

const connectTimeout = 10 * time.Second

type App struct {
	HTTPSrv *httpapp.App
	Handler http.Handler

	logger  *slog.Logger
	storage *mongodb.Storage
	jobs    *jobs.Manager
	inline  *jobs.Inline
	redis   *redis.Client
	limiter *middleware.RateLimiter
}

// New connects to the backing stores and wires the services into the HTTP
// server. It panics when a dependency cannot be set up.
func New(logger *slog.Logger, cfg *config.Config) *App {
	if cfg.Env != config.EnvLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	storage, err := mongodb.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		panic(err)
	}

	tokens, err := jwt.New(jwt.Config{
		AccessSecret:  cfg.Auth.AccessSecret,
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshSecret: cfg.Auth.RefreshSecret,
		RefreshTTL:    cfg.Auth.RefreshTTL,
		Issuer:        cfg.Auth.Issuer,
	})
	if err != nil {
		panic(err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	a := &App{logger: logger, storage: storage}

	jobHandlers := jobs.NewHandlers(logger, storage, storage, collector)
	checks := map[string]health.Pinger{"mongo": storage}

	var cascader users.ContentCascader
	if cfg.Redis.URL != "" {
		a.jobs, err = jobs.NewManager(logger, jobs.ManagerConfig{
			RedisURL:    cfg.Redis.URL,
			Concurrency: cfg.Jobs.Concurrency,
			PruneCron:   cfg.Jobs.PruneCron,
		}, jobHandlers)
		if err != nil {
			panic(err)
		}
		cascader = a.jobs

		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			panic(err)
		}
		a.redis = redis.NewClient(opts)
		checks["redis"] = health.Redis(a.redis)
	} else {
		a.inline = jobs.NewInline(jobHandlers)
		cascader = a.inline
	}

	policy := sanitize.New()

	authService := auth.New(logger, storage, storage, storage, storage, tokens, policy, auth.Config{
		AdminEmails:   cfg.Auth.AdminEmails,
		RefreshPepper: cfg.Auth.RefreshPepper,
		BcryptCost:    cfg.Auth.BcryptCost,
	})
	usersService := users.New(logger, storage, storage, cascader, policy, cfg.Auth.BcryptCost)
	blogService := blog.New(logger, storage, storage, storage, policy)

	if cfg.RateLimit.RPS > 0 {
		a.limiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, collector)
	}

	handler := router.New(logger,
		router.Config{
			Timeout:        cfg.HTTP.Timeout,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			Cookie: authhandler.Cookie{
				Secure: cfg.Env == config.EnvProd,
				MaxAge: cfg.Auth.RefreshTTL,
			},
		},
		router.Deps{
			Auth:     authService,
			Users:    usersService,
			Blog:     blogService,
			Observer: collector,
			Gatherer: reg,
			Health:   checks,
			Limiter:  a.limiter,
		},
	)

	a.Handler = handler
	a.HTTPSrv = httpapp.New(logger, handler, httpapp.Config{
		Port:         cfg.HTTP.Port,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	})

	return a
}

// MustRun starts the background workers and then serves HTTP until Stop.
func (a *App) MustRun() {
	if a.jobs != nil {
		if err := a.jobs.Start(); err != nil {
			panic(err)
		}
	} else {
		// Without a scheduler expired refresh tokens are swept once per start
		// and otherwise left to the TTL index.
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		if err := a.inline.PruneTokens(ctx); err != nil {
			a.logger.Warn("failed to prune refresh tokens", sl.Err(err))
		}
		cancel()
	}

	a.HTTPSrv.MustRun()
}

// Stop shuts everything down in reverse order of startup.
func (a *App) Stop(ctx context.Context) {
	a.HTTPSrv.Stop(ctx)

	if a.jobs != nil {
		a.jobs.Shutdown()
	}
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis client", sl.Err(err))
		}
	}
	if err := a.storage.Close(ctx); err != nil {
		a.logger.Warn("failed to disconnect from mongodb", sl.Err(err))
	}
}
