package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"blog/internal/lib/sl"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	statusOK          = "ok"
	statusUnavailable = "unavailable"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Redis adapts a go-redis client to Pinger.
func Redis(client redis.UniversalClient) Pinger {
	return PingerFunc(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}

type Response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type handler struct {
	logger  *slog.Logger
	checks  map[string]Pinger
	timeout time.Duration
}

// Register mounts GET /health on r. Nil checks are skipped.
func Register(r gin.IRouter, logger *slog.Logger, checks map[string]Pinger) {
	h := &handler{
		logger:  logger,
		checks:  make(map[string]Pinger, len(checks)),
		timeout: 2 * time.Second,
	}
	for name, p := range checks {
		if p != nil {
			h.checks[name] = p
		}
	}

	r.GET("/health", h.health)
}

func (h *handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp := Response{Status: statusOK, Checks: make(map[string]string, len(h.checks))}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", slog.String("check", name), sl.Err(err))
			resp.Checks[name] = statusUnavailable
			resp.Status = statusUnavailable
			continue
		}
		resp.Checks[name] = statusOK
	}

	code := http.StatusOK
	if resp.Status != statusOK {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}
