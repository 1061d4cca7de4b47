package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"blog/internal/http/response"

	"github.com/gin-gonic/gin"
)

type RequestObserver interface {
	ObserveRequest(method, route string, status int, d time.Duration)
}

type PanicObserver interface {
	PanicRecovered()
}

// Logger writes one structured line per request. The level follows the
// status: 5xx error, 4xx warn, everything else info.
func Logger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Float64("duration_ms", float64(time.Since(start).Nanoseconds())/float64(time.Millisecond)),
			slog.String("request_id", c.GetString(response.RequestIDKey)),
		}
		if user, ok := CurrentUser(c); ok {
			attrs = append(attrs, slog.String("user_id", user.ID))
		}

		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		logger.LogAttrs(c.Request.Context(), level, "http request", attrs...)
	}
}

// Metrics reports every request to obs, labelled by route pattern.
func Metrics(obs RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		obs.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// Recovery turns a panic into a 500 with the request id. The stack only goes
// to the log.
func Recovery(logger *slog.Logger, obs PanicObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			if obs != nil {
				obs.PanicRecovered()
			}
			logger.Error("panic recovered",
				slog.Any("panic", rec),
				slog.String("request_id", c.GetString(response.RequestIDKey)),
				slog.String("method", c.Request.Method),
				slog.String("path", c.Request.URL.Path),
				slog.String("stack", string(debug.Stack())),
			)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Body{
				Code:    response.CodeInternal,
				Message: "Internal server error",
				Error:   &response.ErrorBody{RequestID: c.GetString(response.RequestIDKey)},
			})
		}()

		c.Next()
	}
}
