package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"blog/internal/lib/sl"

	"github.com/hibiken/asynq"
)

type ContentStore interface {
	DeleteUserContent(ctx context.Context, userID string) error
}

type TokenPruner interface {
	PruneRefreshTokens(ctx context.Context, before time.Time) (int64, error)
}

// Observer is told about every finished task.
type Observer interface {
	ObserveJob(taskType string, err error)
}

// Handlers execute tasks. They are shared by the asynq worker and Inline.
type Handlers struct {
	logger   *slog.Logger
	content  ContentStore
	tokens   TokenPruner
	observer Observer
	now      func() time.Time
}

func NewHandlers(logger *slog.Logger, content ContentStore, tokens TokenPruner, observer Observer) *Handlers {
	return &Handlers{
		logger:   logger,
		content:  content,
		tokens:   tokens,
		observer: observer,
		now:      time.Now,
	}
}

// Register binds the handlers to mux.
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeCascadeDelete, h.HandleCascadeDelete)
	mux.HandleFunc(TypePruneTokens, h.HandlePruneTokens)
}

func (h *Handlers) HandleCascadeDelete(ctx context.Context, t *asynq.Task) error {
	const op = "jobs.HandleCascadeDelete"

	var p CascadePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		err = fmt.Errorf("%s: decode payload: %v: %w", op, err, asynq.SkipRetry)
		h.observe(TypeCascadeDelete, err)
		return err
	}
	if p.UserID == "" {
		err := fmt.Errorf("%s: %w: %w", op, ErrEmptyUserID, asynq.SkipRetry)
		h.observe(TypeCascadeDelete, err)
		return err
	}

	err := h.cascade(ctx, p.UserID)
	h.observe(TypeCascadeDelete, err)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (h *Handlers) HandlePruneTokens(ctx context.Context, _ *asynq.Task) error {
	const op = "jobs.HandlePruneTokens"
	log := h.logger.With(slog.String("op", op))

	n, err := h.tokens.PruneRefreshTokens(ctx, h.now())
	h.observe(TypePruneTokens, err)
	if err != nil {
		log.Error("failed to prune refresh tokens", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("refresh tokens pruned", slog.Int64("deleted", n))

	return nil
}

func (h *Handlers) cascade(ctx context.Context, userID string) error {
	log := h.logger.With(
		slog.String("op", "jobs.cascade"),
		slog.String("userID", userID),
	)

	if err := h.content.DeleteUserContent(ctx, userID); err != nil {
		log.Error("failed to delete user content", sl.Err(err))
		return err
	}

	log.Info("user content deleted")

	return nil
}

func (h *Handlers) observe(taskType string, err error) {
	if h.observer != nil {
		h.observer.ObserveJob(taskType, err)
	}
}
