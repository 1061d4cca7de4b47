package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
)

// Inline runs tasks synchronously in the caller's goroutine. It is used when
// no Redis is configured.
type Inline struct {
	handlers *Handlers
}

func NewInline(handlers *Handlers) *Inline {
	return &Inline{handlers: handlers}
}

func (i *Inline) CascadeUserContent(ctx context.Context, userID string) error {
	const op = "jobs.Inline.CascadeUserContent"

	task, err := NewCascadeTask(userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return i.handlers.HandleCascadeDelete(ctx, task)
}

// PruneTokens runs one pruning pass.
func (i *Inline) PruneTokens(ctx context.Context) error {
	return i.handlers.HandlePruneTokens(ctx, asynq.NewTask(TypePruneTokens, nil))
}
