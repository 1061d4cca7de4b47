// Package jobs runs the background work of the blog: removing the content of
// deleted users and pruning refresh token records past their expiry.
package jobs

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	TypeCascadeDelete = "user:cascade_delete"
	TypePruneTokens   = "tokens:prune"

	queueDefault     = "default"
	queueMaintenance = "maintenance"
)

var ErrEmptyUserID = errors.New("empty user id")

// CascadePayload is the body of a TypeCascadeDelete task.
type CascadePayload struct {
	UserID string `json:"userId"`
}

func NewCascadeTask(userID string) (*asynq.Task, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	body, err := json.Marshal(CascadePayload{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("marshal cascade payload: %w", err)
	}

	return asynq.NewTask(TypeCascadeDelete, body,
		asynq.Queue(queueDefault),
		asynq.MaxRetry(10),
	), nil
}

func NewPruneTask() *asynq.Task {
	return asynq.NewTask(TypePruneTokens, nil,
		asynq.Queue(queueMaintenance),
		asynq.MaxRetry(1),
	)
}
