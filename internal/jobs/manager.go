package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"blog/internal/lib/sl"

	"github.com/hibiken/asynq"
)

type ManagerConfig struct {
	RedisURL    string
	Concurrency int
	PruneCron   string
}

// Manager owns the asynq client, worker server and scheduler.
type Manager struct {
	logger    *slog.Logger
	client    *asynq.Client
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
}

func NewManager(logger *slog.Logger, cfg ManagerConfig, handlers *Handlers) (*Manager, error) {
	const op = "jobs.NewManager"

	if handlers == nil {
		return nil, fmt.Errorf("%s: handlers are nil", op)
	}

	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse redis url: %w", op, err)
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	al := &asynqLogger{logger: logger.With(slog.String("component", "asynq"))}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueDefault:     3,
			queueMaintenance: 1,
		},
		Logger: al,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error("task failed",
				slog.String("type", task.Type()),
				sl.Err(err),
			)
		}),
	})

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   al,
	})
	if cfg.PruneCron != "" {
		if _, err := scheduler.Register(cfg.PruneCron, NewPruneTask()); err != nil {
			return nil, fmt.Errorf("%s: register prune schedule: %w", op, err)
		}
	}

	mux := asynq.NewServeMux()
	handlers.Register(mux)

	return &Manager{
		logger:    logger,
		client:    asynq.NewClient(opt),
		server:    server,
		scheduler: scheduler,
		mux:       mux,
	}, nil
}

// Start launches the worker and the scheduler in the background.
func (m *Manager) Start() error {
	const op = "jobs.Manager.Start"

	if err := m.server.Start(m.mux); err != nil {
		return fmt.Errorf("%s: server: %w", op, err)
	}
	if err := m.scheduler.Start(); err != nil {
		m.server.Shutdown()
		return fmt.Errorf("%s: scheduler: %w", op, err)
	}

	m.logger.Info("job workers started")

	return nil
}

func (m *Manager) Shutdown() {
	m.scheduler.Shutdown()
	m.server.Shutdown()
	if err := m.client.Close(); err != nil {
		m.logger.Warn("failed to close asynq client", sl.Err(err))
	}
}

// CascadeUserContent queues removal of everything userID authored.
func (m *Manager) CascadeUserContent(ctx context.Context, userID string) error {
	const op = "jobs.Manager.CascadeUserContent"

	task, err := NewCascadeTask(userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	info, err := m.client.EnqueueContext(ctx, task, asynq.TaskID(TypeCascadeDelete+":"+userID))
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	m.logger.Info("cascade queued",
		slog.String("userID", userID),
		slog.String("taskID", info.ID),
	)

	return nil
}

// asynqLogger routes asynq's internal logging through slog.
type asynqLogger struct {
	logger *slog.Logger
}

func (l *asynqLogger) Debug(args ...any) { l.logger.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...any)  { l.logger.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...any)  { l.logger.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...any) { l.logger.Error(fmt.Sprint(args...)) }

func (l *asynqLogger) Fatal(args ...any) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
