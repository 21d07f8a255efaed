package worker

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"reminderdispatch/internal/queue"
	"reminderdispatch/internal/trigger"
)

// Runner is the part of trigger.Runner the worker drives.
type Runner interface {
	RunAutomatic(ctx context.Context) (trigger.Result, error)
	RunBackfill(ctx context.Context, offsets trigger.Offsets) (trigger.Result, error)
}

type Worker struct {
	server *asynq.Server
	runner Runner
}

func NewWorker(redisAddr string, runner Runner) *Worker {
	server := asynq.NewServer(
		queue.RedisOpt(redisAddr),
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				queue.QueueReminders: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				slog.Error("Reminder task failed", "task", task.Type(), "error", err)
			}),
		},
	)

	return &Worker{
		server: server,
		runner: runner,
	}
}

// Mux routes reminder task types to their handlers.
func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskScanTick, w.HandleScanTick)
	mux.HandleFunc(queue.TaskScanWindow, w.HandleScanWindow)
	return mux
}

func (w *Worker) Start(ctx context.Context) error {
	slog.Info("Starting worker",
		"queues", []string{queue.QueueReminders},
		"tasks", []string{queue.TaskScanTick, queue.TaskScanWindow})

	if err := w.server.Start(w.Mux()); err != nil {
		return err
	}

	slog.Info("Worker started successfully")

	<-ctx.Done()

	w.server.Shutdown()
	slog.Info("Worker stopped")
	return nil
}

// HandleScanTick runs the automatic trigger. Failures are logged and the task
// is dropped; the next tick scans the next window.
func (w *Worker) HandleScanTick(ctx context.Context, _ *asynq.Task) error {
	if _, err := w.runner.RunAutomatic(ctx); err != nil {
		slog.Error("Automatic reminder scan failed", "error", err)
		return asynq.SkipRetry
	}
	return nil
}

func (w *Worker) HandleScanWindow(ctx context.Context, t *asynq.Task) error {
	payload, err := queue.ParseScanWindowTask(t)
	if err != nil {
		slog.Error("Dropping malformed scan task", "error", err)
		return asynq.SkipRetry
	}

	res, err := w.runner.RunBackfill(ctx, payload.Offsets)
	if err != nil {
		slog.Error("Queued reminder scan failed",
			"run_id", res.RunID,
			"requested_at", payload.RequestedAt,
			"error", err)
		return asynq.SkipRetry
	}

	slog.Info("Queued reminder scan finished",
		"run_id", res.RunID,
		"notified", res.Summary.Notified,
		"window_start", res.Window.Start,
		"window_end", res.Window.End)
	return nil
}
