package queue

import (
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// NewScheduler registers the automatic scan on cronspec, evaluated in loc.
// Ticks are never retried; the next tick covers the next window.
func NewScheduler(redisAddr, cronspec string, loc *time.Location) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(RedisOpt(redisAddr), &asynq.SchedulerOpts{
		Location: loc,
		EnqueueErrorHandler: func(task *asynq.Task, opts []asynq.Option, err error) {
			slog.Error("Failed to enqueue scheduled scan", "task", task.Type(), "error", err)
		},
	})

	entryID, err := scheduler.Register(cronspec, asynq.NewTask(TaskScanTick, nil),
		asynq.Queue(QueueReminders),
		asynq.MaxRetry(0),
		asynq.Timeout(4*time.Minute),
		// Replicas running their own scheduler enqueue one tick between them.
		asynq.Unique(4*time.Minute),
	)
	if err != nil {
		return nil, err
	}

	slog.Info("Registered automatic reminder scan", "entry_id", entryID, "cron", cronspec, "location", loc.String())
	return scheduler, nil
}
