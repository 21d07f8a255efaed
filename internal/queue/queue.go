package queue

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"reminderdispatch/internal/trigger"
)

const (
	QueueReminders = "reminders"

	// TaskScanTick is enqueued by the scheduler; the worker scans
	// [now, now+5m) when it runs.
	TaskScanTick = "reminder:scan_tick"
	// TaskScanWindow carries on-demand offsets for an asynchronous run.
	TaskScanWindow = "reminder:scan_window"
)

type ScanWindowPayload struct {
	Offsets     trigger.Offsets `json:"offsets"`
	RequestedAt time.Time       `json:"requested_at"`
}

// Queue enqueues reminder scans on Redis through asynq.
type Queue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

func RedisOpt(redisAddr string) asynq.RedisClientOpt {
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	return asynq.RedisClientOpt{Addr: redisAddr}
}

func New(redisAddr string) (*Queue, error) {
	opt := RedisOpt(redisAddr)
	q := &Queue{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
	}

	// Test connection
	if _, err := q.inspector.Queues(); err != nil {
		q.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Successfully initialized task queue", "redis_addr", opt.Addr)
	return q, nil
}

func NewScanWindowTask(offsets trigger.Offsets, requestedAt time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(ScanWindowPayload{Offsets: offsets.Normalize(), RequestedAt: requestedAt})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TaskScanWindow, payload), nil
}

func ParseScanWindowTask(t *asynq.Task) (ScanWindowPayload, error) {
	var p ScanWindowPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("invalid %s payload: %w", TaskScanWindow, err)
	}
	p.Offsets = p.Offsets.Normalize()
	return p, nil
}

// EnqueueScanWindow queues an on-demand scan and returns the task id. Like the
// automatic trigger, a failed run is not retried.
func (q *Queue) EnqueueScanWindow(offsets trigger.Offsets) (string, error) {
	task, err := NewScanWindowTask(offsets, time.Now())
	if err != nil {
		return "", err
	}

	info, err := q.client.Enqueue(task,
		asynq.Queue(QueueReminders),
		asynq.MaxRetry(0),
		asynq.Timeout(5*time.Minute),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	return info.ID, nil
}

// TaskStatus returns the current state of a queued scan.
func (q *Queue) TaskStatus(taskID string) (*asynq.TaskInfo, error) {
	info, err := q.inspector.GetTaskInfo(QueueReminders, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task info: %w", err)
	}
	return info, nil
}

func (q *Queue) Close() error {
	if q.inspector != nil {
		_ = q.inspector.Close()
	}
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}
