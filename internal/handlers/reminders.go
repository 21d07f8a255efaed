package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"

	"reminderdispatch/internal/db"
	"reminderdispatch/internal/reminder"
	"reminderdispatch/internal/trigger"
)

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

type OnDemandRunner interface {
	RunOnDemand(ctx context.Context, offsets trigger.Offsets) (trigger.Result, error)
}

type Enqueuer interface {
	EnqueueScanWindow(offsets trigger.Offsets) (string, error)
	TaskStatus(taskID string) (*asynq.TaskInfo, error)
}

type RunLister interface {
	RecentScanRuns(ctx context.Context, limit int) ([]db.ScanRun, error)
	GetScanRun(ctx context.Context, id uuid.UUID) (*db.ScanRun, error)
}

// ReminderHandler serves the on-demand trigger. queue and runs may be nil
// when Redis or the ledger database is not configured.
type ReminderHandler struct {
	runner OnDemandRunner
	queue  Enqueuer
	runs   RunLister
}

func NewReminderHandler(runner OnDemandRunner, queue Enqueuer, runs RunLister) *ReminderHandler {
	return &ReminderHandler{runner: runner, queue: queue, runs: runs}
}

type runWindowResponse struct {
	OK          bool              `json:"ok"`
	RunID       string            `json:"runId,omitempty"`
	WindowStart string            `json:"windowStart,omitempty"`
	WindowEnd   string            `json:"windowEnd,omitempty"`
	Summary     *reminder.Summary `json:"summary,omitempty"`
	TaskID      string            `json:"taskId,omitempty"`
	Error       string            `json:"error,omitempty"`
}

func formatISO(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

// RunReminderWindow scans [now+minMins, now+maxMins). With async=true the
// scan is queued and the task id returned instead.
func (h *ReminderHandler) RunReminderWindow(c echo.Context) error {
	offsets := trigger.ParseOffsets(param(c, "minMins"), param(c, "maxMins"))

	if async, _ := strconv.ParseBool(param(c, "async")); async {
		if h.queue == nil {
			return c.JSON(http.StatusServiceUnavailable, runWindowResponse{Error: "task queue is not configured"})
		}
		taskID, err := h.queue.EnqueueScanWindow(offsets)
		if err != nil {
			slog.Error("Failed to enqueue reminder scan", "error", err)
			return c.JSON(http.StatusInternalServerError, runWindowResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusAccepted, runWindowResponse{OK: true, TaskID: taskID})
	}

	// A dropped client connection does not abort the scan; the runner's
	// timeout still applies.
	ctx := context.WithoutCancel(c.Request().Context())
	res, err := h.runner.RunOnDemand(ctx, offsets)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, runWindowResponse{
			RunID: res.RunID.String(),
			Error: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, runWindowResponse{
		OK:          true,
		RunID:       res.RunID.String(),
		WindowStart: formatISO(res.Window.Start),
		WindowEnd:   formatISO(res.Window.End),
		Summary:     &res.Summary,
	})
}

func (h *ReminderHandler) GetTaskStatus(c echo.Context) error {
	if h.queue == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "task queue is not configured"})
	}
	info, err := h.queue.TaskStatus(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Task not found"})
	}

	resp := map[string]interface{}{
		"id":    info.ID,
		"type":  info.Type,
		"state": info.State.String(),
	}
	if info.LastErr != "" {
		resp["error"] = info.LastErr
	}
	if !info.CompletedAt.IsZero() {
		resp["completedAt"] = formatISO(info.CompletedAt)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ReminderHandler) ListScanRuns(c echo.Context) error {
	if h.runs == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "scan ledger is not configured"})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	runs, err := h.runs.RecentScanRuns(c.Request().Context(), limit)
	if err != nil {
		slog.Error("Failed to list scan runs", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list scan runs"})
	}
	return c.JSON(http.StatusOK, runs)
}

func (h *ReminderHandler) GetScanRun(c echo.Context) error {
	if h.runs == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "scan ledger is not configured"})
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid run id"})
	}
	run, err := h.runs.GetScanRun(c.Request().Context(), id)
	if errors.Is(err, db.ErrRunNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Scan run not found"})
	}
	if err != nil {
		slog.Error("Failed to get scan run", "run_id", id, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get scan run"})
	}
	return c.JSON(http.StatusOK, run)
}

func HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// param reads a query value, falling back to a form value on POST.
func param(c echo.Context, name string) string {
	if v := c.QueryParam(name); v != "" {
		return v
	}
	if c.Request().Method == http.MethodPost {
		return strings.TrimSpace(c.FormValue(name))
	}
	return ""
}
