package trigger

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"reminderdispatch/internal/db"
	"reminderdispatch/internal/metrics"
	"reminderdispatch/internal/reminder"
)

type Scanner interface {
	Scan(ctx context.Context, start, end time.Time) (reminder.Summary, error)
}

// Ledger records finished scans. Recording is best effort.
type Ledger interface {
	RecordScanRun(ctx context.Context, run db.ScanRun) error
}

// Result describes one finished scan.
type Result struct {
	RunID   uuid.UUID
	Kind    Kind
	Window  Window
	Summary reminder.Summary
}

// Runner resolves trigger windows and drives the scanner.
type Runner struct {
	scanner Scanner
	ledger  Ledger
	loc     *time.Location
	timeout time.Duration
	now     func() time.Time
}

type Option func(*Runner)

// WithLedger records every run; a nil ledger disables recording.
func WithLedger(l Ledger) Option {
	return func(r *Runner) { r.ledger = l }
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithTimeout bounds on-demand and backfill runs.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

func NewRunner(scanner Scanner, loc *time.Location, opts ...Option) *Runner {
	r := &Runner{
		scanner: scanner,
		loc:     loc,
		timeout: 3 * time.Minute,
		now:     time.Now,
	}
	if r.loc == nil {
		r.loc = time.UTC
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunAutomatic scans [now, now+5m). The caller only logs the error.
func (r *Runner) RunAutomatic(ctx context.Context) (Result, error) {
	return r.run(ctx, KindAutomatic, AutomaticWindow(r.now().In(r.loc)))
}

// RunOnDemand scans the window described by offsets under the configured
// timeout. The resolved window is returned even when the scan fails.
func (r *Runner) RunOnDemand(ctx context.Context, offsets Offsets) (Result, error) {
	return r.runBounded(ctx, KindOnDemand, offsets.Window(r.now().In(r.loc)))
}

// RunBackfill is RunOnDemand for queued requests; the window is resolved when
// the task runs.
func (r *Runner) RunBackfill(ctx context.Context, offsets Offsets) (Result, error) {
	return r.runBounded(ctx, KindBackfill, offsets.Window(r.now().In(r.loc)))
}

func (r *Runner) runBounded(ctx context.Context, kind Kind, w Window) (Result, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return r.run(ctx, kind, w)
}

func (r *Runner) run(ctx context.Context, kind Kind, w Window) (Result, error) {
	res := Result{RunID: uuid.New(), Kind: kind, Window: w}
	startedAt := time.Now()

	slog.Info("Starting reminder scan",
		"run_id", res.RunID,
		"trigger", kind,
		"window_start", w.Start.Format(time.RFC3339),
		"window_end", w.End.Format(time.RFC3339))

	summary, err := r.scanner.Scan(ctx, w.Start, w.End)
	res.Summary = summary

	elapsed := time.Since(startedAt)
	metrics.ScanDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
	status := "ok"
	if err != nil {
		status = "error"
		slog.Error("Reminder scan failed", "run_id", res.RunID, "trigger", kind, "error", err)
	}
	metrics.Scans.WithLabelValues(string(kind), status).Inc()

	r.record(res, startedAt, err)
	return res, err
}

func (r *Runner) record(res Result, startedAt time.Time, scanErr error) {
	if r.ledger == nil {
		return
	}
	run := db.ScanRun{
		ID:          res.RunID,
		Trigger:     string(res.Kind),
		WindowStart: res.Window.Start,
		WindowEnd:   res.Window.End,
		StartedAt:   startedAt,
		FinishedAt:  time.Now(),
		Candidates:  res.Summary.Candidates,
		Fired:       res.Summary.Fired,
		Notified:    res.Summary.Notified,
		Skipped:     res.Summary.Skipped,
		Failed:      res.Summary.Failed,
	}
	if scanErr != nil {
		run.Error = sql.NullString{String: scanErr.Error(), Valid: true}
	}

	// The scan context may already be done; the ledger write gets its own.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.ledger.RecordScanRun(ctx, run); err != nil {
		slog.Warn("Failed to record scan run", "run_id", res.RunID, "error", err)
	}
}
