package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"reminderdispatch/internal/metrics"
	"reminderdispatch/internal/notification"
	"reminderdispatch/internal/schedule"
)

const (
	DefaultMaxLeadDays = 30
	DefaultConcurrency = 4
)

// Notifier delivers one request to one recipient.
type Notifier interface {
	Notify(ctx context.Context, req notification.Request) notification.Outcome
}

type ScannerConfig struct {
	Location *time.Location
	// MaxLeadDays bounds notify.daysBefore for the coarse query. Rules with a
	// longer lead time are never candidates.
	MaxLeadDays int
	Concurrency int
}

// Scanner finds recurring rules whose fire instant falls in a window and
// hands each recipient to a Notifier.
type Scanner struct {
	source   Source
	tokens   notification.TokenResolver
	notifier Notifier
	loc      *time.Location
	maxLead  int
	parallel int
}

func NewScanner(source Source, tokens notification.TokenResolver, notifier Notifier, cfg ScannerConfig) *Scanner {
	s := &Scanner{
		source:   source,
		tokens:   tokens,
		notifier: notifier,
		loc:      cfg.Location,
		maxLead:  cfg.MaxLeadDays,
		parallel: cfg.Concurrency,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.maxLead <= 0 {
		s.maxLead = DefaultMaxLeadDays
	}
	if s.parallel <= 0 {
		s.parallel = DefaultConcurrency
	}
	return s
}

type result string

const (
	resultForeign   result = "foreign_path"
	resultMirror    result = "mirror"
	resultNoDueDate result = "no_due_date"
	resultInactive  result = "inactive"
	resultDisabled  result = "notify_disabled"
	resultOutside   result = "outside_window"
	resultFired     result = "fired"
	resultFailed    result = "failed"
)

// Summary counts what a scan did.
type Summary struct {
	Candidates int `json:"candidates"`
	Fired      int `json:"fired"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
	Notified   int `json:"notified"`
	Duplicates int `json:"duplicates"`
}

func (s *Summary) add(res result, outcomes []notification.Outcome) {
	s.Candidates++
	switch res {
	case resultFired:
		s.Fired++
	case resultFailed:
		s.Failed++
	default:
		s.Skipped++
	}
	for _, o := range outcomes {
		if o.Delivered() {
			s.Notified++
		}
		if o == notification.OutcomeDuplicate {
			s.Duplicates++
		}
	}
}

// CoarseRange is the nextDueAt range that can contain a fire instant inside
// [start, end): fire instants precede the due date by up to maxLead days and
// fall anywhere within the due calendar day.
func CoarseRange(start, end time.Time, maxLead int) (time.Time, time.Time) {
	day := 24 * time.Hour
	return start.Add(-day), end.Add(time.Duration(maxLead+1) * day)
}

// Scan processes the half-open window [start, end). Only a failing query is
// returned as an error; per-candidate failures are logged and counted. If ctx
// ends mid-scan the candidates already handled keep their claims and the
// context error is returned.
func (s *Scanner) Scan(ctx context.Context, start, end time.Time) (Summary, error) {
	var summary Summary
	if !start.Before(end) {
		return summary, fmt.Errorf("empty scan window [%s, %s)", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	from, to := CoarseRange(start, end, s.maxLead)
	docs, err := s.source.DueBetween(ctx, from, to)
	if err != nil {
		return summary, err
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.parallel)

	for _, doc := range docs {
		if ctx.Err() != nil {
			break
		}
		doc := doc
		g.Go(func() error {
			res, outcomes := s.processIsolated(ctx, doc, start, end)
			metrics.Candidates.WithLabelValues(string(res)).Inc()

			mu.Lock()
			summary.add(res, outcomes)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("reminder window scanned",
		"window_start", start.Format(time.RFC3339),
		"window_end", end.Format(time.RFC3339),
		"candidates", summary.Candidates,
		"fired", summary.Fired,
		"notified", summary.Notified,
		"failed", summary.Failed)

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("scan interrupted: %w", err)
	}
	return summary, nil
}

func (s *Scanner) processIsolated(ctx context.Context, doc Document, start, end time.Time) (res result, outcomes []notification.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while processing reminder", "path", doc.Path, "panic", r)
			res = resultFailed
		}
	}()

	res, outcomes, err := s.process(ctx, doc, start, end)
	if err != nil {
		slog.Error("failed to process reminder", "path", doc.Path, "error", err)
	}
	return res, outcomes
}

func (s *Scanner) process(ctx context.Context, doc Document, start, end time.Time) (result, []notification.Outcome, error) {
	rule, err := Decode(doc, s.loc)
	switch {
	case errors.Is(err, ErrNotOwnerPath):
		return resultForeign, nil, nil
	case errors.Is(err, ErrMissingDueDate):
		slog.Warn("skipping reminder without due date", "path", doc.Path)
		return resultNoDueDate, nil, nil
	case err != nil:
		return resultFailed, nil, err
	}

	if !rule.Canonical() {
		return resultMirror, nil, nil
	}
	if rule.Status != StatusActive {
		return resultInactive, nil, nil
	}
	if !rule.Notify.Enabled {
		return resultDisabled, nil, nil
	}

	fireAt := schedule.FireAt(rule.NextDueAt, rule.Notify.Time, rule.Notify.DaysBefore, s.loc)
	if fireAt.Before(start) || !fireAt.Before(end) {
		return resultOutside, nil, nil
	}

	occurrence := schedule.FormatDate(rule.NextDueAt, s.loc)
	base := notification.Request{
		ChannelKey: ChannelKey,
		Title:      rule.Title,
		Body:       "Due on " + occurrence,
		Deeplink:   Deeplink(rule.FriendID),
	}

	var outcomes []notification.Outcome
	for _, uid := range rule.Recipients() {
		token, err := s.tokens.DeviceToken(ctx, uid)
		if err != nil {
			slog.Warn("failed to resolve device token", "user_id", uid, "error", err)
			token = ""
		}

		req := base
		req.RecipientID = uid
		req.DeviceToken = token
		req.IdempotencyKey = IdempotencyKey(rule.ID, occurrence, uid)
		outcomes = append(outcomes, s.notifier.Notify(ctx, req))
	}

	slog.Info("reminder fired",
		"rule_id", rule.ID,
		"owner_id", rule.OwnerID,
		"fire_at", fireAt.Format(time.RFC3339),
		"recipients", len(outcomes))
	return resultFired, outcomes, nil
}
