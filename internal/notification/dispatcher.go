package notification

import (
	"context"
	"log/slog"
	"time"

	"reminderdispatch/internal/metrics"
	"reminderdispatch/internal/schedule"
)

// DeliveryStore is the subset of Store the dispatcher writes through.
type DeliveryStore interface {
	PreferenceReader
	Claimer
	FeedWriter
}

// Dispatcher fans a single event out to a single recipient.
type Dispatcher struct {
	store DeliveryStore
	push  Pusher
	loc   *time.Location
	now   func() time.Time
}

type Option func(*Dispatcher)

// WithClock overrides time.Now, used for quiet-hours evaluation.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher builds a dispatcher. loc is the deployment zone used for
// quiet hours when a recipient has no zone of their own. push may be nil, in
// which case only feed entries are written.
func NewDispatcher(store DeliveryStore, push Pusher, loc *time.Location, opts ...Option) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	d := &Dispatcher{
		store: store,
		push:  push,
		loc:   loc,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify runs claim, preferences, feed and push in that order. The claim is
// durable before anything visible happens and is never released, so a failed
// push is not retried by a later scan. A channel switched off drops the event
// entirely; push_enabled=false only drops the push.
func (d *Dispatcher) Notify(ctx context.Context, req Request) Outcome {
	outcome := d.notify(ctx, req)
	metrics.Outcomes.WithLabelValues(string(outcome)).Inc()
	return outcome
}

func (d *Dispatcher) notify(ctx context.Context, req Request) Outcome {
	log := slog.With("user_id", req.RecipientID, "key", req.IdempotencyKey)

	claimed, err := d.store.Claim(ctx, req.RecipientID, req.IdempotencyKey)
	if err != nil {
		log.Error("failed to claim notification", "error", err)
		return OutcomeClaimFailed
	}
	if !claimed {
		log.Debug("notification already claimed")
		return OutcomeDuplicate
	}

	prefs := d.store.Preferences(ctx, req.RecipientID)
	if !prefs.ChannelAllowed(req.ChannelKey) {
		log.Info("notification suppressed by channel preference", "channel", req.ChannelKey)
		return OutcomeSuppressed
	}

	// CreatedAt stays zero so Firestore stamps the server time.
	entry := FeedEntry{
		Type:     req.ChannelKey,
		Title:    req.Title,
		Body:     req.Body,
		Deeplink: req.Deeplink,
		Read:     false,
	}
	if err := d.store.AppendFeed(ctx, req.RecipientID, entry); err != nil {
		log.Warn("failed to write feed entry", "error", err)
	}

	if !prefs.PushAllowed() {
		return OutcomePushDisabled
	}
	if req.DeviceToken == "" || d.push == nil {
		return OutcomeNoToken
	}
	if schedule.IsQuiet(prefs.QuietHours, schedule.LocalClock(d.now(), prefs.Location(d.loc))) {
		log.Info("push skipped during quiet hours")
		return OutcomeQuiet
	}

	data := map[string]string{
		"type":     req.ChannelKey,
		"deeplink": req.Deeplink,
	}
	if err := d.push.Send(ctx, req.DeviceToken, req.Title, req.Body, data); err != nil {
		log.Warn("failed to send push", "error", err)
		return OutcomePushFailed
	}
	return OutcomePushed
}
