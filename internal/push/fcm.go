package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"firebase.google.com/go/v4/messaging"
	"golang.org/x/time/rate"

	"reminderdispatch/internal/metrics"
)

// ErrUnregistered means FCM no longer knows the device token.
var ErrUnregistered = errors.New("device token is no longer registered")

// FCMGateway sends push messages through Firebase Cloud Messaging.
type FCMGateway struct {
	client  *messaging.Client
	limiter *rate.Limiter
}

// NewFCMGateway paces sends to perSecond messages; zero or less disables
// pacing.
func NewFCMGateway(client *messaging.Client, perSecond float64) *FCMGateway {
	g := &FCMGateway{client: client}
	if perSecond > 0 {
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	return g
}

func (g *FCMGateway) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("push rate limiter: %w", err)
		}
	}

	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
		},
	}

	start := time.Now()
	id, err := g.client.Send(ctx, msg)
	metrics.PushLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		if messaging.IsUnregistered(err) {
			return fmt.Errorf("%w: %v", ErrUnregistered, err)
		}
		return fmt.Errorf("failed to send push: %w", err)
	}

	slog.Debug("push sent", "message_id", id)
	return nil
}
