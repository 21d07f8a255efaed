package notification_test

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reminderdispatch/internal/notification"
	"reminderdispatch/internal/push"
	"reminderdispatch/internal/schedule"
)

func boolPtr(b bool) *bool { return &b }

func fixedClock(hour, minute int) func() time.Time {
	return func() time.Time {
		return time.Date(2024, 6, 9, hour, minute, 0, 0, time.UTC)
	}
}

func request(uid, token string) notification.Request {
	return notification.Request{
		RecipientID:    uid,
		DeviceToken:    token,
		ChannelKey:     "recurring",
		Title:          "Rent",
		Body:           "Due on 10-06-2024",
		Deeplink:       "app://friend/B/recurring",
		IdempotencyKey: "recurring:R:10-06-2024:" + uid,
	}
}

func TestNotifyPushesAndWritesFeed(t *testing.T) {
	store := notification.NewMemoryStore()
	rec := push.NewRecorder()
	d := notification.NewDispatcher(store, rec, time.UTC, notification.WithClock(fixedClock(12, 0)))

	out := d.Notify(context.Background(), request("A", "tok-a"))

	assert.Equal(t, notification.OutcomePushed, out)
	require.Len(t, store.Feed("A"), 1)
	entry := store.Feed("A")[0]
	assert.Equal(t, "recurring", entry.Type)
	assert.Equal(t, "Rent", entry.Title)
	assert.Equal(t, "app://friend/B/recurring", entry.Deeplink)
	assert.False(t, entry.Read)
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero(), "memory store stamps createdAt")

	sent := rec.SentTo("tok-a")
	require.Len(t, sent, 1)
	assert.Equal(t, map[string]string{"type": "recurring", "deeplink": "app://friend/B/recurring"}, sent[0].Data)
}

type feedCapture struct {
	*notification.MemoryStore
	entries []notification.FeedEntry
}

func (c *feedCapture) AppendFeed(ctx context.Context, uid string, entry notification.FeedEntry) error {
	c.entries = append(c.entries, entry)
	return c.MemoryStore.AppendFeed(ctx, uid, entry)
}

func TestNotifyLeavesCreatedAtToServer(t *testing.T) {
	store := &feedCapture{MemoryStore: notification.NewMemoryStore()}
	d := notification.NewDispatcher(store, push.NewRecorder(), time.UTC, notification.WithClock(fixedClock(12, 0)))

	d.Notify(context.Background(), request("A", "tok-a"))

	require.Len(t, store.entries, 1)
	assert.True(t, store.entries[0].CreatedAt.IsZero(), "zero createdAt lets firestore apply serverTimestamp")
}

func TestNotifyIsIdempotent(t *testing.T) {
	store := notification.NewMemoryStore()
	rec := push.NewRecorder()
	d := notification.NewDispatcher(store, rec, time.UTC, notification.WithClock(fixedClock(12, 0)))

	first := d.Notify(context.Background(), request("A", "tok-a"))
	second := d.Notify(context.Background(), request("A", "tok-a"))

	assert.Equal(t, notification.OutcomePushed, first)
	assert.Equal(t, notification.OutcomeDuplicate, second)
	assert.Len(t, store.Feed("A"), 1)
	assert.Len(t, rec.Sent(), 1)
}

func TestNotifyPushDisabledKeepsClaim(t *testing.T) {
	store := notification.NewMemoryStore()
	store.SetPreferences("A", notification.Preferences{PushEnabled: boolPtr(false)})
	rec := push.NewRecorder()
	d := notification.NewDispatcher(store, rec, time.UTC, notification.WithClock(fixedClock(12, 0)))

	out := d.Notify(context.Background(), request("A", "tok-a"))

	assert.Equal(t, notification.OutcomePushDisabled, out)
	assert.Empty(t, rec.Sent())
	assert.True(t, store.Claimed("A", "recurring:R:10-06-2024:A"))
	assert.Len(t, store.Feed("A"), 1)
}

func TestNotifyChannelOverride(t *testing.T) {
	store := notification.NewMemoryStore()
	store.SetPreferences("A", notification.Preferences{Channels: map[string]bool{"recurring": false, "chat": true}})
	rec := push.NewRecorder()
	d := notification.NewDispatcher(store, rec, time.UTC)

	assert.Equal(t, notification.OutcomeSuppressed, d.Notify(context.Background(), request("A", "tok-a")))
	assert.Empty(t, rec.Sent())
	assert.Empty(t, store.Feed("A"))
	assert.True(t, store.Claimed("A", "recurring:R:10-06-2024:A"))
}

func TestNotifyQuietHoursStillWritesFeed(t *testing.T) {
	store := notification.NewMemoryStore()
	rec := push.NewRecorder()
	d := notification.NewDispatcher(store, rec, time.UTC, notification.WithClock(fixedClock(23, 30)))

	out := d.Notify(context.Background(), request("A", "tok-a"))

	assert.Equal(t, notification.OutcomeQuiet, out)
	assert.Len(t, store.Feed("A"), 1)
	assert.Empty(t, rec.Sent())
}

func TestNotifyQuietHoursUseRecipientTimezone(t *testing.T) {
	store := notification.NewMemoryStore()
	// 12:00 UTC is 21:00 in Tokyo; quiet window 20:00-21:30 there.
	store.SetPreferences("A", notification.Preferences{
		Timezone:   "Asia/Tokyo",
		QuietHours: schedule.QuietHours{Start: "20:00", End: "21:30"},
	})
	rec := push.NewRecorder()
	d := notification.NewDispatcher(store, rec, time.UTC, notification.WithClock(fixedClock(12, 0)))

	assert.Equal(t, notification.OutcomeQuiet, d.Notify(context.Background(), request("A", "tok-a")))
}

func TestNotifyWithoutTokenWritesFeedOnly(t *testing.T) {
	store := notification.NewMemoryStore()
	rec := push.NewRecorder()
	d := notification.NewDispatcher(store, rec, time.UTC, notification.WithClock(fixedClock(12, 0)))

	assert.Equal(t, notification.OutcomeNoToken, d.Notify(context.Background(), request("A", "")))
	assert.Len(t, store.Feed("A"), 1)
	assert.Empty(t, rec.Sent())
}

func TestNotifyPushFailureIsSwallowed(t *testing.T) {
	store := notification.NewMemoryStore()
	rec := push.NewRecorder()
	rec.Err = errors.New("gateway unavailable")
	d := notification.NewDispatcher(store, rec, time.UTC, notification.WithClock(fixedClock(12, 0)))

	assert.Equal(t, notification.OutcomePushFailed, d.Notify(context.Background(), request("A", "tok-a")))
	assert.Len(t, store.Feed("A"), 1)

	// no retry on the next pass
	rec.Err = nil
	assert.Equal(t, notification.OutcomeDuplicate, d.Notify(context.Background(), request("A", "tok-a")))
	assert.Len(t, rec.Sent(), 1)
}

func TestNotifyFeedFailureDoesNotBlockPush(t *testing.T) {
	store := notification.NewMemoryStore()
	store.FeedErr = errors.New("write failed")
	rec := push.NewRecorder()
	d := notification.NewDispatcher(store, rec, time.UTC, notification.WithClock(fixedClock(12, 0)))

	assert.Equal(t, notification.OutcomePushed, d.Notify(context.Background(), request("A", "tok-a")))
	assert.Len(t, rec.Sent(), 1)
}

func TestNotifyClaimFailureDeliversNothing(t *testing.T) {
	store := notification.NewMemoryStore()
	store.ClaimErr = errors.New("store unavailable")
	rec := push.NewRecorder()
	d := notification.NewDispatcher(store, rec, time.UTC)

	assert.Equal(t, notification.OutcomeClaimFailed, d.Notify(context.Background(), request("A", "tok-a")))
	assert.Empty(t, store.Feed("A"))
	assert.Empty(t, rec.Sent())
}

func TestPreferencesDefaults(t *testing.T) {
	p := notification.DefaultPreferences()
	assert.True(t, p.PushAllowed())
	assert.True(t, p.ChannelAllowed("anything"))
	assert.Equal(t, "22:00", p.QuietHours.Start)
	assert.Equal(t, "08:00", p.QuietHours.End)
	assert.Equal(t, time.UTC, p.Location(nil))

	p.Timezone = "Not/AZone"
	loc := time.FixedZone("X", 3600)
	assert.Equal(t, loc, p.Location(loc))
}

func TestOutcomeDelivered(t *testing.T) {
	assert.True(t, notification.OutcomePushed.Delivered())
	assert.True(t, notification.OutcomeQuiet.Delivered())
	assert.True(t, notification.OutcomePushDisabled.Delivered())
	assert.False(t, notification.OutcomeDuplicate.Delivered())
	assert.False(t, notification.OutcomeSuppressed.Delivered())
}
