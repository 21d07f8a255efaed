package notification

import (
	"context"
	"time"

	"reminderdispatch/internal/schedule"
)

const (
	collectionUsers  = "users"
	collectionPrefs  = "prefs"
	collectionRecent = "recent_notifs"
	collectionFeed   = "notif_feed"
	docNotifications = "notifications"
	fieldFCMToken    = "fcmToken"
)

// Preferences are a recipient's notification settings. A missing document
// decodes to the zero value, which behaves as all defaults.
type Preferences struct {
	PushEnabled *bool               `firestore:"push_enabled,omitempty" json:"push_enabled,omitempty"`
	Channels    map[string]bool     `firestore:"channels,omitempty" json:"channels,omitempty"`
	QuietHours  schedule.QuietHours `firestore:"quiet_hours" json:"quiet_hours"`
	Timezone    string              `firestore:"timezone,omitempty" json:"timezone,omitempty"`
}

// DefaultPreferences returns push enabled, no channel overrides and quiet
// hours 22:00-08:00.
func DefaultPreferences() Preferences {
	return Preferences{
		QuietHours: schedule.QuietHours{
			Start: schedule.DefaultQuietStart,
			End:   schedule.DefaultQuietEnd,
		},
	}
}

func (p Preferences) PushAllowed() bool {
	return p.PushEnabled == nil || *p.PushEnabled
}

// ChannelAllowed is true unless the channel is explicitly switched off.
func (p Preferences) ChannelAllowed(key string) bool {
	enabled, ok := p.Channels[key]
	return !ok || enabled
}

// Location returns the recipient's zone, or fallback when unset or unknown.
func (p Preferences) Location(fallback *time.Location) *time.Location {
	if p.Timezone != "" {
		if loc, err := time.LoadLocation(p.Timezone); err == nil {
			return loc
		}
	}
	if fallback == nil {
		return time.UTC
	}
	return fallback
}

// FeedEntry is one row of the in-app notification feed.
type FeedEntry struct {
	ID        string    `firestore:"-" json:"id"`
	Type      string    `firestore:"type" json:"type"`
	Title     string    `firestore:"title" json:"title"`
	Body      string    `firestore:"body" json:"body"`
	Deeplink  string    `firestore:"deeplink" json:"deeplink"`
	CreatedAt time.Time `firestore:"createdAt,serverTimestamp" json:"createdAt"`
	Read      bool      `firestore:"read" json:"read"`
}

// DedupRecord marks that a delivery attempt was made for a key.
type DedupRecord struct {
	At time.Time `firestore:"at,serverTimestamp" json:"at"`
}

// Request describes one (event, recipient) delivery.
type Request struct {
	RecipientID    string
	DeviceToken    string
	ChannelKey     string
	Title          string
	Body           string
	Deeplink       string
	IdempotencyKey string
}

// Outcome is what Notify did for a request.
type Outcome string

const (
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeClaimFailed  Outcome = "claim_failed"
	OutcomeSuppressed   Outcome = "suppressed"
	OutcomePushDisabled Outcome = "push_disabled"
	OutcomeNoToken      Outcome = "no_token"
	OutcomeQuiet        Outcome = "quiet"
	OutcomePushed       Outcome = "pushed"
	OutcomePushFailed   Outcome = "push_failed"
)

// Delivered reports whether the recipient got at least the in-app entry
// attempt, i.e. the request passed the claim and preference gates.
func (o Outcome) Delivered() bool {
	switch o {
	case OutcomePushDisabled, OutcomeNoToken, OutcomeQuiet, OutcomePushed, OutcomePushFailed:
		return true
	}
	return false
}

type PreferenceReader interface {
	Preferences(ctx context.Context, recipientID string) Preferences
}

// Claimer records dedup markers. Claim must be an atomic create-if-absent:
// true means this caller created the marker.
type Claimer interface {
	Claim(ctx context.Context, recipientID, key string) (bool, error)
}

type FeedWriter interface {
	AppendFeed(ctx context.Context, recipientID string, entry FeedEntry) error
}

// TokenResolver looks up the push device token of a user. An empty token with
// a nil error means the user has none.
type TokenResolver interface {
	DeviceToken(ctx context.Context, userID string) (string, error)
}

// Pusher is the push gateway.
type Pusher interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}

// Store is everything the delivery pipeline reads and writes per recipient.
type Store interface {
	PreferenceReader
	Claimer
	FeedWriter
	TokenResolver
}
