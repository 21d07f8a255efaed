package reminder

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	collectionUsers     = "users"
	collectionFriends   = "friends"
	collectionRecurring = "recurring"

	// ChannelKey is the preference channel and feed type of recurring reminders.
	ChannelKey = "recurring"
)

var (
	// ErrNotOwnerPath means the document is not stored at
	// users/{owner}/friends/{friend}/recurring/{rule}.
	ErrNotOwnerPath = errors.New("document is not an owner-side recurring rule")
	// ErrMissingDueDate means nextDueAt is absent or unreadable.
	ErrMissingDueDate = errors.New("nextDueAt missing or unparseable")
)

type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
)

type NotifySettings struct {
	Enabled    bool
	Time       string
	DaysBefore int
	Both       bool
}

// Rule is a decoded recurring reminder.
type Rule struct {
	ID       string
	OwnerID  string
	FriendID string

	Title     string
	Status    Status
	NextDueAt time.Time
	Notify    NotifySettings

	// MirrorOf is set on the counterparty's projection and names the
	// canonical document.
	MirrorOf string
	// MirroredFrom is the older marker for the same projection and holds the
	// uid of the user the document was copied from.
	MirroredFrom string
	// DeclaredOwner is the ownerId field, when the writer recorded one.
	DeclaredOwner string
}

// Document is a raw recurring rule as returned by a Source. Path is relative
// to the database root.
type Document struct {
	Path string
	Data map[string]interface{}
}

// ParsePath splits users/{owner}/friends/{friend}/recurring/{rule}.
func ParsePath(path string) (owner, friend, ruleID string, err error) {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) != 6 ||
		segs[0] != collectionUsers ||
		segs[2] != collectionFriends ||
		segs[4] != collectionRecurring {
		return "", "", "", fmt.Errorf("%w: %s", ErrNotOwnerPath, path)
	}
	for _, s := range []string{segs[1], segs[3], segs[5]} {
		if s == "" {
			return "", "", "", fmt.Errorf("%w: %s", ErrNotOwnerPath, path)
		}
	}
	return segs[1], segs[3], segs[5], nil
}

// RulePath builds the canonical document path of a rule.
func RulePath(owner, friend, ruleID string) string {
	return strings.Join([]string{collectionUsers, owner, collectionFriends, friend, collectionRecurring, ruleID}, "/")
}

// Decode reads a Document. Date strings without a zone are read in loc.
func Decode(doc Document, loc *time.Location) (Rule, error) {
	owner, friend, id, err := ParsePath(doc.Path)
	if err != nil {
		return Rule{}, err
	}

	rule := Rule{
		ID:            id,
		OwnerID:       owner,
		FriendID:      friend,
		Title:         stringField(doc.Data, "title"),
		Status:        Status(stringField(doc.Data, "status")),
		MirrorOf:      stringField(doc.Data, "mirrorOf"),
		MirroredFrom:  stringField(doc.Data, "mirroredFrom"),
		DeclaredOwner: stringField(doc.Data, "ownerId"),
	}

	if notify, ok := doc.Data["notify"].(map[string]interface{}); ok {
		rule.Notify = NotifySettings{
			Enabled:    boolField(notify, "enabled"),
			Time:       stringField(notify, "time"),
			DaysBefore: intField(notify, "daysBefore"),
			Both:       boolField(notify, "both"),
		}
	}

	due, ok := DueDate(doc.Data["nextDueAt"], loc)
	if !ok {
		return rule, fmt.Errorf("%w: %s", ErrMissingDueDate, doc.Path)
	}
	rule.NextDueAt = due
	return rule, nil
}

// Canonical reports whether this document is the owner's own record rather
// than the projection kept under the counterparty.
func (r Rule) Canonical() bool {
	if r.MirrorOf != "" || r.MirroredFrom != "" {
		return false
	}
	return r.DeclaredOwner == "" || r.DeclaredOwner == r.OwnerID
}

// Recipients is the owner, plus the counterparty when notify.both is set.
func (r Rule) Recipients() []string {
	out := []string{r.OwnerID}
	if r.Notify.Both && r.FriendID != r.OwnerID {
		out = append(out, r.FriendID)
	}
	return out
}

// IdempotencyKey encodes (rule, occurrence, recipient).
func IdempotencyKey(ruleID, occurrence, recipientID string) string {
	return "recurring:" + ruleID + ":" + occurrence + ":" + recipientID
}

// Deeplink opens the recurring tab of the counterparty.
func Deeplink(friendID string) string {
	return "app://friend/" + friendID + "/recurring"
}

// DueDate reads a nextDueAt value: a timestamp, or a "2006-01-02" / RFC3339
// string.
func DueDate(v interface{}, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return *t, true
	case string:
		s := strings.TrimSpace(t)
		if d, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
			return d, true
		}
		if d, err := time.Parse(time.RFC3339, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func boolField(m map[string]interface{}, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func intField(m map[string]interface{}, key string) int {
	switch n := m[key].(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}
