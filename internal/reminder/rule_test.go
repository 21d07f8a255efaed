package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	owner, friend, id, err := ParsePath("users/A/friends/B/recurring/R")
	require.NoError(t, err)
	assert.Equal(t, "A", owner)
	assert.Equal(t, "B", friend)
	assert.Equal(t, "R", id)

	for _, bad := range []string{
		"groups/G/recurring/R",
		"users/A/recurring/R",
		"users/A/friends/B/expenses/R",
		"users//friends/B/recurring/R",
		"users/A/friends/B/recurring/R/extra/1",
	} {
		_, _, _, err := ParsePath(bad)
		assert.ErrorIs(t, err, ErrNotOwnerPath, bad)
	}
}

func TestDecode(t *testing.T) {
	due := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	rule, err := Decode(Document{
		Path: RulePath("A", "B", "R"),
		Data: map[string]interface{}{
			"title":     "Rent",
			"status":    "active",
			"nextDueAt": due,
			"notify": map[string]interface{}{
				"enabled":    true,
				"time":       "09:00",
				"daysBefore": int64(1),
				"both":       true,
			},
		},
	}, time.UTC)
	require.NoError(t, err)

	assert.Equal(t, "R", rule.ID)
	assert.Equal(t, "Rent", rule.Title)
	assert.Equal(t, StatusActive, rule.Status)
	assert.True(t, rule.NextDueAt.Equal(due))
	assert.Equal(t, NotifySettings{Enabled: true, Time: "09:00", DaysBefore: 1, Both: true}, rule.Notify)
	assert.True(t, rule.Canonical())
	assert.Equal(t, []string{"A", "B"}, rule.Recipients())
}

func TestDecodeMissingDueDate(t *testing.T) {
	_, err := Decode(Document{
		Path: RulePath("A", "B", "R"),
		Data: map[string]interface{}{"status": "active", "nextDueAt": "next tuesday"},
	}, time.UTC)
	assert.ErrorIs(t, err, ErrMissingDueDate)

	_, err = Decode(Document{Path: RulePath("A", "B", "R"), Data: map[string]interface{}{}}, time.UTC)
	assert.ErrorIs(t, err, ErrMissingDueDate)
}

func TestDueDateFormats(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)

	d, ok := DueDate("2024-06-10", loc)
	require.True(t, ok)
	assert.True(t, d.Equal(time.Date(2024, 6, 10, 0, 0, 0, 0, loc)))

	d, ok = DueDate("2024-06-10T10:00:00Z", loc)
	require.True(t, ok)
	assert.True(t, d.Equal(time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)))

	_, ok = DueDate(time.Time{}, loc)
	assert.False(t, ok)
	_, ok = DueDate(42, loc)
	assert.False(t, ok)
}

func TestCanonical(t *testing.T) {
	assert.True(t, Rule{OwnerID: "A"}.Canonical())
	assert.True(t, Rule{OwnerID: "A", DeclaredOwner: "A"}.Canonical())
	assert.False(t, Rule{OwnerID: "B", DeclaredOwner: "A"}.Canonical())
	assert.False(t, Rule{OwnerID: "B", MirrorOf: RulePath("A", "B", "R")}.Canonical())
	assert.False(t, Rule{OwnerID: "B", MirroredFrom: "A"}.Canonical())
}

func TestDecodeReadsMirrorMarkers(t *testing.T) {
	rule, err := Decode(Document{
		Path: RulePath("B", "A", "R"),
		Data: map[string]interface{}{"nextDueAt": "2024-06-10", "mirroredFrom": "A"},
	}, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "A", rule.MirroredFrom)
	assert.False(t, rule.Canonical())
}

func TestRecipientsWithoutBoth(t *testing.T) {
	r := Rule{OwnerID: "A", FriendID: "B"}
	assert.Equal(t, []string{"A"}, r.Recipients())

	r.Notify.Both = true
	r.FriendID = "A"
	assert.Equal(t, []string{"A"}, r.Recipients())
}

func TestKeysAndLinks(t *testing.T) {
	assert.Equal(t, "recurring:R:10-06-2024:A", IdempotencyKey("R", "10-06-2024", "A"))
	assert.Equal(t, "app://friend/B/recurring", Deeplink("B"))
}

func TestCoarseRangeCoversLeadTime(t *testing.T) {
	start := time.Date(2024, 6, 9, 8, 55, 0, 0, time.UTC)
	end := start.Add(10 * time.Minute)

	from, to := CoarseRange(start, end, 30)
	assert.True(t, from.Equal(start.Add(-24*time.Hour)))
	assert.True(t, to.Equal(end.Add(31*24*time.Hour)))
}
