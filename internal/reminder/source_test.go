package reminder_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reminderdispatch/internal/reminder"
)

func TestMemorySourceRange(t *testing.T) {
	src := reminder.NewMemorySource(time.UTC)
	due := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	src.Put("users/A/friends/B/recurring/in", map[string]interface{}{"status": "active", "nextDueAt": due})
	src.Put("users/A/friends/B/recurring/edge", map[string]interface{}{"status": "active", "nextDueAt": due.Add(24 * time.Hour)})
	src.Put("users/A/friends/B/recurring/paused", map[string]interface{}{"status": "paused", "nextDueAt": due})
	src.Put("users/A/friends/B/expenses/x", map[string]interface{}{"status": "active", "nextDueAt": due})

	docs, err := src.DueBetween(context.Background(), due, due.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "users/A/friends/B/recurring/in", docs[0].Path)
}

func TestMemorySourceTimestampOnlySkipsStringDates(t *testing.T) {
	src := reminder.NewMemorySource(time.UTC)
	due := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	src.Put("users/A/friends/B/recurring/ts", map[string]interface{}{"status": "active", "nextDueAt": due})
	src.Put("users/A/friends/B/recurring/str", map[string]interface{}{"status": "active", "nextDueAt": "2024-06-10"})

	from, to := due.Add(-time.Hour), due.Add(time.Hour)

	docs, err := src.DueBetween(context.Background(), from, to)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	src.TimestampOnly = true
	docs, err = src.DueBetween(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "users/A/friends/B/recurring/ts", docs[0].Path)
}
