package db

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests need a migrated Postgres; set TEST_DATABASE_DSN to run them.
func testStore(t *testing.T) *ScanRunStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	conn, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewScanRunStore(conn)
}

func TestRecordAndGetScanRun(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	start := time.Now().UTC().Truncate(time.Second)
	run := ScanRun{
		ID:          uuid.New(),
		Trigger:     "on_demand",
		WindowStart: start,
		WindowEnd:   start.Add(10 * time.Minute),
		StartedAt:   start,
		FinishedAt:  start.Add(time.Second),
		Candidates:  3,
		Fired:       1,
		Notified:    2,
		Skipped:     2,
		Error:       sql.NullString{String: "boom", Valid: true},
	}
	require.NoError(t, store.RecordScanRun(ctx, run))

	got, err := store.GetScanRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "on_demand", got.Trigger)
	assert.Equal(t, 2, got.Notified)
	assert.True(t, got.WindowEnd.Equal(run.WindowEnd))
	assert.Equal(t, "boom", got.Error.String)

	runs, err := store.RecentScanRuns(ctx, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, runs)
}

func TestGetScanRunNotFound(t *testing.T) {
	store := testStore(t)
	_, err := store.GetScanRun(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)
}
