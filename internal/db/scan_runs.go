package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ScanRun is one row of the scan_runs ledger.
type ScanRun struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	Trigger     string         `db:"trigger" json:"trigger"`
	WindowStart time.Time      `db:"window_start" json:"window_start"`
	WindowEnd   time.Time      `db:"window_end" json:"window_end"`
	StartedAt   time.Time      `db:"started_at" json:"started_at"`
	FinishedAt  time.Time      `db:"finished_at" json:"finished_at"`
	Candidates  int            `db:"candidates" json:"candidates"`
	Fired       int            `db:"fired" json:"fired"`
	Notified    int            `db:"notified" json:"notified"`
	Skipped     int            `db:"skipped" json:"skipped"`
	Failed      int            `db:"failed" json:"failed"`
	Error       sql.NullString `db:"error" json:"-"`
}

var ErrRunNotFound = errors.New("scan run not found")

// ScanRunStore persists scan runs through sqlx.
type ScanRunStore struct {
	db *sqlx.DB
}

func NewScanRunStore(conn *sqlx.DB) *ScanRunStore {
	return &ScanRunStore{db: conn}
}

func (s *ScanRunStore) RecordScanRun(ctx context.Context, run ScanRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO scan_runs (
			id, trigger, window_start, window_end, started_at, finished_at,
			candidates, fired, notified, skipped, failed, error
		) VALUES (
			:id, :trigger, :window_start, :window_end, :started_at, :finished_at,
			:candidates, :fired, :notified, :skipped, :failed, :error
		)
	`, run)
	if err != nil {
		return fmt.Errorf("failed to record scan run: %w", err)
	}
	return nil
}

func (s *ScanRunStore) GetScanRun(ctx context.Context, id uuid.UUID) (*ScanRun, error) {
	var run ScanRun
	err := s.db.GetContext(ctx, &run, `SELECT * FROM scan_runs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan run: %w", err)
	}
	return &run, nil
}

// RecentScanRuns returns the newest runs first.
func (s *ScanRunStore) RecentScanRuns(ctx context.Context, limit int) ([]ScanRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	runs := []ScanRun{}
	err := s.db.SelectContext(ctx, &runs, `
		SELECT * FROM scan_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scan runs: %w", err)
	}
	return runs, nil
}
