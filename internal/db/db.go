package db

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var DB *sqlx.DB

// InitDB opens the ledger database. dsn is in lib/pq keyword form.
func InitDB(dsn string) error {
	var err error
	DB, err = sqlx.Connect("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := DB.Ping(); err != nil {
		_ = DB.Close()
		DB = nil
		return fmt.Errorf("failed to ping database: %w", err)
	}

	DB.SetMaxOpenConns(5)
	slog.Info("Successfully connected to database")
	return nil
}

func Close() error {
	if DB == nil {
		return nil
	}
	err := DB.Close()
	DB = nil
	return err
}
