package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	StoreFirestore = "firestore"
	StoreMemory    = "memory"
)

// AppConfig is the process configuration, read from the environment.
type AppConfig struct {
	HTTPAddr  string `validate:"required"`
	RedisAddr string `validate:"required"`
	Timezone  string `validate:"required"`

	ScanCron        string        `validate:"required"`
	ScanConcurrency int           `validate:"min=1,max=64"`
	MaxLeadDays     int           `validate:"min=1,max=366"`
	OnDemandTimeout time.Duration `validate:"gt=0"`
	PushRatePerSec  float64       `validate:"gte=0"`

	TriggerJWTSecret string
	TriggerRateLimit int `validate:"min=1"`

	StoreBackend string `validate:"oneof=firestore memory"`
	// SeedFile is a JSON fixture loaded into the memory backend at startup.
	SeedFile string

	// Database is optional; the scan run ledger is disabled without it.
	Database DatabaseConfig

	LogFormat string `validate:"oneof=json text"`
	LogLevel  string `validate:"oneof=debug info warn error"`

	Location *time.Location `validate:"-"`
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// Enabled reports whether enough is set to open a connection.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != "" && d.User != "" && d.Name != ""
}

// DSN is the lib/pq keyword form used by sqlx.Connect.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// URL is the postgres:// form used by golang-migrate.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

var validate = validator.New()

// LoadEnv loads a .env file when one is present.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug(".env file not loaded", "error", err)
	}
}

func Load() (*AppConfig, error) {
	LoadEnv()

	cfg := &AppConfig{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		Timezone:         getEnv("TIMEZONE", "Asia/Kolkata"),
		ScanCron:         getEnv("SCAN_CRON", "*/5 * * * *"),
		TriggerJWTSecret: os.Getenv("TRIGGER_JWT_SECRET"),
		StoreBackend:     strings.ToLower(getEnv("STORE_BACKEND", StoreFirestore)),
		SeedFile:         os.Getenv("STORE_SEED_FILE"),
		LogFormat:        strings.ToLower(getEnv("LOG_FORMAT", "json")),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Database: DatabaseConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     os.Getenv("DB_NAME"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
	}

	var err error
	if cfg.ScanConcurrency, err = getEnvInt("SCAN_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.MaxLeadDays, err = getEnvInt("MAX_LEAD_DAYS", 30); err != nil {
		return nil, err
	}
	if cfg.TriggerRateLimit, err = getEnvInt("TRIGGER_RATE_PER_MIN", 30); err != nil {
		return nil, err
	}
	if cfg.OnDemandTimeout, err = getEnvDuration("ONDEMAND_TIMEOUT", 3*time.Minute); err != nil {
		return nil, err
	}
	if cfg.PushRatePerSec, err = getEnvFloat("PUSH_RATE_PER_SEC", 50); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.SeedFile != "" && cfg.StoreBackend != StoreMemory {
		return nil, fmt.Errorf("STORE_SEED_FILE requires STORE_BACKEND=%s", StoreMemory)
	}

	cfg.Location, err = time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}

	return cfg, nil
}

// NewLogger builds the process logger from LOG_FORMAT and LOG_LEVEL.
func (c *AppConfig) NewLogger() *slog.Logger {
	var level slog.Level
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
