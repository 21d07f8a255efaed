package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"reminderdispatch/internal/auth"
	"reminderdispatch/internal/config"
	"reminderdispatch/internal/db"
	"reminderdispatch/internal/handlers"
	"reminderdispatch/internal/migrations"
	"reminderdispatch/internal/notification"
	"reminderdispatch/internal/push"
	"reminderdispatch/internal/queue"
	"reminderdispatch/internal/reminder"
	"reminderdispatch/internal/routes"
	"reminderdispatch/internal/trigger"
	"reminderdispatch/internal/worker"
)

const usage = `usage: dispatcher <command> [flags]

commands:
  serve                      HTTP trigger, scheduler and worker
  scan [-min N] [-max N]     scan [now+min, now+max) once and exit
  migrate up|down|version|force N
  token [-sub NAME] [-ttl D] mint an operator token for the trigger endpoint

STORE_BACKEND=memory keeps everything in process and records pushes instead of
sending them; it is meant for tests and smoke runs. STORE_SEED_FILE loads rules,
device tokens and preferences into it at startup.`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.NewLogger())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "serve":
		err = serve(ctx, cfg)
	case "scan":
		err = scanOnce(ctx, cfg, os.Args[2:])
	case "migrate":
		err = migrate(cfg, os.Args[2:])
	case "token":
		err = mintToken(cfg, os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		slog.Error("Command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

// app holds the wired reminder pipeline.
type app struct {
	runner *trigger.Runner
	ledger *db.ScanRunStore
}

func (a *app) close() {
	if err := db.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
	if err := config.CloseFirebaseConnection(); err != nil {
		slog.Warn("Failed to close Firebase connection", "error", err)
	}
}

func buildApp(ctx context.Context, cfg *config.AppConfig) (*app, error) {
	var (
		store  notification.Store
		source reminder.Source
		pusher notification.Pusher
	)

	switch cfg.StoreBackend {
	case config.StoreMemory:
		slog.Warn("Using in-memory store, nothing is persisted and no pushes leave the process")
		memStore := notification.NewMemoryStore()
		memSource := reminder.NewMemorySource(cfg.Location)
		if cfg.SeedFile != "" {
			if err := loadSeed(cfg.SeedFile, memSource, memStore); err != nil {
				return nil, err
			}
		} else {
			slog.Warn("No STORE_SEED_FILE set, the memory store starts empty")
		}
		store, source = memStore, memSource
		pusher = push.NewRecorder()
	default:
		if err := config.InitFirebase(ctx); err != nil {
			return nil, err
		}
		if err := notification.InitNotificationService(); err != nil {
			return nil, err
		}
		store = notification.GetNotificationService()
		source = reminder.NewFirestoreSource(config.FirebaseConnection.Firestore)
		pusher = push.NewFCMGateway(config.FirebaseConnection.Messaging, cfg.PushRatePerSec)
	}

	dispatcher := notification.NewDispatcher(store, pusher, cfg.Location)
	scanner := reminder.NewScanner(source, store, dispatcher, reminder.ScannerConfig{
		Location:    cfg.Location,
		MaxLeadDays: cfg.MaxLeadDays,
		Concurrency: cfg.ScanConcurrency,
	})

	a := &app{}
	opts := []trigger.Option{trigger.WithTimeout(cfg.OnDemandTimeout)}
	if cfg.Database.Enabled() {
		if err := db.InitDB(cfg.Database.DSN()); err != nil {
			slog.Warn("Scan run ledger disabled", "error", err)
		} else {
			a.ledger = db.NewScanRunStore(db.DB)
			opts = append(opts, trigger.WithLedger(a.ledger))
		}
	}
	a.runner = trigger.NewRunner(scanner, cfg.Location, opts...)
	return a, nil
}

func serve(ctx context.Context, cfg *config.AppConfig) error {
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	q, err := queue.New(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer q.Close()

	scheduler, err := queue.NewScheduler(cfg.RedisAddr, cfg.ScanCron, cfg.Location)
	if err != nil {
		return fmt.Errorf("failed to register scheduler: %w", err)
	}
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer scheduler.Shutdown()

	w := worker.NewWorker(cfg.RedisAddr, a.runner)
	workerErr := make(chan error, 1)
	go func() { workerErr <- w.Start(ctx) }()

	var runs handlers.RunLister
	if a.ledger != nil {
		runs = a.ledger
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	routes.SetupRoutes(e, handlers.NewReminderHandler(a.runner, q, runs), routes.Options{
		JWTSecret: cfg.TriggerJWTSecret,
		Limiter:   auth.NewRateLimiter(cfg.TriggerRateLimit),
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: e,
		// On-demand scans run inline up to their timeout.
		WriteTimeout: cfg.OnDemandTimeout + 30*time.Second,
	}

	go func() {
		slog.Info("Starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			stopProcess()
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-workerErr:
		if err != nil {
			slog.Error("Worker failed", "error", err)
		}
	}
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	return nil
}

// stopProcess delivers SIGTERM to ourselves so serve unwinds through the
// usual shutdown path.
func stopProcess() {
	if p, err := os.FindProcess(os.Getpid()); err == nil {
		_ = p.Signal(syscall.SIGTERM)
	}
}

func scanOnce(ctx context.Context, cfg *config.AppConfig, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	minMins := fs.Int("min", trigger.DefaultMinOffset, "window start, minutes from now")
	maxMins := fs.Int("max", trigger.DefaultMaxOffset, "window end, minutes from now")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.runner.RunOnDemand(ctx, trigger.Offsets{Min: *minMins, Max: *maxMins})
	out := map[string]interface{}{
		"ok":          err == nil,
		"runId":       res.RunID,
		"windowStart": res.Window.Start.Format(time.RFC3339),
		"windowEnd":   res.Window.End.Format(time.RFC3339),
		"summary":     res.Summary,
	}
	if err != nil {
		out["error"] = err.Error()
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
	return err
}

func migrate(cfg *config.AppConfig, args []string) error {
	if !cfg.Database.Enabled() {
		return errors.New("DB_HOST, DB_USER and DB_NAME are required for migrations")
	}
	if len(args) == 0 {
		return errors.New("migrate needs one of: up, down, version, force N")
	}

	dbURL := cfg.Database.URL()
	switch args[0] {
	case "up":
		return migrations.Up(dbURL)
	case "down":
		return migrations.Down(dbURL)
	case "version":
		version, dirty, err := migrations.Version(dbURL)
		if err != nil {
			return err
		}
		fmt.Printf("Current version: %d (dirty=%t)\n", version, dirty)
		return nil
	case "force":
		if len(args) < 2 {
			return errors.New("migrate force needs a version")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version format: %w", err)
		}
		return migrations.Force(dbURL, version)
	}
	return fmt.Errorf("unknown migrate command %q", args[0])
}

func mintToken(cfg *config.AppConfig, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	sub := fs.String("sub", "operator", "token subject")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	token, err := auth.GenerateOperatorToken(cfg.TriggerJWTSecret, *sub, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
