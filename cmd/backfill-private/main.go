// Command backfill-private re-probes accounts whose BGG collection has never
// been marked private and flips the private flag for those that now answer
// with an authorization error.
//
// It will:
//   - List all users that have a BGG username and are not already marked private.
//   - Probe each collection once (no retries) and, on a 401/403, mark the
//     user private (bggprivate = TRUE, datemodified updated).
//
// Usage:
//
//	backfill-private [--dry-run] [--debug]
//
// Flags:
//
//	--dry-run: Report what would be marked without updating the database
//	--debug:   Enable debug logging
//
// Environment Variables:
//
//	DB_DSN: Database connection string (required)
//	BGG_SESSION_COOKIE: Optional session credential for restricted collections
//
// The exit code is 0 on completion regardless of how many accounts were newly
// marked; it is nonzero only when the database is unreachable at startup.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/benjamind10/darkbot/bgg"
	"github.com/benjamind10/darkbot/config"
	"github.com/benjamind10/darkbot/db"
	"github.com/benjamind10/darkbot/sync"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Don't update the database; just report")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	_ = godotenv.Load()

	lvl := slog.LevelInfo
	if *debug {
		lvl = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	database, err := db.Connect()
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() { _ = database.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.PingContext(ctx); err != nil {
		slog.Error("database unreachable", slog.Any("err", err))
		os.Exit(1)
	}

	svc := &sync.Service{
		Store: &sync.Store{DB: database},
		Fetcher: &bgg.Client{
			BaseURL:       cfg.BGGBaseURL,
			SessionCookie: cfg.BGGSessionCookie,
			Backoff:       bgg.BackoffPolicy{Base: cfg.BackoffBase},
			PendingDelay:  cfg.SyncPendingDelay,
		},
	}

	slog.Info("starting backfill", slog.Bool("dry_run", *dryRun))
	summary, err := svc.Backfill(ctx, sync.BackfillOptions{
		DryRun:      *dryRun,
		Concurrency: cfg.BackfillConcurrency,
		MaxAttempts: cfg.BackfillMaxAttempts,
	})
	if err != nil {
		slog.Error("backfill failed", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("backfill complete",
		slog.Int("candidates", summary.Candidates),
		slog.Int("marked", summary.Marked),
		slog.Int("failures", summary.Failures))
}
