package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/benjamind10/darkbot/bgg"
	"github.com/benjamind10/darkbot/config"
	"github.com/benjamind10/darkbot/telemetry"
)

// Fetcher abstracts the collection fetch (for tests/mocks).
type Fetcher interface {
	FetchCollection(ctx context.Context, username string, maxAttempts int) (bgg.Outcome, error)
}

// CollectionStore abstracts persistence (for tests/mocks).
type CollectionStore interface {
	ListAccounts(ctx context.Context) ([]Account, error)
	ListBackfillCandidates(ctx context.Context) ([]Account, error)
	UpsertGame(ctx context.Context, userID int64, rec bgg.GameRecord) error
	MarkCollectionPrivate(ctx context.Context, userID int64) (time.Time, error)
}

// Summary aggregates one sync run for observability. It is logged and stashed
// in the kv table, never persisted as a first-class entity.
type Summary struct {
	Candidates      int `json:"candidates"`
	MarkedPrivate   int `json:"marked_private"`
	RecordsUpserted int `json:"records_upserted"`
	Failures        int `json:"failures"`
}

// Service wires the fetcher and store into the sync pipeline.
type Service struct {
	Store       CollectionStore
	Fetcher     Fetcher
	MaxAttempts int
	Logger      *slog.Logger
}

func (s *Service) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Service) maxAttempts() int {
	if s.MaxAttempts > 0 {
		return s.MaxAttempts
	}
	return 3
}

// SyncOnce fetches, decodes, and upserts every eligible account's collection.
// Accounts are processed independently: one account's failure never aborts the
// batch. The only error returned is a catastrophic setup failure (the account
// list itself is unavailable).
func (s *Service) SyncOnce(ctx context.Context) (Summary, error) {
	telemetry.Init()
	accounts, err := s.Store.ListAccounts(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("sync: %w", err)
	}
	summary := Summary{Candidates: len(accounts)}
	s.log().Info("collection sync starting", slog.Int("accounts", len(accounts)))

	for _, acct := range accounts {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		s.syncAccount(ctx, acct, &summary)
	}

	s.log().Info("collection sync finished",
		slog.Int("candidates", summary.Candidates),
		slog.Int("marked_private", summary.MarkedPrivate),
		slog.Int("records_upserted", summary.RecordsUpserted),
		slog.Int("failures", summary.Failures))
	return summary, nil
}

// syncAccount runs the fetch→decode→upsert pipeline for one account. Any
// failure, including a panic, is contained here so the next account proceeds.
func (s *Service) syncAccount(ctx context.Context, acct Account, summary *Summary) {
	logger := s.log().With(slog.Int64("user_id", acct.ID), slog.String("bgguser", acct.BGGUser))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while syncing account", slog.Any("panic", r))
			summary.Failures++
			telemetry.AccountsFailed.Inc()
		}
	}()

	ctx, span := telemetry.StartSpan(ctx, "sync", "sync.account",
		attribute.Int64("user_id", acct.ID))
	defer span.End()

	outcome, err := s.Fetcher.FetchCollection(ctx, acct.BGGUser, s.maxAttempts())
	if err != nil {
		// Context cancellation or invalid input; the former aborts the batch
		// upstream, the latter is this account's problem alone.
		logger.Warn("fetch failed", slog.Any("err", err))
		summary.Failures++
		telemetry.AccountsFailed.Inc()
		telemetry.RecordError(span, err)
		return
	}

	switch {
	case outcome.AuthError():
		if _, err := s.Store.MarkCollectionPrivate(ctx, acct.ID); err != nil {
			logger.Error("failed to mark collection private", slog.Any("err", err))
			summary.Failures++
			telemetry.AccountsFailed.Inc()
			return
		}
		logger.Info("collection is private, marked account restricted", slog.Int("status", outcome.Status))
		summary.MarkedPrivate++
		telemetry.AccountsMarkedPrivate.Inc()
		return
	case !outcome.OK():
		logger.Warn("no collection data to process",
			slog.Int("status", outcome.Status), slog.Bool("exhausted", outcome.Exhausted()))
		summary.Failures++
		telemetry.AccountsFailed.Inc()
		return
	}

	records, err := bgg.DecodeCollection(outcome.Body)
	if err != nil {
		logger.Error("failed to decode collection", slog.Any("err", err))
		summary.Failures++
		telemetry.AccountsFailed.Inc()
		telemetry.RecordError(span, err)
		return
	}

	// A single record's failure is logged and skipped; the account's other
	// records still get written.
	upserted := 0
	for _, rec := range records {
		if err := s.Store.UpsertGame(ctx, acct.ID, rec); err != nil {
			logger.Warn("upsert failed, skipping record",
				slog.String("name", rec.Name), slog.Int("bggid", rec.BGGID), slog.Any("err", err))
			telemetry.UpsertsFailed.Inc()
			continue
		}
		upserted++
		telemetry.RecordsUpserted.Inc()
	}
	summary.RecordsUpserted += upserted
	telemetry.AccountsProcessed.Inc()
	telemetry.SetSpanSuccess(span)
	logger.Info("account synced", slog.Int("records", upserted), slog.Int("decoded", len(records)))
}

// StartCollectionSyncJob runs SyncOnce at an interval until ctx is canceled.
// A send on nudge triggers an immediate extra cycle (used by the admin API).
func StartCollectionSyncJob(ctx context.Context, dbc *sql.DB, cfg *config.Config, nudge <-chan struct{}) {
	svc := &Service{
		Store: &Store{DB: dbc},
		Fetcher: &bgg.Client{
			BaseURL:       cfg.BGGBaseURL,
			SessionCookie: cfg.BGGSessionCookie,
			Backoff:       bgg.BackoffPolicy{Base: cfg.BackoffBase},
			PendingDelay:  cfg.SyncPendingDelay,
		},
		MaxAttempts: cfg.SyncMaxAttempts,
	}
	slog.Info("collection sync job starting", slog.Duration("interval", cfg.SyncInterval))

	runCycle(ctx, dbc, svc)
	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("collection sync job stopped")
			return
		case <-ticker.C:
			runCycle(ctx, dbc, svc)
		case <-nudge:
			runCycle(ctx, dbc, svc)
		}
	}
}

func runCycle(ctx context.Context, dbc *sql.DB, svc *Service) {
	corr := uuid.NewString()
	ctx = telemetry.WithCorrelation(ctx, corr)
	svc.Logger = telemetry.LoggerWithCorr(ctx)

	ctx, span := telemetry.StartSpan(ctx, "sync", "sync.cycle")
	defer span.End()

	telemetry.SyncCycles.Inc()
	heartbeat(ctx, dbc, "job_collection_sync_last")

	var summary Summary
	var err error
	telemetry.TimeFunc(telemetry.SyncCycleDuration, func() {
		summary, err = svc.SyncOnce(ctx)
	})
	if err != nil {
		slog.Warn("sync cycle failed", slog.Any("err", err), slog.String("corr", corr))
		telemetry.RecordError(span, err)
		return
	}
	if b, err := json.Marshal(summary); err == nil {
		_, _ = dbc.ExecContext(ctx, `INSERT INTO kv (key,value,updated_at) VALUES ('collection_sync_last_summary',$1,NOW())
			ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`, string(b))
	}
	telemetry.SetSpanSuccess(span)
}

func heartbeat(ctx context.Context, dbc *sql.DB, key string) {
	_, _ = dbc.ExecContext(ctx, `INSERT INTO kv (key,value,updated_at) VALUES ($1, to_char(NOW() AT TIME ZONE 'UTC','YYYY-MM-DD"T"HH24:MI:SS.MS"Z"'), NOW())
		ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`, key)
}
