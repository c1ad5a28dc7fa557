package sync

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"

	"github.com/benjamind10/darkbot/telemetry"
)

// BackfillOptions configures a backfill run.
type BackfillOptions struct {
	// DryRun logs intended changes without writing anything.
	DryRun bool
	// Concurrency bounds in-flight probes (default 5).
	Concurrency int
	// MaxAttempts per probe (default 1: the backfill trades completeness for
	// speed since it covers many accounts).
	MaxAttempts int
}

// BackfillSummary aggregates one backfill run.
type BackfillSummary struct {
	Candidates int
	Marked     int
	Failures   int
}

// Backfill re-probes every account that has a BGG username and is not already
// marked private, flipping the private flag for those whose probe comes back
// 401/403. Probes run concurrently under a bounded semaphore; the write step
// is serialized by the store. The only error returned is a catastrophic setup
// failure (the candidate list is unavailable).
func (s *Service) Backfill(ctx context.Context, opts BackfillOptions) (BackfillSummary, error) {
	telemetry.Init()
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}

	candidates, err := s.Store.ListBackfillCandidates(ctx)
	if err != nil {
		return BackfillSummary{}, fmt.Errorf("backfill: %w", err)
	}
	summary := BackfillSummary{Candidates: len(candidates)}
	s.log().Info("backfill starting",
		slog.Int("candidates", len(candidates)),
		slog.Bool("dry_run", opts.DryRun),
		slog.Int("concurrency", opts.Concurrency))

	sem := make(chan struct{}, opts.Concurrency)
	var wg gosync.WaitGroup
	var mu gosync.Mutex

	for _, acct := range candidates {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return summary, ctx.Err()
		}
		wg.Add(1)
		go func(acct Account) {
			defer wg.Done()
			defer func() { <-sem }()
			telemetry.AddBackfillInFlight(1)
			defer telemetry.AddBackfillInFlight(-1)

			marked, failed := s.probeAccount(ctx, acct, opts)
			mu.Lock()
			if marked {
				summary.Marked++
			}
			if failed {
				summary.Failures++
			}
			mu.Unlock()
		}(acct)
	}
	wg.Wait()

	s.log().Info("backfill complete",
		slog.Int("candidates", summary.Candidates),
		slog.Int("marked", summary.Marked),
		slog.Int("failures", summary.Failures))
	return summary, nil
}

// probeAccount fetches once and, on an authorization error, marks the account
// private (or only logs the intent in dry-run mode). Any other outcome,
// including success, requires no action.
func (s *Service) probeAccount(ctx context.Context, acct Account, opts BackfillOptions) (marked, failed bool) {
	logger := s.log().With(slog.Int64("user_id", acct.ID), slog.String("bgguser", acct.BGGUser))

	outcome, err := s.Fetcher.FetchCollection(ctx, acct.BGGUser, opts.MaxAttempts)
	if err != nil {
		if ctx.Err() != nil {
			return false, false
		}
		logger.Warn("backfill probe failed", slog.Any("err", err))
		return false, true
	}
	if !outcome.AuthError() {
		return false, false
	}

	if opts.DryRun {
		logger.Info("[dry-run] would mark account private", slog.Int("status", outcome.Status))
		return false, false
	}
	modified, err := s.Store.MarkCollectionPrivate(ctx, acct.ID)
	if err != nil {
		logger.Error("failed to mark account private", slog.Any("err", err))
		return false, true
	}
	logger.Info("marked account private",
		slog.Int("status", outcome.Status), slog.Time("datemodified", modified))
	telemetry.AccountsMarkedPrivate.Inc()
	return true, false
}
