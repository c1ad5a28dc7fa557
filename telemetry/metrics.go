// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	SyncCycles            prometheus.Counter
	AccountsProcessed     prometheus.Counter
	AccountsFailed        prometheus.Counter
	AccountsMarkedPrivate prometheus.Counter
	RecordsUpserted       prometheus.Counter
	UpsertsFailed         prometheus.Counter
	FetchAttempts         prometheus.Counter

	// Histograms (seconds)
	SyncCycleDuration prometheus.Observer
	FetchDuration     prometheus.Observer

	// Gauges
	BackfillInFlightGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		SyncCycles = promauto.NewCounter(prometheus.CounterOpts{Name: "bgg_sync_cycles_total", Help: "Number of collection sync cycles run"})
		AccountsProcessed = promauto.NewCounter(prometheus.CounterOpts{Name: "bgg_sync_accounts_processed_total", Help: "Number of accounts processed by the sync job"})
		AccountsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "bgg_sync_accounts_failed_total", Help: "Number of accounts that failed during sync"})
		AccountsMarkedPrivate = promauto.NewCounter(prometheus.CounterOpts{Name: "bgg_sync_accounts_marked_private_total", Help: "Number of accounts marked access-restricted"})
		RecordsUpserted = promauto.NewCounter(prometheus.CounterOpts{Name: "bgg_sync_records_upserted_total", Help: "Number of board game records upserted"})
		UpsertsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "bgg_sync_upserts_failed_total", Help: "Number of board game upserts that failed"})
		FetchAttempts = promauto.NewCounter(prometheus.CounterOpts{Name: "bgg_fetch_attempts_total", Help: "Number of HTTP attempts against the BGG collection API"})
		SyncCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "bgg_sync_cycle_duration_seconds", Help: "Sync cycle duration seconds", Buckets: prometheus.DefBuckets})
		FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "bgg_fetch_duration_seconds", Help: "Collection fetch duration seconds (all attempts)", Buckets: prometheus.DefBuckets})
		BackfillInFlightGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bgg_backfill_in_flight", Help: "Number of backfill probes currently in flight"})
	})
}

// IncFetchAttempts bumps the fetch attempt counter if metrics are initialized.
func IncFetchAttempts() {
	if FetchAttempts != nil {
		FetchAttempts.Inc()
	}
}

// ObserveFetchDuration records one logical fetch duration if metrics are initialized.
func ObserveFetchDuration(d time.Duration) {
	if FetchDuration != nil {
		FetchDuration.Observe(d.Seconds())
	}
}

// AddBackfillInFlight adjusts the in-flight probe gauge.
func AddBackfillInFlight(delta int) {
	if BackfillInFlightGauge != nil {
		BackfillInFlightGauge.Add(float64(delta))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
