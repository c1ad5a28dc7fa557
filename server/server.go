// Package server exposes the HTTP surface of the sync service: health,
// status, metrics, and an admin endpoint to trigger an immediate sync cycle.
// Correlation IDs are injected into request contexts for consistent logging.
package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/benjamind10/darkbot/telemetry"
)

// NewMux returns the HTTP handler with all routes. syncNudge, when non-nil,
// receives a value for each accepted POST /admin/sync request.
func NewMux(db *sql.DB, syncNudge chan<- struct{}) http.Handler {
	h := &Handlers{db: db, syncNudge: syncNudge}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", h.HandleHealthz)
	mux.HandleFunc("/readyz", h.HandleReadyz)
	mux.HandleFunc("/status", h.HandleStatus)
	mux.HandleFunc("/admin/sync", h.HandleAdminSync)

	return withCorrelation(mux)
}

// withCorrelation attaches a correlation id to each request context and logs
// request completion.
func withCorrelation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corr := r.Header.Get("X-Correlation-Id")
		if corr == "" {
			corr = uuid.NewString()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-Id", corr)
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		telemetry.LoggerWithCorr(ctx).Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("elapsed", time.Since(start)))
	})
}

// Start runs the HTTP server until ctx is canceled, then shuts down gracefully.
func Start(ctx context.Context, db *sql.DB, addr string, syncNudge chan<- struct{}) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewMux(db, syncNudge),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
