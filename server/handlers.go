package server

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/benjamind10/darkbot/telemetry"
)

// Handlers carries the dependencies shared across HTTP handlers.
type Handlers struct {
	db        *sql.DB
	syncNudge chan<- struct{}
}

// HandleHealthz responds to liveness probe requests by checking database connectivity.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probe requests with per-dependency checks.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"database", func() error { return h.db.PingContext(r.Context()) }},
		{"schema", func() error {
			var one int
			return h.db.QueryRowContext(r.Context(), "SELECT 1 FROM users LIMIT 1").Scan(&one)
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil && err != sql.ErrNoRows {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HandleStatus reports job heartbeats, the last sync summary, and table counts.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := map[string]any{}

	var lastSync, lastSummary string
	_ = h.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key='job_collection_sync_last'`).Scan(&lastSync)
	_ = h.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key='collection_sync_last_summary'`).Scan(&lastSummary)
	status["last_sync"] = lastSync
	if lastSummary != "" {
		var summary map[string]any
		if err := json.Unmarshal([]byte(lastSummary), &summary); err == nil {
			status["last_summary"] = summary
		}
	}

	var accounts, private, games int
	_ = h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE bgguser IS NOT NULL AND bgguser <> ''`).Scan(&accounts)
	_ = h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE COALESCE(bggprivate, FALSE)`).Scan(&private)
	_ = h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM boardgames`).Scan(&games)
	status["accounts"] = accounts
	status["private_accounts"] = private
	status["boardgames"] = games

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

// HandleAdminSync triggers an immediate sync cycle. Returns 202 when the nudge
// was accepted, 409 when a cycle is already pending.
func (h *Handlers) HandleAdminSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.syncNudge == nil {
		http.Error(w, "sync job not running", http.StatusServiceUnavailable)
		return
	}
	select {
	case h.syncNudge <- struct{}{}:
		telemetry.LoggerWithCorr(r.Context()).Info("sync cycle requested via admin API")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("sync scheduled"))
	default:
		http.Error(w, "sync already pending", http.StatusConflict)
	}
}
