package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benjamind10/darkbot/testutil"
)

func TestHealthz(t *testing.T) {
	dbc := testutil.SetupTestDB(t)
	mux := NewMux(dbc, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Correlation-Id") == "" {
		t.Error("expected correlation id header")
	}
}

func TestReadyz(t *testing.T) {
	dbc := testutil.SetupTestDB(t)
	mux := NewMux(dbc, nil)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ready" {
		t.Errorf("status = %q, want ready", body["status"])
	}
}

func TestStatusShape(t *testing.T) {
	dbc := testutil.SetupTestDB(t)
	mux := NewMux(dbc, nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	for _, key := range []string{"accounts", "private_accounts", "boardgames"} {
		if _, ok := body[key]; !ok {
			t.Errorf("status body missing %q: %v", key, body)
		}
	}
}

func TestAdminSyncNudge(t *testing.T) {
	dbc := testutil.SetupTestDB(t)
	nudge := make(chan struct{}, 1)
	mux := NewMux(dbc, nudge)

	req := httptest.NewRequest(http.MethodPost, "/admin/sync", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	select {
	case <-nudge:
	default:
		t.Error("expected nudge to be delivered")
	}

	// Channel full: second request conflicts.
	nudge <- struct{}{}
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/sync", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 when a cycle is already pending", rec.Code)
	}
}

func TestAdminSyncMethodNotAllowed(t *testing.T) {
	dbc := testutil.SetupTestDB(t)
	mux := NewMux(dbc, make(chan struct{}, 1))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/sync", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
