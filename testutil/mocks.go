package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// BGGResponse is one scripted reply from the mock BGG API.
type BGGResponse struct {
	Status  int
	Body    string
	Headers map[string]string
}

// MockBGGServer serves scripted responses per collection username, in order.
// The last response for a username repeats once the script is exhausted.
type MockBGGServer struct {
	*httptest.Server

	mu      sync.Mutex
	scripts map[string][]BGGResponse
	calls   map[string]int
}

// NewMockBGGServer creates a mock BGG XML API server.
func NewMockBGGServer(t *testing.T) *MockBGGServer {
	t.Helper()
	m := &MockBGGServer{
		scripts: make(map[string][]BGGResponse),
		calls:   make(map[string]int),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const prefix = "/collection/"
		if len(r.URL.Path) <= len(prefix) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		username := r.URL.Path[len(prefix):]

		m.mu.Lock()
		script, ok := m.scripts[username]
		idx := m.calls[username]
		m.calls[username]++
		m.mu.Unlock()

		if !ok || len(script) == 0 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if idx >= len(script) {
			idx = len(script) - 1
		}
		resp := script[idx]
		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(resp.Status)
		_, _ = w.Write([]byte(resp.Body)) //nolint:errcheck // test mock response
	}))
	t.Cleanup(m.Close)
	return m
}

// Script registers the ordered responses for one username.
func (m *MockBGGServer) Script(username string, responses ...BGGResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[username] = responses
}

// Calls returns how many requests were made for username.
func (m *MockBGGServer) Calls(username string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[username]
}
