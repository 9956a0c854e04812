package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tjfontaine/genai-monitor/internal/core/domain"
	"github.com/tjfontaine/genai-monitor/internal/core/ports"
	"github.com/tjfontaine/genai-monitor/internal/observability"
	"github.com/tjfontaine/genai-monitor/internal/storage/memory"
)

type stubSource struct {
	state observability.State
	store ports.EventStore
}

func (s *stubSource) State() observability.State { return s.state }
func (s *stubSource) Store() ports.EventStore     { return s.store }

type failingStore struct{ *memory.Store }

func (failingStore) GetEvents(context.Context, ports.EventFilter) ([]*domain.Event, error) {
	return nil, domain.NewStorageError("query", "select events", errors.New("disk I/O error"))
}

func newTestServer(t *testing.T, source EventSource) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := httptest.NewServer(New(0, logger, source).Router)
	t.Cleanup(ts.Close)
	return ts
}

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	if err := store.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli()
	events := []*domain.Event{
		{ID: "evt_1", Provider: "openai", Model: "gpt-4o-mini", Timestamp: base, LatencyMs: 50},
		{ID: "evt_2", Provider: "openai", Model: "gpt-3.5-turbo", Timestamp: base + 1000, LatencyMs: 70},
		{ID: "evt_3", Provider: "anthropic", Model: "claude-3-haiku", Timestamp: base + 2000, LatencyMs: 90},
	}
	for _, ev := range events {
		if err := store.SaveEvent(ctx, ev); err != nil {
			t.Fatalf("SaveEvent() error = %v", err)
		}
	}
	return store
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &stubSource{state: observability.StateFailed})

	var body healthResponse
	if status := getJSON(t, ts.URL+"/healthz", &body); status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body.Status != "ok" || body.Storage != observability.StateFailed.String() {
		t.Errorf("body = %+v", body)
	}
}

func TestListEvents(t *testing.T) {
	ts := newTestServer(t, &stubSource{state: observability.StateReady, store: seededStore(t)})

	tests := []struct {
		name    string
		query   string
		wantIDs []string
	}{
		{name: "all newest first", query: "", wantIDs: []string{"evt_3", "evt_2", "evt_1"}},
		{name: "by provider", query: "?provider=openai", wantIDs: []string{"evt_2", "evt_1"}},
		{name: "by provider and model", query: "?provider=openai&model=gpt-4o-mini", wantIDs: []string{"evt_1"}},
		{name: "numeric column", query: "?latency_ms=90", wantIDs: []string{"evt_3"}},
		{name: "json name", query: "?latencyMs=70", wantIDs: []string{"evt_2"}},
		{name: "no match", query: "?provider=gemini", wantIDs: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var events []domain.Event
			if status := getJSON(t, ts.URL+"/v1/events"+tt.query, &events); status != http.StatusOK {
				t.Fatalf("status = %d, want 200", status)
			}
			if events == nil {
				t.Fatal("expected a JSON array, got null")
			}
			if len(events) != len(tt.wantIDs) {
				t.Fatalf("got %d events, want %d", len(events), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if events[i].ID != id {
					t.Errorf("events[%d].ID = %q, want %q", i, events[i].ID, id)
				}
			}
		})
	}
}

func TestListEvents_Errors(t *testing.T) {
	tests := []struct {
		name       string
		source     *stubSource
		query      string
		wantStatus int
	}{
		{
			name:       "unknown filter",
			source:     &stubSource{state: observability.StateReady, store: seededStore(t)},
			query:      "?prompt=hello",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "storage unavailable",
			source:     &stubSource{state: observability.StateFailed},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "query failure",
			source:     &stubSource{state: observability.StateReady, store: failingStore{memory.New()}},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.source)
			var body errorResponse
			if status := getJSON(t, ts.URL+"/v1/events"+tt.query, &body); status != tt.wantStatus {
				t.Fatalf("status = %d, want %d", status, tt.wantStatus)
			}
			if body.Error == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestShutdownBeforeStart(t *testing.T) {
	s := New(0, nil, &stubSource{})
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if err := s.Start(); err != nil {
		t.Errorf("Start() after Shutdown error = %v", err)
	}
}

func TestShutdownWhileStarting(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(0, logger, &stubSource{})

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-ctx.Done():
		t.Fatal("Start() did not return after Shutdown")
	}
}
