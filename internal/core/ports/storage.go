package ports

import (
	"context"

	"github.com/tjfontaine/genai-monitor/internal/core/domain"
)

// EventStore is the persistence contract the capture pipeline depends on.
// Implementations: SQLite (default), in-memory.
//
// Every failure is reported as a *domain.StorageError.
type EventStore interface {
	// Connect establishes the backing store and ensures the schema exists.
	// It is idempotent; only the first successful call does work.
	Connect(ctx context.Context) error

	// Disconnect releases resources. Safe to call when not connected.
	Disconnect(ctx context.Context) error

	// SaveEvent durably records an event. Fails when not connected.
	SaveEvent(ctx context.Context, event *domain.Event) error

	// GetEvents returns events matching every filter entry exactly, most
	// recent first. A nil or empty filter matches all events; no match
	// yields an empty slice rather than an error.
	GetEvents(ctx context.Context, filter EventFilter) ([]*domain.Event, error)
}

// EventFilter maps column names to the exact value they must hold.
// Keys may be column names ("latency_ms") or event JSON names ("latencyMs").
type EventFilter map[string]any

// filterColumns maps every accepted filter key to its column.
var filterColumns = map[string]string{
	"id":                "id",
	"provider":          "provider",
	"model":             "model",
	"timestamp":         "timestamp",
	"latency_ms":        "latency_ms",
	"latencyMs":         "latency_ms",
	"prompt_tokens":     "prompt_tokens",
	"promptTokens":      "prompt_tokens",
	"completion_tokens": "completion_tokens",
	"completionTokens":  "completion_tokens",
	"total_tokens":      "total_tokens",
	"totalTokens":       "total_tokens",
	"cost":              "cost",
}

// Column resolves a filter key to its column name.
func Column(key string) (string, bool) {
	col, ok := filterColumns[key]
	return col, ok
}
