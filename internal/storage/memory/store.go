// Package memory provides an in-process EventStore. Events are copied
// through JSON on save so reads observe the same shapes SQLite returns.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/tjfontaine/genai-monitor/internal/core/domain"
	"github.com/tjfontaine/genai-monitor/internal/core/ports"
	"github.com/tjfontaine/genai-monitor/internal/jsonvalue"
)

// Store is an in-memory implementation of ports.EventStore
type Store struct {
	mu        sync.RWMutex
	connected bool
	events    map[string]*domain.Event
}

var _ ports.EventStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		events: make(map[string]*domain.Event),
	}
}

func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

// Disconnect marks the store closed. Stored events are kept so a later
// Connect sees them, as with a file-backed store.
func (s *Store) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *Store) SaveEvent(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return domain.NewStorageError("save", "nil event", nil)
	}
	stored, err := clone(event)
	if err != nil {
		return domain.NewStorageError("save", "failed to encode event", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return domain.NewStorageError("save", "not connected", nil)
	}
	if _, exists := s.events[event.ID]; exists {
		return domain.NewStorageError("save", fmt.Sprintf("event %s already exists", event.ID), nil)
	}

	s.events[event.ID] = stored
	return nil
}

func (s *Store) GetEvents(ctx context.Context, filter ports.EventFilter) ([]*domain.Event, error) {
	columns := make(map[string]any, len(filter))
	for key, want := range filter {
		col, ok := ports.Column(key)
		if !ok {
			return nil, domain.NewStorageError("query", fmt.Sprintf("unknown filter key %q", key), nil)
		}
		columns[col] = want
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.connected {
		return nil, domain.NewStorageError("query", "not connected", nil)
	}

	result := []*domain.Event{}
	for _, ev := range s.events {
		if matches(ev, columns) {
			out, err := clone(ev)
			if err != nil {
				return nil, domain.NewStorageError("query", "failed to copy event", err)
			}
			result = append(result, out)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp > result[j].Timestamp
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

// Len reports the number of stored events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *Store) Close() error {
	return s.Disconnect(context.Background())
}

func matches(ev *domain.Event, columns map[string]any) bool {
	for col, want := range columns {
		if !equal(columnValue(ev, col), want) {
			return false
		}
	}
	return true
}

func columnValue(ev *domain.Event, col string) any {
	switch col {
	case "id":
		return ev.ID
	case "provider":
		return ev.Provider
	case "model":
		return ev.Model
	case "timestamp":
		return ev.Timestamp
	case "latency_ms":
		return ev.LatencyMs
	case "prompt_tokens":
		return ev.Usage.PromptTokens
	case "completion_tokens":
		return ev.Usage.CompletionTokens
	case "total_tokens":
		return ev.Usage.TotalTokens
	case "cost":
		if ev.Usage.Cost == nil {
			return nil
		}
		return *ev.Usage.Cost
	}
	return nil
}

// equal compares like SQL equality: numbers by value regardless of Go
// type, NULL never equal to anything. A numeric string matches a numeric
// column, as SQLite's column affinity would convert it.
func equal(got, want any) bool {
	if got == nil || want == nil {
		return false
	}
	gf, gok := toFloat(got)
	wf, wok := toFloat(want)
	if gok && !wok {
		if s, isString := want.(string); isString {
			wf, wok = parseNumber(s)
		}
	}
	if gok && wok {
		return gf == wf
	}
	return reflect.DeepEqual(got, want)
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f, err == nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func clone(ev *domain.Event) (*domain.Event, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	var out domain.Event
	if err := jsonvalue.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out.Metadata == nil {
		out.Metadata = map[string]any{}
	}
	jsonvalue.NormalizeMap(out.Metadata)
	out.Input = jsonvalue.Normalize(out.Input)
	out.Output = jsonvalue.Normalize(out.Output)
	return &out, nil
}
