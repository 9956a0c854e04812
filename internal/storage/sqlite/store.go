// Package sqlite persists events to an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/genai-monitor/internal/core/domain"
	"github.com/tjfontaine/genai-monitor/internal/core/ports"
	"github.com/tjfontaine/genai-monitor/internal/jsonvalue"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// Store is a SQLite implementation of ports.EventStore.
type Store struct {
	path string

	mu sync.RWMutex
	db *sqlx.DB
}

// Ensure Store implements EventStore
var _ ports.EventStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithDB uses an already opened handle instead of opening path. The store
// is considered connected and the schema is assumed to exist.
func WithDB(db *sqlx.DB) Option {
	return func(s *Store) {
		s.db = db
	}
}

// New creates a store for the database at path. Nothing is opened until
// Connect is called. path may also be a SQLite URI such as
// "file:events?mode=memory&cache=shared".
func New(path string, opts ...Option) *Store {
	s := &Store{path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect opens the database, applies pragmas and ensures the schema.
// Calling it again once connected is a no-op.
func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	if isFilePath(s.path) {
		if dir := filepath.Dir(s.path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return domain.NewStorageError("connect", "failed to create database directory", err)
			}
		}
	}

	db, err := sqlx.Open(DriverName, s.path)
	if err != nil {
		return domain.NewStorageError("connect", "failed to open database", err)
	}
	// A single connection keeps per-connection pragmas in effect and
	// serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return domain.NewStorageError("connect", "failed to enable WAL mode", err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return domain.NewStorageError("connect", "failed to initialize schema", err)
	}

	s.db = db
	return nil
}

// Disconnect closes the database. It is safe to call when not connected.
func (s *Store) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return domain.NewStorageError("disconnect", "failed to close database", err)
	}
	return nil
}

// Close implements io.Closer.
func (s *Store) Close() error {
	return s.Disconnect(context.Background())
}

func initSchema(ctx context.Context, db *sqlx.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			latency_ms INTEGER NOT NULL,
			prompt_tokens INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			total_tokens INTEGER NOT NULL DEFAULT 0,
			cost REAL,
			metadata TEXT,
			input TEXT,
			output TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_events_provider ON events(provider)`,
		`CREATE INDEX IF NOT EXISTS idx_events_model ON events(model)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// eventRow is the column layout of the events table.
type eventRow struct {
	ID               string          `db:"id"`
	Provider         string          `db:"provider"`
	Model            string          `db:"model"`
	Timestamp        int64           `db:"timestamp"`
	LatencyMs        int64           `db:"latency_ms"`
	PromptTokens     int             `db:"prompt_tokens"`
	CompletionTokens int             `db:"completion_tokens"`
	TotalTokens      int             `db:"total_tokens"`
	Cost             sql.NullFloat64 `db:"cost"`
	Metadata         sql.NullString  `db:"metadata"`
	Input            sql.NullString  `db:"input"`
	Output           sql.NullString  `db:"output"`
}

const insertEvent = `INSERT INTO events (
	id, provider, model, timestamp, latency_ms,
	prompt_tokens, completion_tokens, total_tokens, cost,
	metadata, input, output
) VALUES (
	:id, :provider, :model, :timestamp, :latency_ms,
	:prompt_tokens, :completion_tokens, :total_tokens, :cost,
	:metadata, :input, :output
)`

const selectEvents = `SELECT id, provider, model, timestamp, latency_ms,
	prompt_tokens, completion_tokens, total_tokens, cost,
	metadata, input, output
FROM events`

// SaveEvent inserts event. Duplicate ids are rejected.
func (s *Store) SaveEvent(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return domain.NewStorageError("save", "nil event", nil)
	}

	row, err := toRow(event)
	if err != nil {
		return domain.NewStorageError("save", "failed to encode event", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return domain.NewStorageError("save", "not connected", nil)
	}

	if _, err := s.db.NamedExecContext(ctx, insertEvent, row); err != nil {
		return domain.NewStorageError("save", fmt.Sprintf("failed to insert event %s", event.ID), err)
	}
	return nil
}

// GetEvents returns the events whose columns equal every filter value,
// newest first.
func (s *Store) GetEvents(ctx context.Context, filter ports.EventFilter) ([]*domain.Event, error) {
	where, args, err := buildWhere(filter)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, domain.NewStorageError("query", "not connected", nil)
	}

	query := selectEvents + where + " ORDER BY timestamp DESC, id DESC"

	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, domain.NewStorageError("query", "failed to query events", err)
	}

	events := make([]*domain.Event, 0, len(rows))
	for i := range rows {
		ev, err := rows[i].toEvent()
		if err != nil {
			return nil, domain.NewStorageError("query", fmt.Sprintf("failed to decode event %s", rows[i].ID), err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// buildWhere turns filter into a WHERE clause. Keys are resolved against a
// fixed column set and never interpolated as given.
func buildWhere(filter ports.EventFilter) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, key := range keys {
		col, ok := ports.Column(key)
		if !ok {
			return "", nil, domain.NewStorageError("query", fmt.Sprintf("unknown filter key %q", key), nil)
		}
		clauses = append(clauses, col+" = ?")
		args = append(args, filter[key])
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func toRow(ev *domain.Event) (*eventRow, error) {
	metadata := ev.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	input, err := nullJSON(ev.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input: %w", err)
	}
	output, err := nullJSON(ev.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal output: %w", err)
	}

	row := &eventRow{
		ID:               ev.ID,
		Provider:         ev.Provider,
		Model:            ev.Model,
		Timestamp:        ev.Timestamp,
		LatencyMs:        ev.LatencyMs,
		PromptTokens:     ev.Usage.PromptTokens,
		CompletionTokens: ev.Usage.CompletionTokens,
		TotalTokens:      ev.Usage.TotalTokens,
		Metadata:         sql.NullString{String: string(metaJSON), Valid: true},
		Input:            input,
		Output:           output,
	}
	if ev.Usage.Cost != nil {
		row.Cost = sql.NullFloat64{Float64: *ev.Usage.Cost, Valid: true}
	}
	return row, nil
}

func (r *eventRow) toEvent() (*domain.Event, error) {
	ev := &domain.Event{
		ID:        r.ID,
		Provider:  r.Provider,
		Model:     r.Model,
		Timestamp: r.Timestamp,
		LatencyMs: r.LatencyMs,
		Usage: domain.Usage{
			PromptTokens:     r.PromptTokens,
			CompletionTokens: r.CompletionTokens,
			TotalTokens:      r.TotalTokens,
		},
		Metadata: map[string]any{},
	}
	if r.Cost.Valid {
		cost := r.Cost.Float64
		ev.Usage.Cost = &cost
	}
	if r.Metadata.Valid && r.Metadata.String != "" {
		if err := jsonvalue.Unmarshal([]byte(r.Metadata.String), &ev.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		if ev.Metadata == nil {
			ev.Metadata = map[string]any{}
		}
		jsonvalue.NormalizeMap(ev.Metadata)
	}
	var err error
	if ev.Input, err = fromNullJSON(r.Input); err != nil {
		return nil, fmt.Errorf("failed to unmarshal input: %w", err)
	}
	if ev.Output, err = fromNullJSON(r.Output); err != nil {
		return nil, fmt.Errorf("failed to unmarshal output: %w", err)
	}
	return ev, nil
}

func nullJSON(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func fromNullJSON(ns sql.NullString) (any, error) {
	if !ns.Valid {
		return nil, nil
	}
	return jsonvalue.Decode([]byte(ns.String))
}

func isFilePath(path string) bool {
	return path != "" && path != ":memory:" && !strings.HasPrefix(path, "file:")
}
