// Package observability is the entry point applications use: it owns the
// event store, connects it in the background and persists tracked events
// without ever blocking or failing the caller.
package observability

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/tjfontaine/genai-monitor/internal/config"
	"github.com/tjfontaine/genai-monitor/internal/core/domain"
	"github.com/tjfontaine/genai-monitor/internal/core/ports"
	"github.com/tjfontaine/genai-monitor/internal/monitor"
	"github.com/tjfontaine/genai-monitor/internal/storage/sqlite"
)

// Option configures an Observability.
type Option func(*Observability)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Observability) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithStore replaces the SQLite store built from config.
func WithStore(store ports.EventStore) Option {
	return func(o *Observability) {
		if store != nil {
			o.store = store
		}
	}
}

// Observability tracks events into an EventStore it exclusively owns.
type Observability struct {
	cfg    config.Monitor
	logger *slog.Logger
	store  ports.EventStore
	init   *initHandle

	inflight pending
	closeMu  sync.Mutex
}

var _ monitor.Tracker = (*Observability)(nil)

// New validates cfg, builds the store and starts connecting it in the
// background. It returns a *domain.ConfigurationError for invalid config.
func New(cfg config.Monitor, opts ...Option) (*Observability, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &Observability{
		cfg:    cfg,
		logger: slog.Default(),
		init:   newInitHandle(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(slog.String("component", "observability"))
	if o.store == nil {
		o.store = sqlite.New(cfg.FilePath)
	}

	o.init.start(o.connect)
	return o, nil
}

func (o *Observability) connect() error {
	if err := o.store.Connect(context.Background()); err != nil {
		o.logger.Error("event storage unavailable, events will be dropped",
			slog.String("storage", o.cfg.Storage),
			slog.String("path", o.cfg.FilePath),
			slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("event storage ready",
		slog.String("storage", o.cfg.Storage),
		slog.String("path", o.cfg.FilePath))
	return nil
}

// State reports the storage lifecycle state.
func (o *Observability) State() State {
	return o.init.State()
}

// Ready waits for the background connect and returns its error.
func (o *Observability) Ready(ctx context.Context) error {
	return o.init.wait(ctx)
}

// Store returns the event store once it is ready, or nil.
func (o *Observability) Store() ports.EventStore {
	if o.State() != StateReady {
		return nil
	}
	return o.store
}

// TrackEvent persists ev in the background. The returned channel is closed
// once the event has been stored or dropped; it never carries an error.
func (o *Observability) TrackEvent(ctx context.Context, ev *domain.Event) <-chan struct{} {
	done := make(chan struct{})
	if ev == nil {
		close(done)
		return done
	}
	if !o.inflight.acquire() {
		o.logger.Warn("observability closed, dropping event", slog.String("event_id", ev.ID))
		close(done)
		return done
	}

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer o.inflight.release()
		defer close(done)
		o.bestEffort("track", ev.ID, func() error {
			return o.persist(ctx, ev)
		})
	}()
	return done
}

func (o *Observability) persist(ctx context.Context, ev *domain.Event) error {
	if err := o.init.wait(ctx); err != nil {
		return &droppedError{reason: "storage unavailable", err: err}
	}
	if err := o.store.SaveEvent(ctx, ev); err != nil {
		return err
	}
	if o.cfg.Debug {
		o.logger.Debug("event stored",
			slog.String("event_id", ev.ID),
			slog.String("provider", ev.Provider),
			slog.String("model", ev.Model),
			slog.Int64("latency_ms", ev.LatencyMs),
			slog.Int("total_tokens", ev.Usage.TotalTokens))
	}
	return nil
}

// Flush waits until every event tracked so far has been stored or dropped.
// Events tracked while it waits extend the wait.
func (o *Observability) Flush(ctx context.Context) error {
	select {
	case <-o.inflight.drained():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events, flushes pending ones and disconnects the
// store. Later calls are no-ops.
func (o *Observability) Close(ctx context.Context) error {
	o.closeMu.Lock()
	defer o.closeMu.Unlock()

	if !o.inflight.close() {
		return nil
	}

	if err := o.Flush(ctx); err != nil {
		return err
	}
	if err := o.init.wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// Never connected; nothing to release.
		return nil
	}
	if err := o.store.Disconnect(ctx); err != nil {
		return err
	}
	o.init.setState(StateClosed)
	return nil
}

// Monitor wraps p so its calls are tracked here, using the configured
// content capture and token estimation settings.
func (o *Observability) Monitor(p domain.Provider, opts ...monitor.Option) domain.Provider {
	base := []monitor.Option{
		monitor.WithLogger(o.logger),
		monitor.WithContentCapture(o.cfg.CaptureContent),
		monitor.WithTokenEstimation(o.cfg.EstimateTokens),
	}
	return monitor.Monitor(p, o, append(base, opts...)...)
}

type droppedError struct {
	reason string
	err    error
}

func (e *droppedError) Error() string { return e.reason + ": " + e.err.Error() }
func (e *droppedError) Unwrap() error { return e.err }

// isDropped reports whether err was an expected drop rather than a failure.
func isDropped(err error) bool {
	var d *droppedError
	return errors.As(err, &d)
}
