// Package monitor wraps a provider so that every successful generation
// call is measured, turned into an event and handed to a Tracker, without
// changing what the caller sees.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/genai-monitor/internal/core/domain"
	"github.com/tjfontaine/genai-monitor/internal/fingerprint"
	"github.com/tjfontaine/genai-monitor/internal/tokens"
)

const instrumentationName = "github.com/tjfontaine/genai-monitor/internal/monitor"

// Tracker accepts captured events. The returned channel is closed once the
// event has been stored or dropped; the monitor never waits on it.
type Tracker interface {
	TrackEvent(ctx context.Context, ev *domain.Event) <-chan struct{}
}

// Option configures the monitor.
type Option func(*interceptor)

// WithLogger sets the logger used for capture-path failures.
func WithLogger(logger *slog.Logger) Option {
	return func(m *interceptor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithContentCapture keeps the raw prompt and completion on events. By
// default both are dropped and only the prompt hash is recorded.
func WithContentCapture(enabled bool) Option {
	return func(m *interceptor) {
		m.captureContent = enabled
	}
}

// WithTokenEstimation records a tiktoken prompt estimate on events whose
// provider reported no usage.
func WithTokenEstimation(enabled bool) Option {
	return func(m *interceptor) {
		m.estimateTokens = enabled
	}
}

// WithTracer sets the tracer used for per-call spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(m *interceptor) {
		if tracer != nil {
			m.tracer = tracer
		}
	}
}

type interceptor struct {
	inner          domain.Provider
	tracker        Tracker
	logger         *slog.Logger
	tracer         trace.Tracer
	captureContent bool
	estimateTokens bool
}

// Monitor returns a provider that behaves exactly like p and reports each
// successful Complete, ChatComplete and Embed call to tracker. The result
// implements domain.ChatCompleter and domain.Embedder only when p does.
func Monitor(p domain.Provider, tracker Tracker, opts ...Option) domain.Provider {
	if p == nil {
		return nil
	}

	m := &interceptor{
		inner:   p,
		tracker: tracker,
		logger:  slog.Default(),
		tracer:  otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(slog.String("component", "monitor"), slog.String("provider", p.Name()))

	base := monitored{m}
	_, chat := p.(domain.ChatCompleter)
	_, embed := p.(domain.Embedder)
	switch {
	case chat && embed:
		return &monitoredChatEmbed{base}
	case chat:
		return &monitoredChat{base}
	case embed:
		return &monitoredEmbed{base}
	default:
		return &base
	}
}

// Unwrap returns the provider a monitor wraps, or p itself when it is not
// a monitored provider.
func Unwrap(p domain.Provider) domain.Provider {
	if u, ok := p.(interface{ Unwrap() domain.Provider }); ok {
		return u.Unwrap()
	}
	return p
}

// monitored carries the base capability set every provider has.
type monitored struct {
	*interceptor
}

func (m *monitored) Name() string {
	return m.inner.Name()
}

func (m *monitored) Initialize(ctx context.Context, opts domain.ProviderOptions) error {
	return m.inner.Initialize(ctx, opts)
}

func (m *monitored) Complete(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	return m.intercept(ctx, domain.MethodComplete, req, m.inner.Complete)
}

func (m *monitored) ExtractUsage(raw any) domain.Usage {
	return m.inner.ExtractUsage(raw)
}

func (m *monitored) CreateEvent(req *domain.Request, resp *domain.Response, latency time.Duration) *domain.Event {
	return m.inner.CreateEvent(req, resp, latency)
}

func (m *monitored) Unwrap() domain.Provider {
	return m.inner
}

type monitoredChat struct {
	monitored
}

func (m *monitoredChat) ChatComplete(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	return m.intercept(ctx, domain.MethodChatComplete, req, m.inner.(domain.ChatCompleter).ChatComplete)
}

type monitoredEmbed struct {
	monitored
}

func (m *monitoredEmbed) Embed(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	return m.intercept(ctx, domain.MethodEmbed, req, m.inner.(domain.Embedder).Embed)
}

type monitoredChatEmbed struct {
	monitored
}

func (m *monitoredChatEmbed) ChatComplete(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	return m.intercept(ctx, domain.MethodChatComplete, req, m.inner.(domain.ChatCompleter).ChatComplete)
}

func (m *monitoredChatEmbed) Embed(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	return m.intercept(ctx, domain.MethodEmbed, req, m.inner.(domain.Embedder).Embed)
}

type generateFunc func(context.Context, *domain.Request) (*domain.Response, error)

// intercept runs call with the caller's context and request and returns
// its results untouched. Capture happens only after a successful call.
func (m *interceptor) intercept(ctx context.Context, method string, req *domain.Request, call generateFunc) (*domain.Response, error) {
	_, span := m.tracer.Start(ctx, "genai."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("genai.provider", m.inner.Name()),
			attribute.String("genai.method", method),
		),
	)
	defer span.End()

	start := time.Now()
	resp, err := call(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return resp, err
	}

	m.capture(ctx, span, method, req, resp, time.Since(start))
	return resp, err
}

// capture builds, enriches and hands off the event. Nothing here may
// reach the caller: panics are recovered and failures are logged.
func (m *interceptor) capture(ctx context.Context, span trace.Span, method string, req *domain.Request, resp *domain.Response, latency time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("event capture panicked",
				slog.String("method", method),
				slog.String("panic", fmt.Sprint(r)))
		}
	}()

	ev := m.inner.CreateEvent(req, resp, latency)
	if ev == nil {
		m.logger.Warn("provider returned no event", slog.String("method", method))
		return
	}

	prompt := ""
	if req != nil {
		prompt = req.Prompt
	}

	if ev.Metadata == nil {
		ev.Metadata = make(map[string]any)
	}
	ev.Metadata[domain.MetaRequestType] = method
	ev.Metadata[domain.MetaPromptHash] = fingerprint.Hash(prompt)

	if m.estimateTokens && ev.Usage.IsZero() {
		if n, err := tokens.Estimate(ev.Model, prompt); err != nil {
			m.logger.Debug("prompt token estimate failed", slog.String("error", err.Error()))
		} else {
			ev.Metadata[domain.MetaPromptTokensEstimate] = int64(n)
		}
	}

	if !m.captureContent {
		ev.Input = nil
		ev.Output = nil
	}

	span.SetAttributes(
		attribute.String("genai.event_id", ev.ID),
		attribute.String("genai.model", ev.Model),
		attribute.Int("genai.usage.total_tokens", ev.Usage.TotalTokens),
	)

	if m.tracker == nil {
		return
	}
	m.tracker.TrackEvent(context.WithoutCancel(ctx), ev)
}
