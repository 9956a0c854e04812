// Package telemetry configures OpenTelemetry tracing for the monitor.
package telemetry

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

type settings struct {
	writer      io.Writer
	prettyPrint bool
	sync        bool
}

// Option customizes the trace exporter.
type Option func(*settings)

// WithWriter sends exported spans to w instead of stdout.
func WithWriter(w io.Writer) Option {
	return func(s *settings) { s.writer = w }
}

// WithPrettyPrint indents exported spans.
func WithPrettyPrint(enabled bool) Option {
	return func(s *settings) { s.prettyPrint = enabled }
}

// WithSyncExport exports each span as it ends instead of batching.
func WithSyncExport() Option {
	return func(s *settings) { s.sync = true }
}

// InitTracer installs a global tracer provider that writes spans as JSON
// and returns its shutdown function.
func InitTracer(serviceName string, logger *slog.Logger, opts ...Option) (func(context.Context) error, error) {
	cfg := settings{prettyPrint: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	var exporterOpts []stdouttrace.Option
	if cfg.writer != nil {
		exporterOpts = append(exporterOpts, stdouttrace.WithWriter(cfg.writer))
	}
	if cfg.prettyPrint {
		exporterOpts = append(exporterOpts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(exporterOpts...)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	spanOpt := sdktrace.WithBatcher(exporter)
	if cfg.sync {
		spanOpt = sdktrace.WithSyncer(exporter)
	}
	tp := sdktrace.NewTracerProvider(
		spanOpt,
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)

	if logger != nil {
		logger.Info("OpenTelemetry initialized", slog.String("service", serviceName))
	}

	return tp.Shutdown, nil
}
