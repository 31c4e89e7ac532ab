// Package observability wires the relay's distributed tracing and
// structured-log export: a tracer exporting to an OTLP/gRPC collector
// when Config.TraceAddr is set, and the same treatment for slog records
// via the otelslog bridge when Config.LogAddr is set. Every call
// degrades to a no-op when its address is empty, so the relay runs
// unchanged with no collector configured.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config selects which signals Setup enables. The zero value disables
// everything: Start still returns usable (no-op) spans.
type Config struct {
	Service   string
	TraceAddr string // OTLP/gRPC collector address for traces, e.g. "otel-collector:4317"
	LogAddr   string // OTLP/gRPC collector address for logs
	Metrics   bool   // enables Recorder's prometheus instruments
}

var (
	mu             sync.Mutex
	tracerProvider *sdktrace.TracerProvider
	loggerProvider *sdklog.LoggerProvider
	tracer         trace.Tracer
	enabled        atomic.Bool
	metricsEnabled atomic.Bool
)

// Setup initializes tracing and log export per cfg. Call once at
// startup; Shutdown flushes and tears both down.
func Setup(ctx context.Context, cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	metricsEnabled.Store(cfg.Metrics)

	if cfg.Service == "" {
		cfg.Service = "moq-relay"
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.Service),
	))
	if err != nil {
		return fmt.Errorf("observability: build resource: %w", err)
	}

	if cfg.TraceAddr != "" {
		exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.TraceAddr), otlptracegrpc.WithInsecure())
		if err != nil {
			return fmt.Errorf("observability: trace exporter: %w", err)
		}
		tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(res),
		)
		tracer = tracerProvider.Tracer(cfg.Service)
		enabled.Store(true)
	} else {
		tracer = noop.NewTracerProvider().Tracer(cfg.Service)
		enabled.Store(false)
	}

	if cfg.LogAddr != "" {
		exp, err := otlploggrpc.New(ctx, otlploggrpc.WithEndpoint(cfg.LogAddr), otlploggrpc.WithInsecure())
		if err != nil {
			return fmt.Errorf("observability: log exporter: %w", err)
		}
		loggerProvider = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)),
			sdklog.WithResource(res),
		)
		handler := otelslog.NewHandler(cfg.Service, otelslog.WithLoggerProvider(loggerProvider))
		slog.SetDefault(slog.New(handler))
	}

	return nil
}

// Shutdown flushes and releases any exporters Setup started.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()

	var firstErr error
	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		tracerProvider = nil
	}
	if loggerProvider != nil {
		if err := loggerProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		loggerProvider = nil
	}
	enabled.Store(false)
	metricsEnabled.Store(false)
	return firstErr
}

// Enabled reports whether tracing exports to a real collector.
func Enabled() bool { return enabled.Load() }

// MetricsEnabled reports whether Recorder instruments are active.
func MetricsEnabled() bool { return metricsEnabled.Load() }

// currentTracer returns the active tracer, defaulting to a no-op one
// before Setup has run.
func currentTracer() trace.Tracer {
	mu.Lock()
	defer mu.Unlock()
	if tracer == nil {
		return noop.NewTracerProvider().Tracer("moq-relay")
	}
	return tracer
}

// Span wraps an OTel span with the relay's event/attribute vocabulary.
type Span struct {
	span  trace.Span
	onEnd func()
}

// Start begins a span named name as a child of ctx's current span.
func Start(ctx context.Context, name string) (context.Context, *Span) {
	return StartWith(ctx, name)
}

// Option configures StartWith.
type Option func(*startConfig)

type startConfig struct {
	attrs   []attribute.KeyValue
	onStart func()
	onEnd   func()
}

// Attrs attaches attrs to the span at start.
func Attrs(attrs ...attribute.KeyValue) Option {
	return func(c *startConfig) { c.attrs = append(c.attrs, attrs...) }
}

// OnStart registers a callback run synchronously once the span starts.
func OnStart(fn func()) Option { return func(c *startConfig) { c.onStart = fn } }

// OnEnd registers a callback run synchronously when Span.End is called.
func OnEnd(fn func()) Option { return func(c *startConfig) { c.onEnd = fn } }

// StartWith begins a span named name with the given options applied.
func StartWith(ctx context.Context, name string, opts ...Option) (context.Context, *Span) {
	var sc startConfig
	for _, opt := range opts {
		opt(&sc)
	}
	ctx, span := currentTracer().Start(ctx, name, trace.WithAttributes(sc.attrs...))
	if sc.onStart != nil {
		sc.onStart()
	}
	return ctx, &Span{span: span, onEnd: sc.onEnd}
}

// End completes the span and runs any OnEnd callback registered via
// StartWith's options.
func (s *Span) End() {
	s.span.End()
	if s.onEnd != nil {
		s.onEnd()
	}
}

// Error records err on the span and sets its status to error, attaching
// msg as the error description.
func (s *Span) Error(err error, msg string) {
	if err != nil {
		s.span.RecordError(err)
	}
	s.span.SetStatus(codes.Error, msg)
	s.span.AddEvent(msg)
}

// Event adds a named event to the span with the given attributes.
func (s *Span) Event(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Set attaches attrs to the span.
func (s *Span) Set(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}
