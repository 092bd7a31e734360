package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"ecodcluster/internal/config"
	"ecodcluster/pkg/domain"
)

const instrumentationName = "ecodcluster/internal/core"

// OTelTracer adapts an OpenTelemetry tracer provider to Tracer.
type OTelTracer struct {
	tracer trace.Tracer
}

// NewOTelTracer returns a Tracer creating spans from tp.
func NewOTelTracer(tp trace.TracerProvider) *OTelTracer {
	return &OTelTracer{tracer: tp.Tracer(instrumentationName)}
}

// Start implements Tracer.
func (t *OTelTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	ctx, span := t.tracer.Start(ctx, operation, trace.WithAttributes(attribute.String("ecod.operation", operation)))
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetAttributes(attribute.String("ecod.error_kind", string(domain.KindOf(err))))
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}

// NewStdoutTracerProvider builds an SDK provider exporting spans synchronously
// as pretty-printed JSON to w.
func NewStdoutTracerProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("stdout trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp)), nil
}

// OpenTracer builds the tracer selected by cfg. Spans go to cfg.Path when set
// and to stdout otherwise. The returned shutdown func flushes and releases
// the exporter; it is never nil.
func OpenTracer(cfg config.Tracing, stdout io.Writer) (Tracer, func(context.Context) error, error) {
	noShutdown := func(context.Context) error { return nil }
	switch cfg.Exporter {
	case "", config.TraceNone:
		return noopTracer{}, noShutdown, nil
	case config.TraceJSON, config.TraceStdout:
	default:
		return nil, noShutdown, fmt.Errorf("unknown trace exporter %q", cfg.Exporter)
	}

	w, closeWriter, err := traceWriter(cfg.Path, stdout)
	if err != nil {
		return nil, noShutdown, err
	}
	if cfg.Exporter == config.TraceJSON {
		return NewJSONTracer(w), func(context.Context) error { return closeWriter() }, nil
	}
	tp, err := NewStdoutTracerProvider(w)
	if err != nil {
		_ = closeWriter()
		return nil, noShutdown, err
	}
	shutdown := func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			_ = closeWriter()
			return err
		}
		return closeWriter()
	}
	return NewOTelTracer(tp), shutdown, nil
}

func traceWriter(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, nil, fmt.Errorf("create trace dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open trace file: %w", err)
	}
	return f, f.Close, nil
}
