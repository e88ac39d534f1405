package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// NewExporter writes spans as JSON to output: "stdout", "stderr", "discard" or a file path.
// The returned close func releases the file, if any.
func NewExporter(output string) (*stdouttrace.Exporter, func() error, error) {
	var w io.Writer
	closeFn := func() error { return nil }
	switch output {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	case "discard":
		w = io.Discard
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open trace output: %w", err)
		}
		w = f
		closeFn = f.Close
	}

	exp, err := stdouttrace.New(
		stdouttrace.WithPrettyPrint(),
		stdouttrace.WithWriter(w),
	)
	if err != nil {
		_ = closeFn()
		return nil, nil, fmt.Errorf("create stdout exporter: %w", err)
	}

	return exp, closeFn, nil
}

// RegisterTraceProvider installs a global tracer provider exporting to exp. The returned provider must be shut down
// to flush pending spans.
func RegisterTraceProvider(appName string, exp sdktrace.SpanExporter) (*sdktrace.TracerProvider, error) {
	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(appName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource merger: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(r),
	)
	otel.SetTracerProvider(tp)

	return tp, nil
}

// SetupTracing wires the exporter and the provider together and returns a shutdown func flushing both.
func SetupTracing(appName, output string) (func(ctx context.Context) error, error) {
	exp, closeOutput, err := NewExporter(output)
	if err != nil {
		return nil, err
	}
	tp, err := RegisterTraceProvider(appName, exp)
	if err != nil {
		_ = closeOutput()
		return nil, err
	}

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if cerr := closeOutput(); err == nil {
			err = cerr
		}
		return err
	}, nil
}
