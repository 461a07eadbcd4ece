// Package observability configures the process-wide slog logger.
//
// Logs are written either directly as text or JSON to stderr, or through an
// OpenTelemetry log pipeline bridged from slog.
package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
)

// ServiceName identifies this process in exported logs.
const ServiceName = "tunestats"

// Exporter selects where logs are sent.
type Exporter string

const (
	// ExporterNone writes formatted logs to stderr without OpenTelemetry.
	ExporterNone Exporter = "none"
	// ExporterStdout writes OpenTelemetry log records as JSON to stdout.
	ExporterStdout Exporter = "stdout"
	// ExporterOTLPHTTP ships records over OTLP/HTTP, configured via OTEL_EXPORTER_OTLP_* variables.
	ExporterOTLPHTTP Exporter = "otlphttp"
	// ExporterOTLPGRPC ships records over OTLP/gRPC, configured via OTEL_EXPORTER_OTLP_* variables.
	ExporterOTLPGRPC Exporter = "otlpgrpc"
)

// ShutdownFunc flushes and releases logging resources.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// Instrument installs the default slog logger and returns a function flushing
// any buffered records. format is "text" or "json" and only applies to ExporterNone.
func Instrument(ctx context.Context, level slog.Level, format string, exporter Exporter) (ShutdownFunc, error) {
	return instrument(ctx, os.Stderr, level, format, exporter)
}

func instrument(ctx context.Context, w io.Writer, level slog.Level, format string, exporter Exporter) (ShutdownFunc, error) {
	if exporter == "" || exporter == ExporterNone {
		handler, err := newHandler(w, level, format)
		if err != nil {
			return nil, err
		}
		slog.SetDefault(slog.New(handler))
		return noopShutdown, nil
	}

	logExporter, err := newExporter(ctx, w, exporter)
	if err != nil {
		return nil, fmt.Errorf("create %s log exporter: %w", exporter, err)
	}

	var processor sdklog.Processor
	if exporter == ExporterStdout {
		processor = sdklog.NewSimpleProcessor(logExporter)
	} else {
		processor = sdklog.NewBatchProcessor(logExporter)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(resource.NewSchemaless(attribute.String("service.name", ServiceName))),
		sdklog.WithProcessor(minsev.NewLogProcessor(processor, severity(level))),
	)
	global.SetLoggerProvider(provider)

	slog.SetDefault(slog.New(otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(provider))))

	return provider.Shutdown, nil
}

func newHandler(w io.Writer, level slog.Level, format string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case "", "text":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

func newExporter(ctx context.Context, w io.Writer, exporter Exporter) (sdklog.Exporter, error) {
	switch exporter {
	case ExporterStdout:
		return stdoutlog.New(stdoutlog.WithWriter(w))
	case ExporterOTLPHTTP:
		return otlploghttp.New(ctx)
	case ExporterOTLPGRPC:
		return otlploggrpc.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported log exporter: %s", exporter)
	}
}

// severity maps a slog level onto the nearest OpenTelemetry minimum severity.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
