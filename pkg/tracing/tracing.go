// Package tracing wires OpenTelemetry for the command line. Library packages
// only use the global tracer provider, which stays a no-op unless a Provider
// is installed here.
package tracing

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"gitlab.com/tozd/go/errors"
)

const DefaultServiceName = "tmscope"

type Options struct {
	Enabled bool
	// Exporter is "stdout" (default) or "stderr".
	Exporter string
	// Writer overrides the exporter destination.
	Writer      io.Writer
	ServiceName string
}

// Provider owns the tracer provider installed by NewProvider.
type Provider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewProvider installs a global SDK tracer provider exporting JSON spans, or
// returns a no-op provider when tracing is disabled.
func NewProvider(ctx context.Context, opts Options) (*Provider, error) {
	name := opts.ServiceName
	if name == "" {
		name = DefaultServiceName
	}

	if !opts.Enabled {
		return &Provider{tracer: noop.NewTracerProvider().Tracer(name)}, nil
	}

	w := opts.Writer
	if w == nil {
		switch opts.Exporter {
		case "", "stdout":
			w = os.Stdout
		case "stderr":
			w = os.Stderr
		default:
			return nil, errors.Errorf("unsupported exporter %q", opts.Exporter)
		}
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, errors.Errorf("creating stdout exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", name))),
		sdktrace.WithSyncer(exporter),
	)
	otel.SetTracerProvider(provider)

	zerolog.Ctx(ctx).Debug().Str("exporter", opts.Exporter).Msg("tracing enabled")

	return &Provider{provider: provider, tracer: provider.Tracer(name)}, nil
}

func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

func (p *Provider) Enabled() bool {
	return p.provider != nil
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.provider == nil {
		return nil
	}
	if err := p.provider.Shutdown(ctx); err != nil {
		return errors.Errorf("shutting down tracer provider: %w", err)
	}
	return nil
}
