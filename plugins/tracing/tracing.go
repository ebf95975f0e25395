// Package tracing provides the OpenTelemetry plugin. It installs a tracer
// provider exporting OTLP over HTTP and tears it down on shutdown, flushing
// buffered spans.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	factory "github.com/DeerHide/go-factory-utilities"
	"github.com/DeerHide/go-factory-utilities/config"
)

// PluginName is the registration name of this plugin.
const PluginName = "tracing"

// StateKey is where the *sdktrace.TracerProvider is published in the
// application state table.
const StateKey = "tracing.provider"

const shutdownTimeout = 10 * time.Second

// Plugin manages the tracer provider lifecycle.
type Plugin struct {
	cfg     config.TracingConfig
	service config.ServiceConfig
	logger  factory.Logger

	provider *sdktrace.TracerProvider
}

// New creates an unloaded tracing plugin.
func New() *Plugin {
	return &Plugin{}
}

// Name returns the plugin registration name.
func (p *Plugin) Name() string { return PluginName }

// OnLoad captures configuration. The exporter is built at startup so a
// disabled plugin costs nothing.
func (p *Plugin) OnLoad(app factory.Application) error {
	p.cfg = app.Config().Tracing
	p.service = app.Config().Service
	p.logger = app.Logger()

	p.logger.Info("tracing plugin loaded",
		"enabled", p.cfg.Enabled, "endpoint", p.cfg.Endpoint)
	return nil
}

// OnStartup builds the OTLP exporter and installs the provider globally.
func (p *Plugin) OnStartup(ctx context.Context) error {
	if !p.cfg.Enabled {
		return nil
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(p.cfg.Endpoint),
	}
	if p.cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("building otlp exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(p.service.Name),
		semconv.ServiceVersion(p.service.Version),
		semconv.DeploymentEnvironment(string(p.service.Environment)),
	))
	if err != nil {
		return fmt.Errorf("building resource: %w", err)
	}

	p.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(p.provider)

	p.logger.Info("tracing plugin started")
	return nil
}

// OnShutdown flushes and stops the provider.
func (p *Plugin) OnShutdown(ctx context.Context) error {
	if p.provider == nil {
		return nil
	}
	flushCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := p.provider.Shutdown(flushCtx); err != nil {
		return fmt.Errorf("shutting down tracer provider: %w", err)
	}
	p.provider = nil
	p.logger.Info("tracing plugin stopped")
	return nil
}

// Tracer returns a named tracer from the installed provider, or a no-op
// tracer while tracing is disabled, so instrumented code never branches.
func (p *Plugin) Tracer(name string) trace.Tracer {
	if p.provider == nil {
		return noop.NewTracerProvider().Tracer(name)
	}
	return p.provider.Tracer(name)
}
