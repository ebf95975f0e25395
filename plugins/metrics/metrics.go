// Package metrics provides the Prometheus plugin. It owns a private
// registry, exposes it on the application router, and offers an HTTP
// middleware plus helpers for plugin-owned collectors.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	factory "github.com/DeerHide/go-factory-utilities"
	"github.com/DeerHide/go-factory-utilities/config"
)

// PluginName is the registration name of this plugin.
const PluginName = "metrics"

// StateKey is where the *prometheus.Registry is published in the
// application state table.
const StateKey = "metrics.registry"

// Plugin owns the Prometheus registry and the exposition endpoint.
type Plugin struct {
	cfg      config.MetricsConfig
	logger   factory.Logger
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates an unloaded metrics plugin.
func New() *Plugin {
	return &Plugin{}
}

// Name returns the plugin registration name.
func (p *Plugin) Name() string { return PluginName }

// OnLoad builds the registry with process and Go runtime collectors, mounts
// the exposition handler, and publishes the registry for other plugins to
// register their own collectors against.
func (p *Plugin) OnLoad(app factory.Application) error {
	p.cfg = app.Config().Metrics
	p.logger = app.Logger()

	p.registry = prometheus.NewRegistry()
	if err := p.registry.Register(collectors.NewGoCollector()); err != nil {
		return fmt.Errorf("registering go collector: %w", err)
	}
	if err := p.registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return fmt.Errorf("registering process collector: %w", err)
	}

	p.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Count of HTTP requests by method and status code.",
	}, []string{"method", "code"})
	p.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
	if err := p.registry.Register(p.requestsTotal); err != nil {
		return fmt.Errorf("registering request counter: %w", err)
	}
	if err := p.registry.Register(p.requestDuration); err != nil {
		return fmt.Errorf("registering duration histogram: %w", err)
	}

	if p.cfg.Enabled {
		app.Router().Method(http.MethodGet, p.cfg.Path,
			promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
	}

	if err := app.AddToState(StateKey, p.registry); err != nil {
		return fmt.Errorf("publishing metrics registry: %w", err)
	}

	p.logger.Info("metrics plugin loaded", "path", p.cfg.Path, "enabled", p.cfg.Enabled)
	return nil
}

// Middleware instruments handlers with request count and latency metrics.
// Apply it through Configure before any routes are mounted.
func (p *Plugin) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		p.requestsTotal.WithLabelValues(r.Method, strconv.Itoa(ww.Status())).Inc()
		p.requestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

// Registry exposes the registry for tests and hooks. Other plugins should
// read StateKey instead.
func (p *Plugin) Registry() *prometheus.Registry { return p.registry }
