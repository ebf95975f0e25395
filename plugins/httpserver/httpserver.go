// Package httpserver provides the inbound HTTP plugin: an http.Server
// serving the application's chi router, with the system health and
// readiness endpoints mounted under /sys.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	factory "github.com/DeerHide/go-factory-utilities"
	"github.com/DeerHide/go-factory-utilities/config"
	"github.com/DeerHide/go-factory-utilities/status"
)

// PluginName is the registration name of this plugin.
const PluginName = "httpserver"

// StateKey is where the *http.Server is published in the application state
// table.
const StateKey = "httpserver.server"

// Health endpoint paths.
const (
	HealthPath    = "/sys/health"
	ReadinessPath = "/sys/readiness"
)

// Plugin manages the inbound HTTP server lifecycle.
type Plugin struct {
	cfg       config.ServerConfig
	logger    factory.Logger
	component *status.Component
	registry  *status.Registry

	server   *http.Server
	listener net.Listener
}

// New creates an unloaded HTTP server plugin.
func New() *Plugin {
	return &Plugin{}
}

// Name returns the plugin registration name.
func (p *Plugin) Name() string { return PluginName }

// OnLoad builds the server around the application router and mounts the
// system endpoints. The listener is not bound until startup.
func (p *Plugin) OnLoad(app factory.Application) error {
	p.cfg = app.Config().Server
	p.logger = app.Logger()
	p.registry = app.StatusRegistry()

	component, err := app.StatusRegistry().Register(status.ComponentIdentity{
		Category: status.CategoryApplication,
		Name:     PluginName,
	})
	if err != nil {
		return fmt.Errorf("registering status component: %w", err)
	}
	p.component = component

	router := app.Router()
	router.Get(HealthPath, p.handleHealth)
	router.Get(ReadinessPath, p.handleReadiness)

	p.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(p.cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(p.cfg.WriteTimeoutSeconds) * time.Second,
	}

	if err := app.AddToState(StateKey, p.server); err != nil {
		return fmt.Errorf("publishing server handle: %w", err)
	}

	p.logger.Info("httpserver plugin loaded", "addr", p.server.Addr)
	return nil
}

// OnStartup binds the listener synchronously, so port clashes surface as a
// startup failure, then serves in the background.
func (p *Plugin) OnStartup(_ context.Context) error {
	listener, err := net.Listen("tcp", p.server.Addr)
	if err != nil {
		p.component.Publish(status.Down())
		return fmt.Errorf("binding %s: %w", p.server.Addr, err)
	}
	p.listener = listener

	go func() {
		if err := p.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.component.Publish(status.Down())
			p.logger.Error("httpserver stopped serving", "error", err)
		}
	}()

	p.component.Publish(status.Up())
	p.logger.Info("httpserver plugin started", "addr", listener.Addr().String())
	return nil
}

// OnShutdown drains in-flight requests within the configured timeout.
func (p *Plugin) OnShutdown(ctx context.Context) error {
	p.component.Publish(status.Down())

	timeout := time.Duration(p.cfg.ShutdownTimeoutSeconds) * time.Second
	drainCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.server.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("draining httpserver: %w", err)
	}
	p.logger.Info("httpserver plugin stopped")
	return nil
}

// Addr returns the bound address, valid after startup. Useful when the
// configured port is 0.
func (p *Plugin) Addr() string {
	if p.listener == nil {
		return p.server.Addr
	}
	return p.listener.Addr().String()
}
