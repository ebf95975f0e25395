// Package httpclient provides the outbound HTTP client plugin: one tuned
// http.Client shared through the application state table so every consumer
// reuses the same connection pool.
package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	factory "github.com/DeerHide/go-factory-utilities"
	"github.com/DeerHide/go-factory-utilities/config"
	"github.com/DeerHide/go-factory-utilities/status"
)

// PluginName is the registration name of this plugin.
const PluginName = "httpclient"

// StateKey is where the *http.Client is published in the application state
// table.
const StateKey = "httpclient.client"

// Plugin owns the shared outbound HTTP client.
type Plugin struct {
	cfg       config.HTTPClientConfig
	logger    factory.Logger
	component *status.Component
	client    *http.Client
}

// New creates an unloaded HTTP client plugin.
func New() *Plugin {
	return &Plugin{}
}

// Name returns the plugin registration name.
func (p *Plugin) Name() string { return PluginName }

// OnLoad builds the client from configuration and publishes it. There is no
// remote endpoint to probe, so the component reports ready as soon as the
// pool exists.
func (p *Plugin) OnLoad(app factory.Application) error {
	p.cfg = app.Config().HTTPClient
	p.logger = app.Logger()

	component, err := app.StatusRegistry().Register(status.ComponentIdentity{
		Category: status.CategoryHTTPClient,
		Name:     PluginName,
	})
	if err != nil {
		return fmt.Errorf("registering status component: %w", err)
	}
	p.component = component

	transport := &http.Transport{
		MaxIdleConns:        p.cfg.MaxIdleConns,
		MaxIdleConnsPerHost: p.cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     time.Duration(p.cfg.IdleConnTimeoutSecs) * time.Second,
	}
	p.client = &http.Client{
		Timeout:   time.Duration(p.cfg.RequestTimeoutSeconds) * time.Second,
		Transport: transport,
	}

	if err := app.AddToState(StateKey, p.client); err != nil {
		return fmt.Errorf("publishing http client: %w", err)
	}

	p.logger.Info("httpclient plugin loaded",
		"timeout_seconds", p.cfg.RequestTimeoutSeconds)
	return nil
}

// OnStartup flips the component up.
func (p *Plugin) OnStartup(_ context.Context) error {
	p.component.Publish(status.Up())
	return nil
}

// OnShutdown closes idle connections and reports the component down.
func (p *Plugin) OnShutdown(_ context.Context) error {
	p.component.Publish(status.Down())
	p.client.CloseIdleConnections()
	p.logger.Info("httpclient plugin stopped")
	return nil
}

// Client exposes the shared client for tests and hooks. Other plugins
// should read StateKey instead.
func (p *Plugin) Client() *http.Client { return p.client }
