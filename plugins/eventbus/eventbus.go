// Package eventbus provides the message broker plugin backed by NATS. The
// connection's disconnect and reconnect callbacks drive the broker's status
// component, so readiness probes follow broker availability in real time.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	factory "github.com/DeerHide/go-factory-utilities"
	"github.com/DeerHide/go-factory-utilities/config"
	"github.com/DeerHide/go-factory-utilities/status"
)

// PluginName is the registration name of this plugin.
const PluginName = "eventbus"

// StateKey is where the bus handle (*Plugin) is published in the
// application state table, so downstream plugins can publish without
// holding the plugin directly.
const StateKey = "eventbus.bus"

const (
	connectTimeout = 5 * time.Second
	drainTimeout   = 10 * time.Second
)

// ErrNotConnected is returned when publishing before startup or after
// shutdown.
var ErrNotConnected = errors.New("event bus not connected")

// Handler consumes a decoded message from a subject.
type Handler func(subject string, data []byte)

// Plugin manages the NATS connection lifecycle.
type Plugin struct {
	cfg       config.EventBusConfig
	logger    factory.Logger
	component *status.Component
	conn      *nats.Conn

	// closed is signalled by the connection's ClosedHandler once the
	// connection is fully torn down; shutdown waits on it after Drain.
	closed chan struct{}
}

// New creates an unloaded event bus plugin.
func New() *Plugin {
	return &Plugin{}
}

// Name returns the plugin registration name.
func (p *Plugin) Name() string { return PluginName }

// OnLoad captures configuration and registers the status component. The
// broker is not dialed until startup.
func (p *Plugin) OnLoad(app factory.Application) error {
	p.cfg = app.Config().EventBus
	p.logger = app.Logger()

	component, err := app.StatusRegistry().Register(status.ComponentIdentity{
		Category: status.CategoryMessageBroker,
		Name:     PluginName,
	})
	if err != nil {
		return fmt.Errorf("registering status component: %w", err)
	}
	p.component = component

	if err := app.AddToState(StateKey, p); err != nil {
		return fmt.Errorf("publishing bus handle: %w", err)
	}

	p.logger.Info("eventbus plugin loaded", "url", p.cfg.URL)
	return nil
}

// OnStartup dials the broker. Connection state callbacks keep the status
// component current for the rest of the process lifetime.
func (p *Plugin) OnStartup(_ context.Context) error {
	clientName := p.cfg.ClientName
	if clientName == "" {
		clientName = PluginName
	}

	closed := make(chan struct{})
	conn, err := nats.Connect(p.cfg.URL,
		nats.Name(clientName),
		nats.Timeout(connectTimeout),
		nats.MaxReconnects(p.cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			p.component.Publish(status.Down())
			p.logger.Warn("eventbus disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			p.component.Publish(status.Up())
			p.logger.Info("eventbus reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			p.component.Publish(status.Down())
			close(closed)
		}),
	)
	if err != nil {
		p.component.Publish(status.Down())
		return fmt.Errorf("connecting to event bus: %w", err)
	}
	p.conn = conn
	p.closed = closed

	p.component.Publish(status.Up())
	p.logger.Info("eventbus plugin started")
	return nil
}

// OnShutdown drains in-flight messages and closes the connection.
func (p *Plugin) OnShutdown(_ context.Context) error {
	p.component.Publish(status.Down())
	if p.conn == nil {
		return nil
	}

	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("draining event bus: %w", err)
	}

	// Drain closes asynchronously; the ClosedHandler signals completion.
	select {
	case <-p.closed:
	case <-time.After(drainTimeout):
		p.logger.Warn("event bus drain timed out, closing")
		p.conn.Close()
	}
	p.conn = nil

	p.logger.Info("eventbus plugin stopped")
	return nil
}

// Publish marshals payload as JSON and publishes it on subject.
func (p *Plugin) Publish(subject string, payload any) error {
	if p.conn == nil {
		return ErrNotConnected
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing to %q: %w", subject, err)
	}
	return nil
}

// Subscribe registers handler for subject and returns the subscription.
func (p *Plugin) Subscribe(subject string, handler Handler) (*nats.Subscription, error) {
	if p.conn == nil {
		return nil, ErrNotConnected
	}
	sub, err := p.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to %q: %w", subject, err)
	}
	return sub, nil
}

// Conn exposes the raw connection for consumers that need request/reply or
// queue groups. Other plugins should read StateKey instead.
func (p *Plugin) Conn() *nats.Conn { return p.conn }
