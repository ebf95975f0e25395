// Package database provides the relational database plugin. It owns a
// database/sql pool, reports its liveness to the status registry, and shares
// the pool with other plugins through the application state table.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	factory "github.com/DeerHide/go-factory-utilities"
	"github.com/DeerHide/go-factory-utilities/config"
	"github.com/DeerHide/go-factory-utilities/status"
)

// PluginName is the registration name of this plugin.
const PluginName = "database"

// StateKey is where the *sql.DB handle is published in the application
// state table.
const StateKey = "database.db"

const pingTimeout = 5 * time.Second

// Plugin manages the database connection pool lifecycle.
type Plugin struct {
	cfg       config.DatabaseConfig
	logger    factory.Logger
	component *status.Component
	db        *sql.DB
}

// New creates an unloaded database plugin.
func New() *Plugin {
	return &Plugin{}
}

// Name returns the plugin registration name.
func (p *Plugin) Name() string { return PluginName }

// OnLoad captures configuration, registers the status component and claims
// the state key. No connection is made yet.
func (p *Plugin) OnLoad(app factory.Application) error {
	p.cfg = app.Config().Database
	p.logger = app.Logger()

	component, err := app.StatusRegistry().Register(status.ComponentIdentity{
		Category: status.CategoryDatabase,
		Name:     PluginName,
	})
	if err != nil {
		return fmt.Errorf("registering status component: %w", err)
	}
	p.component = component

	db, err := sql.Open(p.cfg.Driver, p.cfg.DSN)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(p.cfg.MaxOpenConnections)
	db.SetMaxIdleConns(p.cfg.MaxIdleConnections)
	p.db = db

	if err := app.AddToState(StateKey, db); err != nil {
		return fmt.Errorf("publishing database handle: %w", err)
	}

	p.logger.Info("database plugin loaded", "driver", p.cfg.Driver)
	return nil
}

// OnStartup verifies connectivity with a ping and flips the component to
// healthy/ready.
func (p *Plugin) OnStartup(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := p.db.PingContext(pingCtx); err != nil {
		p.component.Publish(status.Down())
		return fmt.Errorf("pinging database: %w", err)
	}

	p.component.Publish(status.Up())
	p.logger.Info("database plugin started")
	return nil
}

// OnShutdown closes the pool and reports the component down.
func (p *Plugin) OnShutdown(_ context.Context) error {
	p.component.Publish(status.Down())
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	p.logger.Info("database plugin stopped")
	return nil
}

// DB exposes the pool for tests and hooks that hold the plugin directly.
// Other plugins should read StateKey instead.
func (p *Plugin) DB() *sql.DB { return p.db }
