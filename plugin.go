// Package factory provides a plugin-oriented application shell for Go
// microservices. It wraps common service infrastructure (database, message
// broker, task scheduler, HTTP client, cache, tracing) behind a uniform
// plugin interface, coordinates plugin lifecycle, and aggregates per-component
// health and readiness for consumption by health endpoints.
//
// An application is composed of plugins registered in activation order. Each
// plugin implements the Plugin interface and can optionally implement
// Startable and Stoppable. Plugins publish their connection state into the
// application's status registry, from which the aggregate health and
// readiness of the process is derived.
//
// Basic usage:
//
//	app, err := factory.New(cfg, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	app.RegisterPlugin(database.New())
//	app.RegisterPlugin(eventbus.New())
//	if err := app.Run(); err != nil {
//		log.Fatal(err)
//	}
package factory

import "context"

// Plugin represents a registrable integration in the application.
// All plugins must implement this interface to be managed by the shell.
//
// A plugin encapsulates exactly one backend concern (a database connection,
// a broker client, a scheduler, ...). Registration order is the activation
// order contract: plugins that depend on state populated by earlier plugins
// must be registered after them.
type Plugin interface {
	// Name returns the unique identifier for this plugin.
	// It must be unique within the application and is used in lifecycle
	// errors, log entries and emitted events.
	//
	// Example: "database", "eventbus", "httpclient"
	Name() string

	// OnLoad wires the plugin to the application shell. It is called
	// synchronously for every plugin, in registration order, before any
	// plugin is started.
	//
	// OnLoad should validate configuration, register status components and
	// prepare for OnStartup. It must not perform blocking I/O. An error
	// returned here is fatal for the whole application: startup is aborted
	// and no plugin reaches the started state.
	OnLoad(app Application) error
}

// Startable is implemented by plugins that need to perform startup I/O.
// OnStartup is invoked in registration order after every plugin has been
// loaded; the coordinator awaits each plugin before starting the next.
//
// Typical work: opening connections, pinging backends, publishing the
// initial status transition, placing resources into the application state.
type Startable interface {
	// OnStartup begins the plugin's runtime operations. The context is the
	// application's startup context; if it is cancelled the plugin should
	// abandon connection attempts and return.
	//
	// An error triggers compensating shutdown of every plugin that already
	// started, in reverse order, before the error is surfaced.
	OnStartup(ctx context.Context) error
}

// Stoppable is implemented by plugins that hold resources to release.
// OnShutdown is invoked in reverse registration order during shutdown,
// and best-effort after a startup failure.
//
// A failure in one plugin's OnShutdown is collected and does not prevent
// the remaining plugins from being given a shutdown attempt.
type Stoppable interface {
	// OnShutdown releases the plugin's resources. The context carries the
	// shutdown deadline of the embedding process.
	OnShutdown(ctx context.Context) error
}
