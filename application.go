package factory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/DeerHide/go-factory-utilities/config"
	"github.com/DeerHide/go-factory-utilities/status"
)

// Application is the narrow capability handed to plugins and request-handler
// construction code. It exposes configuration, logging, the status registry,
// the router and the keyed state side-table — plugins cannot mutate the
// plugin list or replace the registry through it.
type Application interface {
	// Config returns the immutable application configuration.
	Config() *config.RootConfig

	// Logger returns the application logger.
	Logger() Logger

	// StatusRegistry returns the registry plugins publish their component
	// status into.
	StatusRegistry() *status.Registry

	// Router returns the application's HTTP router. Plugins and Configure
	// callbacks mount routes and middleware on it; the HTTP server plugin
	// serves it.
	Router() chi.Router

	// AddToState places a resource into the keyed side-table for downstream
	// consumers. Adding a duplicate key returns ErrDuplicateStateKey.
	AddToState(key string, value any) error

	// FromState retrieves a resource placed by an earlier plugin.
	// A missing key returns ErrMissingStateKey.
	FromState(key string) (any, error)
}

// Hook is an application-level startup/shutdown callback. Startup hooks run
// after all plugins started; shutdown hooks run before any plugin stops, so
// application code can always assume plugin resources are alive.
type Hook func(ctx context.Context, app *App) error

// Option configures an App at construction time.
type Option func(*App)

// WithStatusStrategies replaces the registry's aggregation strategies.
func WithStatusStrategies(h status.HealthStrategy, r status.ReadinessStrategy) Option {
	return func(a *App) {
		a.registry = status.NewRegistry(h, r)
	}
}

// WithStartupHook appends an application-level startup hook.
func WithStartupHook(h Hook) Option {
	return func(a *App) {
		a.startupHooks = append(a.startupHooks, h)
	}
}

// WithShutdownHook appends an application-level shutdown hook.
func WithShutdownHook(h Hook) Option {
	return func(a *App) {
		a.shutdownHooks = append(a.shutdownHooks, h)
	}
}

// App is the application shell. It owns the immutable configuration, the
// ordered plugin list, one status registry and the state side-table, and
// exposes startup/shutdown to the hosting process.
//
// An App is created once per process; RunStartup and RunShutdown are each
// invoked exactly once, in that order, around the request-serving period.
type App struct {
	cfg      *config.RootConfig
	logger   Logger
	registry *status.Registry
	router   chi.Router
	subject  *subject

	plugins     []Plugin
	pluginNames map[string]struct{}
	coordinator *Coordinator

	stateMu sync.RWMutex
	state   map[string]any

	startupHooks  []Hook
	shutdownHooks []Hook

	started bool
}

// New creates the application shell. The configuration must already be
// loaded and validated; a nil logger defaults to slog.
func New(cfg *config.RootConfig, logger Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if logger == nil {
		logger = NewSlogLogger(nil)
	}

	app := &App{
		cfg:         cfg,
		logger:      logger,
		registry:    status.NewRegistry(nil, nil),
		router:      chi.NewRouter(),
		pluginNames: make(map[string]struct{}),
		state:       make(map[string]any),
	}
	app.subject = newSubject(logger)

	for _, opt := range opts {
		opt(app)
	}
	return app, nil
}

// Config returns the immutable application configuration.
func (a *App) Config() *config.RootConfig { return a.cfg }

// Logger returns the application logger.
func (a *App) Logger() Logger { return a.logger }

// StatusRegistry returns the application's status registry.
func (a *App) StatusRegistry() *status.Registry { return a.registry }

// Router returns the HTTP router owned by the application.
func (a *App) Router() chi.Router { return a.router }

// Subject returns the application's event subject so embedders can register
// observers for lifecycle CloudEvents.
func (a *App) Subject() Subject { return a.subject }

// RegisterPlugin appends a plugin to the activation sequence. Insertion
// order is the startup order contract; shutdown mirrors it in reverse.
// Registration after startup is an error.
func (a *App) RegisterPlugin(p Plugin) error {
	if p == nil {
		return ErrPluginNil
	}
	if p.Name() == "" {
		return ErrPluginNameEmpty
	}
	if a.started {
		return ErrApplicationAlreadyStarted
	}
	if _, exists := a.pluginNames[p.Name()]; exists {
		return fmt.Errorf("plugin %q: %w", p.Name(), ErrDuplicatePlugin)
	}

	a.plugins = append(a.plugins, p)
	a.pluginNames[p.Name()] = struct{}{}
	a.subject.notify(EventTypePluginRegistered, p.Name())
	return nil
}

// Configure runs a synchronous route/middleware registration callback
// against the application router. It must not perform I/O; it exists so the
// embedding application can mount its handlers before startup.
func (a *App) Configure(fn func(r chi.Router)) {
	fn(a.router)
}

// AddToState implements Application.
func (a *App) AddToState(key string, value any) error {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	if _, exists := a.state[key]; exists {
		return fmt.Errorf("state key %q: %w", key, ErrDuplicateStateKey)
	}
	a.state[key] = value
	return nil
}

// FromState implements Application.
func (a *App) FromState(key string) (any, error) {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	value, exists := a.state[key]
	if !exists {
		return nil, fmt.Errorf("state key %q: %w", key, ErrMissingStateKey)
	}
	return value, nil
}

// RunStartup loads every plugin (sync, fail-fast), then starts them in
// registration order, then runs the application-level startup hooks.
// A startup failure rolls back already-started plugins before returning.
func (a *App) RunStartup(ctx context.Context) error {
	if a.started {
		return ErrApplicationAlreadyStarted
	}

	a.coordinator = NewCoordinator(a.plugins, a.logger, a.subject)

	if err := a.coordinator.Load(a); err != nil {
		return err
	}
	if err := a.coordinator.Startup(ctx); err != nil {
		return err
	}

	for _, hook := range a.startupHooks {
		if err := hook(ctx, a); err != nil {
			// Application hook failed after all plugins started: give the
			// plugins their shutdown attempt before surfacing.
			if shutdownErr := a.coordinator.Shutdown(ctx); shutdownErr != nil {
				a.logger.Error("shutdown after failed startup hook", "error", shutdownErr)
			}
			return fmt.Errorf("startup hook failed: %w", err)
		}
	}

	a.started = true
	a.subject.notify(EventTypeApplicationStarted, a.cfg.Service.Name)
	a.logger.Info("application started", "service", a.cfg.Service.Name, "plugins", len(a.plugins))
	return nil
}

// RunShutdown runs the application-level shutdown hooks, then stops every
// started plugin in reverse registration order. All plugins get a shutdown
// attempt; collected errors are returned joined.
func (a *App) RunShutdown(ctx context.Context) error {
	if !a.started {
		return ErrApplicationNotStarted
	}

	var errs []error
	for _, hook := range a.shutdownHooks {
		if err := hook(ctx, a); err != nil {
			a.logger.Error("shutdown hook failed", "error", err)
			errs = append(errs, fmt.Errorf("shutdown hook failed: %w", err))
		}
	}

	if err := a.coordinator.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	a.started = false
	a.subject.notify(EventTypeApplicationStopped, a.cfg.Service.Name)
	a.logger.Info("application stopped", "service", a.cfg.Service.Name)
	return errors.Join(errs...)
}

// Run starts the application and blocks until SIGINT or SIGTERM, then shuts
// down with the configured server shutdown timeout.
func (a *App) Run() error {
	ctx := context.Background()
	if err := a.RunStartup(ctx); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	a.logger.Info("received signal, shutting down", "signal", sig.String())

	timeout := time.Duration(a.cfg.Server.ShutdownTimeoutSeconds) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return a.RunShutdown(shutdownCtx)
}

// notify emits a shell lifecycle event. Emission is synchronous so
// observers see started and stopped in the order they happened; observer
// failures are already isolated and logged by the subject.
func (s *subject) notify(eventType, name string) {
	event := NewCloudEvent(eventType, EventSourceApplication, map[string]string{"name": name}, nil)
	_ = s.NotifyObservers(context.Background(), event)
}
