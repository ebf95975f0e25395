package factory

import (
	"context"
	"errors"
	"fmt"
)

// PluginState tracks where a plugin is in its lifecycle. Transitions are
// strictly Unloaded → Loaded → Started → Stopped; a failed transition leaves
// the plugin in its previous state.
type PluginState int

const (
	// PluginStateUnloaded is the state of a registered plugin before OnLoad.
	PluginStateUnloaded PluginState = iota

	// PluginStateLoaded means OnLoad completed successfully.
	PluginStateLoaded

	// PluginStateStarted means OnStartup completed successfully.
	PluginStateStarted

	// PluginStateStopped means OnShutdown was attempted (successfully or not).
	PluginStateStopped
)

// String returns the string representation of the plugin state.
func (s PluginState) String() string {
	switch s {
	case PluginStateLoaded:
		return "loaded"
	case PluginStateStarted:
		return "started"
	case PluginStateStopped:
		return "stopped"
	default:
		return "unloaded"
	}
}

// LifecyclePhase identifies which hook a lifecycle error originated from.
type LifecyclePhase string

const (
	PhaseLoad     LifecyclePhase = "load"
	PhaseStartup  LifecyclePhase = "startup"
	PhaseShutdown LifecyclePhase = "shutdown"
)

// PluginLifecycleError wraps an error raised inside a plugin hook, carrying
// the originating plugin and phase so callers can report it precisely.
type PluginLifecycleError struct {
	Plugin string
	Phase  LifecyclePhase
	Err    error
}

func (e *PluginLifecycleError) Error() string {
	return fmt.Sprintf("plugin %q failed during %s: %v", e.Plugin, e.Phase, e.Err)
}

func (e *PluginLifecycleError) Unwrap() error {
	return e.Err
}

// Coordinator drives an ordered sequence of plugins through
// load → startup → shutdown. Registration order is the activation order
// contract: startup awaits each plugin before the next, shutdown runs in
// exact reverse.
type Coordinator struct {
	plugins []Plugin
	states  map[string]PluginState
	logger  Logger
	subject Subject
}

// NewCoordinator creates a coordinator over the given ordered plugin list.
// The subject may be nil; lifecycle events are then not emitted.
func NewCoordinator(plugins []Plugin, logger Logger, subject Subject) *Coordinator {
	states := make(map[string]PluginState, len(plugins))
	for _, p := range plugins {
		states[p.Name()] = PluginStateUnloaded
	}
	return &Coordinator{
		plugins: plugins,
		states:  states,
		logger:  logger,
		subject: subject,
	}
}

// State returns the lifecycle state of the named plugin.
func (c *Coordinator) State(name string) PluginState {
	return c.states[name]
}

// Load runs OnLoad on every plugin in registration order. The first failure
// aborts loading: load errors are fatal for the whole application and no
// plugin will reach the started state.
func (c *Coordinator) Load(app Application) error {
	for _, p := range c.plugins {
		c.logger.Debug("loading plugin", "plugin", p.Name())
		if err := p.OnLoad(app); err != nil {
			lerr := &PluginLifecycleError{Plugin: p.Name(), Phase: PhaseLoad, Err: err}
			c.emit(context.Background(), EventTypePluginFailed, p.Name(), lerr.Error())
			return lerr
		}
		c.states[p.Name()] = PluginStateLoaded
		c.emit(context.Background(), EventTypePluginLoaded, p.Name(), "")
	}
	return nil
}

// Startup runs OnStartup on every loaded plugin in registration order,
// awaiting each before starting the next. If plugin k fails (or the context
// is cancelled mid-startup), the plugins that already started are shut down
// in reverse order before the original error is surfaced.
func (c *Coordinator) Startup(ctx context.Context) error {
	started := make([]Plugin, 0, len(c.plugins))

	for _, p := range c.plugins {
		if c.states[p.Name()] != PluginStateLoaded {
			return fmt.Errorf("plugin %q: %w", p.Name(), ErrPluginsNotLoaded)
		}

		startable, ok := p.(Startable)
		if !ok {
			c.states[p.Name()] = PluginStateStarted
			started = append(started, p)
			continue
		}

		if err := ctx.Err(); err != nil {
			c.rollback(started)
			return fmt.Errorf("startup cancelled before plugin %q: %w", p.Name(), err)
		}

		c.logger.Info("starting plugin", "plugin", p.Name())
		if err := startable.OnStartup(ctx); err != nil {
			lerr := &PluginLifecycleError{Plugin: p.Name(), Phase: PhaseStartup, Err: err}
			c.emit(ctx, EventTypePluginFailed, p.Name(), lerr.Error())
			c.rollback(started)
			return lerr
		}
		c.states[p.Name()] = PluginStateStarted
		started = append(started, p)
		c.emit(ctx, EventTypePluginStarted, p.Name(), "")
	}
	return nil
}

// Shutdown runs OnShutdown on every started plugin in reverse registration
// order. Every plugin gets a shutdown attempt; individual failures are
// logged and collected, never silently swallowed.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(c.plugins) - 1; i >= 0; i-- {
		p := c.plugins[i]
		if c.states[p.Name()] != PluginStateStarted {
			continue
		}
		errs = append(errs, c.stopPlugin(ctx, p))
	}
	return errors.Join(errs...)
}

// rollback performs compensating shutdown after a startup failure: the
// already-started plugins are stopped in reverse start order. Rollback
// errors are logged but the startup error stays the surfaced one.
func (c *Coordinator) rollback(started []Plugin) {
	// A fresh context: the startup context may already be cancelled, and
	// compensating cleanup must still run so no connection is orphaned.
	ctx := context.Background()
	for i := len(started) - 1; i >= 0; i-- {
		if err := c.stopPlugin(ctx, started[i]); err != nil {
			c.logger.Error("compensating shutdown failed", "plugin", started[i].Name(), "error", err)
		}
	}
}

func (c *Coordinator) stopPlugin(ctx context.Context, p Plugin) error {
	defer func() { c.states[p.Name()] = PluginStateStopped }()

	stoppable, ok := p.(Stoppable)
	if !ok {
		return nil
	}
	c.logger.Info("stopping plugin", "plugin", p.Name())
	if err := stoppable.OnShutdown(ctx); err != nil {
		lerr := &PluginLifecycleError{Plugin: p.Name(), Phase: PhaseShutdown, Err: err}
		c.logger.Error("plugin shutdown failed", "plugin", p.Name(), "error", err)
		c.emit(ctx, EventTypePluginFailed, p.Name(), lerr.Error())
		return lerr
	}
	c.emit(ctx, EventTypePluginStopped, p.Name(), "")
	return nil
}

func (c *Coordinator) emit(ctx context.Context, eventType, plugin, detail string) {
	if c.subject == nil {
		return
	}
	data := map[string]string{"plugin": plugin}
	if detail != "" {
		data["detail"] = detail
	}
	event := NewCloudEvent(eventType, EventSourceApplication, data, nil)
	_ = c.subject.NotifyObservers(ctx, event)
}
