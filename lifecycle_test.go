package factory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeerHide/go-factory-utilities/config"
)

// recorder collects hook invocations across plugins so tests can assert the
// exact global call order.
type recorder struct {
	calls []string
}

func (r *recorder) record(call string) {
	r.calls = append(r.calls, call)
}

// fakePlugin implements all three lifecycle capabilities with injectable
// failures.
type fakePlugin struct {
	name        string
	rec         *recorder
	loadErr     error
	startupErr  error
	shutdownErr error
}

func (p *fakePlugin) Name() string { return p.name }

func (p *fakePlugin) OnLoad(_ Application) error {
	p.rec.record(p.name + ".load")
	return p.loadErr
}

func (p *fakePlugin) OnStartup(_ context.Context) error {
	p.rec.record(p.name + ".startup")
	return p.startupErr
}

func (p *fakePlugin) OnShutdown(_ context.Context) error {
	p.rec.record(p.name + ".shutdown")
	return p.shutdownErr
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Service.Name = "lifecycle-test"
	app, err := New(cfg, &testLogger{t: t})
	require.NoError(t, err)
	return app
}

// testLogger routes framework logs into the test output.
type testLogger struct {
	t *testing.T
}

func (l *testLogger) log(level, msg string, args []any) {
	l.t.Logf("%s: %s %v", level, msg, args)
}

func (l *testLogger) Info(msg string, args ...any)  { l.log("INFO", msg, args) }
func (l *testLogger) Error(msg string, args ...any) { l.log("ERROR", msg, args) }
func (l *testLogger) Warn(msg string, args ...any)  { l.log("WARN", msg, args) }
func (l *testLogger) Debug(msg string, args ...any) { l.log("DEBUG", msg, args) }

func TestCoordinatorHappyPath(t *testing.T) {
	rec := &recorder{}
	app := newTestApp(t)
	a := &fakePlugin{name: "a", rec: rec}
	b := &fakePlugin{name: "b", rec: rec}

	coord := NewCoordinator([]Plugin{a, b}, app.Logger(), nil)

	require.NoError(t, coord.Load(app))
	assert.Equal(t, PluginStateLoaded, coord.State("a"))

	require.NoError(t, coord.Startup(context.Background()))
	assert.Equal(t, PluginStateStarted, coord.State("a"))
	assert.Equal(t, PluginStateStarted, coord.State("b"))

	require.NoError(t, coord.Shutdown(context.Background()))
	assert.Equal(t, PluginStateStopped, coord.State("a"))

	assert.Equal(t, []string{
		"a.load", "b.load",
		"a.startup", "b.startup",
		"b.shutdown", "a.shutdown",
	}, rec.calls)
}

func TestCoordinatorLoadFailureIsFatal(t *testing.T) {
	rec := &recorder{}
	app := newTestApp(t)
	loadErr := errors.New("bad config")
	a := &fakePlugin{name: "a", rec: rec}
	b := &fakePlugin{name: "b", rec: rec, loadErr: loadErr}
	c := &fakePlugin{name: "c", rec: rec}

	coord := NewCoordinator([]Plugin{a, b, c}, app.Logger(), nil)

	err := coord.Load(app)
	require.Error(t, err)
	assert.ErrorIs(t, err, loadErr)

	var lerr *PluginLifecycleError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "b", lerr.Plugin)
	assert.Equal(t, PhaseLoad, lerr.Phase)

	// c is never loaded, nothing is started.
	assert.Equal(t, []string{"a.load", "b.load"}, rec.calls)
	assert.Equal(t, PluginStateUnloaded, coord.State("c"))
}

func TestCoordinatorStartupFailureRollsBack(t *testing.T) {
	rec := &recorder{}
	app := newTestApp(t)
	startupErr := errors.New("connection refused")
	a := &fakePlugin{name: "a", rec: rec}
	b := &fakePlugin{name: "b", rec: rec, startupErr: startupErr}
	c := &fakePlugin{name: "c", rec: rec}

	coord := NewCoordinator([]Plugin{a, b, c}, app.Logger(), nil)
	require.NoError(t, coord.Load(app))

	err := coord.Startup(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, startupErr)

	var lerr *PluginLifecycleError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "b", lerr.Plugin)
	assert.Equal(t, PhaseStartup, lerr.Phase)

	// Exact observed order: c never starts, a is compensated.
	assert.Equal(t, []string{
		"a.load", "b.load", "c.load",
		"a.startup", "b.startup",
		"a.shutdown",
	}, rec.calls)
	assert.Equal(t, PluginStateStopped, coord.State("a"))
	assert.Equal(t, PluginStateLoaded, coord.State("c"))
}

func TestCoordinatorShutdownIsolatesFailures(t *testing.T) {
	rec := &recorder{}
	app := newTestApp(t)
	shutdownErr := errors.New("flush failed")
	a := &fakePlugin{name: "a", rec: rec}
	b := &fakePlugin{name: "b", rec: rec, shutdownErr: shutdownErr}
	c := &fakePlugin{name: "c", rec: rec}

	coord := NewCoordinator([]Plugin{a, b, c}, app.Logger(), nil)
	require.NoError(t, coord.Load(app))
	require.NoError(t, coord.Startup(context.Background()))

	err := coord.Shutdown(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, shutdownErr)

	// b's failure does not rob a of its shutdown attempt; order is exact
	// reverse of startup.
	assert.Equal(t, []string{
		"a.load", "b.load", "c.load",
		"a.startup", "b.startup", "c.startup",
		"c.shutdown", "b.shutdown", "a.shutdown",
	}, rec.calls)
}

func TestCoordinatorCancelledStartupStillCompensates(t *testing.T) {
	rec := &recorder{}
	app := newTestApp(t)
	a := &fakePlugin{name: "a", rec: rec}
	b := &fakePlugin{name: "b", rec: rec}

	ctx, cancel := context.WithCancel(context.Background())
	// a cancels the startup context as soon as it has started.
	cancelling := &cancelAfterStartup{fakePlugin: a, cancel: cancel}
	coord := NewCoordinator([]Plugin{cancelling, b}, app.Logger(), nil)
	require.NoError(t, coord.Load(app))

	err := coord.Startup(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// a was started before the cancellation and must be compensated.
	assert.Contains(t, rec.calls, "a.shutdown")
	assert.NotContains(t, rec.calls, "b.startup")
}

type cancelAfterStartup struct {
	*fakePlugin
	cancel context.CancelFunc
}

func (p *cancelAfterStartup) OnStartup(ctx context.Context) error {
	err := p.fakePlugin.OnStartup(ctx)
	p.cancel()
	return err
}

// loadOnlyPlugin has no Startable/Stoppable capability.
type loadOnlyPlugin struct {
	name string
	rec  *recorder
}

func (p *loadOnlyPlugin) Name() string { return p.name }

func (p *loadOnlyPlugin) OnLoad(_ Application) error {
	p.rec.record(p.name + ".load")
	return nil
}

func TestCoordinatorSkipsMissingCapabilities(t *testing.T) {
	rec := &recorder{}
	app := newTestApp(t)
	a := &loadOnlyPlugin{name: "a", rec: rec}
	b := &fakePlugin{name: "b", rec: rec}

	coord := NewCoordinator([]Plugin{a, b}, app.Logger(), nil)
	require.NoError(t, coord.Load(app))
	require.NoError(t, coord.Startup(context.Background()))
	require.NoError(t, coord.Shutdown(context.Background()))

	assert.Equal(t, []string{
		"a.load", "b.load",
		"b.startup",
		"b.shutdown",
	}, rec.calls)
	// Plugins without Startable still progress through the state machine.
	assert.Equal(t, PluginStateStopped, coord.State("a"))
}
