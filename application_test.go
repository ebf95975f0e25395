package factory

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeerHide/go-factory-utilities/config"
	"github.com/DeerHide/go-factory-utilities/status"
)

func TestNewApp(t *testing.T) {
	t.Run("should_reject_nil_config", func(t *testing.T) {
		_, err := New(nil, &testLogger{t: t})
		assert.ErrorIs(t, err, ErrConfigNil)
	})

	t.Run("should_default_logger_when_nil", func(t *testing.T) {
		app, err := New(config.Default(), nil)
		require.NoError(t, err)
		assert.NotNil(t, app.Logger())
	})

	t.Run("should_expose_registry_and_router", func(t *testing.T) {
		app := newTestApp(t)
		assert.NotNil(t, app.StatusRegistry())
		assert.NotNil(t, app.Router())
		assert.Equal(t, "lifecycle-test", app.Config().Service.Name)
	})
}

func TestAppState(t *testing.T) {
	app := newTestApp(t)

	t.Run("should_round_trip_values", func(t *testing.T) {
		require.NoError(t, app.AddToState("database.db", 42))
		got, err := app.FromState("database.db")
		require.NoError(t, err)
		assert.Equal(t, 42, got)
	})

	t.Run("should_reject_duplicate_keys_and_keep_original", func(t *testing.T) {
		err := app.AddToState("database.db", 99)
		assert.ErrorIs(t, err, ErrDuplicateStateKey)

		got, err := app.FromState("database.db")
		require.NoError(t, err)
		assert.Equal(t, 42, got)
	})

	t.Run("should_fail_on_missing_key", func(t *testing.T) {
		_, err := app.FromState("no.such.key")
		assert.ErrorIs(t, err, ErrMissingStateKey)
	})
}

func TestAppRegisterPlugin(t *testing.T) {
	rec := &recorder{}

	t.Run("should_reject_nil_plugin", func(t *testing.T) {
		app := newTestApp(t)
		assert.ErrorIs(t, app.RegisterPlugin(nil), ErrPluginNil)
	})

	t.Run("should_reject_empty_name", func(t *testing.T) {
		app := newTestApp(t)
		err := app.RegisterPlugin(&fakePlugin{name: "", rec: rec})
		assert.ErrorIs(t, err, ErrPluginNameEmpty)
	})

	t.Run("should_reject_duplicate_name", func(t *testing.T) {
		app := newTestApp(t)
		require.NoError(t, app.RegisterPlugin(&fakePlugin{name: "db", rec: rec}))
		err := app.RegisterPlugin(&fakePlugin{name: "db", rec: rec})
		assert.ErrorIs(t, err, ErrDuplicatePlugin)
	})

	t.Run("should_reject_registration_after_startup", func(t *testing.T) {
		app := newTestApp(t)
		require.NoError(t, app.RunStartup(context.Background()))
		err := app.RegisterPlugin(&fakePlugin{name: "late", rec: rec})
		assert.ErrorIs(t, err, ErrApplicationAlreadyStarted)
	})
}

func TestAppStartupShutdown(t *testing.T) {
	t.Run("should_run_plugins_then_hooks", func(t *testing.T) {
		rec := &recorder{}
		cfg := config.Default()
		cfg.Service.Name = "hooks-test"
		app, err := New(cfg, &testLogger{t: t},
			WithStartupHook(func(_ context.Context, _ *App) error {
				rec.record("app.startup")
				return nil
			}),
			WithShutdownHook(func(_ context.Context, _ *App) error {
				rec.record("app.shutdown")
				return nil
			}),
		)
		require.NoError(t, err)
		require.NoError(t, app.RegisterPlugin(&fakePlugin{name: "db", rec: rec}))

		require.NoError(t, app.RunStartup(context.Background()))
		require.NoError(t, app.RunShutdown(context.Background()))

		assert.Equal(t, []string{
			"db.load", "db.startup",
			"app.startup",
			"app.shutdown",
			"db.shutdown",
		}, rec.calls)
	})

	t.Run("should_emit_lifecycle_events_in_order", func(t *testing.T) {
		app := newTestApp(t)
		observer := &capturingObserver{id: "lifecycle"}
		require.NoError(t, app.Subject().RegisterObserver(observer))

		require.NoError(t, app.RegisterPlugin(&fakePlugin{name: "db", rec: &recorder{}}))
		require.NoError(t, app.RunStartup(context.Background()))
		require.NoError(t, app.RunShutdown(context.Background()))

		assert.Equal(t, []string{
			EventTypePluginRegistered,
			EventTypePluginLoaded,
			EventTypePluginStarted,
			EventTypeApplicationStarted,
			EventTypePluginStopped,
			EventTypeApplicationStopped,
		}, eventTypes(observer.events))
	})

	t.Run("should_shut_plugins_down_when_hook_fails", func(t *testing.T) {
		rec := &recorder{}
		hookErr := errors.New("migration failed")
		cfg := config.Default()
		cfg.Service.Name = "hooks-test"
		app, err := New(cfg, &testLogger{t: t},
			WithStartupHook(func(_ context.Context, _ *App) error {
				return hookErr
			}),
		)
		require.NoError(t, err)
		require.NoError(t, app.RegisterPlugin(&fakePlugin{name: "db", rec: rec}))

		err = app.RunStartup(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, hookErr)
		assert.Contains(t, rec.calls, "db.shutdown")
	})

	t.Run("should_guard_double_startup", func(t *testing.T) {
		app := newTestApp(t)
		require.NoError(t, app.RunStartup(context.Background()))
		assert.ErrorIs(t, app.RunStartup(context.Background()), ErrApplicationAlreadyStarted)
	})

	t.Run("should_guard_shutdown_before_startup", func(t *testing.T) {
		app := newTestApp(t)
		assert.ErrorIs(t, app.RunShutdown(context.Background()), ErrApplicationNotStarted)
	})

	t.Run("should_not_start_anything_when_load_fails", func(t *testing.T) {
		rec := &recorder{}
		loadErr := errors.New("bad binding")
		app := newTestApp(t)
		require.NoError(t, app.RegisterPlugin(&fakePlugin{name: "a", rec: rec}))
		require.NoError(t, app.RegisterPlugin(&fakePlugin{name: "b", rec: rec, loadErr: loadErr}))

		err := app.RunStartup(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, loadErr)
		assert.NotContains(t, rec.calls, "a.startup")
	})
}

func TestAppConfigure(t *testing.T) {
	app := newTestApp(t)
	app.Configure(func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("pong"))
		})
	})

	srv := httptest.NewServer(app.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", string(body))
}

// permissiveHealth reports healthy regardless of component state.
type permissiveHealth struct{}

func (permissiveHealth) AggregateHealth(_ []status.Status) status.Health {
	return status.HealthHealthy
}

func TestAppStatusStrategiesOption(t *testing.T) {
	cfg := config.Default()
	cfg.Service.Name = "strategy-test"
	app, err := New(cfg, &testLogger{t: t},
		WithStatusStrategies(permissiveHealth{}, status.SimpleReadinessStrategy{}))
	require.NoError(t, err)

	comp, err := app.StatusRegistry().Register(status.ComponentIdentity{
		Category: status.CategoryDatabase,
		Name:     "books",
	})
	require.NoError(t, err)
	comp.Publish(status.Status{Health: status.HealthUnhealthy, Readiness: status.ReadinessReady})

	agg := app.StatusRegistry().Aggregate()
	assert.Equal(t, status.HealthHealthy, agg.Health)
	assert.Equal(t, status.ReadinessReady, agg.Readiness)
}
