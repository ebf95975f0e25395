package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	factory "github.com/DeerHide/go-factory-utilities"
	"github.com/DeerHide/go-factory-utilities/config"
)

func newStartedApp(t *testing.T, plugin *Plugin) *factory.App {
	t.Helper()
	cfg := config.Default()
	cfg.Service.Name = "metrics-test"
	app, err := factory.New(cfg, factory.NewSlogLogger(nil))
	require.NoError(t, err)
	require.NoError(t, app.RegisterPlugin(plugin))
	require.NoError(t, app.RunStartup(context.Background()))
	return app
}

func TestMetricsPlugin(t *testing.T) {
	plugin := New()
	app := newStartedApp(t, plugin)

	t.Run("should_expose_registry_through_state", func(t *testing.T) {
		raw, err := app.FromState(StateKey)
		require.NoError(t, err)
		reg, ok := raw.(*prometheus.Registry)
		require.True(t, ok)
		assert.Same(t, plugin.Registry(), reg)
	})

	t.Run("should_serve_exposition_endpoint", func(t *testing.T) {
		srv := httptest.NewServer(app.Router())
		defer srv.Close()

		resp, err := http.Get(srv.URL + app.Config().Metrics.Path)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "go_goroutines")
	})

	t.Run("should_count_instrumented_requests", func(t *testing.T) {
		router := chi.NewRouter()
		router.Use(plugin.Middleware)
		router.Get("/books", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		router.Get("/missing", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		srv := httptest.NewServer(router)
		defer srv.Close()

		for i := 0; i < 3; i++ {
			resp, err := http.Get(srv.URL + "/books")
			require.NoError(t, err)
			resp.Body.Close()
		}
		resp, err := http.Get(srv.URL + "/missing")
		require.NoError(t, err)
		resp.Body.Close()

		count := testutil.ToFloat64(plugin.requestsTotal.WithLabelValues(http.MethodGet, "200"))
		assert.Equal(t, float64(3), count)
		count = testutil.ToFloat64(plugin.requestsTotal.WithLabelValues(http.MethodGet, "404"))
		assert.Equal(t, float64(1), count)
	})
}

func TestMetricsPluginDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Service.Name = "metrics-test"
	cfg.Metrics.Enabled = false
	app, err := factory.New(cfg, factory.NewSlogLogger(nil))
	require.NoError(t, err)
	require.NoError(t, app.RegisterPlugin(New()))
	require.NoError(t, app.RunStartup(context.Background()))

	srv := httptest.NewServer(app.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + strings.TrimSpace(cfg.Metrics.Path))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
