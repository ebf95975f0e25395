package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	factory "github.com/DeerHide/go-factory-utilities"
	"github.com/DeerHide/go-factory-utilities/config"
	"github.com/DeerHide/go-factory-utilities/status"
)

func TestHTTPClientPlugin(t *testing.T) {
	cfg := config.Default()
	cfg.Service.Name = "httpclient-test"
	cfg.HTTPClient.RequestTimeoutSeconds = 7
	app, err := factory.New(cfg, factory.NewSlogLogger(nil))
	require.NoError(t, err)

	plugin := New()
	require.NoError(t, app.RegisterPlugin(plugin))
	require.NoError(t, app.RunStartup(context.Background()))
	defer func() { _ = app.RunShutdown(context.Background()) }()

	t.Run("should_apply_configured_timeout", func(t *testing.T) {
		assert.Equal(t, 7*time.Second, plugin.Client().Timeout)
	})

	t.Run("should_share_client_through_state", func(t *testing.T) {
		raw, err := app.FromState(StateKey)
		require.NoError(t, err)
		client, ok := raw.(*http.Client)
		require.True(t, ok)
		assert.Same(t, plugin.Client(), client)

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}))
		defer srv.Close()

		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "ok", string(body))
	})

	t.Run("should_report_ready_after_startup", func(t *testing.T) {
		byCat := app.StatusRegistry().ByCategory()
		assert.Equal(t, status.Up(), byCat[status.CategoryHTTPClient][PluginName])
	})
}
