// Command booksvc is a small example service assembled from the factory
// packages: configuration, the plugin set, JWT verification and a couple of
// routes over the shared database pool.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	factory "github.com/DeerHide/go-factory-utilities"
	"github.com/DeerHide/go-factory-utilities/audit"
	"github.com/DeerHide/go-factory-utilities/auth"
	"github.com/DeerHide/go-factory-utilities/config"
	"github.com/DeerHide/go-factory-utilities/plugins/cache"
	"github.com/DeerHide/go-factory-utilities/plugins/database"
	"github.com/DeerHide/go-factory-utilities/plugins/eventbus"
	"github.com/DeerHide/go-factory-utilities/plugins/httpclient"
	"github.com/DeerHide/go-factory-utilities/plugins/httpserver"
	"github.com/DeerHide/go-factory-utilities/plugins/metrics"
	"github.com/DeerHide/go-factory-utilities/plugins/scheduler"
	"github.com/DeerHide/go-factory-utilities/plugins/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "booksvc:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	settings := defaultAuthSettings()
	if err := config.LoadSection(*configPath, "auth", &settings); err != nil {
		return err
	}
	logger := factory.NewSlogLogger(nil)

	keyStore := auth.NewKeyStore()
	app, err := factory.New(cfg, logger,
		factory.WithStartupHook(migrate),
		factory.WithStartupHook(scheduleKeyRefresh(settings.JWKSURL, keyStore)),
	)
	if err != nil {
		return err
	}

	for _, plugin := range []factory.Plugin{
		database.New(),
		eventbus.New(),
		scheduler.New(),
		httpclient.New(),
		cache.New(),
		metrics.New(),
		tracing.New(),
		httpserver.New(),
	} {
		if err := app.RegisterPlugin(plugin); err != nil {
			return err
		}
	}

	authCfg, err := auth.NewConfig(settings.Algorithms, settings.Audiences, settings.Issuers)
	if err != nil {
		return err
	}
	pipeline, err := auth.NewPipeline(authCfg, keyStore, auth.ScopeVerifier{
		Required: settings.RequiredScopes,
	})
	if err != nil {
		return err
	}

	app.Configure(func(r chi.Router) {
		r.Get("/books", listBooks(app, pipeline))
	})

	return app.Run()
}

// authSettings is booksvc's own section of the configuration file, loaded
// by key next to the factory RootConfig.
type authSettings struct {
	Algorithms     []string `yaml:"algorithms"`
	Audiences      []string `yaml:"audiences"`
	Issuers        []string `yaml:"issuers"`
	RequiredScopes []string `yaml:"required_scopes"`
	JWKSURL        string   `yaml:"jwks_url"`
}

func defaultAuthSettings() authSettings {
	return authSettings{
		Algorithms:     []string{"RS256"},
		Audiences:      []string{"books-api"},
		Issuers:        []string{"https://issuer.example.com"},
		RequiredScopes: []string{"books:read"},
		JWKSURL:        "https://issuer.example.com/.well-known/jwks.json",
	}
}

// migrate creates the schema on the shared pool before traffic starts.
func migrate(ctx context.Context, app *factory.App) error {
	raw, err := app.FromState(database.StateKey)
	if err != nil {
		return err
	}
	db := raw.(*sql.DB)
	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS books (
			id    INTEGER PRIMARY KEY,
			title TEXT NOT NULL
		)`)
	return err
}

// scheduleKeyRefresh fetches the issuer JWKS now and then every five
// minutes, feeding the store that backs the verification pipeline.
func scheduleKeyRefresh(jwksURL string, store *auth.KeyStore) factory.Hook {
	return func(ctx context.Context, app *factory.App) error {
		rawSched, err := app.FromState(scheduler.StateKey)
		if err != nil {
			return err
		}
		rawClient, err := app.FromState(httpclient.StateKey)
		if err != nil {
			return err
		}
		pool := rawSched.(*scheduler.Plugin)
		client := rawClient.(*http.Client)

		refresh := func(ctx context.Context) error {
			return fetchJWKS(ctx, client, jwksURL, store)
		}

		if err := refresh(ctx); err != nil {
			// The first fetch may race issuer availability; the cron
			// retry below recovers.
			app.Logger().Warn("initial jwks fetch failed", "error", err)
		}
		_, err = pool.Schedule("@every 5m", "refresh-jwks", refresh)
		return err
	}
}

func fetchJWKS(ctx context.Context, client *http.Client, url string, store *auth.KeyStore) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks endpoint returned %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return store.StoreJWKS(raw)
}

type book struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

func listBooks(app *factory.App, pipeline *auth.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := pipeline.Authenticate(r)
		if err != nil {
			writeAuthError(w, err)
			return
		}

		raw, err := app.FromState(database.StateKey)
		if err != nil {
			http.Error(w, "database unavailable", http.StatusInternalServerError)
			return
		}
		db := raw.(*sql.DB)

		rows, err := db.QueryContext(r.Context(), `SELECT id, title FROM books ORDER BY id`)
		if err != nil {
			http.Error(w, "query failed", http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		books := make([]book, 0)
		for rows.Next() {
			var b book
			if err := rows.Scan(&b.ID, &b.Title); err != nil {
				http.Error(w, "scan failed", http.StatusInternalServerError)
				return
			}
			books = append(books, b)
		}
		if err := rows.Err(); err != nil {
			http.Error(w, "query failed", http.StatusInternalServerError)
			return
		}

		recordRead(r.Context(), app, payload.Subject)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(books)
	}
}

// recordRead emits an audit event for the listing; audit failures are
// logged, not surfaced to the caller.
func recordRead(ctx context.Context, app *factory.App, actor string) {
	raw, err := app.FromState(eventbus.StateKey)
	if err != nil {
		return
	}
	bus := raw.(*eventbus.Plugin)

	svc, err := audit.NewService(bus, app.Config().Service.Name, app.Logger())
	if err != nil {
		return
	}
	if err := svc.Record(ctx, audit.Entry{
		Action:   "books.list",
		Actor:    actor,
		Resource: "books",
	}); err != nil {
		app.Logger().Warn("audit record failed", "error", err)
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		http.Error(w, "missing credentials", http.StatusUnauthorized)
	case errors.Is(err, auth.ErrNotVerified):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}
}
