// Package cache provides the Redis cache plugin. It owns the client, proves
// connectivity at startup with a ping, and exposes a small typed API over
// get/set/delete.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	factory "github.com/DeerHide/go-factory-utilities"
	"github.com/DeerHide/go-factory-utilities/config"
	"github.com/DeerHide/go-factory-utilities/status"
)

// PluginName is the registration name of this plugin.
const PluginName = "cache"

// StateKey is where the cache handle (*Plugin) is published in the
// application state table.
const StateKey = "cache.client"

// ErrCacheMiss is returned by Get for absent keys.
var ErrCacheMiss = errors.New("cache miss")

const pingTimeout = 5 * time.Second

// Plugin manages the Redis client lifecycle.
type Plugin struct {
	cfg       config.CacheConfig
	logger    factory.Logger
	component *status.Component
	client    *redis.Client
}

// New creates an unloaded cache plugin.
func New() *Plugin {
	return &Plugin{}
}

// Name returns the plugin registration name.
func (p *Plugin) Name() string { return PluginName }

// OnLoad parses the connection URL, builds the client and registers the
// status component. Connectivity is proven at startup.
func (p *Plugin) OnLoad(app factory.Application) error {
	p.cfg = app.Config().Cache
	p.logger = app.Logger()

	component, err := app.StatusRegistry().Register(status.ComponentIdentity{
		Category: status.CategoryCache,
		Name:     PluginName,
	})
	if err != nil {
		return fmt.Errorf("registering status component: %w", err)
	}
	p.component = component

	opts, err := redis.ParseURL(p.cfg.URL)
	if err != nil {
		return fmt.Errorf("parsing cache url: %w", err)
	}
	if p.cfg.DB != 0 {
		opts.DB = p.cfg.DB
	}
	if p.cfg.PoolSize != 0 {
		opts.PoolSize = p.cfg.PoolSize
	}
	p.client = redis.NewClient(opts)

	if err := app.AddToState(StateKey, p); err != nil {
		return fmt.Errorf("publishing cache handle: %w", err)
	}

	p.logger.Info("cache plugin loaded", "db", opts.DB)
	return nil
}

// OnStartup pings the server and flips the component up.
func (p *Plugin) OnStartup(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := p.client.Ping(pingCtx).Err(); err != nil {
		p.component.Publish(status.Down())
		return fmt.Errorf("pinging cache: %w", err)
	}

	p.component.Publish(status.Up())
	p.logger.Info("cache plugin started")
	return nil
}

// OnShutdown closes the client and reports the component down.
func (p *Plugin) OnShutdown(_ context.Context) error {
	p.component.Publish(status.Down())
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("closing cache client: %w", err)
	}
	p.logger.Info("cache plugin stopped")
	return nil
}

// Set stores value under key with a TTL. A zero ttl stores without expiry.
func (p *Plugin) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := p.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("setting %q: %w", key, err)
	}
	return nil
}

// Get fetches the value under key, or ErrCacheMiss.
func (p *Plugin) Get(ctx context.Context, key string) (string, error) {
	value, err := p.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %q", ErrCacheMiss, key)
	}
	if err != nil {
		return "", fmt.Errorf("getting %q: %w", key, err)
	}
	return value, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (p *Plugin) Delete(ctx context.Context, key string) error {
	if err := p.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	return nil
}

// Client exposes the raw client for consumers needing richer commands.
func (p *Plugin) Client() *redis.Client { return p.client }
