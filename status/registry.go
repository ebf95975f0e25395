package status

import (
	"fmt"
	"sync"
)

// subscriberBuffer is the channel capacity handed to each subscriber.
// Publishing never blocks: if a subscriber falls this far behind, further
// updates are dropped for that subscriber until it drains (it still holds
// the latest values it did receive, and a fresh Subscribe replays current
// state).
const subscriberBuffer = 16

// Registry holds the reactive status cell of every registered component and
// computes the aggregate health and readiness of the process through its
// configured strategies.
//
// A single mutex serializes Publish against Aggregate and ByCategory, so an
// aggregation never observes a half-applied publish. Critical sections are
// synchronous: no I/O happens under the lock, and subscriber notification
// uses non-blocking sends.
type Registry struct {
	mu         sync.Mutex
	components map[ComponentIdentity]*Component

	healthStrategy    HealthStrategy
	readinessStrategy ReadinessStrategy
}

// Component is the handle returned by Register. It owns the component's
// current status cell and its subscriber list. Only the owning plugin
// publishes updates (single-writer contract); everything else reads through
// the registry's aggregate views.
type Component struct {
	identity ComponentIdentity
	registry *Registry

	// guarded by registry.mu
	current     Status
	subscribers []chan Status
}

// NewRegistry creates a registry with the given reduction strategies.
// Nil strategies default to the simple any-unhealthy / any-not-ready rules.
func NewRegistry(healthStrategy HealthStrategy, readinessStrategy ReadinessStrategy) *Registry {
	if healthStrategy == nil {
		healthStrategy = SimpleHealthStrategy{}
	}
	if readinessStrategy == nil {
		readinessStrategy = SimpleReadinessStrategy{}
	}
	return &Registry{
		components:        make(map[ComponentIdentity]*Component),
		healthStrategy:    healthStrategy,
		readinessStrategy: readinessStrategy,
	}
}

// Register creates a new component entry with initial Status(unhealthy,
// not_ready) and returns its handle. Registering the same identity twice
// returns ErrDuplicateComponent. There is no unregistration: components
// persist for the process lifetime.
func (r *Registry) Register(identity ComponentIdentity) (*Component, error) {
	if identity.Name == "" {
		return nil, fmt.Errorf("status registry: %w", ErrComponentNameEmpty)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.components[identity]; exists {
		return nil, fmt.Errorf("status registry: component %q: %w", identity, ErrDuplicateComponent)
	}

	c := &Component{
		identity: identity,
		registry: r,
		current:  Down(),
	}
	r.components[identity] = c
	return c, nil
}

// Identity returns the immutable identity this handle was registered under.
func (c *Component) Identity() ComponentIdentity {
	return c.identity
}

// Publish atomically replaces the component's current status and notifies
// all subscribers. Equal consecutive statuses are deduplicated to reduce
// notification load.
func (c *Component) Publish(status Status) {
	r := c.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	if status == c.current {
		return
	}
	c.current = status

	for _, sub := range c.subscribers {
		select {
		case sub <- status:
		default:
			// Subscriber buffer full; drop rather than block the publisher.
		}
	}
}

// Current returns the component's current status.
func (c *Component) Current() Status {
	r := c.registry
	r.mu.Lock()
	defer r.mu.Unlock()
	return c.current
}

// Subscribe returns a channel that immediately replays the component's
// current status and then receives every subsequent transition. A late
// subscriber observes the latest state without seeing intermediate
// publishes. Subscriptions live for the process lifetime, like the
// component itself.
func (c *Component) Subscribe() <-chan Status {
	r := c.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan Status, subscriberBuffer)
	ch <- c.current
	c.subscribers = append(c.subscribers, ch)
	return ch
}

// Aggregate applies the configured strategies over a consistent snapshot of
// all registered components.
func (r *Registry) Aggregate() Status {
	r.mu.Lock()
	statuses := make([]Status, 0, len(r.components))
	for _, c := range r.components {
		statuses = append(statuses, c.current)
	}
	r.mu.Unlock()

	return Status{
		Health:    r.healthStrategy.AggregateHealth(statuses),
		Readiness: r.readinessStrategy.AggregateReadiness(statuses),
	}
}

// ByCategory returns a point-in-time view of every component's status,
// grouped by category and keyed by component name. Intended for diagnostic
// and dashboard endpoints.
func (r *Registry) ByCategory() map[ComponentCategory]map[string]Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[ComponentCategory]map[string]Status)
	for id, c := range r.components {
		byName, ok := out[id.Category]
		if !ok {
			byName = make(map[string]Status)
			out[id.Category] = byName
		}
		byName[id.Name] = c.current
	}
	return out
}

// Len returns the number of registered components.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.components)
}
