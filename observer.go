// Package factory provides Observer pattern interfaces for event-driven
// communication. Events use the CloudEvents specification for standardized
// format and interoperability with external systems.
package factory

import (
	"context"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Observer defines the interface for objects that want to be notified of
// lifecycle events. Observers register with a Subject and are notified when
// events occur. Observers should handle events quickly to avoid blocking
// other observers.
type Observer interface {
	// OnEvent is called when an event the observer is interested in occurs.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer, used for
	// registration tracking and debugging.
	ObserverID() string
}

// Subject defines the interface for objects that can be observed.
type Subject interface {
	// RegisterObserver adds an observer to receive notifications.
	// If eventTypes is empty the observer receives all events.
	RegisterObserver(observer Observer, eventTypes ...string) error

	// UnregisterObserver removes an observer. Idempotent.
	UnregisterObserver(observer Observer) error

	// NotifyObservers sends an event to all registered observers.
	// Observer errors are logged, never propagated to the emitter.
	NotifyObservers(ctx context.Context, event cloudevents.Event) error
}

// CloudEvent type constants emitted by the core shell.
// Following the CloudEvents specification these use reverse domain notation.
const (
	// Plugin lifecycle events
	EventTypePluginRegistered = "com.deerhide.factory.plugin.registered"
	EventTypePluginLoaded     = "com.deerhide.factory.plugin.loaded"
	EventTypePluginStarted    = "com.deerhide.factory.plugin.started"
	EventTypePluginStopped    = "com.deerhide.factory.plugin.stopped"
	EventTypePluginFailed     = "com.deerhide.factory.plugin.failed"

	// Application lifecycle events
	EventTypeApplicationStarted = "com.deerhide.factory.application.started"
	EventTypeApplicationStopped = "com.deerhide.factory.application.stopped"
)

// EventSourceApplication is the CloudEvents source attribute for events
// emitted by the shell itself.
const EventSourceApplication = "factory.application"

// observerRegistration tracks a registered observer and its type filter.
type observerRegistration struct {
	observer     Observer
	eventTypes   []string
	registeredAt time.Time
}

// subject is the Subject implementation owned by the App. Notification is
// synchronous and in registration order; a misbehaving observer only affects
// its own error, which is logged and dropped.
type subject struct {
	mu        sync.RWMutex
	observers []observerRegistration
	logger    Logger
}

func newSubject(logger Logger) *subject {
	return &subject{logger: logger}
}

func (s *subject) RegisterObserver(observer Observer, eventTypes ...string) error {
	if observer == nil {
		return ErrObserverNil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, observerRegistration{
		observer:     observer,
		eventTypes:   eventTypes,
		registeredAt: time.Now(),
	})
	return nil
}

func (s *subject) UnregisterObserver(observer Observer) error {
	if observer == nil {
		return ErrObserverNil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.observers[:0]
	for _, reg := range s.observers {
		if reg.observer.ObserverID() != observer.ObserverID() {
			kept = append(kept, reg)
		}
	}
	s.observers = kept
	return nil
}

func (s *subject) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	s.mu.RLock()
	observers := make([]observerRegistration, len(s.observers))
	copy(observers, s.observers)
	s.mu.RUnlock()

	for _, reg := range observers {
		if !reg.interestedIn(event.Type()) {
			continue
		}
		if err := reg.observer.OnEvent(ctx, event); err != nil {
			s.logger.Warn("observer failed to handle event",
				"observer", reg.observer.ObserverID(),
				"eventType", event.Type(),
				"error", err)
		}
	}
	return nil
}

func (r observerRegistration) interestedIn(eventType string) bool {
	if len(r.eventTypes) == 0 {
		return true
	}
	for _, t := range r.eventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}
