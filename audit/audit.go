// Package audit records who did what as CloudEvents on the message broker.
// The service wraps any publisher with the event bus plugin's Publish shape,
// so tests can capture envelopes without a broker.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	factory "github.com/DeerHide/go-factory-utilities"
)

// EventType is the CloudEvents type of every audit envelope.
const EventType = "com.deerhide.factory.audit.recorded"

// DefaultSubject is the broker subject audit envelopes are published on.
const DefaultSubject = "audit.events"

// Service errors
var (
	ErrPublisherNil = errors.New("publisher is nil")
	ErrActionEmpty  = errors.New("action cannot be empty")
	ErrActorEmpty   = errors.New("actor cannot be empty")
)

// Publisher publishes a payload on a broker subject. The event bus plugin
// satisfies it.
type Publisher interface {
	Publish(subject string, payload any) error
}

// Entry is the audit record carried as CloudEvents data.
type Entry struct {
	Action     string         `json:"action"`
	Actor      string         `json:"actor"`
	Resource   string         `json:"resource,omitempty"`
	Outcome    string         `json:"outcome"`
	RecordedAt time.Time      `json:"recorded_at"`
	Detail     map[string]any `json:"detail,omitempty"`
}

// Service emits audit envelopes for a single source service.
type Service struct {
	publisher Publisher
	source    string
	subject   string
	logger    factory.Logger
}

// Option adjusts service construction.
type Option func(*Service)

// WithSubject overrides the broker subject audit envelopes go to.
func WithSubject(subject string) Option {
	return func(s *Service) { s.subject = subject }
}

// NewService builds an audit service publishing on behalf of serviceName.
func NewService(publisher Publisher, serviceName string, logger factory.Logger, opts ...Option) (*Service, error) {
	if publisher == nil {
		return nil, ErrPublisherNil
	}
	if logger == nil {
		logger = factory.NewSlogLogger(nil)
	}
	s := &Service{
		publisher: publisher,
		source:    "factory." + serviceName,
		subject:   DefaultSubject,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Record publishes one audit envelope. The entry's timestamp is set here so
// callers cannot backdate records.
func (s *Service) Record(_ context.Context, entry Entry) error {
	if entry.Action == "" {
		return ErrActionEmpty
	}
	if entry.Actor == "" {
		return ErrActorEmpty
	}
	if entry.Outcome == "" {
		entry.Outcome = "success"
	}
	entry.RecordedAt = time.Now().UTC()

	event := factory.NewCloudEvent(EventType, s.source, entry, map[string]any{
		"action": entry.Action,
	})
	if err := s.publisher.Publish(s.subject, event); err != nil {
		return fmt.Errorf("publishing audit event: %w", err)
	}

	s.logger.Debug("audit event recorded",
		"action", entry.Action, "actor", entry.Actor, "event_id", event.ID())
	return nil
}
