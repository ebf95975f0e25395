// Package status provides a reactive registry of per-component health and
// readiness state. Plugins register a component once, publish status
// transitions as they connect to their backends, and the registry derives
// the aggregate health and readiness of the process through pluggable
// reduction strategies.
package status

import "fmt"

// Health represents the health dimension of a component's status.
type Health int

const (
	// HealthUnhealthy indicates the component is not functioning properly.
	HealthUnhealthy Health = iota

	// HealthHealthy indicates the component is operating normally.
	HealthHealthy
)

// String returns the string representation of the health state.
func (h Health) String() string {
	if h == HealthHealthy {
		return "healthy"
	}
	return "unhealthy"
}

// Readiness represents the readiness dimension of a component's status.
type Readiness int

const (
	// ReadinessNotReady indicates the component cannot serve traffic yet.
	ReadinessNotReady Readiness = iota

	// ReadinessReady indicates the component is ready to serve traffic.
	ReadinessReady
)

// String returns the string representation of the readiness state.
func (r Readiness) String() string {
	if r == ReadinessReady {
		return "ready"
	}
	return "not_ready"
}

// Status is the immutable (health, readiness) pair published by a component.
// A fresh value is created on every transition; values are never mutated
// in place.
type Status struct {
	Health    Health    `json:"health"`
	Readiness Readiness `json:"readiness"`
}

// Up is the status of a fully operational component.
func Up() Status {
	return Status{Health: HealthHealthy, Readiness: ReadinessReady}
}

// Down is the status of a failed or not yet connected component. It is also
// the initial status of every registered component.
func Down() Status {
	return Status{Health: HealthUnhealthy, Readiness: ReadinessNotReady}
}

// String returns "health/readiness", e.g. "healthy/ready".
func (s Status) String() string {
	return fmt.Sprintf("%s/%s", s.Health, s.Readiness)
}

// ComponentCategory classifies a registered component.
type ComponentCategory string

const (
	CategoryApplication     ComponentCategory = "application"
	CategoryDatabase        ComponentCategory = "database"
	CategoryMessageBroker   ComponentCategory = "message-broker"
	CategoryHTTPClient      ComponentCategory = "http-client"
	CategoryCache           ComponentCategory = "cache"
	CategoryExternalService ComponentCategory = "external-service"
)

// ComponentIdentity uniquely identifies a registered component. It is
// immutable and used as the registry key: identities must be unique per
// process.
type ComponentIdentity struct {
	Category ComponentCategory `json:"category"`
	Name     string            `json:"name"`
}

// String returns "category:name".
func (id ComponentIdentity) String() string {
	return fmt.Sprintf("%s:%s", id.Category, id.Name)
}
