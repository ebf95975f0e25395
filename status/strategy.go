package status

// HealthStrategy reduces the health of all registered components into the
// aggregate health of the process. Strategies are fixed per registry at
// construction time, so weighted or quorum policies can be swapped in
// without changing the registry.
type HealthStrategy interface {
	AggregateHealth(statuses []Status) Health
}

// ReadinessStrategy reduces the readiness of all registered components into
// the aggregate readiness of the process.
type ReadinessStrategy interface {
	AggregateReadiness(statuses []Status) Readiness
}

// SimpleHealthStrategy reports unhealthy if any component is unhealthy.
type SimpleHealthStrategy struct{}

func (SimpleHealthStrategy) AggregateHealth(statuses []Status) Health {
	for _, s := range statuses {
		if s.Health == HealthUnhealthy {
			return HealthUnhealthy
		}
	}
	return HealthHealthy
}

// SimpleReadinessStrategy reports not ready if any component is not ready.
type SimpleReadinessStrategy struct{}

func (SimpleReadinessStrategy) AggregateReadiness(statuses []Status) Readiness {
	for _, s := range statuses {
		if s.Readiness == ReadinessNotReady {
			return ReadinessNotReady
		}
	}
	return ReadinessReady
}
