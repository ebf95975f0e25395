package status

import "errors"

// Registry errors
var (
	// ErrDuplicateComponent is returned when a component identity is
	// registered twice. Identities must be unique per process.
	ErrDuplicateComponent = errors.New("component already registered")

	// ErrComponentNameEmpty is returned when registering an identity
	// without a name.
	ErrComponentNameEmpty = errors.New("component name cannot be empty")
)
