package factory

import (
	"errors"
)

// Application errors
var (
	// Plugin registration errors
	ErrPluginNil       = errors.New("plugin is nil")
	ErrPluginNameEmpty = errors.New("plugin name cannot be empty")
	ErrDuplicatePlugin = errors.New("plugin already registered")

	// State side-table errors
	ErrDuplicateStateKey = errors.New("state key already present")
	ErrMissingStateKey   = errors.New("state key not found")

	// Lifecycle errors
	ErrApplicationAlreadyStarted = errors.New("application already started")
	ErrApplicationNotStarted     = errors.New("application not started")
	ErrPluginsNotLoaded          = errors.New("plugins not loaded")

	// Construction errors
	ErrConfigNil = errors.New("config is nil")
	ErrLoggerNil = errors.New("logger is nil")

	// Observer errors
	ErrObserverNil = errors.New("observer is nil")
)
