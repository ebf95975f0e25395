package feeders

import "github.com/golobby/config/v3/pkg/feeder"

// EnvFeeder is a feeder that reads environment variables into `env`-tagged
// struct fields. It runs after the YAML feeder so the environment always
// wins over file values.
type EnvFeeder = feeder.Env

// NewEnvFeeder creates a new EnvFeeder.
func NewEnvFeeder() EnvFeeder {
	return EnvFeeder{}
}
