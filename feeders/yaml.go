// Package feeders provides configuration feeders for the factory config
// loader. Feeders populate tagged config structs from files and from the
// environment.
package feeders

import (
	"fmt"

	"github.com/golobby/config/v3/pkg/feeder"
	"gopkg.in/yaml.v3"
)

// YamlFeeder is a feeder that reads YAML files.
type YamlFeeder struct {
	feeder.Yaml
}

// NewYamlFeeder creates a YamlFeeder reading from the given file.
func NewYamlFeeder(filePath string) YamlFeeder {
	return YamlFeeder{feeder.Yaml{Path: filePath}}
}

// FeedKey reads the YAML file and extracts a single top-level section into
// target. A missing section is not an error: the target keeps its defaults.
// Services use it through config.LoadSection for sections of their own that
// share the file with the root configuration.
func (y YamlFeeder) FeedKey(key string, target interface{}) error {
	var document map[string]interface{}
	if err := y.Feed(&document); err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	section, ok := document[key]
	if !ok {
		return nil
	}

	// Round-trip through YAML so nested maps land in target's typed fields.
	raw, err := yaml.Marshal(section)
	if err != nil {
		return fmt.Errorf("encoding section %q: %w", key, err)
	}
	if err := yaml.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decoding section %q: %w", key, err)
	}
	return nil
}
