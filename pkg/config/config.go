// Package config loads YAML configuration files. ${VAR} references are
// expanded from the environment before decoding.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by config types that check themselves after
// decoding.
type Validator interface {
	Validate() error
}

// Load reads filename and decodes it into target.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read config %s: %w", filename, err)
	}
	if err := Decode(data, target); err != nil {
		return fmt.Errorf("config %s: %w", filename, err)
	}
	return nil
}

// Decode expands environment references in data, unmarshals it over target
// and validates the result. Keys absent from data keep target's values, so
// target is usually pre-filled with defaults.
func Decode[T any](data []byte, target *T) error {
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), target); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	v, ok := any(target).(Validator)
	if !ok {
		return nil
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("invalid: %w", err)
	}
	return nil
}
