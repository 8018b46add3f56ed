package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by configuration structs
type Validator interface {
	Validate() error
}

// Load decodes the YAML file at path into a new T and validates it. Unknown
// fields are rejected.
func Load[T any, PT interface {
	*T
	Validator
}](path string) (*T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	var c T
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err = dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err = PT(&c).Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
