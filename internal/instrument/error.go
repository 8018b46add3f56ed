package instrument

import "errors"

// ErrNoResponse is returned when the instrument closes the connection or
// answers with an empty line
var ErrNoResponse = errors.New("no response from instrument")

// ConfigError is a custom error type for configuration errors
type ConfigError struct {
	msg string
}

func NewConfigError(msg string) *ConfigError {
	return &ConfigError{msg}
}

func (e *ConfigError) Error() string {
	return e.msg
}
