package capture

import "fmt"

// ConfigError is a custom error type for configuration errors
type ConfigError struct {
	msg string
}

func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	return e.msg
}

// ParseError describes a capture line that could not be decoded
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid %s '%s'", e.Field, e.Value)
	}
	return fmt.Sprintf("invalid %s '%s': %s", e.Field, e.Value, e.Err.Error())
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
