package models

import (
	"errors"
	"fmt"
)

// ConfigError reports an invalid assignment state detected before any job
// transition. No job is created when one is raised.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Reason
}

// NewConfigError builds a ConfigError with a formatted reason
func NewConfigError(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// ConnectionError wraps a source fetch or target DB connect failure,
// preserving the original driver message.
type ConnectionError struct {
	Target string // "web source" or the data source id
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ExtractionError is a per-URL failure during a multi-page run. It is caught
// per URL; the job continues.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ErrAlreadyRunning is returned by the scheduler single-flight guard
var ErrAlreadyRunning = errors.New("assignment is already running")

// ErrNotFound is the repository's uniform missing-entity error
var ErrNotFound = errors.New("not found")

// IsConfigError reports whether err is (or wraps) a ConfigError
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
