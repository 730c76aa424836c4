package domain

import (
	"errors"
	"fmt"
)

// ErrInsufficientHistory marks a long-range window whose lookback starts
// before the earliest event in the dataset. Callers record such cells as
// undefined rather than as a misleadingly low count.
var ErrInsufficientHistory = errors.New("insufficient history for window")

// ErrDuplicateKey is returned when two events share a sequence key where
// uniqueness is required.
var ErrDuplicateKey = errors.New("duplicate sequence key")

// ConfigurationError reports a missing or invalid setting. It is raised
// before any work is dispatched and is never retried.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s %s", e.Field, e.Reason)
}

// WorkerFailure reports that computing one event's counts failed, aborting
// the whole window.
type WorkerFailure struct {
	Key        SequenceKey
	WindowDays int
	Err        error
}

func (e *WorkerFailure) Error() string {
	return fmt.Sprintf("window %d: event %s: %v", e.WindowDays, e.Key, e.Err)
}

func (e *WorkerFailure) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
