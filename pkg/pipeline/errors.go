package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrConfiguration is returned when a graph or executor cannot be built.
	ErrConfiguration = errors.New("configuration error")
	// ErrModelTimeout is returned when a single model call exceeded the model timeout.
	ErrModelTimeout = errors.New("model call timed out")
	// ErrEmptyAnswer is returned when the response model produced no text.
	ErrEmptyAnswer = errors.New("model returned an empty answer")
)

// ConfigurationError names the setting that prevented a graph from being built.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return ErrConfiguration.Error()
	}
	msg := fmt.Sprintf("%s: %s %s", ErrConfiguration, e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

func (e *ConfigurationError) Unwrap() error { return e.Err }

// RetryableError reports a failed run that left the thread unchanged,
// so the same turn can be submitted again.
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string {
	if e == nil {
		return "retryable error"
	}
	return fmt.Sprintf("%s failed (retryable): %v", e.Op, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err, or an error it wraps, is a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
