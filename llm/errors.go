package llm

import "errors"

// Class categorizes an LLM call failure for retry decisions.
type Class int

const (
	// ClassTransient marks errors that may succeed on retry (network
	// failures, rate limits, 5xx responses).
	ClassTransient Class = iota
	// ClassFatal marks errors that will not succeed on retry (auth
	// failures, malformed requests, unknown providers).
	ClassFatal
)

// ClassifiedError wraps an error with a retry classification.
type ClassifiedError struct {
	Class Class
	Err   error
}

func (e *ClassifiedError) Error() string {
	return e.Err.Error()
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient (retryable).
func NewTransientError(err error) error {
	return &ClassifiedError{Class: ClassTransient, Err: err}
}

// NewFatalError wraps an error as fatal (non-retryable).
func NewFatalError(err error) error {
	return &ClassifiedError{Class: ClassFatal, Err: err}
}

// IsTransient reports whether the error should be retried.
func IsTransient(err error) bool {
	var ce *ClassifiedError
	return errors.As(err, &ce) && ce.Class == ClassTransient
}

// IsFatal reports whether the error should not be retried.
func IsFatal(err error) bool {
	var ce *ClassifiedError
	return errors.As(err, &ce) && ce.Class == ClassFatal
}
