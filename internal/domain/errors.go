package domain

import (
	"fmt"
)

// -----------------------------
// ConfigurationError
// -----------------------------

// ConfigurationError signals a malformed or unfetchable configuration
// payload. A stale-but-valid snapshot keeps serving reads while this is
// surfaced to the caller of the fetch operation.
type ConfigurationError struct {
	Message string
	Err     error
}

func NewConfigurationError(message string, err error) *ConfigurationError {
	return &ConfigurationError{Message: message, Err: err}
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func IsConfigurationError(err error) bool {
	_, ok := err.(*ConfigurationError)
	return ok
}

// -----------------------------
// NotFoundError
// -----------------------------

type NotFoundError struct {
	Resource string
	Key      string
}

func NewNotFoundError(resource, key string) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: key}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// -----------------------------
// TypeMismatchError
// -----------------------------

// TypeMismatchError signals that a caller requested an assignment of one
// type from a flag declared with another.
type TypeMismatchError struct {
	FlagKey   string
	Requested VariationType
	Declared  VariationType
}

func NewTypeMismatchError(flagKey string, requested, declared VariationType) *TypeMismatchError {
	return &TypeMismatchError{FlagKey: flagKey, Requested: requested, Declared: declared}
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("flag %s is declared %s, not %s", e.FlagKey, e.Declared, e.Requested)
}

func IsTypeMismatch(err error) bool {
	_, ok := err.(*TypeMismatchError)
	return ok
}
