package domain

import (
	"fmt"
)

// ErrorCode gives a ProviderError additional specificity.
type ErrorCode string

const (
	ErrCodeNotInitialized ErrorCode = "not_initialized"
	ErrCodeNotImplemented ErrorCode = "not_implemented"
	ErrCodeRateLimited    ErrorCode = "rate_limited"
	ErrCodeAPIError       ErrorCode = "api_error"
)

// ConfigurationError reports an invalid setup. It is returned at
// construction time, never from the capture path.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration: %s: %s", e.Field, e.Message)
	}
	return "configuration: " + e.Message
}

// NewConfigurationError creates a configuration error for field.
func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: message}
}

// StorageError reports a connect, save or query failure.
type StorageError struct {
	Op      string // connect, disconnect, save, query
	Message string
	Err     error
}

func (e *StorageError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("storage %s: %s", e.Op, msg)
	}
	return "storage: " + msg
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err as a StorageError for op.
func NewStorageError(op, message string, err error) *StorageError {
	return &StorageError{Op: op, Message: message, Err: err}
}

// ProviderError reports a failure inside a provider call. The monitor
// passes these through untouched.
type ProviderError struct {
	Provider   string
	Code       ErrorCode
	Message    string
	StatusCode int // upstream HTTP status, if any
	Err        error
}

func (e *ProviderError) Error() string {
	prefix := e.Provider
	if prefix == "" {
		prefix = "provider"
	}
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", prefix, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a provider error.
func NewProviderError(provider, message string) *ProviderError {
	return &ProviderError{Provider: provider, Message: message}
}

// WithCode sets the error code.
func (e *ProviderError) WithCode(code ErrorCode) *ProviderError {
	e.Code = code
	return e
}

// WithStatusCode records the upstream HTTP status.
func (e *ProviderError) WithStatusCode(status int) *ProviderError {
	e.StatusCode = status
	return e
}

// WithCause records the underlying error.
func (e *ProviderError) WithCause(err error) *ProviderError {
	e.Err = err
	return e
}
