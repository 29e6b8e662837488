package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeValidation         ErrorType = "validation"
	ErrorTypeRateLimit          ErrorType = "rate_limit"
	ErrorTypeUpstreamClassifier ErrorType = "upstream_classifier"
	ErrorTypeUpstreamCompletion ErrorType = "upstream_completion"
	ErrorTypeDataLoad           ErrorType = "data_load"
	ErrorTypeConfig             ErrorType = "config"
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func RateLimitExceeded(message string, err error) *DomainError {
	return NewError(ErrorTypeRateLimit, message, err)
}

func UpstreamClassifierError(message string, err error) *DomainError {
	return NewError(ErrorTypeUpstreamClassifier, message, err)
}

func UpstreamCompletionError(message string, err error) *DomainError {
	return NewError(ErrorTypeUpstreamCompletion, message, err)
}

func DataLoadError(message string, err error) *DomainError {
	return NewError(ErrorTypeDataLoad, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

// IsType reports whether err wraps a DomainError of the given type.
func IsType(err error, errType ErrorType) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type == errType
	}
	return false
}
