package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeEngineUnavailable ErrorType = "engine_unavailable"
	ErrorTypeEngine            ErrorType = "engine"
	ErrorTypeCancelled         ErrorType = "cancelled"
	ErrorTypeBusy              ErrorType = "busy"
	ErrorTypeConfig            ErrorType = "config"
	ErrorTypeIO                ErrorType = "io"
)

// ErrBusy is returned when a job is started while another one is in flight.
var ErrBusy = NewError(ErrorTypeBusy, "ghostscript is busy", nil)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Code    int // engine return code, zero when not applicable
	Err     error
}

func (e *DomainError) Error() string {
	msg := e.Message
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, msg)
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

func EngineUnavailableError(message string, err error) *DomainError {
	return NewError(ErrorTypeEngineUnavailable, message, err)
}

// EngineError reports a per-job failure carrying the engine return code.
func EngineError(message string, code int) *DomainError {
	e := NewError(ErrorTypeEngine, message, nil)
	e.Code = code
	return e
}

func CancelledError(message string, err error) *DomainError {
	return NewError(ErrorTypeCancelled, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}

// TypeOf returns the ErrorType carried by err, or "" when err is not a DomainError.
func TypeOf(err error) ErrorType {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type
	}
	return ""
}

// IsType reports whether err carries the given ErrorType.
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}
