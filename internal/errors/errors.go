// Package errors provides structured error handling for scandeck
// operations. It defines error codes, typed errors for the store and
// simulation subsystems, and utilities for classifying errors.
//
// Lifecycle commands issued against a scan in the wrong state are NOT
// errors in this system: they are expected under UI/tick races and are
// silently ignored by the controller. The codes here cover genuinely
// exceptional conditions only.
package errors

import (
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeCanceled      ErrorCode = "CANCELED"

	// Record store errors.
	CodeScanNotFound     ErrorCode = "SCAN_NOT_FOUND"
	CodeTemplateNotFound ErrorCode = "TEMPLATE_NOT_FOUND"
	CodeFindingNotFound  ErrorCode = "FINDING_NOT_FOUND"

	// Simulation errors.
	CodeEngineStopped  ErrorCode = "ENGINE_STOPPED"
	CodeTickOverlap    ErrorCode = "TICK_OVERLAP"
	CodeTemplateParse  ErrorCode = "TEMPLATE_PARSE"
	CodeStateCorrupted ErrorCode = "STATE_CORRUPTED"

	// File system errors.
	CodeFileNotFound   ErrorCode = "FILE_NOT_FOUND"
	CodeFilePermission ErrorCode = "FILE_PERMISSION"
)

// StoreError represents an error raised by a record store operation.
type StoreError struct {
	Code    ErrorCode
	Message string
	ID      string
	Cause   error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("[%s] %s (id: %s)", e.Code, e.Message, e.ID)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NewStoreError creates a new store error with the specified code and message.
func NewStoreError(code ErrorCode, message, id string) *StoreError {
	return &StoreError{Code: code, Message: message, ID: id}
}

// SimulationError represents an error raised by the progress engine or
// the validation simulator.
type SimulationError struct {
	Code    ErrorCode
	Message string
	ScanID  string
	Cause   error
}

// Error implements the error interface.
func (e *SimulationError) Error() string {
	if e.ScanID != "" {
		return fmt.Sprintf("[%s] %s (scan: %s)", e.Code, e.Message, e.ScanID)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *SimulationError) Unwrap() error {
	return e.Cause
}

// NewSimulationError creates a new simulation error.
func NewSimulationError(code ErrorCode, message string) *SimulationError {
	return &SimulationError{Code: code, Message: message}
}

// WrapSimulationError wraps an existing error as a simulation error.
func WrapSimulationError(code ErrorCode, message string, err error) *SimulationError {
	return &SimulationError{Code: code, Message: message, Cause: err}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{Code: code, Message: message, Field: field, Value: value}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, err error) *ConfigError {
	return &ConfigError{Code: code, Message: message, Cause: err}
}

// Utility functions for common error operations

// GetCode extracts the error code from an error if it has one.
func GetCode(err error) ErrorCode {
	switch e := err.(type) {
	case *StoreError:
		return e.Code
	case *SimulationError:
		return e.Code
	case *ConfigError:
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// IsNotFound reports whether the error is any of the not-found codes.
// Handlers map these to 404 responses.
func IsNotFound(err error) bool {
	switch GetCode(err) {
	case CodeScanNotFound, CodeTemplateNotFound, CodeFindingNotFound, CodeFileNotFound:
		return true
	default:
		return false
	}
}

// Common error creation functions

// ErrScanNotFound creates an error for a missing scan id.
func ErrScanNotFound(id string) *StoreError {
	return NewStoreError(CodeScanNotFound, "Scan not found", id)
}

// ErrTemplateNotFound creates an error for a missing template id.
func ErrTemplateNotFound(id string) *StoreError {
	return NewStoreError(CodeTemplateNotFound, "Template not found", id)
}

// ErrFindingNotFound creates an error for a missing finding id.
func ErrFindingNotFound(id string) *StoreError {
	return NewStoreError(CodeFindingNotFound, "Finding not found", id)
}

// ErrConfigInvalid creates an error for invalid configuration.
func ErrConfigInvalid(field string, value interface{}) *ConfigError {
	return NewConfigFieldError(CodeValidation, "Invalid configuration value", field, value)
}

// ErrConfigMissing creates an error for missing required configuration.
func ErrConfigMissing(field string) *ConfigError {
	return NewConfigFieldError(CodeConfiguration, "Required configuration field missing", field, nil)
}
