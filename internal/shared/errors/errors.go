package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeNotOwner indicates the caller does not own the resource
	ErrorTypeNotOwner ErrorType = "not_owner"
	// ErrorTypeValidation indicates invalid input data
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeInvalidRequest indicates an unknown catalog key or undefined cost
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	// ErrorTypeTechRequirements indicates unmet technology prerequisites
	ErrorTypeTechRequirements ErrorType = "tech_requirements"
	// ErrorTypeInsufficientResources indicates the empire cannot afford the step
	ErrorTypeInsufficientResources ErrorType = "insufficient_resources"
	// ErrorTypeInsufficientEnergy indicates the projected energy balance would go negative
	ErrorTypeInsufficientEnergy ErrorType = "insufficient_energy"
	// ErrorTypeInsufficientPopulation indicates the projected population budget would go negative
	ErrorTypeInsufficientPopulation ErrorType = "insufficient_population"
	// ErrorTypeInsufficientArea indicates the projected area budget would go negative
	ErrorTypeInsufficientArea ErrorType = "insufficient_area"
	// ErrorTypeNoCapacity indicates the base has zero throughput for the queue type
	ErrorTypeNoCapacity ErrorType = "no_capacity"
	// ErrorTypeAlreadyInProgress indicates an idempotency conflict with an existing item
	ErrorTypeAlreadyInProgress ErrorType = "already_in_progress"
	// ErrorTypeConflict indicates a conflict with existing data
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeUnauthorized indicates authentication failure
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeMethodNotAllowed indicates an unsupported HTTP method
	ErrorTypeMethodNotAllowed ErrorType = "method_not_allowed"
)

// AppError is the base error type for application errors
type AppError struct {
	Type    ErrorType
	Message string
	Details map[string]any
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an error of the given type
func New(errorType ErrorType, message string) error {
	return &AppError{
		Type:    errorType,
		Message: message,
	}
}

// Newf creates an error of the given type with formatting
func Newf(errorType ErrorType, format string, args ...interface{}) error {
	return &AppError{
		Type:    errorType,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetails creates an error carrying structured details for programmatic handling
func WithDetails(errorType ErrorType, message string, details map[string]any) error {
	return &AppError{
		Type:    errorType,
		Message: message,
		Details: details,
	}
}

// NotFoundf creates a not found error with formatting
func NotFoundf(format string, args ...interface{}) error {
	return Newf(ErrorTypeNotFound, format, args...)
}

// Validation creates a validation error
func Validation(message string) error {
	return New(ErrorTypeValidation, message)
}

// Validationf creates a validation error with formatting
func Validationf(format string, args ...interface{}) error {
	return Newf(ErrorTypeValidation, format, args...)
}

// WrapValidation wraps an error as a validation error
func WrapValidation(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Err:     err,
	}
}

// Conflictf creates a conflict error with formatting
func Conflictf(format string, args ...interface{}) error {
	return Newf(ErrorTypeConflict, format, args...)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// Unauthorized creates an unauthorized error
func Unauthorized(message string) error {
	return New(ErrorTypeUnauthorized, message)
}

// MethodNotAllowed creates a method not allowed error
func MethodNotAllowed(method string) error {
	return Newf(ErrorTypeMethodNotAllowed, "method %s not allowed", method)
}

// GetType returns the error type of an error
func GetType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// GetDetails returns the structured details of an error, if any
func GetDetails(err error) map[string]any {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Details
	}
	return nil
}

// IsType reports whether the error carries the given type
func IsType(err error, errorType ErrorType) bool {
	return GetType(err) == errorType
}
