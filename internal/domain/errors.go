package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors of the interaction tracking domain. Stores and services
// wrap them with context; callers test with errors.Is.
var (
	ErrNotFound             = errors.New("not found")
	ErrAlreadyExists        = errors.New("already exists")
	ErrDuplicateInteraction = errors.New("interaction already exists for this drug pair and effect")
	ErrInvalidPair          = errors.New("invalid drug pair")
	ErrInvalidTransition    = errors.New("invalid suggestion state transition")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrDrugInUse            = errors.New("drug is referenced by interactions or timelines")
	ErrUnauthenticated      = errors.New("unauthenticated")
)

// DomainError represents a standardized error response
type DomainError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeAlreadyExists        = "ALREADY_EXISTS"
	ErrCodeDuplicateInteraction = "DUPLICATE_INTERACTION"
	ErrCodeInvalidPair          = "INVALID_PAIR"
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodePermissionDenied     = "PERMISSION_DENIED"
	ErrCodeDrugInUse            = "DRUG_IN_USE"
	ErrCodeUnauthenticated      = "UNAUTHENTICATED"
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeRateLimit            = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal             = "INTERNAL_SERVER_ERROR"
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewDomainError creates a new DomainError with timestamp
func NewDomainError(code, message, details, requestID string) *DomainError {
	return &DomainError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// ErrorCode maps an error onto its taxonomy code. Unknown errors are
// reported as internal.
func ErrorCode(err error) string {
	var verr *ValidationError
	var derr *DomainError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &derr):
		return derr.Code
	case errors.As(err, &verr):
		return ErrCodeValidation
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrDuplicateInteraction):
		return ErrCodeDuplicateInteraction
	case errors.Is(err, ErrAlreadyExists):
		return ErrCodeAlreadyExists
	case errors.Is(err, ErrInvalidPair):
		return ErrCodeInvalidPair
	case errors.Is(err, ErrInvalidTransition):
		return ErrCodeInvalidTransition
	case errors.Is(err, ErrPermissionDenied):
		return ErrCodePermissionDenied
	case errors.Is(err, ErrDrugInUse):
		return ErrCodeDrugInUse
	case errors.Is(err, ErrUnauthenticated):
		return ErrCodeUnauthenticated
	default:
		return ErrCodeInternal
	}
}
