package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError carrying the same code, so that
// errors.Is(err, ErrNotFound) matches any NOT_FOUND error regardless of message.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes shared by the purchasing and inbound lifecycles
const (
	CodeNotFound               = "NOT_FOUND"
	CodeInvalidInput           = "INVALID_INPUT"
	CodeInvalidState           = "INVALID_STATE"
	CodeAlreadyExists          = "ALREADY_EXISTS"
	CodeInvalidTransition      = "INVALID_TRANSITION"
	CodeChargeNotApplicable    = "CHARGE_NOT_APPLICABLE"
	CodeAllocationNoBasis      = "ALLOCATION_NO_BASIS"
	CodeNotReadyToFinalize     = "NOT_READY_TO_FINALIZE"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeEntityLocked           = "ENTITY_LOCKED"
)

// Common domain errors
var (
	ErrNotFound               = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidInput           = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrInvalidState           = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrAlreadyExists          = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInvalidTransition      = NewDomainError(CodeInvalidTransition, "Transition not allowed")
	ErrChargeNotApplicable    = NewDomainError(CodeChargeNotApplicable, "Charge is not applicable under the current incoterm")
	ErrNotReadyToFinalize     = NewDomainError(CodeNotReadyToFinalize, "Landed costs are missing or stale")
	ErrConcurrentModification = NewDomainError(CodeConcurrentModification, "Resource was modified by another process")
	ErrEntityLocked           = NewDomainError(CodeEntityLocked, "Another operation is in progress for this resource")
)

// CodeOf extracts the domain error code from err, or "" when err carries none.
// Errors that implement Code() string (such as transition errors) are also honored.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}
