package dto

import (
	"net/http"

	"github.com/cardshellz/echelon/internal/domain/shared"
)

// Transport-level error codes. Domain codes come from the shared package.
const (
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeRouteNotFound   = "ROUTE_NOT_FOUND"
	ErrCodeForbidden       = "FORBIDDEN"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// lifecycle and allocation rules -> 422
	shared.CodeInvalidTransition:   http.StatusUnprocessableEntity,
	shared.CodeNotReadyToFinalize:  http.StatusUnprocessableEntity,
	shared.CodeChargeNotApplicable: http.StatusUnprocessableEntity,
	shared.CodeAllocationNoBasis:   http.StatusUnprocessableEntity,
	shared.CodeInvalidState:        http.StatusUnprocessableEntity,

	shared.CodeConcurrentModification: http.StatusConflict,
	shared.CodeAlreadyExists:          http.StatusConflict,
	shared.CodeEntityLocked:           http.StatusConflict,

	shared.CodeNotFound:  http.StatusNotFound,
	ErrCodeRouteNotFound: http.StatusNotFound,

	shared.CodeInvalidInput: http.StatusBadRequest,
	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeValidation:       http.StatusBadRequest,

	ErrCodeForbidden:       http.StatusForbidden,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeInternal:        http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes are 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
