package dto

import "github.com/cardshellz/echelon/internal/domain/shared"

// Response is the envelope of every API response
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

// ErrorInfo describes a failed request
type ErrorInfo struct {
	Code      string `json:"code" example:"INVALID_TRANSITION"`
	Message   string `json:"message" example:"cannot close from draft"`
	RequestID string `json:"request_id,omitempty" example:"5f1c0e7a9b2d4c3e8f6a1b2c3d4e5f60"`
	Details   any    `json:"details,omitempty"`
}

// ValidationDetail names one field that failed binding validation
type ValidationDetail struct {
	Field   string `json:"field" example:"number"`
	Message string `json:"message" example:"This field is required"`
}

// Meta carries pagination for list responses
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// ErrorResponse documents the error envelope
// @Description Standard error response
type ErrorResponse struct {
	Success bool       `json:"success" example:"false"`
	Error   *ErrorInfo `json:"error"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data any) Response {
	return Response{Success: true, Data: data}
}

// NewSuccessResponseWithMeta creates a success response with pagination meta
func NewSuccessResponseWithMeta(data any, total int64, page, pageSize int) Response {
	return Response{
		Success: true,
		Data:    data,
		Meta: &Meta{
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: shared.TotalPages(total, pageSize),
		},
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(code, message, requestID string, details any) Response {
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      code,
			Message:   message,
			RequestID: requestID,
			Details:   details,
		},
	}
}

// NewValidationErrorResponse reports field-level binding failures. Without
// details the field is omitted rather than rendered as null.
func NewValidationErrorResponse(message, requestID string, details []ValidationDetail) Response {
	if len(details) == 0 {
		return NewErrorResponse(ErrCodeValidation, message, requestID, nil)
	}
	return NewErrorResponse(ErrCodeValidation, message, requestID, details)
}
