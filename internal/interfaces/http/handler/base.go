package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/cardshellz/echelon/internal/domain/inbound"
	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/domain/shared/statemachine"
	"github.com/cardshellz/echelon/internal/infrastructure/logger"
	"github.com/cardshellz/echelon/internal/interfaces/http/dto"
	"github.com/cardshellz/echelon/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// TransitionErrorDetails is the details payload of INVALID_TRANSITION errors
type TransitionErrorDetails struct {
	From      string `json:"from" example:"draft"`
	Attempted string `json:"attempted" example:"close"`
	Reason    string `json:"reason,omitempty"`
}

// AllocationErrorDetails is the details payload of allocation failures
type AllocationErrorDetails struct {
	CostID   uuid.UUID `json:"cost_id"`
	CostType string    `json:"cost_type" example:"freight"`
	Method   string    `json:"method" example:"by_volume"`
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// BadRequest sends a 400 response with the BAD_REQUEST code
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.ErrCodeBadRequest, message, middleware.GetRequestID(c), nil))
}

// BindJSON binds the body and writes the validation envelope on failure
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// BindQuery binds query parameters and writes the validation envelope on failure
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// ParamUUID parses a uuid path parameter, answering 400 when malformed
func (h *BaseHandler) ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(
			shared.CodeInvalidInput,
			fmt.Sprintf("%s must be a UUID", name),
			middleware.GetRequestID(c),
			nil,
		))
		return uuid.Nil, false
	}
	return id, true
}

// HandleError maps an application error onto the error envelope. Coded
// errors keep their code and message; anything else is logged and answered
// with a generic 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	requestID := middleware.GetRequestID(c)

	code := shared.CodeOf(err)
	if code == "" {
		logger.GetGinLogger(c, zap.NewNop()).Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(
			dto.ErrCodeInternal, "An unexpected error occurred", requestID, nil))
		return
	}

	message, details := describe(err)
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponse(code, message, requestID, details))
}

func describe(err error) (string, any) {
	var transition *statemachine.InvalidTransitionError
	if errors.As(err, &transition) {
		return transition.Error(), TransitionErrorDetails{
			From:      transition.From,
			Attempted: transition.Attempted,
			Reason:    transition.Reason,
		}
	}
	var allocation *inbound.AllocationError
	if errors.As(err, &allocation) {
		return allocation.Error(), AllocationErrorDetails{
			CostID:   allocation.CostID,
			CostType: string(allocation.CostType),
			Method:   string(allocation.Method),
		}
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Message, nil
	}
	return err.Error(), nil
}
