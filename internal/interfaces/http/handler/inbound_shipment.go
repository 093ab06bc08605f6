package handler

import (
	"context"
	"net/http"
	"strconv"

	inboundapp "github.com/cardshellz/echelon/internal/application/inbound"
	"github.com/cardshellz/echelon/internal/domain/inbound"
	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/interfaces/http/dto"
	"github.com/cardshellz/echelon/internal/interfaces/http/middleware"
	"github.com/cardshellz/echelon/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ShipmentService is the application surface the handler drives
type ShipmentService interface {
	Create(ctx context.Context, req inboundapp.CreateShipmentRequest) (*inboundapp.ShipmentResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (*inboundapp.ShipmentResponse, error)
	List(ctx context.Context, filter inboundapp.ShipmentListFilter) ([]inboundapp.ShipmentListItemResponse, int64, error)
	UpdateDetails(ctx context.Context, id uuid.UUID, req inboundapp.UpdateShipmentDetailsRequest) (*inboundapp.ShipmentResponse, error)
	AddLine(ctx context.Context, id uuid.UUID, req inboundapp.AddLineRequest) (*inboundapp.AddLineResponse, error)
	UpdateLine(ctx context.Context, id, lineID uuid.UUID, req inboundapp.UpdateLineRequest) (*inboundapp.ShipmentResponse, error)
	RemoveLine(ctx context.Context, id, lineID uuid.UUID, actor string) (*inboundapp.ShipmentResponse, error)
	AddCost(ctx context.Context, id uuid.UUID, req inboundapp.CostRequest) (*inboundapp.ShipmentResponse, error)
	UpdateCost(ctx context.Context, id, costID uuid.UUID, req inboundapp.CostRequest) (*inboundapp.ShipmentResponse, error)
	RemoveCost(ctx context.Context, id, costID uuid.UUID, actor string) (*inboundapp.ShipmentResponse, error)
	Transition(ctx context.Context, id uuid.UUID, req inboundapp.TransitionRequest) (*inboundapp.TransitionResponse, error)
	RunAllocation(ctx context.Context, id uuid.UUID, req inboundapp.TransitionRequest) (*inboundapp.AllocationRunResponse, error)
	Finalize(ctx context.Context, id uuid.UUID, req inboundapp.TransitionRequest) (*inbound.LandedCostSnapshot, error)
	GetSnapshot(ctx context.Context, id uuid.UUID, revision int) (*inbound.LandedCostSnapshot, error)
}

var _ ShipmentService = (*inboundapp.ShipmentService)(nil)

// LifecycleBody is the optional body of the allocation and finalize endpoints
type LifecycleBody struct {
	Notes           string `json:"notes" binding:"max=500"`
	ExpectedVersion int    `json:"expected_version" binding:"min=0"`
}

// InboundShipmentHandler handles inbound shipment endpoints
type InboundShipmentHandler struct {
	BaseHandler
	shipments ShipmentService
}

// NewInboundShipmentHandler creates a new InboundShipmentHandler
func NewInboundShipmentHandler(shipments ShipmentService) *InboundShipmentHandler {
	return &InboundShipmentHandler{shipments: shipments}
}

// Routes returns the /inbound-shipments route group
func (h *InboundShipmentHandler) Routes() *router.DomainGroup {
	g := router.NewDomainGroup("inbound-shipments", "/inbound-shipments").
		POST("", h.Create).
		GET("", h.List).
		GET("/:id", h.GetByID).
		PATCH("/:id", h.UpdateDetails).
		POST("/:id/transitions", h.Transition).
		POST("/:id/allocation", h.RunAllocation).
		POST("/:id/finalize", h.Finalize).
		GET("/:id/snapshots/:revision", h.GetSnapshot)
	g.Group("lines", "/:id/lines").
		POST("", h.AddLine).
		PUT("/:line_id", h.UpdateLine).
		DELETE("/:line_id", h.RemoveLine)
	g.Group("costs", "/:id/costs").
		POST("", h.AddCost).
		PUT("/:cost_id", h.UpdateCost).
		DELETE("/:cost_id", h.RemoveCost)
	return g
}

// Create godoc
// @ID           createInboundShipment
// @Summary      Create an inbound shipment
// @Tags         inbound-shipments
// @Accept       json
// @Produce      json
// @Param        X-Actor header string false "Who performs the request"
// @Param        request body inboundapp.CreateShipmentRequest true "Shipment"
// @Success      201 {object} APIResponse[inboundapp.ShipmentResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /inbound-shipments [post]
func (h *InboundShipmentHandler) Create(c *gin.Context) {
	var req inboundapp.CreateShipmentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.Actor = middleware.GetActor(c)

	shipment, err := h.shipments.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, shipment)
}

// List godoc
// @ID           listInboundShipments
// @Summary      List inbound shipments
// @Tags         inbound-shipments
// @Produce      json
// @Param        search query string false "Number, container or B/L search"
// @Param        status query string false "Status filter"
// @Param        mode query string false "Shipment mode"
// @Param        purchase_order_id query string false "Shipments carrying lines of this PO" format(uuid)
// @Param        page query int false "Page" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Param        order_by query string false "Sort column" default(created_at)
// @Param        order_dir query string false "Sort direction" Enums(asc, desc)
// @Success      200 {object} APIResponse[[]inboundapp.ShipmentListItemResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Router       /inbound-shipments [get]
func (h *InboundShipmentHandler) List(c *gin.Context) {
	var filter inboundapp.ShipmentListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	items, total, err := h.shipments.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, size := pageOf(filter.Page, filter.PageSize)
	h.SuccessWithMeta(c, items, total, page, size)
}

// GetByID godoc
// @ID           getInboundShipment
// @Summary      Get an inbound shipment
// @Tags         inbound-shipments
// @Produce      json
// @Param        id path string true "Shipment ID" format(uuid)
// @Success      200 {object} APIResponse[inboundapp.ShipmentResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Router       /inbound-shipments/{id} [get]
func (h *InboundShipmentHandler) GetByID(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	shipment, err := h.shipments.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, shipment)
}

// UpdateDetails godoc
// @ID           updateInboundShipmentDetails
// @Summary      Update carrier and routing details
// @Tags         inbound-shipments
// @Accept       json
// @Produce      json
// @Param        id path string true "Shipment ID" format(uuid)
// @Param        request body inboundapp.UpdateShipmentDetailsRequest true "Details"
// @Success      200 {object} APIResponse[inboundapp.ShipmentResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /inbound-shipments/{id} [patch]
func (h *InboundShipmentHandler) UpdateDetails(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req inboundapp.UpdateShipmentDetailsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.Actor = middleware.GetActor(c)

	shipment, err := h.shipments.UpdateDetails(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, shipment)
}

// AddLine godoc
// @ID           addInboundShipmentLine
// @Summary      Add a line
// @Description  Links a PO line (purchase_order_line_id) or records a packing-list line (sku). Shipping more than the open quantity succeeds with a warning.
// @Tags         inbound-shipments
// @Accept       json
// @Produce      json
// @Param        id path string true "Shipment ID" format(uuid)
// @Param        request body inboundapp.AddLineRequest true "Line"
// @Success      201 {object} APIResponse[inboundapp.AddLineResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /inbound-shipments/{id}/lines [post]
func (h *InboundShipmentHandler) AddLine(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req inboundapp.AddLineRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.Actor = middleware.GetActor(c)

	result, err := h.shipments.AddLine(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// UpdateLine godoc
// @ID           updateInboundShipmentLine
// @Summary      Update quantity and measures of a line
// @Tags         inbound-shipments
// @Accept       json
// @Produce      json
// @Param        id path string true "Shipment ID" format(uuid)
// @Param        line_id path string true "Line ID" format(uuid)
// @Param        request body inboundapp.UpdateLineRequest true "Line"
// @Success      200 {object} APIResponse[inboundapp.ShipmentResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /inbound-shipments/{id}/lines/{line_id} [put]
func (h *InboundShipmentHandler) UpdateLine(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	lineID, ok := h.ParamUUID(c, "line_id")
	if !ok {
		return
	}
	var req inboundapp.UpdateLineRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.Actor = middleware.GetActor(c)

	shipment, err := h.shipments.UpdateLine(c.Request.Context(), id, lineID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, shipment)
}

// RemoveLine godoc
// @ID           removeInboundShipmentLine
// @Summary      Remove a line
// @Tags         inbound-shipments
// @Produce      json
// @Param        id path string true "Shipment ID" format(uuid)
// @Param        line_id path string true "Line ID" format(uuid)
// @Success      200 {object} APIResponse[inboundapp.ShipmentResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /inbound-shipments/{id}/lines/{line_id} [delete]
func (h *InboundShipmentHandler) RemoveLine(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	lineID, ok := h.ParamUUID(c, "line_id")
	if !ok {
		return
	}
	shipment, err := h.shipments.RemoveLine(c.Request.Context(), id, lineID, middleware.GetActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, shipment)
}

// AddCost godoc
// @ID           addInboundShipmentCost
// @Summary      Add a cost
// @Description  Adding, changing or removing a cost bumps the cost revision and makes any allocation stale
// @Tags         inbound-shipments
// @Accept       json
// @Produce      json
// @Param        id path string true "Shipment ID" format(uuid)
// @Param        request body inboundapp.CostRequest true "Cost"
// @Success      201 {object} APIResponse[inboundapp.ShipmentResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /inbound-shipments/{id}/costs [post]
func (h *InboundShipmentHandler) AddCost(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req inboundapp.CostRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.Actor = middleware.GetActor(c)

	shipment, err := h.shipments.AddCost(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, shipment)
}

// UpdateCost godoc
// @ID           updateInboundShipmentCost
// @Summary      Replace a cost
// @Tags         inbound-shipments
// @Accept       json
// @Produce      json
// @Param        id path string true "Shipment ID" format(uuid)
// @Param        cost_id path string true "Cost ID" format(uuid)
// @Param        request body inboundapp.CostRequest true "Cost"
// @Success      200 {object} APIResponse[inboundapp.ShipmentResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /inbound-shipments/{id}/costs/{cost_id} [put]
func (h *InboundShipmentHandler) UpdateCost(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	costID, ok := h.ParamUUID(c, "cost_id")
	if !ok {
		return
	}
	var req inboundapp.CostRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.Actor = middleware.GetActor(c)

	shipment, err := h.shipments.UpdateCost(c.Request.Context(), id, costID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, shipment)
}

// RemoveCost godoc
// @ID           removeInboundShipmentCost
// @Summary      Remove a cost
// @Tags         inbound-shipments
// @Produce      json
// @Param        id path string true "Shipment ID" format(uuid)
// @Param        cost_id path string true "Cost ID" format(uuid)
// @Success      200 {object} APIResponse[inboundapp.ShipmentResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /inbound-shipments/{id}/costs/{cost_id} [delete]
func (h *InboundShipmentHandler) RemoveCost(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	costID, ok := h.ParamUUID(c, "cost_id")
	if !ok {
		return
	}
	shipment, err := h.shipments.RemoveCost(c.Request.Context(), id, costID, middleware.GetActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, shipment)
}

// Transition godoc
// @ID           transitionInboundShipment
// @Summary      Apply a lifecycle action
// @Description  Actions: book, depart, arrive_port, clear_customs, deliver, start_costing, run_allocation, finalize, close, cancel
// @Tags         inbound-shipments
// @Accept       json
// @Produce      json
// @Param        id path string true "Shipment ID" format(uuid)
// @Param        X-Actor header string false "Who performs the request"
// @Param        request body inboundapp.TransitionRequest true "Action"
// @Success      200 {object} APIResponse[inboundapp.TransitionResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /inbound-shipments/{id}/transitions [post]
func (h *InboundShipmentHandler) Transition(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req inboundapp.TransitionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.Actor = middleware.GetActor(c)

	result, err := h.shipments.Transition(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// RunAllocation godoc
// @ID           runInboundShipmentAllocation
// @Summary      Allocate landed costs
// @Description  Spreads every cost over the lines by its allocation method, falling back to another basis when the requested one is all zero
// @Tags         inbound-shipments
// @Accept       json
// @Produce      json
// @Param        id path string true "Shipment ID" format(uuid)
// @Param        request body LifecycleBody false "Notes and expected version"
// @Success      200 {object} APIResponse[inboundapp.AllocationRunResponse]
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /inbound-shipments/{id}/allocation [post]
func (h *InboundShipmentHandler) RunAllocation(c *gin.Context) {
	id, req, ok := h.lifecycleRequest(c, inbound.ActionRunAllocation)
	if !ok {
		return
	}
	result, err := h.shipments.RunAllocation(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Finalize godoc
// @ID           finalizeInboundShipment
// @Summary      Finalize landed costs
// @Description  Freezes the current allocation into a snapshot. Fails with NOT_READY_TO_FINALIZE when costs changed since the last allocation.
// @Tags         inbound-shipments
// @Accept       json
// @Produce      json
// @Param        id path string true "Shipment ID" format(uuid)
// @Param        request body LifecycleBody false "Notes and expected version"
// @Success      200 {object} APIResponse[inbound.LandedCostSnapshot]
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /inbound-shipments/{id}/finalize [post]
func (h *InboundShipmentHandler) Finalize(c *gin.Context) {
	id, req, ok := h.lifecycleRequest(c, inbound.ActionFinalize)
	if !ok {
		return
	}
	snapshot, err := h.shipments.Finalize(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, snapshot)
}

// GetSnapshot godoc
// @ID           getLandedCostSnapshot
// @Summary      Read an archived landed-cost snapshot
// @Tags         inbound-shipments
// @Produce      json
// @Param        id path string true "Shipment ID" format(uuid)
// @Param        revision path int true "Allocation revision"
// @Success      200 {object} APIResponse[inbound.LandedCostSnapshot]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Router       /inbound-shipments/{id}/snapshots/{revision} [get]
func (h *InboundShipmentHandler) GetSnapshot(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	revision, err := strconv.Atoi(c.Param("revision"))
	if err != nil || revision < 1 {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(
			shared.CodeInvalidInput, "revision must be a positive integer", middleware.GetRequestID(c), nil))
		return
	}
	snapshot, err := h.shipments.GetSnapshot(c.Request.Context(), id, revision)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, snapshot)
}

// lifecycleRequest builds the transition request of an action-specific
// endpoint. The body is optional.
func (h *InboundShipmentHandler) lifecycleRequest(c *gin.Context, action inbound.ShipmentAction) (uuid.UUID, inboundapp.TransitionRequest, bool) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return uuid.Nil, inboundapp.TransitionRequest{}, false
	}
	var body LifecycleBody
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &body) {
		return uuid.Nil, inboundapp.TransitionRequest{}, false
	}
	return id, inboundapp.TransitionRequest{
		Action:          string(action),
		Notes:           body.Notes,
		ExpectedVersion: body.ExpectedVersion,
		Actor:           middleware.GetActor(c),
	}, true
}
