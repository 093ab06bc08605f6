package handler

import (
	"context"

	tradeapp "github.com/cardshellz/echelon/internal/application/trade"
	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/interfaces/http/middleware"
	"github.com/cardshellz/echelon/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PurchaseOrderService is the application surface the handler drives
type PurchaseOrderService interface {
	Create(ctx context.Context, req tradeapp.CreatePurchaseOrderRequest) (*tradeapp.PurchaseOrderResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (*tradeapp.PurchaseOrderResponse, error)
	List(ctx context.Context, filter tradeapp.PurchaseOrderListFilter) ([]tradeapp.PurchaseOrderListItemResponse, int64, error)
	AddLine(ctx context.Context, id uuid.UUID, body tradeapp.LineInputBody) (*tradeapp.PurchaseOrderResponse, error)
	UpdateLine(ctx context.Context, id, lineID uuid.UUID, body tradeapp.LineInputBody) (*tradeapp.PurchaseOrderResponse, error)
	RemoveLine(ctx context.Context, id, lineID uuid.UUID) (*tradeapp.PurchaseOrderResponse, error)
	EditCharges(ctx context.Context, id uuid.UUID, req tradeapp.EditChargesRequest) (*tradeapp.PurchaseOrderResponse, error)
	Transition(ctx context.Context, id uuid.UUID, req tradeapp.TransitionRequest) (*tradeapp.TransitionResponse, error)
	ReportReceipt(ctx context.Context, id uuid.UUID, req tradeapp.ReportReceiptRequest) (*tradeapp.PurchaseOrderResponse, error)
}

var _ PurchaseOrderService = (*tradeapp.PurchaseOrderService)(nil)

// PurchaseOrderHandler handles purchase order endpoints
type PurchaseOrderHandler struct {
	BaseHandler
	orders PurchaseOrderService
}

// NewPurchaseOrderHandler creates a new PurchaseOrderHandler
func NewPurchaseOrderHandler(orders PurchaseOrderService) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{orders: orders}
}

// Routes returns the /purchase-orders route group
func (h *PurchaseOrderHandler) Routes() *router.DomainGroup {
	return router.NewDomainGroup("purchase-orders", "/purchase-orders").
		POST("", h.Create).
		GET("", h.List).
		GET("/:id", h.GetByID).
		POST("/:id/lines", h.AddLine).
		PUT("/:id/lines/:line_id", h.UpdateLine).
		DELETE("/:id/lines/:line_id", h.RemoveLine).
		PATCH("/:id/charges", h.EditCharges).
		POST("/:id/transitions", h.Transition).
		POST("/:id/receipts", h.ReportReceipt)
}

// Create godoc
// @ID           createPurchaseOrder
// @Summary      Create a purchase order
// @Description  Creates a draft purchase order, optionally with lines
// @Tags         purchase-orders
// @Accept       json
// @Produce      json
// @Param        X-Actor header string false "Who performs the request"
// @Param        request body tradeapp.CreatePurchaseOrderRequest true "Purchase order"
// @Success      201 {object} APIResponse[tradeapp.PurchaseOrderResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /purchase-orders [post]
func (h *PurchaseOrderHandler) Create(c *gin.Context) {
	var req tradeapp.CreatePurchaseOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.Actor = middleware.GetActor(c)

	order, err := h.orders.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, order)
}

// List godoc
// @ID           listPurchaseOrders
// @Summary      List purchase orders
// @Tags         purchase-orders
// @Produce      json
// @Param        search query string false "Number search"
// @Param        status query string false "Status filter"
// @Param        vendor_id query string false "Vendor" format(uuid)
// @Param        page query int false "Page" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Param        order_by query string false "Sort column" default(created_at)
// @Param        order_dir query string false "Sort direction" Enums(asc, desc)
// @Success      200 {object} APIResponse[[]tradeapp.PurchaseOrderListItemResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /purchase-orders [get]
func (h *PurchaseOrderHandler) List(c *gin.Context) {
	var filter tradeapp.PurchaseOrderListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	items, total, err := h.orders.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, size := pageOf(filter.Page, filter.PageSize)
	h.SuccessWithMeta(c, items, total, page, size)
}

// GetByID godoc
// @ID           getPurchaseOrder
// @Summary      Get a purchase order
// @Tags         purchase-orders
// @Produce      json
// @Param        id path string true "Purchase order ID" format(uuid)
// @Success      200 {object} APIResponse[tradeapp.PurchaseOrderResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /purchase-orders/{id} [get]
func (h *PurchaseOrderHandler) GetByID(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// AddLine godoc
// @ID           addPurchaseOrderLine
// @Summary      Add a line
// @Description  Appends a line to a draft purchase order
// @Tags         purchase-orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Purchase order ID" format(uuid)
// @Param        request body tradeapp.LineInputBody true "Line"
// @Success      201 {object} APIResponse[tradeapp.PurchaseOrderResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /purchase-orders/{id}/lines [post]
func (h *PurchaseOrderHandler) AddLine(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var body tradeapp.LineInputBody
	if !h.BindJSON(c, &body) {
		return
	}
	order, err := h.orders.AddLine(c.Request.Context(), id, body)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, order)
}

// UpdateLine godoc
// @ID           updatePurchaseOrderLine
// @Summary      Replace a line
// @Tags         purchase-orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Purchase order ID" format(uuid)
// @Param        line_id path string true "Line ID" format(uuid)
// @Param        request body tradeapp.LineInputBody true "Line"
// @Success      200 {object} APIResponse[tradeapp.PurchaseOrderResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /purchase-orders/{id}/lines/{line_id} [put]
func (h *PurchaseOrderHandler) UpdateLine(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	lineID, ok := h.ParamUUID(c, "line_id")
	if !ok {
		return
	}
	var body tradeapp.LineInputBody
	if !h.BindJSON(c, &body) {
		return
	}
	order, err := h.orders.UpdateLine(c.Request.Context(), id, lineID, body)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// RemoveLine godoc
// @ID           removePurchaseOrderLine
// @Summary      Remove a line
// @Tags         purchase-orders
// @Produce      json
// @Param        id path string true "Purchase order ID" format(uuid)
// @Param        line_id path string true "Line ID" format(uuid)
// @Success      200 {object} APIResponse[tradeapp.PurchaseOrderResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /purchase-orders/{id}/lines/{line_id} [delete]
func (h *PurchaseOrderHandler) RemoveLine(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	lineID, ok := h.ParamUUID(c, "line_id")
	if !ok {
		return
	}
	order, err := h.orders.RemoveLine(c.Request.Context(), id, lineID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// EditCharges godoc
// @ID           editPurchaseOrderCharges
// @Summary      Edit header charges
// @Description  Changes discount, tax, shipping or incoterm. Tax and shipping are rejected with CHARGE_NOT_APPLICABLE when the incoterm places them on the vendor.
// @Tags         purchase-orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Purchase order ID" format(uuid)
// @Param        request body tradeapp.EditChargesRequest true "Charges"
// @Success      200 {object} APIResponse[tradeapp.PurchaseOrderResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /purchase-orders/{id}/charges [patch]
func (h *PurchaseOrderHandler) EditCharges(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req tradeapp.EditChargesRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.Actor = middleware.GetActor(c)

	order, err := h.orders.EditCharges(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Transition godoc
// @ID           transitionPurchaseOrder
// @Summary      Apply a lifecycle action
// @Description  Actions: submit, return_to_draft, approve, send, acknowledge, create_receipt, close, cancel
// @Tags         purchase-orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Purchase order ID" format(uuid)
// @Param        X-Actor header string false "Who performs the request"
// @Param        request body tradeapp.TransitionRequest true "Action"
// @Success      200 {object} APIResponse[tradeapp.TransitionResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /purchase-orders/{id}/transitions [post]
func (h *PurchaseOrderHandler) Transition(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req tradeapp.TransitionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.Actor = middleware.GetActor(c)

	result, err := h.orders.Transition(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ReportReceipt godoc
// @ID           reportPurchaseOrderReceipt
// @Summary      Record received quantities
// @Description  Updates received and damaged quantities per line; the order advances to partially_received or received accordingly
// @Tags         purchase-orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Purchase order ID" format(uuid)
// @Param        request body tradeapp.ReportReceiptRequest true "Receipts"
// @Success      200 {object} APIResponse[tradeapp.PurchaseOrderResponse]
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse
// @Failure      422 {object} dto.ErrorResponse
// @Router       /purchase-orders/{id}/receipts [post]
func (h *PurchaseOrderHandler) ReportReceipt(c *gin.Context) {
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req tradeapp.ReportReceiptRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.Actor = middleware.GetActor(c)

	order, err := h.orders.ReportReceipt(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

func pageOf(page, size int) (int, int) {
	def := shared.DefaultFilter()
	if page <= 0 {
		page = def.Page
	}
	if size <= 0 {
		size = def.PageSize
	}
	return page, size
}
