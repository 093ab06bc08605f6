package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	tradeapp "github.com/cardshellz/echelon/internal/application/trade"
	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/domain/shared/statemachine"
	"github.com/cardshellz/echelon/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPurchaseOrderService struct {
	mock.Mock
}

func (m *MockPurchaseOrderService) order(args mock.Arguments) (*tradeapp.PurchaseOrderResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tradeapp.PurchaseOrderResponse), args.Error(1)
}

func (m *MockPurchaseOrderService) Create(ctx context.Context, req tradeapp.CreatePurchaseOrderRequest) (*tradeapp.PurchaseOrderResponse, error) {
	return m.order(m.Called(ctx, req))
}

func (m *MockPurchaseOrderService) GetByID(ctx context.Context, id uuid.UUID) (*tradeapp.PurchaseOrderResponse, error) {
	return m.order(m.Called(ctx, id))
}

func (m *MockPurchaseOrderService) List(ctx context.Context, filter tradeapp.PurchaseOrderListFilter) ([]tradeapp.PurchaseOrderListItemResponse, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]tradeapp.PurchaseOrderListItemResponse), args.Get(1).(int64), args.Error(2)
}

func (m *MockPurchaseOrderService) AddLine(ctx context.Context, id uuid.UUID, body tradeapp.LineInputBody) (*tradeapp.PurchaseOrderResponse, error) {
	return m.order(m.Called(ctx, id, body))
}

func (m *MockPurchaseOrderService) UpdateLine(ctx context.Context, id, lineID uuid.UUID, body tradeapp.LineInputBody) (*tradeapp.PurchaseOrderResponse, error) {
	return m.order(m.Called(ctx, id, lineID, body))
}

func (m *MockPurchaseOrderService) RemoveLine(ctx context.Context, id, lineID uuid.UUID) (*tradeapp.PurchaseOrderResponse, error) {
	return m.order(m.Called(ctx, id, lineID))
}

func (m *MockPurchaseOrderService) EditCharges(ctx context.Context, id uuid.UUID, req tradeapp.EditChargesRequest) (*tradeapp.PurchaseOrderResponse, error) {
	return m.order(m.Called(ctx, id, req))
}

func (m *MockPurchaseOrderService) Transition(ctx context.Context, id uuid.UUID, req tradeapp.TransitionRequest) (*tradeapp.TransitionResponse, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tradeapp.TransitionResponse), args.Error(1)
}

func (m *MockPurchaseOrderService) ReportReceipt(ctx context.Context, id uuid.UUID, req tradeapp.ReportReceiptRequest) (*tradeapp.PurchaseOrderResponse, error) {
	return m.order(m.Called(ctx, id, req))
}

func poEngine(svc *MockPurchaseOrderService) func(t *testing.T, method, path string, body any) envelopeRecorder {
	engine := newTestEngine(NewPurchaseOrderHandler(svc).Routes(), NewIncotermHandler().Routes())
	return func(t *testing.T, method, path string, body any) envelopeRecorder {
		w := doJSON(t, engine, method, path, body)
		return envelopeRecorder{code: w.Code, w: w}
	}
}

func TestPurchaseOrderHandler_Create(t *testing.T) {
	svc := new(MockPurchaseOrderService)
	call := poEngine(svc)
	vendorID := uuid.New()
	orderID := uuid.New()

	svc.On("Create", mock.Anything, mock.MatchedBy(func(req tradeapp.CreatePurchaseOrderRequest) bool {
		return req.Number == "PO-1001" && req.VendorID == vendorID && req.Incoterm == "fob" && req.Actor == "buyer@example.com"
	})).Return(&tradeapp.PurchaseOrderResponse{ID: orderID, Number: "PO-1001", Status: "draft"}, nil)

	r := call(t, http.MethodPost, "/api/v1/purchase-orders", map[string]any{
		"number":    "PO-1001",
		"vendor_id": vendorID,
		"incoterm":  "fob",
	})

	require.Equal(t, http.StatusCreated, r.code, r.w.Body.String())
	var order tradeapp.PurchaseOrderResponse
	require.NoError(t, json.Unmarshal(decode(t, r.w).Data, &order))
	assert.Equal(t, orderID, order.ID)
	assert.Equal(t, "draft", order.Status)
	svc.AssertExpectations(t)
}

func TestPurchaseOrderHandler_CreateValidation(t *testing.T) {
	svc := new(MockPurchaseOrderService)
	call := poEngine(svc)

	tests := []struct {
		name  string
		body  any
		field string
	}{
		{"missing number", map[string]any{"vendor_id": uuid.New()}, "number"},
		{"unknown incoterm", map[string]any{"number": "PO-1", "vendor_id": uuid.New(), "incoterm": "XYZ"}, "incoterm"},
		{"bad priority", map[string]any{"number": "PO-1", "vendor_id": uuid.New(), "priority": "whenever"}, "priority"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := call(t, http.MethodPost, "/api/v1/purchase-orders", tt.body)
			env := assertErrorCode(t, r.w, http.StatusBadRequest, "VALIDATION_ERROR")
			assert.Contains(t, string(env.Error.Details), `"field":"`+tt.field+`"`)
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		r := call(t, http.MethodPost, "/api/v1/purchase-orders", `{"number":`)
		assertErrorCode(t, r.w, http.StatusBadRequest, "VALIDATION_ERROR")
	})
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPurchaseOrderHandler_GetByID(t *testing.T) {
	svc := new(MockPurchaseOrderService)
	call := poEngine(svc)
	id := uuid.New()

	svc.On("GetByID", mock.Anything, id).Return(&tradeapp.PurchaseOrderResponse{ID: id}, nil)
	svc.On("GetByID", mock.Anything, mock.Anything).Return(nil, shared.NewDomainError(shared.CodeNotFound, "purchase order not found"))

	assert.Equal(t, http.StatusOK, call(t, http.MethodGet, "/api/v1/purchase-orders/"+id.String(), nil).code)
	assertErrorCode(t, call(t, http.MethodGet, "/api/v1/purchase-orders/"+uuid.NewString(), nil).w, http.StatusNotFound, "NOT_FOUND")
	assertErrorCode(t, call(t, http.MethodGet, "/api/v1/purchase-orders/not-a-uuid", nil).w, http.StatusBadRequest, "INVALID_INPUT")
}

func TestPurchaseOrderHandler_List(t *testing.T) {
	svc := new(MockPurchaseOrderService)
	call := poEngine(svc)
	vendorID := uuid.New()

	svc.On("List", mock.Anything, mock.MatchedBy(func(f tradeapp.PurchaseOrderListFilter) bool {
		return f.Status == "sent" && f.VendorID == vendorID.String() && f.PageSize == 5
	})).Return([]tradeapp.PurchaseOrderListItemResponse{{Number: "PO-1"}, {Number: "PO-2"}}, int64(12), nil)

	r := call(t, http.MethodGet, "/api/v1/purchase-orders?status=sent&vendor_id="+vendorID.String()+"&page_size=5", nil)

	require.Equal(t, http.StatusOK, r.code, r.w.Body.String())
	env := decode(t, r.w)
	require.NotNil(t, env.Meta)
	assert.Equal(t, int64(12), env.Meta.Total)
	assert.Equal(t, 1, env.Meta.Page)
	assert.Equal(t, 5, env.Meta.PageSize)

	bad := call(t, http.MethodGet, "/api/v1/purchase-orders?order_dir=sideways", nil)
	assertErrorCode(t, bad.w, http.StatusBadRequest, "VALIDATION_ERROR")

	badVendor := call(t, http.MethodGet, "/api/v1/purchase-orders?vendor_id=acme", nil)
	assertErrorCode(t, badVendor.w, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestPurchaseOrderHandler_Lines(t *testing.T) {
	svc := new(MockPurchaseOrderService)
	call := poEngine(svc)
	id, lineID, productID := uuid.New(), uuid.New(), uuid.New()

	svc.On("AddLine", mock.Anything, id, mock.MatchedBy(func(b tradeapp.LineInputBody) bool {
		return b.ProductID == productID && b.OrderQty == 10 && b.UnitCost != nil && *b.UnitCost == "4.25"
	})).Return(&tradeapp.PurchaseOrderResponse{ID: id}, nil)
	svc.On("UpdateLine", mock.Anything, id, lineID, mock.Anything).Return(&tradeapp.PurchaseOrderResponse{ID: id}, nil)
	svc.On("RemoveLine", mock.Anything, id, lineID).Return(nil, shared.NewDomainError(shared.CodeInvalidState, "lines can only change while draft"))

	base := "/api/v1/purchase-orders/" + id.String() + "/lines"
	r := call(t, http.MethodPost, base, map[string]any{"product_id": productID, "order_qty": 10, "unit_cost": "4.25"})
	assert.Equal(t, http.StatusCreated, r.code, r.w.Body.String())

	r = call(t, http.MethodPut, base+"/"+lineID.String(), map[string]any{"product_id": productID, "order_qty": 3})
	assert.Equal(t, http.StatusOK, r.code, r.w.Body.String())

	r = call(t, http.MethodDelete, base+"/"+lineID.String(), nil)
	assertErrorCode(t, r.w, http.StatusUnprocessableEntity, "INVALID_STATE")

	r = call(t, http.MethodPost, base, map[string]any{"order_qty": -1})
	assertErrorCode(t, r.w, http.StatusBadRequest, "VALIDATION_ERROR")
	svc.AssertExpectations(t)
}

func TestPurchaseOrderHandler_EditCharges(t *testing.T) {
	svc := new(MockPurchaseOrderService)
	call := poEngine(svc)
	id := uuid.New()

	svc.On("EditCharges", mock.Anything, id, mock.MatchedBy(func(r tradeapp.EditChargesRequest) bool {
		return r.Tax != nil && *r.Tax == "12.00" && r.ExpectedVersion == 3 && r.Actor == "buyer@example.com"
	})).Return(nil, shared.ErrChargeNotApplicable)

	r := call(t, http.MethodPatch, "/api/v1/purchase-orders/"+id.String()+"/charges", map[string]any{
		"tax":              "12.00",
		"expected_version": 3,
	})

	assertErrorCode(t, r.w, http.StatusUnprocessableEntity, "CHARGE_NOT_APPLICABLE")
	svc.AssertExpectations(t)
}

func TestPurchaseOrderHandler_Transition(t *testing.T) {
	svc := new(MockPurchaseOrderService)
	call := poEngine(svc)
	id := uuid.New()
	path := "/api/v1/purchase-orders/" + id.String() + "/transitions"

	svc.On("Transition", mock.Anything, id, mock.MatchedBy(func(r tradeapp.TransitionRequest) bool {
		return r.Action == string(trade.ActionSubmit)
	})).Return(&tradeapp.TransitionResponse{From: "draft", To: "pending_approval", Action: "submit"}, nil)
	svc.On("Transition", mock.Anything, id, mock.MatchedBy(func(r tradeapp.TransitionRequest) bool {
		return r.Action == string(trade.ActionClose)
	})).Return(nil, &statemachine.InvalidTransitionError{From: "draft", Attempted: "close"})
	svc.On("Transition", mock.Anything, id, mock.MatchedBy(func(r tradeapp.TransitionRequest) bool {
		return r.Action == string(trade.ActionApprove)
	})).Return(nil, shared.ErrConcurrentModification)

	r := call(t, http.MethodPost, path, map[string]any{"action": "submit"})
	require.Equal(t, http.StatusOK, r.code, r.w.Body.String())
	var result tradeapp.TransitionResponse
	require.NoError(t, json.Unmarshal(decode(t, r.w).Data, &result))
	assert.Equal(t, "pending_approval", result.To)

	r = call(t, http.MethodPost, path, map[string]any{"action": "close"})
	env := assertErrorCode(t, r.w, http.StatusUnprocessableEntity, "INVALID_TRANSITION")
	assert.JSONEq(t, `{"from":"draft","attempted":"close"}`, string(env.Error.Details))

	r = call(t, http.MethodPost, path, map[string]any{"action": "approve", "expected_version": 1})
	assertErrorCode(t, r.w, http.StatusConflict, "CONCURRENT_MODIFICATION")

	r = call(t, http.MethodPost, path, map[string]any{})
	assertErrorCode(t, r.w, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestPurchaseOrderHandler_ReportReceipt(t *testing.T) {
	svc := new(MockPurchaseOrderService)
	call := poEngine(svc)
	id, lineID := uuid.New(), uuid.New()

	svc.On("ReportReceipt", mock.Anything, id, mock.MatchedBy(func(r tradeapp.ReportReceiptRequest) bool {
		return len(r.Lines) == 1 && r.Lines[0].LineID == lineID && r.Lines[0].ReceivedQty == 8 && r.Lines[0].DamagedQty == 1
	})).Return(&tradeapp.PurchaseOrderResponse{ID: id, Status: "partially_received"}, nil)

	path := "/api/v1/purchase-orders/" + id.String() + "/receipts"
	r := call(t, http.MethodPost, path, map[string]any{
		"lines": []map[string]any{{"line_id": lineID, "received_qty": 8, "damaged_qty": 1}},
	})
	assert.Equal(t, http.StatusOK, r.code, r.w.Body.String())

	r = call(t, http.MethodPost, path, map[string]any{"lines": []any{}})
	assertErrorCode(t, r.w, http.StatusBadRequest, "VALIDATION_ERROR")
	svc.AssertExpectations(t)
}

func TestIncotermHandler_List(t *testing.T) {
	call := poEngine(new(MockPurchaseOrderService))

	r := call(t, http.MethodGet, "/api/v1/incoterms", nil)

	require.Equal(t, http.StatusOK, r.code)
	var table []tradeapp.IncotermResponse
	require.NoError(t, json.Unmarshal(decode(t, r.w).Data, &table))
	assert.Len(t, table, len(trade.AllIncoterms()))
	byCode := map[string]tradeapp.IncotermResponse{}
	for _, row := range table {
		byCode[row.Code] = row
	}
	assert.False(t, byCode["EXW"].ShippingApplicable)
	assert.False(t, byCode["EXW"].TaxApplicable)
	assert.True(t, byCode["CIF"].ShippingApplicable)
	assert.False(t, byCode["CIF"].TaxApplicable)
	assert.True(t, byCode["DDP"].TaxApplicable)
}
