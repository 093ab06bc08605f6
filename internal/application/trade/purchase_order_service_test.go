package trade

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/domain/shared/statemachine"
	"github.com/cardshellz/echelon/internal/domain/shared/valueobject"
	"github.com/cardshellz/echelon/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockPurchaseOrderRepository is a mock implementation of PurchaseOrderRepository
type MockPurchaseOrderRepository struct {
	mock.Mock
}

func (m *MockPurchaseOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*trade.PurchaseOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*trade.PurchaseOrder), args.Error(1)
}

func (m *MockPurchaseOrderRepository) FindByNumber(ctx context.Context, number string) (*trade.PurchaseOrder, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*trade.PurchaseOrder), args.Error(1)
}

func (m *MockPurchaseOrderRepository) FindAll(ctx context.Context, filter trade.PurchaseOrderFilter) ([]trade.PurchaseOrder, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]trade.PurchaseOrder), args.Get(1).(int64), args.Error(2)
}

func (m *MockPurchaseOrderRepository) Create(ctx context.Context, order *trade.PurchaseOrder) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockPurchaseOrderRepository) SaveWithLock(ctx context.Context, order *trade.PurchaseOrder) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockPurchaseOrderRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	args := m.Called(ctx, number)
	return args.Bool(0), args.Error(1)
}

// recordingLocker is an EntityLocker that remembers lock and release calls
type recordingLocker struct {
	mu       sync.Mutex
	locked   []uuid.UUID
	released int
	err      error
}

func (l *recordingLocker) Lock(ctx context.Context, aggregateType string, id uuid.UUID) (func(context.Context) error, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	l.locked = append(l.locked, id)
	l.mu.Unlock()
	return func(context.Context) error {
		l.mu.Lock()
		l.released++
		l.mu.Unlock()
		return nil
	}, nil
}

var testNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

func newTestService() (*PurchaseOrderService, *MockPurchaseOrderRepository, *recordingLocker) {
	repo := new(MockPurchaseOrderRepository)
	locker := &recordingLocker{}
	svc := NewPurchaseOrderService(repo, locker, zap.NewNop())
	svc.SetClock(testClock)
	return svc, repo, locker
}

func draftOrder(t *testing.T) *trade.PurchaseOrder {
	t.Helper()
	order, err := trade.NewPurchaseOrder(trade.NewPurchaseOrderInput{
		Number:   "PO-1001",
		VendorID: uuid.New(),
		Actor:    "buyer",
		Clock:    testClock,
	})
	require.NoError(t, err)
	cost := valueobject.MustParseUnitCost("2.50")
	_, err = order.AddLine(trade.LineInput{ProductID: uuid.New(), OrderQty: 10, UnitCost: &cost})
	require.NoError(t, err)
	order.ClearDomainEvents()
	return order
}

func approvedOrder(t *testing.T) *trade.PurchaseOrder {
	t.Helper()
	order := draftOrder(t)
	for _, a := range []trade.PurchaseOrderAction{trade.ActionSubmit, trade.ActionApprove} {
		_, err := order.ApplyTransition(a, trade.TransitionInput{Actor: "buyer"})
		require.NoError(t, err)
	}
	order.ClearDomainEvents()
	return order
}

func TestPurchaseOrderService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates draft with lines", func(t *testing.T) {
		svc, repo, _ := newTestService()
		repo.On("ExistsByNumber", mock.Anything, "PO-2001").Return(false, nil)
		repo.On("Create", mock.Anything, mock.AnythingOfType("*trade.PurchaseOrder")).Return(nil)

		cost := "0.05"
		resp, err := svc.Create(ctx, CreatePurchaseOrderRequest{
			Number:   "PO-2001",
			VendorID: uuid.New(),
			Incoterm: "fob",
			Lines:    []LineInputBody{{ProductID: uuid.New(), OrderQty: 100, UnitCost: &cost}},
			Actor:    "buyer",
		})

		require.NoError(t, err)
		assert.Equal(t, "draft", resp.Status)
		assert.Equal(t, "5.00", resp.Subtotal)
		assert.Equal(t, "FOB", *resp.Incoterm)
		assert.Equal(t, []string{"submit", "cancel"}, resp.AvailableActions)
		assert.False(t, resp.CanEditCharge.Tax)
		assert.Equal(t, testNow, resp.CreatedAt)
		repo.AssertExpectations(t)
	})

	t.Run("rejects duplicate number", func(t *testing.T) {
		svc, repo, _ := newTestService()
		repo.On("ExistsByNumber", mock.Anything, "PO-2001").Return(true, nil)

		_, err := svc.Create(ctx, CreatePurchaseOrderRequest{Number: "PO-2001", VendorID: uuid.New()})

		assert.Equal(t, shared.CodeAlreadyExists, shared.CodeOf(err))
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("rejects bad unit cost", func(t *testing.T) {
		svc, repo, _ := newTestService()
		repo.On("ExistsByNumber", mock.Anything, "PO-2002").Return(false, nil)

		cost := "0.0000001"
		_, err := svc.Create(ctx, CreatePurchaseOrderRequest{
			Number:   "PO-2002",
			VendorID: uuid.New(),
			Lines:    []LineInputBody{{ProductID: uuid.New(), OrderQty: 1, UnitCost: &cost}},
		})

		assert.Equal(t, shared.CodeInvalidInput, shared.CodeOf(err))
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("wraps repository failure", func(t *testing.T) {
		svc, repo, _ := newTestService()
		dbErr := errors.New("connection refused")
		repo.On("ExistsByNumber", mock.Anything, "PO-2003").Return(false, nil)
		repo.On("Create", mock.Anything, mock.Anything).Return(dbErr)

		_, err := svc.Create(ctx, CreatePurchaseOrderRequest{Number: "PO-2003", VendorID: uuid.New()})

		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "PO-2003")
	})
}

func TestPurchaseOrderService_Transition(t *testing.T) {
	ctx := context.Background()

	t.Run("send raises vendor notice under lock", func(t *testing.T) {
		svc, repo, locker := newTestService()
		order := approvedOrder(t)
		repo.On("FindByID", mock.Anything, order.ID).Return(order, nil)
		repo.On("SaveWithLock", mock.Anything, order).Return(nil)

		resp, err := svc.Transition(ctx, order.ID, TransitionRequest{Action: "send", Actor: "buyer", ExpectedVersion: order.Version})

		require.NoError(t, err)
		assert.Equal(t, "approved", resp.From)
		assert.Equal(t, "sent", resp.To)
		assert.Equal(t, []string{trade.EventTypePurchaseOrderStatusChanged, trade.EventTypeVendorNotificationRequested}, resp.Effects)
		assert.Equal(t, []uuid.UUID{order.ID}, locker.locked)
		assert.Equal(t, 1, locker.released)
		assert.Len(t, order.GetDomainEvents(), 2)
		repo.AssertExpectations(t)
	})

	t.Run("close on draft is an invalid transition", func(t *testing.T) {
		svc, repo, locker := newTestService()
		order := draftOrder(t)
		repo.On("FindByID", mock.Anything, order.ID).Return(order, nil)

		_, err := svc.Transition(ctx, order.ID, TransitionRequest{Action: "close"})

		var invalid *statemachine.InvalidTransitionError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "draft", invalid.From)
		assert.Equal(t, "close", invalid.Attempted)
		assert.Equal(t, 1, locker.released)
		repo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
	})

	t.Run("unknown action", func(t *testing.T) {
		svc, repo, _ := newTestService()

		_, err := svc.Transition(ctx, uuid.New(), TransitionRequest{Action: "teleport"})

		assert.Equal(t, shared.CodeInvalidInput, shared.CodeOf(err))
		repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})

	t.Run("stale expected version", func(t *testing.T) {
		svc, repo, _ := newTestService()
		order := approvedOrder(t)
		repo.On("FindByID", mock.Anything, order.ID).Return(order, nil)

		_, err := svc.Transition(ctx, order.ID, TransitionRequest{Action: "send", ExpectedVersion: order.Version + 1})

		assert.ErrorIs(t, err, shared.ErrConcurrentModification)
		assert.Equal(t, trade.PurchaseOrderStatusApproved, order.Status)
		repo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
	})

	t.Run("store detects concurrent write", func(t *testing.T) {
		svc, repo, _ := newTestService()
		order := approvedOrder(t)
		repo.On("FindByID", mock.Anything, order.ID).Return(order, nil)
		repo.On("SaveWithLock", mock.Anything, order).Return(shared.ErrConcurrentModification)

		_, err := svc.Transition(ctx, order.ID, TransitionRequest{Action: "send"})

		assert.ErrorIs(t, err, shared.ErrConcurrentModification)
		assert.Equal(t, shared.CodeConcurrentModification, shared.CodeOf(err))
	})

	t.Run("lock not acquired", func(t *testing.T) {
		svc, repo, locker := newTestService()
		locker.err = shared.ErrEntityLocked

		_, err := svc.Transition(ctx, uuid.New(), TransitionRequest{Action: "send"})

		assert.ErrorIs(t, err, shared.ErrEntityLocked)
		repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})

	t.Run("not found", func(t *testing.T) {
		svc, repo, _ := newTestService()
		id := uuid.New()
		repo.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)

		_, err := svc.Transition(ctx, id, TransitionRequest{Action: "submit"})

		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestPurchaseOrderService_EditCharges(t *testing.T) {
	ctx := context.Background()

	t.Run("tax refused under FOB", func(t *testing.T) {
		svc, repo, _ := newTestService()
		order := draftOrder(t)
		fob := trade.IncotermFOB
		order.Incoterm = &fob
		repo.On("FindByID", mock.Anything, order.ID).Return(order, nil)

		tax := "10.00"
		_, err := svc.EditCharges(ctx, order.ID, EditChargesRequest{Tax: &tax})

		assert.Equal(t, shared.CodeChargeNotApplicable, shared.CodeOf(err))
		assert.True(t, order.Tax.IsZero())
		repo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
	})

	t.Run("tax and shipping under DDP", func(t *testing.T) {
		svc, repo, _ := newTestService()
		order := draftOrder(t)
		repo.On("FindByID", mock.Anything, order.ID).Return(order, nil)
		repo.On("SaveWithLock", mock.Anything, order).Return(nil)

		tax, shipping, term := "10.00", "3.50", "DDP"
		resp, err := svc.EditCharges(ctx, order.ID, EditChargesRequest{Tax: &tax, ShippingCost: &shipping, Incoterm: &term, Actor: "buyer"})

		require.NoError(t, err)
		assert.Equal(t, "25.00", resp.Subtotal)
		assert.Equal(t, "38.50", resp.Total)
		assert.Equal(t, "edit_charges", resp.History[len(resp.History)-1].Action)
	})

	t.Run("unparseable amount", func(t *testing.T) {
		svc, repo, _ := newTestService()
		bad := "ten"

		_, err := svc.EditCharges(ctx, uuid.New(), EditChargesRequest{Discount: &bad})

		assert.Equal(t, shared.CodeInvalidInput, shared.CodeOf(err))
		repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})
}

func TestPurchaseOrderService_Lines(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()
	order := draftOrder(t)
	repo.On("FindByID", mock.Anything, order.ID).Return(order, nil)
	repo.On("SaveWithLock", mock.Anything, order).Return(nil)

	cost := "1.25"
	resp, err := svc.AddLine(ctx, order.ID, LineInputBody{ProductID: uuid.New(), OrderQty: 4, UnitCost: &cost})
	require.NoError(t, err)
	require.Len(t, resp.Lines, 2)
	assert.Equal(t, "30.00", resp.Subtotal)

	lineID := resp.Lines[1].ID
	resp, err = svc.UpdateLine(ctx, order.ID, lineID, LineInputBody{ProductID: resp.Lines[1].ProductID, OrderQty: 8, UnitCost: &cost})
	require.NoError(t, err)
	assert.Equal(t, "35.00", resp.Subtotal)

	resp, err = svc.RemoveLine(ctx, order.ID, lineID)
	require.NoError(t, err)
	assert.Len(t, resp.Lines, 1)

	_, err = svc.RemoveLine(ctx, order.ID, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPurchaseOrderService_ReportReceipt(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()
	order := approvedOrder(t)
	_, err := order.ApplyTransition(trade.ActionSend, trade.TransitionInput{})
	require.NoError(t, err)
	repo.On("FindByID", mock.Anything, order.ID).Return(order, nil)
	repo.On("SaveWithLock", mock.Anything, order).Return(nil)

	lineID := order.Lines[0].ID
	resp, err := svc.ReportReceipt(ctx, order.ID, ReportReceiptRequest{Lines: []trade.LineReceipt{{LineID: lineID, ReceivedQty: 4}}})
	require.NoError(t, err)
	assert.Equal(t, "partially_received", resp.Status)

	resp, err = svc.ReportReceipt(ctx, order.ID, ReportReceiptRequest{Lines: []trade.LineReceipt{{LineID: lineID, ReceivedQty: 6}}})
	require.NoError(t, err)
	assert.Equal(t, "received", resp.Status)
	assert.Equal(t, []string{"close"}, resp.AvailableActions)
}

func TestPurchaseOrderService_List(t *testing.T) {
	ctx := context.Background()

	t.Run("passes filter", func(t *testing.T) {
		svc, repo, _ := newTestService()
		order := draftOrder(t)
		repo.On("FindAll", mock.Anything, mock.MatchedBy(func(f trade.PurchaseOrderFilter) bool {
			return f.Status != nil && *f.Status == trade.PurchaseOrderStatusDraft && f.Page == 2 && f.PageSize == 20
		})).Return([]trade.PurchaseOrder{*order}, int64(21), nil)

		items, total, err := svc.List(ctx, PurchaseOrderListFilter{Status: "draft", Page: 2})

		require.NoError(t, err)
		assert.Equal(t, int64(21), total)
		require.Len(t, items, 1)
		assert.Equal(t, "25.00", items[0].Total)
	})

	t.Run("unknown status", func(t *testing.T) {
		svc, _, _ := newTestService()
		_, _, err := svc.List(ctx, PurchaseOrderListFilter{Status: "lost"})
		assert.Equal(t, shared.CodeInvalidInput, shared.CodeOf(err))
	})

	t.Run("vendor filter", func(t *testing.T) {
		svc, repo, _ := newTestService()
		vendorID := uuid.New()
		repo.On("FindAll", mock.Anything, mock.MatchedBy(func(f trade.PurchaseOrderFilter) bool {
			return f.VendorID != nil && *f.VendorID == vendorID
		})).Return([]trade.PurchaseOrder{}, int64(0), nil)

		_, total, err := svc.List(ctx, PurchaseOrderListFilter{VendorID: vendorID.String()})
		require.NoError(t, err)
		assert.Zero(t, total)

		_, _, err = svc.List(ctx, PurchaseOrderListFilter{VendorID: "acme"})
		assert.Equal(t, shared.CodeInvalidInput, shared.CodeOf(err))
	})
}

func TestIncotermTable(t *testing.T) {
	rows := IncotermTable()
	require.Len(t, rows, len(trade.AllIncoterms()))
	byCode := make(map[string]IncotermResponse)
	for _, r := range rows {
		byCode[r.Code] = r
	}
	assert.Equal(t, IncotermResponse{Code: "DDP", TaxApplicable: true, ShippingApplicable: true}, byCode["DDP"])
	assert.Equal(t, IncotermResponse{Code: "FOB"}, byCode["FOB"])
	assert.Equal(t, IncotermResponse{Code: "CIF", ShippingApplicable: true}, byCode["CIF"])
}
