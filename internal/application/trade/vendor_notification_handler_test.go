package trade

import (
	"context"
	"errors"
	"testing"

	"github.com/cardshellz/echelon/internal/domain/trade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type MockVendorNoticeQueue struct {
	mock.Mock
}

func (m *MockVendorNoticeQueue) EnqueueVendorNotice(ctx context.Context, notice VendorNotice) error {
	return m.Called(ctx, notice).Error(0)
}

type MockReceivingGateway struct {
	mock.Mock
}

func (m *MockReceivingGateway) OpenReceipt(ctx context.Context, req ReceiptRequest) error {
	return m.Called(ctx, req).Error(0)
}

func TestVendorNotificationHandler_EventTypes(t *testing.T) {
	h := NewVendorNotificationHandler(new(MockVendorNoticeQueue), zap.NewNop())
	assert.Equal(t, []string{trade.EventTypeVendorNotificationRequested}, h.EventTypes())
}

func TestVendorNotificationHandler_Handle(t *testing.T) {
	ctx := context.Background()
	order := approvedOrder(t)
	result, err := order.ApplyTransition(trade.ActionSend, trade.TransitionInput{Actor: "buyer"})
	require.NoError(t, err)
	event := result.Effects[1]

	t.Run("enqueues order_sent notice", func(t *testing.T) {
		queue := new(MockVendorNoticeQueue)
		queue.On("EnqueueVendorNotice", mock.Anything, mock.MatchedBy(func(n VendorNotice) bool {
			return n.Notice == "order_sent" && n.Number == "PO-1001" && n.Total == "25.00" && n.EventID == event.EventID().String()
		})).Return(nil)
		h := NewVendorNotificationHandler(queue, zap.NewNop())

		require.NoError(t, h.Handle(ctx, event))
		queue.AssertExpectations(t)
	})

	t.Run("returns enqueue failure for retry", func(t *testing.T) {
		queue := new(MockVendorNoticeQueue)
		queueErr := errors.New("redis unavailable")
		queue.On("EnqueueVendorNotice", mock.Anything, mock.Anything).Return(queueErr)
		core, logs := observer.New(zap.ErrorLevel)
		h := NewVendorNotificationHandler(queue, zap.New(core))

		err := h.Handle(ctx, event)

		assert.ErrorIs(t, err, queueErr)
		assert.Equal(t, 1, logs.FilterMessage("failed to enqueue vendor notice").Len())
	})

	t.Run("rejects other events", func(t *testing.T) {
		h := NewVendorNotificationHandler(new(MockVendorNoticeQueue), zap.NewNop())
		err := h.Handle(ctx, result.Effects[0])
		assert.Error(t, err)
	})
}

func TestReceivingRequestedHandler_Handle(t *testing.T) {
	ctx := context.Background()
	order := approvedOrder(t)
	_, err := order.ApplyTransition(trade.ActionSend, trade.TransitionInput{})
	require.NoError(t, err)
	result, err := order.ApplyTransition(trade.ActionCreateReceipt, trade.TransitionInput{})
	require.NoError(t, err)
	event := result.Effects[1]

	gateway := new(MockReceivingGateway)
	gateway.On("OpenReceipt", mock.Anything, mock.MatchedBy(func(r ReceiptRequest) bool {
		return *r.PurchaseOrderID == order.ID && len(r.Lines) == 1 && r.Lines[0].ExpectedQty == 10 && r.ShipmentID == nil && *r.Lines[0].PurchaseOrderLineID == order.Lines[0].ID
	})).Return(nil)
	h := NewReceivingRequestedHandler(gateway, zap.NewNop())

	require.NoError(t, h.Handle(ctx, event))
	gateway.AssertExpectations(t)
}

func TestLoggingVendorNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLoggingVendorNotifier(zap.New(core))

	err := n.NotifyVendor(context.Background(), VendorNotice{Number: "PO-9", Notice: "order_voided", Reason: "vendor out of stock"})

	require.NoError(t, err)
	entries := logs.FilterMessage("VENDOR NOTICE").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "order_voided", entries[0].ContextMap()["notice"])
}

type failingNotifier struct{ err error }

func (f failingNotifier) NotifyVendor(context.Context, VendorNotice) error { return f.err }

func TestInlineNoticeQueue(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	q := InlineNoticeQueue{Notifier: NewLoggingVendorNotifier(zap.New(core))}

	require.NoError(t, q.EnqueueVendorNotice(context.Background(), VendorNotice{Number: "PO-3", Notice: "order_sent"}))
	assert.Equal(t, 1, logs.FilterMessage("VENDOR NOTICE").Len())

	boom := errors.New("portal down")
	err := InlineNoticeQueue{Notifier: failingNotifier{err: boom}}.EnqueueVendorNotice(context.Background(), VendorNotice{})
	assert.ErrorIs(t, err, boom)
}
