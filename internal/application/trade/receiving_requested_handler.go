package trade

import (
	"context"
	"fmt"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/domain/trade"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReceiptLine is one expected quantity on a receipt
type ReceiptLine struct {
	PurchaseOrderLineID *uuid.UUID
	ShipmentLineID      *uuid.UUID
	ProductID           *uuid.UUID
	SKU                 string
	ExpectedQty         int64
}

// ReceiptRequest asks the Receiving subsystem to expect goods, either for a
// PO directly or for the PO lines carried by a delivered shipment.
type ReceiptRequest struct {
	EventID         uuid.UUID
	PurchaseOrderID *uuid.UUID
	PONumber        string
	ShipmentID      *uuid.UUID
	ShipmentNumber  string
	Lines           []ReceiptLine
}

// ReceivingGateway opens receipts in the Receiving subsystem, which is
// external to this service.
type ReceivingGateway interface {
	OpenReceipt(ctx context.Context, req ReceiptRequest) error
}

// ReceivingRequestedHandler forwards ReceivingRequested events raised by the
// create_receipt action to the Receiving gateway.
type ReceivingRequestedHandler struct {
	gateway ReceivingGateway
	logger  *zap.Logger
}

// NewReceivingRequestedHandler creates a new ReceivingRequestedHandler
func NewReceivingRequestedHandler(gateway ReceivingGateway, logger *zap.Logger) *ReceivingRequestedHandler {
	return &ReceivingRequestedHandler{gateway: gateway, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *ReceivingRequestedHandler) EventTypes() []string {
	return []string{trade.EventTypeReceivingRequested}
}

// Handle processes a ReceivingRequestedEvent
func (h *ReceivingRequestedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	requested, ok := event.(*trade.ReceivingRequestedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			trade.EventTypeReceivingRequested, event.EventType())
	}
	orderID := requested.OrderID
	req := ReceiptRequest{
		EventID:         requested.EventID(),
		PurchaseOrderID: &orderID,
		PONumber:        requested.Number,
		Lines:           make([]ReceiptLine, len(requested.Lines)),
	}
	for i, l := range requested.Lines {
		lineID, productID := l.LineID, l.ProductID
		req.Lines[i] = ReceiptLine{
			PurchaseOrderLineID: &lineID,
			ProductID:           &productID,
			SKU:                 l.VendorSKU,
			ExpectedQty:         l.ExpectedQty,
		}
	}
	if err := h.gateway.OpenReceipt(ctx, req); err != nil {
		return fmt.Errorf("open receipt for %s: %w", requested.Number, err)
	}
	h.logger.Info("receipt requested",
		zap.String("order_id", orderID.String()),
		zap.Int("lines", len(requested.Lines)),
	)
	return nil
}

var _ shared.EventHandler = (*ReceivingRequestedHandler)(nil)

// LoggingReceivingGateway logs receipt requests instead of calling Receiving
type LoggingReceivingGateway struct {
	logger *zap.Logger
}

// NewLoggingReceivingGateway creates a new LoggingReceivingGateway
func NewLoggingReceivingGateway(logger *zap.Logger) *LoggingReceivingGateway {
	return &LoggingReceivingGateway{logger: logger}
}

// OpenReceipt logs the request
func (g *LoggingReceivingGateway) OpenReceipt(ctx context.Context, req ReceiptRequest) error {
	var expected int64
	for _, l := range req.Lines {
		expected += l.ExpectedQty
	}
	fields := []zap.Field{
		zap.String("po_number", req.PONumber),
		zap.String("shipment_number", req.ShipmentNumber),
		zap.Int("lines", len(req.Lines)),
		zap.Int64("expected_qty", expected),
	}
	if req.ShipmentID != nil {
		fields = append(fields, zap.String("shipment_id", req.ShipmentID.String()))
	}
	g.logger.Info("RECEIPT REQUESTED", fields...)
	return nil
}

var _ ReceivingGateway = (*LoggingReceivingGateway)(nil)
