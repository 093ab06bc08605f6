package inbound

import (
	"context"
	"fmt"

	tradeapp "github.com/cardshellz/echelon/internal/application/trade"
	"github.com/cardshellz/echelon/internal/domain/inbound"
	"github.com/cardshellz/echelon/internal/domain/shared"
	"go.uber.org/zap"
)

// ShipmentReceivingHandler opens one receipt per purchase order when a
// shipment is delivered.
type ShipmentReceivingHandler struct {
	gateway tradeapp.ReceivingGateway
	logger  *zap.Logger
}

// NewShipmentReceivingHandler creates a new ShipmentReceivingHandler
func NewShipmentReceivingHandler(gateway tradeapp.ReceivingGateway, logger *zap.Logger) *ShipmentReceivingHandler {
	return &ShipmentReceivingHandler{gateway: gateway, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *ShipmentReceivingHandler) EventTypes() []string {
	return []string{inbound.EventTypeShipmentReceivingRequested}
}

// Handle processes a ShipmentReceivingRequestedEvent
func (h *ShipmentReceivingHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	requested, ok := event.(*inbound.ShipmentReceivingRequestedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			inbound.EventTypeShipmentReceivingRequested, event.EventType())
	}

	shipmentID := requested.ShipmentID
	req := tradeapp.ReceiptRequest{
		EventID:         requested.EventID(),
		PurchaseOrderID: requested.PurchaseOrderID,
		PONumber:        requested.PONumber,
		ShipmentID:      &shipmentID,
		ShipmentNumber:  requested.ShipmentNumber,
		Lines:           make([]tradeapp.ReceiptLine, len(requested.Lines)),
	}
	for i, l := range requested.Lines {
		lineID := l.ShipmentLineID
		req.Lines[i] = tradeapp.ReceiptLine{
			PurchaseOrderLineID: l.PurchaseOrderLineID,
			ShipmentLineID:      &lineID,
			ProductID:           l.ProductID,
			SKU:                 l.SKU,
			ExpectedQty:         l.ExpectedQty,
		}
	}
	if err := h.gateway.OpenReceipt(ctx, req); err != nil {
		return fmt.Errorf("open receipt for shipment %s: %w", requested.ShipmentNumber, err)
	}
	h.logger.Info("shipment receipt requested",
		zap.String("shipment_id", shipmentID.String()),
		zap.String("po_number", requested.PONumber),
		zap.Int("lines", len(requested.Lines)),
	)
	return nil
}

var _ shared.EventHandler = (*ShipmentReceivingHandler)(nil)

// SnapshotArchiveHandler stores each finalized landed-cost snapshot in the
// archive. Put is keyed by shipment and revision, so a redelivered event
// overwrites the same object.
type SnapshotArchiveHandler struct {
	archive inbound.SnapshotArchive
	logger  *zap.Logger
}

// NewSnapshotArchiveHandler creates a new SnapshotArchiveHandler
func NewSnapshotArchiveHandler(archive inbound.SnapshotArchive, logger *zap.Logger) *SnapshotArchiveHandler {
	return &SnapshotArchiveHandler{archive: archive, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *SnapshotArchiveHandler) EventTypes() []string {
	return []string{inbound.EventTypeLandedCostFinalized}
}

// Handle processes a LandedCostFinalizedEvent
func (h *SnapshotArchiveHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	finalized, ok := event.(*inbound.LandedCostFinalizedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			inbound.EventTypeLandedCostFinalized, event.EventType())
	}
	snap := finalized.Snapshot
	location, err := h.archive.Put(ctx, &snap)
	if err != nil {
		h.logger.Error("failed to archive landed-cost snapshot",
			zap.String("shipment_id", snap.ShipmentID.String()),
			zap.Int("revision", snap.Revision),
			zap.Error(err),
		)
		return fmt.Errorf("archive snapshot %s rev %d: %w", snap.ShipmentNumber, snap.Revision, err)
	}
	h.logger.Info("landed-cost snapshot archived",
		zap.String("shipment_id", snap.ShipmentID.String()),
		zap.Int("revision", snap.Revision),
		zap.String("location", location),
		zap.String("total_allocated", snap.TotalAllocated.String()),
	)
	return nil
}

var _ shared.EventHandler = (*SnapshotArchiveHandler)(nil)
