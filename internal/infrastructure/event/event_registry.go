package event

import (
	"github.com/cardshellz/echelon/internal/domain/inbound"
	"github.com/cardshellz/echelon/internal/domain/trade"
)

// RegisterAllEvents registers every lifecycle event type with the serializer
// so the outbox relay can decode stored payloads.
func RegisterAllEvents(serializer *EventSerializer) {
	// Purchase orders
	serializer.Register(trade.EventTypePurchaseOrderCreated, &trade.PurchaseOrderCreatedEvent{})
	serializer.Register(trade.EventTypePurchaseOrderStatusChanged, &trade.PurchaseOrderStatusChangedEvent{})
	serializer.Register(trade.EventTypeVendorNotificationRequested, &trade.VendorNotificationRequestedEvent{})
	serializer.Register(trade.EventTypeReceivingRequested, &trade.ReceivingRequestedEvent{})
	serializer.Register(trade.EventTypePurchaseOrderChargesEdited, &trade.PurchaseOrderChargesEditedEvent{})
	serializer.Register(trade.EventTypePurchaseOrderReceiptRecorded, &trade.PurchaseOrderReceiptRecordedEvent{})

	// Inbound shipments
	serializer.Register(inbound.EventTypeShipmentCreated, &inbound.ShipmentCreatedEvent{})
	serializer.Register(inbound.EventTypeShipmentStatusChanged, &inbound.ShipmentStatusChangedEvent{})
	serializer.Register(inbound.EventTypeShipmentReceivingRequested, &inbound.ShipmentReceivingRequestedEvent{})
	serializer.Register(inbound.EventTypeLandedCostAllocated, &inbound.LandedCostAllocatedEvent{})
	serializer.Register(inbound.EventTypeLandedCostFinalized, &inbound.LandedCostFinalizedEvent{})
}
