package inbound

import (
	"time"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// AggregateTypeInboundShipment names shipments in events and the outbox
const AggregateTypeInboundShipment = "InboundShipment"

// Event type constants
const (
	EventTypeShipmentCreated            = "InboundShipmentCreated"
	EventTypeShipmentStatusChanged      = "InboundShipmentStatusChanged"
	EventTypeShipmentReceivingRequested = "ShipmentReceivingRequested"
	EventTypeLandedCostAllocated        = "LandedCostAllocated"
	EventTypeLandedCostFinalized        = "LandedCostFinalized"
)

// ShipmentCreatedEvent is raised when a shipment is created
type ShipmentCreatedEvent struct {
	shared.BaseDomainEvent
	ShipmentID uuid.UUID    `json:"shipment_id"`
	Number     string       `json:"number"`
	Mode       ShipmentMode `json:"mode"`
}

func newShipmentCreatedEvent(s *InboundShipment, at time.Time) *ShipmentCreatedEvent {
	return &ShipmentCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeShipmentCreated, AggregateTypeInboundShipment, s.ID, at),
		ShipmentID:      s.ID,
		Number:          s.Number,
		Mode:            s.Mode,
	}
}

// ShipmentStatusChangedEvent accompanies every lifecycle action
type ShipmentStatusChangedEvent struct {
	shared.BaseDomainEvent
	ShipmentID uuid.UUID      `json:"shipment_id"`
	Number     string         `json:"number"`
	From       ShipmentStatus `json:"from"`
	To         ShipmentStatus `json:"to"`
	Action     ShipmentAction `json:"action"`
	Actor      string         `json:"actor"`
	Notes      string         `json:"notes,omitempty"`
}

func newShipmentStatusChangedEvent(s *InboundShipment, change shared.StatusChange) *ShipmentStatusChangedEvent {
	return &ShipmentStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeShipmentStatusChanged, AggregateTypeInboundShipment, s.ID, change.At),
		ShipmentID:      s.ID,
		Number:          s.Number,
		From:            ShipmentStatus(change.From),
		To:              ShipmentStatus(change.To),
		Action:          ShipmentAction(change.Action),
		Actor:           change.Actor,
		Notes:           change.Notes,
	}
}

// ReceivingLine is an expected quantity for one delivered shipment line
type ReceivingLine struct {
	ShipmentLineID      uuid.UUID  `json:"shipment_line_id"`
	PurchaseOrderLineID *uuid.UUID `json:"purchase_order_line_id,omitempty"`
	ProductID           *uuid.UUID `json:"product_id,omitempty"`
	SKU                 string     `json:"sku,omitempty"`
	ExpectedQty         int64      `json:"expected_qty"`
}

// ShipmentReceivingRequestedEvent asks Receiving to open a receipt for the
// lines of one purchase order. Packing-list lines with no PO are grouped in a
// final event whose PurchaseOrderID is nil.
type ShipmentReceivingRequestedEvent struct {
	shared.BaseDomainEvent
	ShipmentID      uuid.UUID       `json:"shipment_id"`
	ShipmentNumber  string          `json:"shipment_number"`
	PurchaseOrderID *uuid.UUID      `json:"purchase_order_id,omitempty"`
	PONumber        string          `json:"po_number,omitempty"`
	Lines           []ReceivingLine `json:"lines"`
}

// receivingRequests groups the shipment lines by linked PO, in order of first appearance
func receivingRequests(s *InboundShipment, at time.Time) []shared.DomainEvent {
	var (
		events   []*ShipmentReceivingRequestedEvent
		byPO     = make(map[uuid.UUID]*ShipmentReceivingRequestedEvent)
		unlinked *ShipmentReceivingRequestedEvent
	)
	newEvent := func(poID *uuid.UUID, poNumber string) *ShipmentReceivingRequestedEvent {
		return &ShipmentReceivingRequestedEvent{
			BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeShipmentReceivingRequested, AggregateTypeInboundShipment, s.ID, at),
			ShipmentID:      s.ID,
			ShipmentNumber:  s.Number,
			PurchaseOrderID: poID,
			PONumber:        poNumber,
		}
	}

	for i := range s.Lines {
		l := &s.Lines[i]
		rl := ReceivingLine{
			ShipmentLineID:      l.ID,
			PurchaseOrderLineID: l.PurchaseOrderLineID,
			ProductID:           l.ProductID,
			SKU:                 l.SKU,
			ExpectedQty:         l.QtyShipped,
		}
		if l.PurchaseOrderID == nil {
			if unlinked == nil {
				unlinked = newEvent(nil, "")
			}
			unlinked.Lines = append(unlinked.Lines, rl)
			continue
		}
		ev, ok := byPO[*l.PurchaseOrderID]
		if !ok {
			id := *l.PurchaseOrderID
			ev = newEvent(&id, l.PONumber)
			byPO[id] = ev
			events = append(events, ev)
		}
		ev.Lines = append(ev.Lines, rl)
	}
	if unlinked != nil {
		events = append(events, unlinked)
	}

	out := make([]shared.DomainEvent, len(events))
	for i, e := range events {
		out[i] = e
	}
	return out
}

// LandedCostAllocatedEvent is raised after each successful allocation run
type LandedCostAllocatedEvent struct {
	shared.BaseDomainEvent
	ShipmentID     uuid.UUID         `json:"shipment_id"`
	Revision       int               `json:"revision"`
	TotalAllocated valueobject.Money `json:"total_allocated_cents"`
	Costs          []CostAllocation  `json:"costs"`
}

func newLandedCostAllocatedEvent(s *InboundShipment, result *AllocationResult, at time.Time) *LandedCostAllocatedEvent {
	return &LandedCostAllocatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLandedCostAllocated, AggregateTypeInboundShipment, s.ID, at),
		ShipmentID:      s.ID,
		Revision:        s.AllocationRevision,
		TotalAllocated:  result.TotalAllocated(),
		Costs:           result.Costs,
	}
}

// LandedCostFinalizedEvent carries the immutable snapshot for inventory valuation
type LandedCostFinalizedEvent struct {
	shared.BaseDomainEvent
	Snapshot LandedCostSnapshot `json:"snapshot"`
}

func newLandedCostFinalizedEvent(s *InboundShipment, snap LandedCostSnapshot) *LandedCostFinalizedEvent {
	return &LandedCostFinalizedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLandedCostFinalized, AggregateTypeInboundShipment, s.ID, snap.FinalizedAt),
		Snapshot:        snap,
	}
}
