package inbound

import (
	"strings"
	"time"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// TransitionResult describes an applied shipment action and its side effects.
// Allocation is set for run_allocation and Snapshot for finalize.
type TransitionResult struct {
	From       ShipmentStatus
	To         ShipmentStatus
	Action     ShipmentAction
	Effects    []shared.DomainEvent
	Allocation *AllocationResult
	Snapshot   *LandedCostSnapshot
}

// ApplyTransition runs a lifecycle action. Besides *statemachine.InvalidTransitionError
// and ErrConcurrentModification it returns ErrNotReadyToFinalize when finalize
// is attempted in costing with a missing or stale allocation, and an
// *AllocationError when run_allocation cannot spread a cost.
func (s *InboundShipment) ApplyTransition(action ShipmentAction, in TransitionInput) (*TransitionResult, error) {
	if err := s.CheckVersion(in.ExpectedVersion); err != nil {
		return nil, err
	}
	if action == ActionFinalize && s.Status == ShipmentStatusCosting {
		if reason := s.staleAllocationReason(); reason != "" {
			return nil, shared.NewDomainError(shared.CodeNotReadyToFinalize, "landed costs cannot be finalized: "+reason)
		}
	}

	from := s.Status
	to, err := shipmentLifecycle.Fire(from, action, shipmentGuardData{shipment: s, input: in})
	if err != nil {
		return nil, err
	}

	now := s.now()
	notes := strings.TrimSpace(in.Notes)
	result := &TransitionResult{From: from, To: to, Action: action}
	var effects []shared.DomainEvent

	switch action {
	case ActionDepart:
		if s.ShipDate == nil {
			s.ShipDate = &now
		}
	case ActionDeliver:
		s.DeliveredDate = &now
		effects = append(effects, receivingRequests(s, now)...)
	case ActionRunAllocation:
		alloc, err := Allocate(s.Mode, s.Costs, s.Lines)
		if err != nil {
			return nil, err
		}
		s.applyAllocation(alloc)
		result.Allocation = alloc
		notes = "allocated " + alloc.TotalAllocated().String()
		effects = append(effects, newLandedCostAllocatedEvent(s, alloc, now))
	case ActionFinalize:
		snap := s.snapshot(now)
		s.Finalized = true
		s.FinalizedAt = &now
		s.FinalizedRevision = s.CostRevision
		result.Snapshot = &snap
		effects = append(effects, newLandedCostFinalizedEvent(s, snap))
	case ActionCancel:
		s.CancelReason = notes
	}

	s.Status = to
	s.UpdatedAt = now
	change := s.appendHistory(from, to, string(action), in.Actor, notes, now)
	effects = append([]shared.DomainEvent{newShipmentStatusChangedEvent(s, change)}, effects...)
	for _, e := range effects {
		s.AddDomainEvent(e)
	}
	result.Effects = effects
	return result, nil
}

// RunAllocation recomputes landed costs for every line. The lifecycle status
// is unchanged and repeated runs over the same inputs give identical output.
func (s *InboundShipment) RunAllocation(in TransitionInput) (*AllocationResult, error) {
	res, err := s.ApplyTransition(ActionRunAllocation, in)
	if err != nil {
		return nil, err
	}
	return res.Allocation, nil
}

// Finalize freezes the current allocation as a landed-cost snapshot
func (s *InboundShipment) Finalize(in TransitionInput) (*LandedCostSnapshot, error) {
	res, err := s.ApplyTransition(ActionFinalize, in)
	if err != nil {
		return nil, err
	}
	return res.Snapshot, nil
}

// AvailableActions lists the actions legal right now, with the cancel reason
// assumed to be supplied.
func (s *InboundShipment) AvailableActions() []ShipmentAction {
	return shipmentLifecycle.AvailableActions(s.Status, shipmentGuardData{shipment: s, preview: true})
}

func (s *InboundShipment) applyAllocation(alloc *AllocationResult) {
	for i := range s.Lines {
		out := alloc.Lines[i]
		out.Revision = s.CostRevision
		s.Lines[i].Allocation = &out
	}
	s.AllocationBases = alloc.Costs
	s.AllocationRevision = s.CostRevision
}

// LandedCostSnapshot is the immutable record of finalized landed costs handed
// to inventory valuation.
type LandedCostSnapshot struct {
	ShipmentID     uuid.UUID            `json:"shipment_id"`
	ShipmentNumber string               `json:"shipment_number"`
	Revision       int                  `json:"revision"`
	Currency       valueobject.Currency `json:"currency"`
	FinalizedAt    time.Time            `json:"finalized_at"`
	TotalAllocated valueobject.Money    `json:"total_allocated_cents"`
	Lines          []SnapshotLine       `json:"lines"`
	Costs          []CostAllocation     `json:"costs"`
}

// SnapshotLine is one line of a landed-cost snapshot
type SnapshotLine struct {
	ShipmentLineID      uuid.UUID             `json:"shipment_line_id"`
	PurchaseOrderID     *uuid.UUID            `json:"purchase_order_id,omitempty"`
	PurchaseOrderLineID *uuid.UUID            `json:"purchase_order_line_id,omitempty"`
	ProductID           *uuid.UUID            `json:"product_id,omitempty"`
	SKU                 string                `json:"sku,omitempty"`
	QtyShipped          int64                 `json:"qty_shipped"`
	PoUnitCost          *valueobject.UnitCost `json:"po_unit_cost,omitempty"`
	LineAllocation
}

func (s *InboundShipment) snapshot(at time.Time) LandedCostSnapshot {
	snap := LandedCostSnapshot{
		ShipmentID:     s.ID,
		ShipmentNumber: s.Number,
		Revision:       s.CostRevision,
		Currency:       s.Currency,
		FinalizedAt:    at,
		Lines:          make([]SnapshotLine, 0, len(s.Lines)),
		Costs:          append([]CostAllocation(nil), s.AllocationBases...),
	}
	for i := range s.Lines {
		l := &s.Lines[i]
		snap.Lines = append(snap.Lines, SnapshotLine{
			ShipmentLineID:      l.ID,
			PurchaseOrderID:     l.PurchaseOrderID,
			PurchaseOrderLineID: l.PurchaseOrderLineID,
			ProductID:           l.ProductID,
			SKU:                 l.SKU,
			QtyShipped:          l.QtyShipped,
			PoUnitCost:          l.PoUnitCost,
			LineAllocation:      *l.Allocation,
		})
		snap.TotalAllocated = snap.TotalAllocated.Add(l.Allocation.AllocatedCost)
	}
	return snap
}
