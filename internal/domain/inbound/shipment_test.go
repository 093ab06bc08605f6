package inbound

import (
	"errors"
	"testing"
	"time"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/domain/shared/statemachine"
	"github.com/cardshellz/echelon/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 7, 1, 14, 0, 0, 0, time.UTC)

func newTestShipment(t *testing.T, mode ShipmentMode) *InboundShipment {
	t.Helper()
	s, err := NewInboundShipment(NewShipmentInput{
		Number: "SHP-0001",
		Mode:   mode,
		Actor:  "logistics",
		Clock:  func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return s
}

func poRef(openQty int64, cost string) POLineRef {
	return POLineRef{
		PurchaseOrderID:     uuid.New(),
		PurchaseOrderLineID: uuid.New(),
		PONumber:            "PO-1",
		ProductID:           uuid.New(),
		VendorSKU:           "VS-1",
		UnitCost:            uc(cost),
		OpenQty:             openQty,
	}
}

func measures(weight, volume string) LineMeasures {
	return LineMeasures{TotalWeightKg: d(weight), GrossVolumeCbm: d(volume)}
}

func fire(t *testing.T, s *InboundShipment, actions ...ShipmentAction) {
	t.Helper()
	for _, a := range actions {
		_, err := s.ApplyTransition(a, TransitionInput{Actor: "logistics", Notes: "reason"})
		require.NoError(t, err, "action %s from %s", a, s.Status)
	}
}

// costingShipment returns a shipment in costing with two lines of 2.0 and 1.0
// cbm and a $300 freight cost split by volume.
func costingShipment(t *testing.T) *InboundShipment {
	t.Helper()
	s := newTestShipment(t, ModeOcean)
	_, _, err := s.AddLineFromPO(poRef(10, "5.00"), 10, measures("100", "2.0"), "logistics")
	require.NoError(t, err)
	_, _, err = s.AddLineFromPO(poRef(20, "1.25"), 20, measures("50", "1.0"), "logistics")
	require.NoError(t, err)
	_, err = s.AddCost(CostInput{CostType: CostTypeFreight, AllocationMethod: MethodByVolume, EstimatedAmount: valueobject.Dollars(300)}, "logistics")
	require.NoError(t, err)
	fire(t, s, ActionBook, ActionDepart, ActionArrivePort, ActionClearCustoms, ActionDeliver, ActionStartCosting)
	return s
}

func TestNewInboundShipment(t *testing.T) {
	s := newTestShipment(t, ModeAir)
	assert.Equal(t, ShipmentStatusDraft, s.Status)
	assert.Equal(t, valueobject.USD, s.Currency)
	assert.Len(t, s.History, 1)
	assert.True(t, s.IsEditable())

	_, err := NewInboundShipment(NewShipmentInput{Number: "X", Mode: "boat"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = NewInboundShipment(NewShipmentInput{Mode: ModeAir})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	zero := decimal.Zero
	_, err = NewInboundShipment(NewShipmentInput{Number: "X", Mode: ModeAir, Details: ShipmentDetails{ContainerCapacityCbm: &zero}})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestShipment_VolumeAllocationScenario(t *testing.T) {
	s := costingShipment(t)

	alloc, err := s.RunAllocation(TransitionInput{Actor: "costing"})
	require.NoError(t, err)
	assert.Equal(t, ShipmentStatusCosting, s.Status)

	assert.Equal(t, valueobject.Dollars(200), *s.Lines[0].AllocatedCost())
	assert.Equal(t, valueobject.Dollars(100), *s.Lines[1].AllocatedCost())
	assert.Equal(t, valueobject.Dollars(300), alloc.TotalAllocated())
	assert.Equal(t, "25.00", s.Lines[0].Allocation.LandedUnitCost.String())
	assert.Equal(t, "6.25", s.Lines[1].Allocation.LandedUnitCost.String())
}

func TestShipment_AllocationIsIdempotent(t *testing.T) {
	s := costingShipment(t)
	_, err := s.AddCost(CostInput{CostType: CostTypeDuty, AllocationMethod: MethodByValue, EstimatedAmount: valueobject.Cents(1001)}, "")
	require.NoError(t, err)

	_, err = s.RunAllocation(TransitionInput{})
	require.NoError(t, err)
	first := []LineAllocation{*s.Lines[0].Allocation, *s.Lines[1].Allocation}
	_, err = s.RunAllocation(TransitionInput{})
	require.NoError(t, err)

	assert.Equal(t, first, []LineAllocation{*s.Lines[0].Allocation, *s.Lines[1].Allocation})
}

func TestShipment_FinalizeNeedsFreshAllocation(t *testing.T) {
	s := costingShipment(t)

	_, err := s.Finalize(TransitionInput{})
	assert.ErrorIs(t, err, shared.ErrNotReadyToFinalize)
	assert.NotContains(t, s.AvailableActions(), ActionFinalize)

	_, err = s.RunAllocation(TransitionInput{})
	require.NoError(t, err)
	assert.Contains(t, s.AvailableActions(), ActionFinalize)

	// editing a cost invalidates the run
	costID := s.Costs[0].ID
	actual := valueobject.Dollars(330)
	require.NoError(t, s.UpdateCost(costID, CostInput{CostType: CostTypeFreight, AllocationMethod: MethodByVolume,
		EstimatedAmount: valueobject.Dollars(300), ActualAmount: &actual, Status: CostStatusInvoiced}, ""))
	assert.Nil(t, s.Lines[0].AllocatedCost())
	_, err = s.Finalize(TransitionInput{})
	assert.ErrorIs(t, err, shared.ErrNotReadyToFinalize)

	_, err = s.RunAllocation(TransitionInput{})
	require.NoError(t, err)
	snap, err := s.Finalize(TransitionInput{Actor: "controller"})
	require.NoError(t, err)

	assert.Equal(t, ShipmentStatusCosting, s.Status)
	assert.True(t, s.Finalized)
	assert.Equal(t, s.CostRevision, snap.Revision)
	assert.Equal(t, valueobject.Dollars(330), snap.TotalAllocated)
	require.Len(t, snap.Lines, 2)
	assert.Equal(t, valueobject.Dollars(220), snap.Lines[0].AllocatedCost)
	assert.Equal(t, fixedNow, snap.FinalizedAt)

	events := s.GetDomainEvents()
	finalized, ok := events[len(events)-1].(*LandedCostFinalizedEvent)
	require.True(t, ok)
	assert.Equal(t, *snap, finalized.Snapshot)
}

func TestShipment_CloseNeedsFinalize(t *testing.T) {
	s := costingShipment(t)
	_, err := s.RunAllocation(TransitionInput{})
	require.NoError(t, err)

	_, err = s.ApplyTransition(ActionClose, TransitionInput{})
	var ite *statemachine.InvalidTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, "costing", ite.From)

	_, err = s.Finalize(TransitionInput{})
	require.NoError(t, err)

	// adding a line after finalize reopens costing
	_, err = s.AddPackingListLine(PackingListEntry{SKU: "LOOSE-1"}, 5, measures("1", "0.5"), "")
	require.NoError(t, err)
	assert.False(t, s.Finalized)
	_, err = s.ApplyTransition(ActionClose, TransitionInput{})
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	fire(t, s, ActionRunAllocation, ActionFinalize, ActionClose)
	assert.Equal(t, ShipmentStatusClosed, s.Status)
	assert.Empty(t, s.AvailableActions())

	_, err = s.AddCost(CostInput{CostType: CostTypeOther}, "")
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestShipment_RunAllocationStates(t *testing.T) {
	s := newTestShipment(t, ModeTruck)
	_, err := s.RunAllocation(TransitionInput{})
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	fire(t, s, ActionBook, ActionDepart, ActionDeliver)
	assert.Contains(t, s.AvailableActions(), ActionRunAllocation)
	_, err = s.RunAllocation(TransitionInput{})
	assert.NoError(t, err)
	assert.Equal(t, ShipmentStatusDelivered, s.Status)
}

func TestShipment_AllocationFailureLeavesLinesUntouched(t *testing.T) {
	s := costingShipment(t)
	_, err := s.RunAllocation(TransitionInput{})
	require.NoError(t, err)
	before := *s.Lines[0].Allocation
	revision := s.AllocationRevision

	_, err = s.AddCost(CostInput{CostType: CostTypeInsurance, AllocationMethod: MethodByValue, EstimatedAmount: valueobject.Cents(1)}, "")
	require.NoError(t, err)
	s.Lines[0].PoUnitCost, s.Lines[1].PoUnitCost = nil, nil
	historyLen := len(s.History)

	_, err = s.RunAllocation(TransitionInput{})
	var ae *AllocationError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, CostTypeInsurance, ae.CostType)
	assert.Nil(t, s.Lines[0].Allocation)
	assert.Equal(t, revision, s.AllocationRevision)
	assert.Len(t, s.History, historyLen)
	assert.NotEqual(t, LineAllocation{}, before)
}

func TestShipment_AddLineFromPO(t *testing.T) {
	s := newTestShipment(t, ModeOcean)

	l, warning, err := s.AddLineFromPO(poRef(10, "1"), 10, measures("1", "1"), "")
	require.NoError(t, err)
	assert.Nil(t, warning)
	assert.True(t, l.IsLinked())
	assert.Equal(t, 1, l.LineNumber)

	ref := poRef(10, "1")
	_, warning, err = s.AddLineFromPO(ref, 12, measures("1", "1"), "")
	require.NoError(t, err)
	require.NotNil(t, warning)
	assert.Equal(t, QuantityWarning{PurchaseOrderLineID: ref.PurchaseOrderLineID, OpenQty: 10, QtyShipped: 12}, *warning)
	assert.Equal(t, int64(12), s.ShippedQtyForPOLine(ref.PurchaseOrderLineID))

	_, _, err = s.AddLineFromPO(poRef(10, "1"), -1, LineMeasures{}, "")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	_, _, err = s.AddLineFromPO(POLineRef{}, 1, LineMeasures{}, "")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = s.AddPackingListLine(PackingListEntry{}, 1, LineMeasures{}, "")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestShipment_Aggregates(t *testing.T) {
	s := newTestShipment(t, ModeOcean)
	capacity := d("67.7")
	require.NoError(t, s.UpdateDetails(ShipmentDetails{ContainerNumber: " MSCU1234567 ", ContainerCapacityCbm: &capacity}, "", 0))
	assert.Equal(t, "MSCU1234567", s.ContainerNumber)

	l1, _, err := s.AddLineFromPO(poRef(10, "1"), 10, measures("120.5", "20"), "")
	require.NoError(t, err)
	l1ID := l1.ID
	_, err = s.AddPackingListLine(PackingListEntry{SKU: "SKU-9"}, 3, measures("10", "13.85"), "")
	require.NoError(t, err)

	actual := valueobject.Dollars(900)
	_, err = s.AddCost(CostInput{CostType: CostTypeFreight, EstimatedAmount: valueobject.Dollars(1000), ActualAmount: &actual}, "")
	require.NoError(t, err)
	c, err := s.AddCost(CostInput{CostType: CostTypeDuty, EstimatedAmount: valueobject.Dollars(50)}, "")
	require.NoError(t, err)
	assert.Equal(t, MethodDefault, c.AllocationMethod)
	assert.Equal(t, CostStatusEstimated, c.Status)

	assert.True(t, d("130.5").Equal(s.TotalWeightKg))
	assert.True(t, d("33.85").Equal(s.TotalGrossVolumeCbm))
	assert.Equal(t, valueobject.Dollars(1050), s.EstimatedTotalCost)
	assert.Equal(t, valueobject.Dollars(900), s.ActualTotalCost)
	assert.Equal(t, "0.5", s.ContainerUtilization().String())

	require.NoError(t, s.RemoveCost(c.ID, ""))
	assert.Equal(t, valueobject.Dollars(1000), s.EstimatedTotalCost)
	require.NoError(t, s.RemoveLine(l1ID, ""))
	assert.True(t, d("10").Equal(s.TotalWeightKg))
	assert.ErrorIs(t, s.RemoveLine(l1ID, ""), shared.ErrNotFound)
	assert.ErrorIs(t, s.UpdateCost(uuid.New(), CostInput{CostType: CostTypeOther}, ""), shared.ErrNotFound)

	_, err = s.AddCost(CostInput{CostType: "bribe"}, "")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = s.AddCost(CostInput{CostType: CostTypeOther, EstimatedAmount: -1}, "")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestShipment_LifecycleBranches(t *testing.T) {
	tests := []struct {
		name    string
		path    []ShipmentAction
		illegal ShipmentAction
	}{
		{"air skips port", []ShipmentAction{ActionBook, ActionDepart, ActionDeliver}, ActionClearCustoms},
		{"port to delivered", []ShipmentAction{ActionBook, ActionDepart, ActionArrivePort, ActionDeliver}, ActionArrivePort},
		{"customs only to delivered", []ShipmentAction{ActionBook, ActionDepart, ActionArrivePort, ActionClearCustoms}, ActionArrivePort},
		{"cannot depart unbooked", nil, ActionDepart},
		{"cannot cost before delivery", []ShipmentAction{ActionBook, ActionDepart}, ActionStartCosting},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestShipment(t, ModeAir)
			fire(t, s, tt.path...)
			_, err := s.ApplyTransition(tt.illegal, TransitionInput{})
			assert.ErrorIs(t, err, shared.ErrInvalidTransition)
		})
	}
}

func TestShipment_DeliverRequestsReceivingPerPO(t *testing.T) {
	s := newTestShipment(t, ModeTruck)
	refA := poRef(5, "1")
	refB := poRef(5, "1")
	refA2 := refA
	refA2.PurchaseOrderLineID = uuid.New()

	for _, ref := range []POLineRef{refA, refB, refA2} {
		_, _, err := s.AddLineFromPO(ref, 5, LineMeasures{}, "")
		require.NoError(t, err)
	}
	_, err := s.AddPackingListLine(PackingListEntry{SKU: "FREE"}, 1, LineMeasures{}, "")
	require.NoError(t, err)

	fire(t, s, ActionBook, ActionDepart)
	res, err := s.ApplyTransition(ActionDeliver, TransitionInput{})
	require.NoError(t, err)
	require.NotNil(t, s.DeliveredDate)

	require.Len(t, res.Effects, 4)
	a := res.Effects[1].(*ShipmentReceivingRequestedEvent)
	b := res.Effects[2].(*ShipmentReceivingRequestedEvent)
	free := res.Effects[3].(*ShipmentReceivingRequestedEvent)
	assert.Equal(t, refA.PurchaseOrderID, *a.PurchaseOrderID)
	assert.Len(t, a.Lines, 2)
	assert.Equal(t, refB.PurchaseOrderID, *b.PurchaseOrderID)
	assert.Nil(t, free.PurchaseOrderID)
	assert.Equal(t, "FREE", free.Lines[0].SKU)
}

func TestShipment_Cancel(t *testing.T) {
	s := newTestShipment(t, ModeRail)
	_, err := s.ApplyTransition(ActionCancel, TransitionInput{})
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	fire(t, s, ActionBook)
	_, err = s.ApplyTransition(ActionCancel, TransitionInput{Notes: " vendor missed cutoff "})
	require.NoError(t, err)
	assert.Equal(t, ShipmentStatusCancelled, s.Status)
	assert.Equal(t, "vendor missed cutoff", s.CancelReason)
	assert.False(t, s.IsEditable())
	_, err = s.ApplyTransition(ActionBook, TransitionInput{})
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestShipment_ConcurrentModification(t *testing.T) {
	s := newTestShipment(t, ModeOcean)
	s.Version = 3
	_, err := s.ApplyTransition(ActionBook, TransitionInput{ExpectedVersion: 2})
	assert.ErrorIs(t, err, shared.ErrConcurrentModification)
	assert.ErrorIs(t, s.UpdateDetails(ShipmentDetails{}, "", 2), shared.ErrConcurrentModification)
}
