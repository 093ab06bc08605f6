package event

import (
	"testing"
	"time"

	"github.com/cardshellz/echelon/internal/domain/inbound"
	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSerializer_RegistersLifecycleEvents(t *testing.T) {
	s := NewEventSerializer()

	assert.ElementsMatch(t, []string{
		inbound.EventTypeShipmentCreated,
		inbound.EventTypeShipmentStatusChanged,
		inbound.EventTypeLandedCostAllocated,
		inbound.EventTypeLandedCostFinalized,
		inbound.EventTypeShipmentReceivingRequested,
		trade.EventTypePurchaseOrderChargesEdited,
		trade.EventTypePurchaseOrderCreated,
		trade.EventTypePurchaseOrderReceiptRecorded,
		trade.EventTypePurchaseOrderStatusChanged,
		trade.EventTypeReceivingRequested,
		trade.EventTypeVendorNotificationRequested,
	}, s.RegisteredTypes())
	assert.IsIncreasing(t, s.RegisteredTypes())
}

func TestEventSerializer_RoundTrip(t *testing.T) {
	s := NewEventSerializer()
	shipmentID := uuid.New()
	poID := uuid.New()
	lineID := uuid.New()
	at := time.Date(2026, 6, 1, 14, 0, 0, 0, time.UTC)

	in := &inbound.ShipmentReceivingRequestedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(inbound.EventTypeShipmentReceivingRequested, inbound.AggregateTypeInboundShipment, shipmentID, at),
		ShipmentID:      shipmentID,
		ShipmentNumber:  "SHP-001",
		PurchaseOrderID: &poID,
		PONumber:        "PO-77",
		Lines: []inbound.ReceivingLine{
			{ShipmentLineID: lineID, SKU: "A-1", ExpectedQty: 12},
		},
	}

	payload, err := s.Serialize(in)
	require.NoError(t, err)

	out, err := s.Deserialize(in.EventType(), payload)
	require.NoError(t, err)

	got, ok := out.(*inbound.ShipmentReceivingRequestedEvent)
	require.True(t, ok, "decoded as %T", out)
	assert.Equal(t, in.EventID(), got.EventID())
	assert.Equal(t, shipmentID, got.AggregateID())
	assert.True(t, at.Equal(got.OccurredAt()))
	assert.Equal(t, poID, *got.PurchaseOrderID)
	assert.Equal(t, "PO-77", got.PONumber)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, int64(12), got.Lines[0].ExpectedQty)
}

func TestEventSerializer_Errors(t *testing.T) {
	s := NewEventSerializer()

	_, err := s.Serialize(newTestEvent("NotRegistered"))
	assert.ErrorContains(t, err, "unregistered event type")

	_, err = s.Deserialize("NotRegistered", []byte(`{}`))
	assert.ErrorContains(t, err, "unknown event type")

	_, err = s.Deserialize(inbound.EventTypeShipmentCreated, []byte(`{not json`))
	assert.ErrorContains(t, err, "unmarshal")

	s.Register("Test", &testEvent{})
	assert.True(t, s.IsRegistered("Test"))
	payload, err := s.Serialize(newTestEvent("Test"))
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"data":"payload"`)
}
