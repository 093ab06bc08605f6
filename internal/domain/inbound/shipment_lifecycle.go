package inbound

import (
	"strings"

	"github.com/cardshellz/echelon/internal/domain/shared/statemachine"
)

// TransitionInput is the caller-supplied guard data for a shipment action
type TransitionInput struct {
	Actor string
	// Notes doubles as the cancel reason
	Notes string
	// ExpectedVersion is the version the caller last read; 0 skips the check
	ExpectedVersion int
}

type shipmentGuardData struct {
	shipment *InboundShipment
	input    TransitionInput
	preview  bool
}

type shipmentTransition = statemachine.Transition[ShipmentStatus, ShipmentAction, shipmentGuardData]

var preClosed = []ShipmentStatus{
	ShipmentStatusDraft,
	ShipmentStatusBooked,
	ShipmentStatusInTransit,
	ShipmentStatusAtPort,
	ShipmentStatusCustomsClearance,
	ShipmentStatusDelivered,
	ShipmentStatusCosting,
}

var shipmentLifecycle = statemachine.New(
	shipmentTransition{
		Action: ActionBook,
		From:   []ShipmentStatus{ShipmentStatusDraft},
		To:     ShipmentStatusBooked,
	},
	shipmentTransition{
		Action: ActionDepart,
		From:   []ShipmentStatus{ShipmentStatusBooked},
		To:     ShipmentStatusInTransit,
	},
	shipmentTransition{
		Action: ActionArrivePort,
		From:   []ShipmentStatus{ShipmentStatusInTransit},
		To:     ShipmentStatusAtPort,
	},
	shipmentTransition{
		Action: ActionClearCustoms,
		From:   []ShipmentStatus{ShipmentStatusAtPort},
		To:     ShipmentStatusCustomsClearance,
	},
	// air and truck shipments may skip the port dwell
	shipmentTransition{
		Action: ActionDeliver,
		From:   []ShipmentStatus{ShipmentStatusInTransit, ShipmentStatusAtPort, ShipmentStatusCustomsClearance},
		To:     ShipmentStatusDelivered,
	},
	shipmentTransition{
		Action: ActionStartCosting,
		From:   []ShipmentStatus{ShipmentStatusDelivered},
		To:     ShipmentStatusCosting,
	},
	shipmentTransition{
		Action:    ActionRunAllocation,
		From:      []ShipmentStatus{ShipmentStatusDelivered, ShipmentStatusCosting},
		KeepState: true,
	},
	shipmentTransition{
		Action:    ActionFinalize,
		From:      []ShipmentStatus{ShipmentStatusCosting},
		KeepState: true,
		Guard:     guardAllocationFresh,
	},
	shipmentTransition{
		Action: ActionClose,
		From:   []ShipmentStatus{ShipmentStatusCosting},
		To:     ShipmentStatusClosed,
		Guard:  guardFinalized,
	},
	shipmentTransition{
		Action: ActionCancel,
		From:   preClosed,
		To:     ShipmentStatusCancelled,
		Guard:  guardCancelReason,
	},
)

func guardAllocationFresh(d shipmentGuardData) statemachine.GuardResult {
	if reason := d.shipment.staleAllocationReason(); reason != "" {
		return statemachine.Deny("%s", reason)
	}
	return statemachine.Allow()
}

func guardFinalized(d shipmentGuardData) statemachine.GuardResult {
	if !d.shipment.Finalized {
		return statemachine.Deny("landed costs have not been finalized since the last cost change")
	}
	return statemachine.Allow()
}

func guardCancelReason(d shipmentGuardData) statemachine.GuardResult {
	if d.preview || strings.TrimSpace(d.input.Notes) != "" {
		return statemachine.Allow()
	}
	return statemachine.Deny("a reason is required")
}

// ShipmentActions lists every lifecycle action in table order
func ShipmentActions() []ShipmentAction {
	return shipmentLifecycle.Actions()
}

// ParseShipmentAction validates an action name
func ParseShipmentAction(s string) (ShipmentAction, bool) {
	for _, a := range ShipmentActions() {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}
