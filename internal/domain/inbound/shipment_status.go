package inbound

import (
	"fmt"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ShipmentStatus is the lifecycle state of an inbound shipment
type ShipmentStatus string

const (
	ShipmentStatusDraft            ShipmentStatus = "draft"
	ShipmentStatusBooked           ShipmentStatus = "booked"
	ShipmentStatusInTransit        ShipmentStatus = "in_transit"
	ShipmentStatusAtPort           ShipmentStatus = "at_port"
	ShipmentStatusCustomsClearance ShipmentStatus = "customs_clearance"
	ShipmentStatusDelivered        ShipmentStatus = "delivered"
	ShipmentStatusCosting          ShipmentStatus = "costing"
	ShipmentStatusClosed           ShipmentStatus = "closed"
	ShipmentStatusCancelled        ShipmentStatus = "cancelled"
)

// AllShipmentStatuses lists the states in lifecycle order
func AllShipmentStatuses() []ShipmentStatus {
	return []ShipmentStatus{
		ShipmentStatusDraft,
		ShipmentStatusBooked,
		ShipmentStatusInTransit,
		ShipmentStatusAtPort,
		ShipmentStatusCustomsClearance,
		ShipmentStatusDelivered,
		ShipmentStatusCosting,
		ShipmentStatusClosed,
		ShipmentStatusCancelled,
	}
}

// IsValid checks if the status is a known state
func (s ShipmentStatus) IsValid() bool {
	for _, v := range AllShipmentStatuses() {
		if v == s {
			return true
		}
	}
	return false
}

func (s ShipmentStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further action is possible
func (s ShipmentStatus) IsTerminal() bool {
	return s == ShipmentStatusClosed || s == ShipmentStatusCancelled
}

// IsEditable reports whether lines and costs may still change
func (s ShipmentStatus) IsEditable() bool {
	return !s.IsTerminal()
}

// ShipmentAction is a lifecycle action on a shipment
type ShipmentAction string

const (
	ActionBook          ShipmentAction = "book"
	ActionDepart        ShipmentAction = "depart"
	ActionArrivePort    ShipmentAction = "arrive_port"
	ActionClearCustoms  ShipmentAction = "clear_customs"
	ActionDeliver       ShipmentAction = "deliver"
	ActionStartCosting  ShipmentAction = "start_costing"
	ActionRunAllocation ShipmentAction = "run_allocation"
	ActionFinalize      ShipmentAction = "finalize"
	ActionClose         ShipmentAction = "close"
	ActionCancel        ShipmentAction = "cancel"
)

// history entries for audited edits that are not lifecycle actions
const (
	historyActionCreate     = "create"
	historyActionEditCosts  = "edit_costs"
	historyActionEditLines  = "edit_lines"
	historyActionEditHeader = "edit_details"
)

// ShipmentMode is the transport mode
type ShipmentMode string

const (
	ModeOcean   ShipmentMode = "ocean"
	ModeAir     ShipmentMode = "air"
	ModeTruck   ShipmentMode = "truck"
	ModeRail    ShipmentMode = "rail"
	ModeCourier ShipmentMode = "courier"
)

// IsValid checks if the mode is known
func (m ShipmentMode) IsValid() bool {
	switch m {
	case ModeOcean, ModeAir, ModeTruck, ModeRail, ModeCourier:
		return true
	}
	return false
}

// VolumetricFactor is the kg-per-cbm divisor used for dimensional weight
func (m ShipmentMode) VolumetricFactor() decimal.Decimal {
	switch m {
	case ModeAir:
		return decimal.NewFromInt(167)
	case ModeCourier:
		return decimal.NewFromInt(200)
	case ModeTruck:
		return decimal.NewFromInt(333)
	default:
		return decimal.NewFromInt(1000)
	}
}

// CostType categorizes a shipment cost
type CostType string

const (
	CostTypeFreight      CostType = "freight"
	CostTypeDuty         CostType = "duty"
	CostTypeInsurance    CostType = "insurance"
	CostTypeBrokerage    CostType = "brokerage"
	CostTypePortHandling CostType = "port_handling"
	CostTypeDrayage      CostType = "drayage"
	CostTypeWarehousing  CostType = "warehousing"
	CostTypeInspection   CostType = "inspection"
	CostTypeOther        CostType = "other"
)

// IsValid checks if the cost type is known
func (t CostType) IsValid() bool {
	switch t {
	case CostTypeFreight, CostTypeDuty, CostTypeInsurance, CostTypeBrokerage, CostTypePortHandling,
		CostTypeDrayage, CostTypeWarehousing, CostTypeInspection, CostTypeOther:
		return true
	}
	return false
}

// CostStatus tracks how firm a cost amount is
type CostStatus string

const (
	CostStatusEstimated CostStatus = "estimated"
	CostStatusQuoted    CostStatus = "quoted"
	CostStatusInvoiced  CostStatus = "invoiced"
	CostStatusPaid      CostStatus = "paid"
)

// IsValid checks if the cost status is known
func (s CostStatus) IsValid() bool {
	switch s {
	case CostStatusEstimated, CostStatusQuoted, CostStatusInvoiced, CostStatusPaid:
		return true
	}
	return false
}

// AllocationMethod is the weighting basis used to spread a cost over lines
type AllocationMethod string

const (
	MethodDefault            AllocationMethod = "default"
	MethodByVolume           AllocationMethod = "by_volume"
	MethodByWeight           AllocationMethod = "by_weight"
	MethodByChargeableWeight AllocationMethod = "by_chargeable_weight"
	MethodByValue            AllocationMethod = "by_value"
	MethodByLineCount        AllocationMethod = "by_line_count"
)

// IsValid checks if the method is known
func (m AllocationMethod) IsValid() bool {
	switch m {
	case MethodDefault, MethodByVolume, MethodByWeight, MethodByChargeableWeight, MethodByValue, MethodByLineCount:
		return true
	}
	return false
}

func invalidEnum(kind string, v any) error {
	return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown %s %q", kind, v))
}
