package inbound

import (
	"time"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineMeasures are the physical dimensions declared for a shipment line
type LineMeasures struct {
	TotalWeightKg  decimal.Decimal
	GrossVolumeCbm decimal.Decimal
	NetVolumeCbm   decimal.Decimal
	CartonCount    int
	PalletCount    int
}

func (m LineMeasures) validate() error {
	if m.TotalWeightKg.IsNegative() || m.GrossVolumeCbm.IsNegative() || m.NetVolumeCbm.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidInput, "weight and volume cannot be negative")
	}
	if m.CartonCount < 0 || m.PalletCount < 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "carton and pallet counts cannot be negative")
	}
	return nil
}

// POLineRef identifies the purchase order line a shipment line fulfils, with
// the PO data the allocation engine and the open-quantity check need.
type POLineRef struct {
	PurchaseOrderID     uuid.UUID
	PurchaseOrderLineID uuid.UUID
	PONumber            string
	ProductID           uuid.UUID
	VendorSKU           string
	Description         string
	UnitCost            *valueobject.UnitCost
	OpenQty             int64
}

// PackingListEntry is a freestanding line with no PO link
type PackingListEntry struct {
	SKU         string
	ProductID   *uuid.UUID
	Description string
	UnitCost    *valueobject.UnitCost
}

// QuantityWarning flags a shipped quantity above the PO line's open quantity.
// Goods can arrive over-shipped, so this is reported rather than refused.
type QuantityWarning struct {
	PurchaseOrderLineID uuid.UUID `json:"purchase_order_line_id"`
	OpenQty             int64     `json:"open_qty"`
	QtyShipped          int64     `json:"qty_shipped"`
}

// LineAllocation holds the landed-cost outputs of one allocation run for a line
type LineAllocation struct {
	Freight       valueobject.Money `json:"freight_cents"`
	Duty          valueobject.Money `json:"duty_cents"`
	Insurance     valueobject.Money `json:"insurance_cents"`
	Other         valueobject.Money `json:"other_cents"`
	AllocatedCost valueobject.Money `json:"allocated_cost_cents"`
	// LandedUnitCost is the PO unit cost plus the whole-cent per-unit share
	LandedUnitCost valueobject.UnitCost `json:"landed_unit_cost"`
	// Remainder holds the cents of AllocatedCost that do not divide evenly by
	// the shipped quantity: AllocatedCost = per-unit share * qty + Remainder.
	Remainder valueobject.Money `json:"remainder_cents"`
	// Revision is the shipment cost revision the run was computed against
	Revision int `json:"revision"`
}

// ShipmentLine is one product on a shipment, linked to a PO line or taken
// from a packing list.
type ShipmentLine struct {
	ID                  uuid.UUID
	ShipmentID          uuid.UUID
	LineNumber          int
	PurchaseOrderID     *uuid.UUID
	PurchaseOrderLineID *uuid.UUID
	PONumber            string
	ProductID           *uuid.UUID
	SKU                 string
	Description         string
	QtyShipped          int64
	PoUnitCost          *valueobject.UnitCost
	TotalWeightKg       decimal.Decimal
	GrossVolumeCbm      decimal.Decimal
	NetVolumeCbm        decimal.Decimal
	CartonCount         int
	PalletCount         int
	// Allocation is nil until an allocation run covers the line's current data
	Allocation *LineAllocation
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsLinked reports whether the line fulfils a PO line
func (l *ShipmentLine) IsLinked() bool {
	return l.PurchaseOrderLineID != nil
}

// AllocatedCost returns the allocated total, or nil when unallocated
func (l *ShipmentLine) AllocatedCost() *valueobject.Money {
	if l.Allocation == nil {
		return nil
	}
	c := l.Allocation.AllocatedCost
	return &c
}

// ExtendedValue is QtyShipped * PoUnitCost. Packing-list lines have no PO
// linkage and carry no value basis, whatever unit cost was typed in.
func (l *ShipmentLine) ExtendedValue() decimal.Decimal {
	if !l.IsLinked() || l.PoUnitCost == nil {
		return decimal.Zero
	}
	return l.PoUnitCost.ExtendedTotal(l.QtyShipped)
}

func (l *ShipmentLine) applyMeasures(m LineMeasures) {
	l.TotalWeightKg = m.TotalWeightKg
	l.GrossVolumeCbm = m.GrossVolumeCbm
	l.NetVolumeCbm = m.NetVolumeCbm
	l.CartonCount = m.CartonCount
	l.PalletCount = m.PalletCount
}

// Measures returns the line's physical dimensions
func (l *ShipmentLine) Measures() LineMeasures {
	return LineMeasures{
		TotalWeightKg:  l.TotalWeightKg,
		GrossVolumeCbm: l.GrossVolumeCbm,
		NetVolumeCbm:   l.NetVolumeCbm,
		CartonCount:    l.CartonCount,
		PalletCount:    l.PalletCount,
	}
}
