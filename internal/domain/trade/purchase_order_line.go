package trade

import (
	"time"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineStatus tracks receipt progress of a PO line
type LineStatus string

const (
	LineStatusOpen     LineStatus = "open"
	LineStatusPartial  LineStatus = "partial"
	LineStatusReceived LineStatus = "received"
)

// PurchaseOrderLine is one ordered product. Quantities are in pieces;
// UnitsPerUom records the vendor pack size for display and receiving.
type PurchaseOrderLine struct {
	ID              uuid.UUID
	PurchaseOrderID uuid.UUID
	LineNumber      int
	ProductID       uuid.UUID
	VariantID       *uuid.UUID
	VendorSKU       string
	Description     string
	OrderQty        int64
	UnitsPerUom     int64
	UnitCost        *valueobject.UnitCost
	ReceivedQty     int64
	DamagedQty      int64
	Status          LineStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LineInput carries the editable fields of a line
type LineInput struct {
	ProductID   uuid.UUID
	VariantID   *uuid.UUID
	VendorSKU   string
	Description string
	OrderQty    int64
	UnitsPerUom int64
	UnitCost    *valueobject.UnitCost
}

func (in LineInput) validate() error {
	if in.ProductID == uuid.Nil {
		return shared.NewDomainError(shared.CodeInvalidInput, "product is required")
	}
	if in.OrderQty < 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "order quantity cannot be negative")
	}
	if in.UnitsPerUom < 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "units per UOM cannot be negative")
	}
	return nil
}

func (l *PurchaseOrderLine) apply(in LineInput, now time.Time) {
	l.ProductID = in.ProductID
	l.VariantID = in.VariantID
	l.VendorSKU = in.VendorSKU
	l.Description = in.Description
	l.OrderQty = in.OrderQty
	l.UnitsPerUom = in.UnitsPerUom
	if l.UnitsPerUom == 0 {
		l.UnitsPerUom = 1
	}
	l.UnitCost = in.UnitCost
	l.UpdatedAt = now
}

// LineTotal is UnitCost * OrderQty with no rounding. A line without a cost totals zero.
func (l *PurchaseOrderLine) LineTotal() decimal.Decimal {
	if l.UnitCost == nil {
		return decimal.Zero
	}
	return l.UnitCost.ExtendedTotal(l.OrderQty)
}

// OpenQty is the quantity still expected from the vendor
func (l *PurchaseOrderLine) OpenQty() int64 {
	if open := l.OrderQty - l.ReceivedQty; open > 0 {
		return open
	}
	return 0
}

// IsOpen reports whether pieces are still undelivered
func (l *PurchaseOrderLine) IsOpen() bool {
	return l.OpenQty() > 0
}

func (l *PurchaseOrderLine) refreshStatus() {
	switch {
	case l.ReceivedQty == 0:
		l.Status = LineStatusOpen
	case l.OpenQty() > 0:
		l.Status = LineStatusPartial
	default:
		l.Status = LineStatusReceived
	}
}
