package models

import (
	"time"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/domain/shared/valueobject"
	"github.com/cardshellz/echelon/internal/domain/trade"
	"github.com/google/uuid"
)

// PurchaseOrderModel is the persistence model for the PurchaseOrder aggregate root.
type PurchaseOrderModel struct {
	AggregateModel
	Number                string                       `gorm:"type:varchar(50);not null;uniqueIndex"`
	VendorID              uuid.UUID                    `gorm:"type:uuid;not null;index"`
	Status                trade.PurchaseOrderStatus    `gorm:"type:varchar(30);not null;index"`
	Incoterm              *trade.Incoterm              `gorm:"type:varchar(3)"`
	PoType                trade.PoType                 `gorm:"type:varchar(20);not null"`
	Priority              trade.Priority               `gorm:"type:varchar(20);not null"`
	Currency              valueobject.Currency         `gorm:"type:varchar(3);not null"`
	SubtotalCents         valueobject.Money            `gorm:"not null;default:0"`
	DiscountCents         valueobject.Money            `gorm:"not null;default:0"`
	TaxCents              valueobject.Money            `gorm:"not null;default:0"`
	ShippingCostCents     valueobject.Money            `gorm:"not null;default:0"`
	TotalCents            valueobject.Money            `gorm:"not null;default:0"`
	ExpectedDate          *time.Time
	VendorReference       string `gorm:"type:varchar(100)"`
	ConfirmedDeliveryDate *time.Time
	CancelReason          string `gorm:"type:varchar(500)"`
	Notes                 string `gorm:"type:text"`
	SubmittedAt           *time.Time
	ApprovedAt            *time.Time
	SentAt                *time.Time
	AcknowledgedAt        *time.Time
	ClosedAt              *time.Time
	CancelledAt           *time.Time
	Lines                 []PurchaseOrderLineModel     `gorm:"foreignKey:PurchaseOrderID;references:ID"`
	History               []PurchaseOrderHistoryModel  `gorm:"foreignKey:PurchaseOrderID;references:ID"`
}

// TableName returns the table name for GORM
func (PurchaseOrderModel) TableName() string {
	return "purchase_orders"
}

// ToDomain converts the persistence model to a domain PurchaseOrder.
// Lines and History must be preloaded, ordered by line number and seq.
func (m *PurchaseOrderModel) ToDomain() *trade.PurchaseOrder {
	order := &trade.PurchaseOrder{
		BaseAggregateRoot:     m.ToDomainAggregateRoot(),
		Number:                m.Number,
		VendorID:              m.VendorID,
		Status:                m.Status,
		Incoterm:              m.Incoterm,
		PoType:                m.PoType,
		Priority:              m.Priority,
		Currency:              m.Currency,
		Subtotal:              m.SubtotalCents,
		Discount:              m.DiscountCents,
		Tax:                   m.TaxCents,
		ShippingCost:          m.ShippingCostCents,
		Total:                 m.TotalCents,
		ExpectedDate:          m.ExpectedDate,
		VendorReference:       m.VendorReference,
		ConfirmedDeliveryDate: m.ConfirmedDeliveryDate,
		CancelReason:          m.CancelReason,
		Notes:                 m.Notes,
		SubmittedAt:           m.SubmittedAt,
		ApprovedAt:            m.ApprovedAt,
		SentAt:                m.SentAt,
		AcknowledgedAt:        m.AcknowledgedAt,
		ClosedAt:              m.ClosedAt,
		CancelledAt:           m.CancelledAt,
		Lines:                 make([]trade.PurchaseOrderLine, len(m.Lines)),
		History:               make([]shared.StatusChange, len(m.History)),
	}
	for i := range m.Lines {
		order.Lines[i] = m.Lines[i].ToDomain()
	}
	for i := range m.History {
		order.History[i] = m.History[i].ToDomain()
	}
	return order
}

// FromDomain populates the header and lines. History rows are written
// separately because they are append-only.
func (m *PurchaseOrderModel) FromDomain(o *trade.PurchaseOrder) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.Number = o.Number
	m.VendorID = o.VendorID
	m.Status = o.Status
	m.Incoterm = o.Incoterm
	m.PoType = o.PoType
	m.Priority = o.Priority
	m.Currency = o.Currency
	m.SubtotalCents = o.Subtotal
	m.DiscountCents = o.Discount
	m.TaxCents = o.Tax
	m.ShippingCostCents = o.ShippingCost
	m.TotalCents = o.Total
	m.ExpectedDate = o.ExpectedDate
	m.VendorReference = o.VendorReference
	m.ConfirmedDeliveryDate = o.ConfirmedDeliveryDate
	m.CancelReason = o.CancelReason
	m.Notes = o.Notes
	m.SubmittedAt = o.SubmittedAt
	m.ApprovedAt = o.ApprovedAt
	m.SentAt = o.SentAt
	m.AcknowledgedAt = o.AcknowledgedAt
	m.ClosedAt = o.ClosedAt
	m.CancelledAt = o.CancelledAt
	m.Lines = make([]PurchaseOrderLineModel, len(o.Lines))
	for i := range o.Lines {
		m.Lines[i] = PurchaseOrderLineModelFromDomain(o.ID, &o.Lines[i])
	}
}

// HeaderColumns returns the mutable header columns for a versioned update
func (m *PurchaseOrderModel) HeaderColumns() map[string]any {
	return map[string]any{
		"status":                  m.Status,
		"incoterm":                m.Incoterm,
		"po_type":                 m.PoType,
		"priority":                m.Priority,
		"currency":                m.Currency,
		"subtotal_cents":          m.SubtotalCents,
		"discount_cents":          m.DiscountCents,
		"tax_cents":               m.TaxCents,
		"shipping_cost_cents":     m.ShippingCostCents,
		"total_cents":             m.TotalCents,
		"expected_date":           m.ExpectedDate,
		"vendor_reference":        m.VendorReference,
		"confirmed_delivery_date": m.ConfirmedDeliveryDate,
		"cancel_reason":           m.CancelReason,
		"notes":                   m.Notes,
		"submitted_at":            m.SubmittedAt,
		"approved_at":             m.ApprovedAt,
		"sent_at":                 m.SentAt,
		"acknowledged_at":         m.AcknowledgedAt,
		"closed_at":               m.ClosedAt,
		"cancelled_at":            m.CancelledAt,
		"version":                 m.Version,
		"updated_at":              m.UpdatedAt,
	}
}

// PurchaseOrderModelFromDomain creates a new persistence model from a domain PurchaseOrder.
func PurchaseOrderModelFromDomain(o *trade.PurchaseOrder) *PurchaseOrderModel {
	m := &PurchaseOrderModel{}
	m.FromDomain(o)
	return m
}

// PurchaseOrderLineModel is the persistence model for a PO line
type PurchaseOrderLineModel struct {
	ID              uuid.UUID             `gorm:"type:uuid;primary_key"`
	PurchaseOrderID uuid.UUID             `gorm:"type:uuid;not null;index"`
	LineNumber      int                   `gorm:"not null"`
	ProductID       uuid.UUID             `gorm:"type:uuid;not null;index"`
	VariantID       *uuid.UUID            `gorm:"type:uuid"`
	VendorSKU       string                `gorm:"column:vendor_sku;type:varchar(100)"`
	Description     string                `gorm:"type:varchar(500)"`
	OrderQty        int64                 `gorm:"not null"`
	UnitsPerUom     int64                 `gorm:"not null;default:1"`
	UnitCost        *valueobject.UnitCost `gorm:"type:numeric(18,6)"`
	ReceivedQty     int64                 `gorm:"not null;default:0"`
	DamagedQty      int64                 `gorm:"not null;default:0"`
	Status          trade.LineStatus      `gorm:"type:varchar(20);not null"`
	CreatedAt       time.Time             `gorm:"not null"`
	UpdatedAt       time.Time             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PurchaseOrderLineModel) TableName() string {
	return "purchase_order_lines"
}

// ToDomain converts the persistence model to a domain line
func (m *PurchaseOrderLineModel) ToDomain() trade.PurchaseOrderLine {
	return trade.PurchaseOrderLine{
		ID:              m.ID,
		PurchaseOrderID: m.PurchaseOrderID,
		LineNumber:      m.LineNumber,
		ProductID:       m.ProductID,
		VariantID:       m.VariantID,
		VendorSKU:       m.VendorSKU,
		Description:     m.Description,
		OrderQty:        m.OrderQty,
		UnitsPerUom:     m.UnitsPerUom,
		UnitCost:        m.UnitCost,
		ReceivedQty:     m.ReceivedQty,
		DamagedQty:      m.DamagedQty,
		Status:          m.Status,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// PurchaseOrderLineModelFromDomain maps a domain line, stamping its owner
func PurchaseOrderLineModelFromDomain(orderID uuid.UUID, l *trade.PurchaseOrderLine) PurchaseOrderLineModel {
	return PurchaseOrderLineModel{
		ID:              l.ID,
		PurchaseOrderID: orderID,
		LineNumber:      l.LineNumber,
		ProductID:       l.ProductID,
		VariantID:       l.VariantID,
		VendorSKU:       l.VendorSKU,
		Description:     l.Description,
		OrderQty:        l.OrderQty,
		UnitsPerUom:     l.UnitsPerUom,
		UnitCost:        l.UnitCost,
		ReceivedQty:     l.ReceivedQty,
		DamagedQty:      l.DamagedQty,
		Status:          l.Status,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}

// PurchaseOrderHistoryModel is one audit row of a purchase order
type PurchaseOrderHistoryModel struct {
	StatusHistoryModel
	PurchaseOrderID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// TableName returns the table name for GORM
func (PurchaseOrderHistoryModel) TableName() string {
	return "purchase_order_status_history"
}

// PurchaseOrderHistoryFrom maps history entries starting at seq
func PurchaseOrderHistoryFrom(orderID uuid.UUID, seq int, changes []shared.StatusChange) []PurchaseOrderHistoryModel {
	rows := make([]PurchaseOrderHistoryModel, len(changes))
	for i, c := range changes {
		rows[i] = PurchaseOrderHistoryModel{
			StatusHistoryModel: statusHistoryFromDomain(seq+i, c),
			PurchaseOrderID:    orderID,
		}
	}
	return rows
}
