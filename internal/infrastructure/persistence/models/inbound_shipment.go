package models

import (
	"encoding/json"
	"time"

	"github.com/cardshellz/echelon/internal/domain/inbound"
	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InboundShipmentModel is the persistence model for the InboundShipment aggregate root.
type InboundShipmentModel struct {
	AggregateModel
	Number               string                 `gorm:"type:varchar(50);not null;uniqueIndex"`
	Status               inbound.ShipmentStatus `gorm:"type:varchar(30);not null;index"`
	Mode                 inbound.ShipmentMode   `gorm:"type:varchar(20);not null;index"`
	Currency             valueobject.Currency   `gorm:"type:varchar(3);not null"`
	CarrierName          string                 `gorm:"type:varchar(200)"`
	ContainerNumber      string                 `gorm:"type:varchar(50)"`
	BillOfLading         string                 `gorm:"type:varchar(100)"`
	TrackingNumber       string                 `gorm:"type:varchar(100)"`
	OriginPort           string                 `gorm:"type:varchar(100)"`
	DestinationPort      string                 `gorm:"type:varchar(100)"`
	ETD                  *time.Time             `gorm:"column:etd"`
	ETA                  *time.Time             `gorm:"column:eta"`
	ShipDate             *time.Time
	DeliveredDate        *time.Time
	ContainerCapacityCbm *decimal.Decimal `gorm:"type:numeric(12,4)"`
	TotalWeightKg        decimal.Decimal  `gorm:"type:numeric(14,4);not null;default:0"`
	TotalGrossVolumeCbm  decimal.Decimal  `gorm:"type:numeric(14,4);not null;default:0"`
	EstimatedTotalCents  valueobject.Money `gorm:"not null;default:0"`
	ActualTotalCents     valueobject.Money `gorm:"not null;default:0"`
	CostRevision         int               `gorm:"not null;default:1"`
	AllocationRevision   int               `gorm:"not null;default:0"`
	AllocationBases      []inbound.CostAllocation `gorm:"type:jsonb;serializer:json"`
	Finalized            bool                     `gorm:"not null;default:false"`
	FinalizedAt          *time.Time
	FinalizedRevision    int                    `gorm:"not null;default:0"`
	CancelReason         string                 `gorm:"type:varchar(500)"`
	Notes                string                 `gorm:"type:text"`
	Lines                []ShipmentLineModel    `gorm:"foreignKey:ShipmentID;references:ID"`
	Costs                []ShipmentCostModel    `gorm:"foreignKey:ShipmentID;references:ID"`
	History              []ShipmentHistoryModel `gorm:"foreignKey:ShipmentID;references:ID"`
}

// TableName returns the table name for GORM
func (InboundShipmentModel) TableName() string {
	return "inbound_shipments"
}

// ToDomain converts the persistence model to a domain InboundShipment
func (m *InboundShipmentModel) ToDomain() *inbound.InboundShipment {
	s := &inbound.InboundShipment{
		BaseAggregateRoot:    m.ToDomainAggregateRoot(),
		Number:               m.Number,
		Status:               m.Status,
		Mode:                 m.Mode,
		Currency:             m.Currency,
		CarrierName:          m.CarrierName,
		ContainerNumber:      m.ContainerNumber,
		BillOfLading:         m.BillOfLading,
		TrackingNumber:       m.TrackingNumber,
		OriginPort:           m.OriginPort,
		DestinationPort:      m.DestinationPort,
		ETD:                  m.ETD,
		ETA:                  m.ETA,
		ShipDate:             m.ShipDate,
		DeliveredDate:        m.DeliveredDate,
		ContainerCapacityCbm: m.ContainerCapacityCbm,
		TotalWeightKg:        m.TotalWeightKg,
		TotalGrossVolumeCbm:  m.TotalGrossVolumeCbm,
		EstimatedTotalCost:   m.EstimatedTotalCents,
		ActualTotalCost:      m.ActualTotalCents,
		CostRevision:         m.CostRevision,
		AllocationRevision:   m.AllocationRevision,
		AllocationBases:      m.AllocationBases,
		Finalized:            m.Finalized,
		FinalizedAt:          m.FinalizedAt,
		FinalizedRevision:    m.FinalizedRevision,
		CancelReason:         m.CancelReason,
		Notes:                m.Notes,
		Lines:                make([]inbound.ShipmentLine, len(m.Lines)),
		Costs:                make([]inbound.ShipmentCost, len(m.Costs)),
		History:              make([]shared.StatusChange, len(m.History)),
	}
	for i := range m.Lines {
		s.Lines[i] = m.Lines[i].ToDomain()
	}
	for i := range m.Costs {
		s.Costs[i] = m.Costs[i].ToDomain()
	}
	for i := range m.History {
		s.History[i] = m.History[i].ToDomain()
	}
	return s
}

// FromDomain populates header, lines and costs from a domain shipment
func (m *InboundShipmentModel) FromDomain(s *inbound.InboundShipment) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.Number = s.Number
	m.Status = s.Status
	m.Mode = s.Mode
	m.Currency = s.Currency
	m.CarrierName = s.CarrierName
	m.ContainerNumber = s.ContainerNumber
	m.BillOfLading = s.BillOfLading
	m.TrackingNumber = s.TrackingNumber
	m.OriginPort = s.OriginPort
	m.DestinationPort = s.DestinationPort
	m.ETD = s.ETD
	m.ETA = s.ETA
	m.ShipDate = s.ShipDate
	m.DeliveredDate = s.DeliveredDate
	m.ContainerCapacityCbm = s.ContainerCapacityCbm
	m.TotalWeightKg = s.TotalWeightKg
	m.TotalGrossVolumeCbm = s.TotalGrossVolumeCbm
	m.EstimatedTotalCents = s.EstimatedTotalCost
	m.ActualTotalCents = s.ActualTotalCost
	m.CostRevision = s.CostRevision
	m.AllocationRevision = s.AllocationRevision
	m.AllocationBases = s.AllocationBases
	m.Finalized = s.Finalized
	m.FinalizedAt = s.FinalizedAt
	m.FinalizedRevision = s.FinalizedRevision
	m.CancelReason = s.CancelReason
	m.Notes = s.Notes
	m.Lines = make([]ShipmentLineModel, len(s.Lines))
	for i := range s.Lines {
		m.Lines[i] = ShipmentLineModelFromDomain(s.ID, &s.Lines[i])
	}
	m.Costs = make([]ShipmentCostModel, len(s.Costs))
	for i := range s.Costs {
		m.Costs[i] = ShipmentCostModelFromDomain(s.ID, &s.Costs[i])
	}
}

// HeaderColumns returns the mutable header columns for a versioned update.
// Map updates bypass the json serializer, so the bases are encoded here.
func (m *InboundShipmentModel) HeaderColumns() (map[string]any, error) {
	bases, err := json.Marshal(m.AllocationBases)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"allocation_bases":       string(bases),
		"status":                 m.Status,
		"mode":                   m.Mode,
		"currency":               m.Currency,
		"carrier_name":           m.CarrierName,
		"container_number":       m.ContainerNumber,
		"bill_of_lading":         m.BillOfLading,
		"tracking_number":        m.TrackingNumber,
		"origin_port":            m.OriginPort,
		"destination_port":       m.DestinationPort,
		"etd":                    m.ETD,
		"eta":                    m.ETA,
		"ship_date":              m.ShipDate,
		"delivered_date":         m.DeliveredDate,
		"container_capacity_cbm": m.ContainerCapacityCbm,
		"total_weight_kg":        m.TotalWeightKg,
		"total_gross_volume_cbm": m.TotalGrossVolumeCbm,
		"estimated_total_cents":  m.EstimatedTotalCents,
		"actual_total_cents":     m.ActualTotalCents,
		"cost_revision":          m.CostRevision,
		"allocation_revision":    m.AllocationRevision,
		"finalized":              m.Finalized,
		"finalized_at":           m.FinalizedAt,
		"finalized_revision":     m.FinalizedRevision,
		"cancel_reason":          m.CancelReason,
		"notes":                  m.Notes,
		"version":                m.Version,
		"updated_at":             m.UpdatedAt,
	}, nil
}

// InboundShipmentModelFromDomain creates a new persistence model from a domain shipment
func InboundShipmentModelFromDomain(s *inbound.InboundShipment) *InboundShipmentModel {
	m := &InboundShipmentModel{}
	m.FromDomain(s)
	return m
}

// ShipmentLineModel is the persistence model for a shipment line. The
// allocation columns are all null until the first allocation run.
type ShipmentLineModel struct {
	ID                  uuid.UUID             `gorm:"type:uuid;primary_key"`
	ShipmentID          uuid.UUID             `gorm:"type:uuid;not null;index"`
	LineNumber          int                   `gorm:"not null"`
	PurchaseOrderID     *uuid.UUID            `gorm:"type:uuid;index"`
	PurchaseOrderLineID *uuid.UUID            `gorm:"type:uuid;index"`
	PONumber            string                `gorm:"column:po_number;type:varchar(50)"`
	ProductID           *uuid.UUID            `gorm:"type:uuid"`
	SKU                 string                `gorm:"column:sku;type:varchar(100)"`
	Description         string                `gorm:"type:varchar(500)"`
	QtyShipped          int64                 `gorm:"not null"`
	PoUnitCost          *valueobject.UnitCost `gorm:"type:numeric(18,6)"`
	TotalWeightKg       decimal.Decimal       `gorm:"type:numeric(14,4);not null;default:0"`
	GrossVolumeCbm      decimal.Decimal       `gorm:"type:numeric(14,4);not null;default:0"`
	NetVolumeCbm        decimal.Decimal       `gorm:"type:numeric(14,4);not null;default:0"`
	CartonCount         int                   `gorm:"not null;default:0"`
	PalletCount         int                   `gorm:"not null;default:0"`

	FreightCents       *valueobject.Money
	DutyCents          *valueobject.Money
	InsuranceCents     *valueobject.Money
	OtherCents         *valueobject.Money
	AllocatedCostCents *valueobject.Money
	LandedUnitCost     *valueobject.UnitCost `gorm:"type:numeric(18,6)"`
	RemainderCents     *valueobject.Money
	AllocationRevision *int

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ShipmentLineModel) TableName() string {
	return "inbound_shipment_lines"
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// ToDomain converts the persistence model to a domain line
func (m *ShipmentLineModel) ToDomain() inbound.ShipmentLine {
	line := inbound.ShipmentLine{
		ID:                  m.ID,
		ShipmentID:          m.ShipmentID,
		LineNumber:          m.LineNumber,
		PurchaseOrderID:     m.PurchaseOrderID,
		PurchaseOrderLineID: m.PurchaseOrderLineID,
		PONumber:            m.PONumber,
		ProductID:           m.ProductID,
		SKU:                 m.SKU,
		Description:         m.Description,
		QtyShipped:          m.QtyShipped,
		PoUnitCost:          m.PoUnitCost,
		TotalWeightKg:       m.TotalWeightKg,
		GrossVolumeCbm:      m.GrossVolumeCbm,
		NetVolumeCbm:        m.NetVolumeCbm,
		CartonCount:         m.CartonCount,
		PalletCount:         m.PalletCount,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
	if m.AllocationRevision != nil {
		line.Allocation = &inbound.LineAllocation{
			Freight:        deref(m.FreightCents),
			Duty:           deref(m.DutyCents),
			Insurance:      deref(m.InsuranceCents),
			Other:          deref(m.OtherCents),
			AllocatedCost:  deref(m.AllocatedCostCents),
			LandedUnitCost: deref(m.LandedUnitCost),
			Remainder:      deref(m.RemainderCents),
			Revision:       *m.AllocationRevision,
		}
	}
	return line
}

// ShipmentLineModelFromDomain maps a domain line, stamping its shipment
func ShipmentLineModelFromDomain(shipmentID uuid.UUID, l *inbound.ShipmentLine) ShipmentLineModel {
	m := ShipmentLineModel{
		ID:                  l.ID,
		ShipmentID:          shipmentID,
		LineNumber:          l.LineNumber,
		PurchaseOrderID:     l.PurchaseOrderID,
		PurchaseOrderLineID: l.PurchaseOrderLineID,
		PONumber:            l.PONumber,
		ProductID:           l.ProductID,
		SKU:                 l.SKU,
		Description:         l.Description,
		QtyShipped:          l.QtyShipped,
		PoUnitCost:          l.PoUnitCost,
		TotalWeightKg:       l.TotalWeightKg,
		GrossVolumeCbm:      l.GrossVolumeCbm,
		NetVolumeCbm:        l.NetVolumeCbm,
		CartonCount:         l.CartonCount,
		PalletCount:         l.PalletCount,
		CreatedAt:           l.CreatedAt,
		UpdatedAt:           l.UpdatedAt,
	}
	if a := l.Allocation; a != nil {
		freight, duty, insurance, other := a.Freight, a.Duty, a.Insurance, a.Other
		allocated, landed, remainder, rev := a.AllocatedCost, a.LandedUnitCost, a.Remainder, a.Revision
		m.FreightCents = &freight
		m.DutyCents = &duty
		m.InsuranceCents = &insurance
		m.OtherCents = &other
		m.AllocatedCostCents = &allocated
		m.LandedUnitCost = &landed
		m.RemainderCents = &remainder
		m.AllocationRevision = &rev
	}
	return m
}

// ShipmentCostModel is the persistence model for a shipment cost
type ShipmentCostModel struct {
	ID               uuid.UUID                `gorm:"type:uuid;primary_key"`
	ShipmentID       uuid.UUID                `gorm:"type:uuid;not null;index"`
	CostType         inbound.CostType         `gorm:"type:varchar(30);not null"`
	AllocationMethod inbound.AllocationMethod `gorm:"type:varchar(30);not null"`
	EstimatedCents   valueobject.Money        `gorm:"not null;default:0"`
	ActualCents      *valueobject.Money
	Status           inbound.CostStatus `gorm:"type:varchar(20);not null"`
	Description      string             `gorm:"type:varchar(500)"`
	InvoiceNumber    string             `gorm:"type:varchar(100)"`
	VendorName       string             `gorm:"type:varchar(200)"`
	CreatedAt        time.Time          `gorm:"not null"`
	UpdatedAt        time.Time          `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ShipmentCostModel) TableName() string {
	return "inbound_shipment_costs"
}

// ToDomain converts the persistence model to a domain cost
func (m *ShipmentCostModel) ToDomain() inbound.ShipmentCost {
	return inbound.ShipmentCost{
		ID:               m.ID,
		ShipmentID:       m.ShipmentID,
		CostType:         m.CostType,
		AllocationMethod: m.AllocationMethod,
		EstimatedAmount:  m.EstimatedCents,
		ActualAmount:     m.ActualCents,
		Status:           m.Status,
		Description:      m.Description,
		InvoiceNumber:    m.InvoiceNumber,
		VendorName:       m.VendorName,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// ShipmentCostModelFromDomain maps a domain cost, stamping its shipment
func ShipmentCostModelFromDomain(shipmentID uuid.UUID, c *inbound.ShipmentCost) ShipmentCostModel {
	return ShipmentCostModel{
		ID:               c.ID,
		ShipmentID:       shipmentID,
		CostType:         c.CostType,
		AllocationMethod: c.AllocationMethod,
		EstimatedCents:   c.EstimatedAmount,
		ActualCents:      c.ActualAmount,
		Status:           c.Status,
		Description:      c.Description,
		InvoiceNumber:    c.InvoiceNumber,
		VendorName:       c.VendorName,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

// ShipmentHistoryModel is one audit row of a shipment
type ShipmentHistoryModel struct {
	StatusHistoryModel
	ShipmentID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// TableName returns the table name for GORM
func (ShipmentHistoryModel) TableName() string {
	return "inbound_shipment_status_history"
}

// ShipmentHistoryFrom maps history entries starting at seq
func ShipmentHistoryFrom(shipmentID uuid.UUID, seq int, changes []shared.StatusChange) []ShipmentHistoryModel {
	rows := make([]ShipmentHistoryModel, len(changes))
	for i, c := range changes {
		rows[i] = ShipmentHistoryModel{
			StatusHistoryModel: statusHistoryFromDomain(seq+i, c),
			ShipmentID:         shipmentID,
		}
	}
	return rows
}
