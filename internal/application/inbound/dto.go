package inbound

import (
	"time"

	"github.com/cardshellz/echelon/internal/domain/inbound"
	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ==================== Inbound Shipment DTOs ====================

// ShipmentDetailsBody holds the editable header fields of a shipment
type ShipmentDetailsBody struct {
	CarrierName          string           `json:"carrier_name" binding:"max=200"`
	ContainerNumber      string           `json:"container_number" binding:"max=50"`
	BillOfLading         string           `json:"bill_of_lading" binding:"max=100"`
	TrackingNumber       string           `json:"tracking_number" binding:"max=100"`
	OriginPort           string           `json:"origin_port" binding:"max=100"`
	DestinationPort      string           `json:"destination_port" binding:"max=100"`
	ETD                  *time.Time       `json:"etd"`
	ETA                  *time.Time       `json:"eta"`
	ContainerCapacityCbm *decimal.Decimal `json:"container_capacity_cbm"`
	Notes                string           `json:"notes" binding:"max=2000"`
}

func (b ShipmentDetailsBody) toDomain() inbound.ShipmentDetails {
	return inbound.ShipmentDetails{
		CarrierName:          b.CarrierName,
		ContainerNumber:      b.ContainerNumber,
		BillOfLading:         b.BillOfLading,
		TrackingNumber:       b.TrackingNumber,
		OriginPort:           b.OriginPort,
		DestinationPort:      b.DestinationPort,
		ETD:                  b.ETD,
		ETA:                  b.ETA,
		ContainerCapacityCbm: b.ContainerCapacityCbm,
		Notes:                b.Notes,
	}
}

// CreateShipmentRequest represents a request to create an inbound shipment
type CreateShipmentRequest struct {
	Number   string `json:"number" binding:"required,min=1,max=50"`
	Mode     string `json:"mode" binding:"required,shipment_mode"`
	Currency string `json:"currency" binding:"omitempty,len=3"`
	ShipmentDetailsBody
	Actor string `json:"-"`
}

// UpdateShipmentDetailsRequest replaces the editable header fields
type UpdateShipmentDetailsRequest struct {
	ShipmentDetailsBody
	ExpectedVersion int    `json:"expected_version" binding:"min=0"`
	Actor           string `json:"-"`
}

// MeasuresBody carries the physical measures of a shipment line
type MeasuresBody struct {
	TotalWeightKg  decimal.Decimal `json:"total_weight_kg"`
	GrossVolumeCbm decimal.Decimal `json:"gross_volume_cbm"`
	NetVolumeCbm   decimal.Decimal `json:"net_volume_cbm"`
	CartonCount    int             `json:"carton_count" binding:"min=0"`
	PalletCount    int             `json:"pallet_count" binding:"min=0"`
}

func (b MeasuresBody) toDomain() inbound.LineMeasures {
	return inbound.LineMeasures{
		TotalWeightKg:  b.TotalWeightKg,
		GrossVolumeCbm: b.GrossVolumeCbm,
		NetVolumeCbm:   b.NetVolumeCbm,
		CartonCount:    b.CartonCount,
		PalletCount:    b.PalletCount,
	}
}

// AddLineRequest adds a line either from a PO line (PurchaseOrderID and
// PurchaseOrderLineID set) or from a packing list (SKU set).
type AddLineRequest struct {
	PurchaseOrderID     *uuid.UUID `json:"purchase_order_id"`
	PurchaseOrderLineID *uuid.UUID `json:"purchase_order_line_id"`
	SKU                 string     `json:"sku" binding:"max=100"`
	ProductID           *uuid.UUID `json:"product_id"`
	Description         string     `json:"description" binding:"max=500"`
	UnitCost            *string    `json:"unit_cost"`
	QtyShipped          int64      `json:"qty_shipped" binding:"min=0"`
	MeasuresBody
	Actor string `json:"-"`
}

// FromPO reports whether the request links a PO line
func (r AddLineRequest) FromPO() bool {
	return r.PurchaseOrderID != nil || r.PurchaseOrderLineID != nil
}

// UpdateLineRequest changes quantity and measures of a line
type UpdateLineRequest struct {
	QtyShipped int64 `json:"qty_shipped" binding:"min=0"`
	MeasuresBody
	Actor string `json:"-"`
}

// CostRequest adds or replaces a shipment cost. Amounts are decimal strings in major units.
type CostRequest struct {
	CostType         string  `json:"cost_type" binding:"required,cost_type"`
	AllocationMethod string  `json:"allocation_method" binding:"omitempty,allocation_method"`
	EstimatedAmount  string  `json:"estimated_amount" binding:"required"`
	ActualAmount     *string `json:"actual_amount"`
	Status           string  `json:"status" binding:"omitempty,cost_status"`
	Description      string  `json:"description" binding:"max=500"`
	InvoiceNumber    string  `json:"invoice_number" binding:"max=100"`
	VendorName       string  `json:"vendor_name" binding:"max=200"`
	Actor            string  `json:"-"`
}

func (r CostRequest) toDomain() (inbound.CostInput, error) {
	estimated, err := valueobject.ParseMoney(r.EstimatedAmount)
	if err != nil {
		return inbound.CostInput{}, err
	}
	in := inbound.CostInput{
		CostType:         inbound.CostType(r.CostType),
		AllocationMethod: inbound.AllocationMethod(r.AllocationMethod),
		EstimatedAmount:  estimated,
		Status:           inbound.CostStatus(r.Status),
		Description:      r.Description,
		InvoiceNumber:    r.InvoiceNumber,
		VendorName:       r.VendorName,
	}
	if r.ActualAmount != nil {
		actual, err := valueobject.ParseMoney(*r.ActualAmount)
		if err != nil {
			return inbound.CostInput{}, err
		}
		in.ActualAmount = &actual
	}
	return in, nil
}

// TransitionRequest asks for a lifecycle action
type TransitionRequest struct {
	Action          string `json:"action" binding:"required"`
	Notes           string `json:"notes" binding:"max=500"`
	ExpectedVersion int    `json:"expected_version" binding:"min=0"`
	Actor           string `json:"-"`
}

// ShipmentListFilter represents filter options for shipment list
type ShipmentListFilter struct {
	Search          string `form:"search"`
	Status          string `form:"status"`
	Mode            string `form:"mode"`
	PurchaseOrderID string `form:"purchase_order_id" binding:"omitempty,uuid"`
	Page            int    `form:"page" binding:"omitempty,min=1"`
	PageSize        int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy         string `form:"order_by"`
	OrderDir        string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// AllocationResponse is the landed-cost output of one line
type AllocationResponse struct {
	Freight        string `json:"freight"`
	Duty           string `json:"duty"`
	Insurance      string `json:"insurance"`
	Other          string `json:"other"`
	AllocatedCost  string `json:"allocated_cost"`
	LandedUnitCost string `json:"landed_unit_cost"`
	Remainder      string `json:"remainder"`
	Revision       int    `json:"revision"`
}

func toAllocationResponse(a *inbound.LineAllocation) *AllocationResponse {
	if a == nil {
		return nil
	}
	return &AllocationResponse{
		Freight:        a.Freight.String(),
		Duty:           a.Duty.String(),
		Insurance:      a.Insurance.String(),
		Other:          a.Other.String(),
		AllocatedCost:  a.AllocatedCost.String(),
		LandedUnitCost: a.LandedUnitCost.String(),
		Remainder:      a.Remainder.String(),
		Revision:       a.Revision,
	}
}

// ShipmentLineResponse represents a shipment line in API responses
type ShipmentLineResponse struct {
	ID                  uuid.UUID           `json:"id"`
	LineNumber          int                 `json:"line_number"`
	PurchaseOrderID     *uuid.UUID          `json:"purchase_order_id,omitempty"`
	PurchaseOrderLineID *uuid.UUID          `json:"purchase_order_line_id,omitempty"`
	PONumber            string              `json:"po_number,omitempty"`
	ProductID           *uuid.UUID          `json:"product_id,omitempty"`
	SKU                 string              `json:"sku,omitempty"`
	Description         string              `json:"description,omitempty"`
	QtyShipped          int64               `json:"qty_shipped"`
	PoUnitCost          *string             `json:"po_unit_cost"`
	TotalWeightKg       decimal.Decimal     `json:"total_weight_kg"`
	GrossVolumeCbm      decimal.Decimal     `json:"gross_volume_cbm"`
	NetVolumeCbm        decimal.Decimal     `json:"net_volume_cbm"`
	CartonCount         int                 `json:"carton_count"`
	PalletCount         int                 `json:"pallet_count"`
	Allocation          *AllocationResponse `json:"allocation"`
}

// ShipmentCostResponse represents a shipment cost in API responses
type ShipmentCostResponse struct {
	ID               uuid.UUID `json:"id"`
	CostType         string    `json:"cost_type"`
	AllocationMethod string    `json:"allocation_method"`
	EstimatedAmount  string    `json:"estimated_amount"`
	ActualAmount     *string   `json:"actual_amount"`
	Amount           string    `json:"amount"`
	Status           string    `json:"status"`
	Description      string    `json:"description,omitempty"`
	InvoiceNumber    string    `json:"invoice_number,omitempty"`
	VendorName       string    `json:"vendor_name,omitempty"`
}

// ShipmentResponse represents an inbound shipment in API responses
type ShipmentResponse struct {
	ID                   uuid.UUID              `json:"id"`
	Number               string                 `json:"number"`
	Status               string                 `json:"status"`
	Mode                 string                 `json:"mode"`
	Currency             string                 `json:"currency"`
	CarrierName          string                 `json:"carrier_name,omitempty"`
	ContainerNumber      string                 `json:"container_number,omitempty"`
	BillOfLading         string                 `json:"bill_of_lading,omitempty"`
	TrackingNumber       string                 `json:"tracking_number,omitempty"`
	OriginPort           string                 `json:"origin_port,omitempty"`
	DestinationPort      string                 `json:"destination_port,omitempty"`
	ETD                  *time.Time             `json:"etd,omitempty"`
	ETA                  *time.Time             `json:"eta,omitempty"`
	ShipDate             *time.Time             `json:"ship_date,omitempty"`
	DeliveredDate        *time.Time             `json:"delivered_date,omitempty"`
	ContainerCapacityCbm *decimal.Decimal       `json:"container_capacity_cbm,omitempty"`
	ContainerUtilization *decimal.Decimal       `json:"container_utilization,omitempty"`
	TotalWeightKg        decimal.Decimal        `json:"total_weight_kg"`
	TotalGrossVolumeCbm  decimal.Decimal        `json:"total_gross_volume_cbm"`
	EstimatedTotalCost   string                 `json:"estimated_total_cost"`
	ActualTotalCost      string                 `json:"actual_total_cost"`
	Lines                []ShipmentLineResponse `json:"lines"`
	Costs                []ShipmentCostResponse `json:"costs"`
	CostRevision         int                    `json:"cost_revision"`
	AllocationRevision   int                    `json:"allocation_revision"`
	AllocationFresh      bool                   `json:"allocation_fresh"`
	Finalized            bool                   `json:"finalized"`
	FinalizedAt          *time.Time             `json:"finalized_at,omitempty"`
	FinalizedRevision    int                    `json:"finalized_revision,omitempty"`
	CancelReason         string                 `json:"cancel_reason,omitempty"`
	Notes                string                 `json:"notes,omitempty"`
	AvailableActions     []string               `json:"available_actions"`
	History              []shared.StatusChange  `json:"history,omitempty"`
	CreatedAt            time.Time              `json:"created_at"`
	UpdatedAt            time.Time              `json:"updated_at"`
	Version              int                    `json:"version"`
}

// ShipmentListItemResponse represents a shipment in list responses
type ShipmentListItemResponse struct {
	ID                 uuid.UUID  `json:"id"`
	Number             string     `json:"number"`
	Status             string     `json:"status"`
	Mode               string     `json:"mode"`
	CarrierName        string     `json:"carrier_name,omitempty"`
	ETA                *time.Time `json:"eta,omitempty"`
	LineCount          int        `json:"line_count"`
	EstimatedTotalCost string     `json:"estimated_total_cost"`
	Finalized          bool       `json:"finalized"`
	CreatedAt          time.Time  `json:"created_at"`
	Version            int        `json:"version"`
}

// AddLineResponse returns the shipment with the open-quantity warning, if any
type AddLineResponse struct {
	LineID   uuid.UUID                `json:"line_id"`
	Warning  *inbound.QuantityWarning `json:"warning,omitempty"`
	Shipment ShipmentResponse         `json:"shipment"`
}

// CostBasisResponse records which basis a cost was spread on
type CostBasisResponse struct {
	CostID    uuid.UUID `json:"cost_id"`
	CostType  string    `json:"cost_type"`
	Requested string    `json:"requested_method"`
	Basis     string    `json:"basis"`
	Amount    string    `json:"amount"`
	FellBack  bool      `json:"fell_back"`
}

// AllocationRunResponse is the result of an allocation run
type AllocationRunResponse struct {
	TotalAllocated string              `json:"total_allocated"`
	Costs          []CostBasisResponse `json:"costs"`
	Shipment       ShipmentResponse    `json:"shipment"`
}

// TransitionResponse reports an applied action together with the resulting shipment
type TransitionResponse struct {
	From     string           `json:"from"`
	To       string           `json:"to"`
	Action   string           `json:"action"`
	Effects  []string         `json:"effects"`
	Shipment ShipmentResponse `json:"shipment"`
}

// ToShipmentResponse converts a domain shipment to a response DTO
func ToShipmentResponse(s *inbound.InboundShipment) ShipmentResponse {
	lines := make([]ShipmentLineResponse, len(s.Lines))
	for i := range s.Lines {
		l := &s.Lines[i]
		var cost *string
		if l.PoUnitCost != nil {
			c := l.PoUnitCost.String()
			cost = &c
		}
		lines[i] = ShipmentLineResponse{
			ID:                  l.ID,
			LineNumber:          l.LineNumber,
			PurchaseOrderID:     l.PurchaseOrderID,
			PurchaseOrderLineID: l.PurchaseOrderLineID,
			PONumber:            l.PONumber,
			ProductID:           l.ProductID,
			SKU:                 l.SKU,
			Description:         l.Description,
			QtyShipped:          l.QtyShipped,
			PoUnitCost:          cost,
			TotalWeightKg:       l.TotalWeightKg,
			GrossVolumeCbm:      l.GrossVolumeCbm,
			NetVolumeCbm:        l.NetVolumeCbm,
			CartonCount:         l.CartonCount,
			PalletCount:         l.PalletCount,
			Allocation:          toAllocationResponse(l.Allocation),
		}
	}

	costs := make([]ShipmentCostResponse, len(s.Costs))
	for i := range s.Costs {
		c := &s.Costs[i]
		var actual *string
		if c.ActualAmount != nil {
			a := c.ActualAmount.String()
			actual = &a
		}
		costs[i] = ShipmentCostResponse{
			ID:               c.ID,
			CostType:         string(c.CostType),
			AllocationMethod: string(c.AllocationMethod),
			EstimatedAmount:  c.EstimatedAmount.String(),
			ActualAmount:     actual,
			Amount:           c.Amount().String(),
			Status:           string(c.Status),
			Description:      c.Description,
			InvoiceNumber:    c.InvoiceNumber,
			VendorName:       c.VendorName,
		}
	}

	actions := s.AvailableActions()
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}

	return ShipmentResponse{
		ID:                   s.ID,
		Number:               s.Number,
		Status:               string(s.Status),
		Mode:                 string(s.Mode),
		Currency:             string(s.Currency),
		CarrierName:          s.CarrierName,
		ContainerNumber:      s.ContainerNumber,
		BillOfLading:         s.BillOfLading,
		TrackingNumber:       s.TrackingNumber,
		OriginPort:           s.OriginPort,
		DestinationPort:      s.DestinationPort,
		ETD:                  s.ETD,
		ETA:                  s.ETA,
		ShipDate:             s.ShipDate,
		DeliveredDate:        s.DeliveredDate,
		ContainerCapacityCbm: s.ContainerCapacityCbm,
		ContainerUtilization: s.ContainerUtilization(),
		TotalWeightKg:        s.TotalWeightKg,
		TotalGrossVolumeCbm:  s.TotalGrossVolumeCbm,
		EstimatedTotalCost:   s.EstimatedTotalCost.String(),
		ActualTotalCost:      s.ActualTotalCost.String(),
		Lines:                lines,
		Costs:                costs,
		CostRevision:         s.CostRevision,
		AllocationRevision:   s.AllocationRevision,
		AllocationFresh:      s.IsAllocationFresh(),
		Finalized:            s.Finalized,
		FinalizedAt:          s.FinalizedAt,
		FinalizedRevision:    s.FinalizedRevision,
		CancelReason:         s.CancelReason,
		Notes:                s.Notes,
		AvailableActions:     names,
		History:              s.History,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
		Version:              s.Version,
	}
}

// ToShipmentListItemResponses converts shipments to list item DTOs
func ToShipmentListItemResponses(shipments []inbound.InboundShipment) []ShipmentListItemResponse {
	items := make([]ShipmentListItemResponse, len(shipments))
	for i := range shipments {
		s := &shipments[i]
		items[i] = ShipmentListItemResponse{
			ID:                 s.ID,
			Number:             s.Number,
			Status:             string(s.Status),
			Mode:               string(s.Mode),
			CarrierName:        s.CarrierName,
			ETA:                s.ETA,
			LineCount:          len(s.Lines),
			EstimatedTotalCost: s.EstimatedTotalCost.String(),
			Finalized:          s.Finalized,
			CreatedAt:          s.CreatedAt,
			Version:            s.Version,
		}
	}
	return items
}

func toCostBasisResponses(costs []inbound.CostAllocation) []CostBasisResponse {
	out := make([]CostBasisResponse, len(costs))
	for i, c := range costs {
		out[i] = CostBasisResponse{
			CostID:    c.CostID,
			CostType:  string(c.CostType),
			Requested: string(c.Requested),
			Basis:     string(c.Basis),
			Amount:    c.Amount.String(),
			FellBack:  c.FellBack(),
		}
	}
	return out
}
