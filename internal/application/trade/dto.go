package trade

import (
	"time"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/domain/shared/valueobject"
	"github.com/cardshellz/echelon/internal/domain/trade"
	"github.com/google/uuid"
)

// ==================== Purchase Order DTOs ====================

// CreatePurchaseOrderRequest represents a request to create a purchase order
type CreatePurchaseOrderRequest struct {
	Number       string          `json:"number" binding:"required,min=1,max=50"`
	VendorID     uuid.UUID       `json:"vendor_id" binding:"required"`
	Incoterm     string          `json:"incoterm" binding:"omitempty,incoterm"`
	PoType       string          `json:"po_type" binding:"omitempty,oneof=standard blanket dropship"`
	Priority     string          `json:"priority" binding:"omitempty,oneof=low normal high urgent"`
	Currency     string          `json:"currency" binding:"omitempty,len=3"`
	ExpectedDate *time.Time      `json:"expected_date"`
	Notes        string          `json:"notes" binding:"max=2000"`
	Lines        []LineInputBody `json:"lines" binding:"dive"`
	Actor        string          `json:"-"`
}

// LineInputBody is the editable content of a PO line. Unit cost is a decimal
// string with up to six fractional digits, e.g. "0.0525".
type LineInputBody struct {
	ProductID   uuid.UUID  `json:"product_id" binding:"required"`
	VariantID   *uuid.UUID `json:"variant_id"`
	VendorSKU   string     `json:"vendor_sku" binding:"max=100"`
	Description string     `json:"description" binding:"max=500"`
	OrderQty    int64      `json:"order_qty" binding:"min=0"`
	UnitsPerUom int64      `json:"units_per_uom" binding:"min=0"`
	UnitCost    *string    `json:"unit_cost"`
}

// ToDomain converts the body into a domain line input
func (b LineInputBody) ToDomain() (trade.LineInput, error) {
	in := trade.LineInput{
		ProductID:   b.ProductID,
		VariantID:   b.VariantID,
		VendorSKU:   b.VendorSKU,
		Description: b.Description,
		OrderQty:    b.OrderQty,
		UnitsPerUom: b.UnitsPerUom,
	}
	if b.UnitCost != nil {
		cost, err := valueobject.ParseUnitCost(*b.UnitCost)
		if err != nil {
			return trade.LineInput{}, err
		}
		in.UnitCost = &cost
	}
	return in, nil
}

// EditChargesRequest is a partial update of PO-level charges. Amounts are
// decimal strings in major units.
type EditChargesRequest struct {
	Discount        *string `json:"discount"`
	Tax             *string `json:"tax"`
	ShippingCost    *string `json:"shipping_cost"`
	Incoterm        *string `json:"incoterm" binding:"omitempty,incoterm"`
	ClearIncoterm   bool    `json:"clear_incoterm"`
	Notes           string  `json:"notes" binding:"max=500"`
	ExpectedVersion int     `json:"expected_version" binding:"min=0"`
	Actor           string  `json:"-"`
}

// ToDomain parses the amounts into a domain charge patch
func (r EditChargesRequest) ToDomain() (trade.ChargePatch, error) {
	patch := trade.ChargePatch{
		ClearIncoterm:   r.ClearIncoterm,
		Actor:           r.Actor,
		Notes:           r.Notes,
		ExpectedVersion: r.ExpectedVersion,
	}
	for _, f := range []struct {
		raw *string
		dst **valueobject.Money
	}{{r.Discount, &patch.Discount}, {r.Tax, &patch.Tax}, {r.ShippingCost, &patch.ShippingCost}} {
		if f.raw == nil {
			continue
		}
		m, err := valueobject.ParseMoney(*f.raw)
		if err != nil {
			return trade.ChargePatch{}, err
		}
		*f.dst = &m
	}
	if r.Incoterm != nil {
		term, err := trade.ParseIncoterm(*r.Incoterm)
		if err != nil {
			return trade.ChargePatch{}, err
		}
		patch.Incoterm = term
	}
	return patch, nil
}

// TransitionRequest asks for a lifecycle action
type TransitionRequest struct {
	Action                string     `json:"action" binding:"required"`
	Notes                 string     `json:"notes" binding:"max=500"`
	ExpectedVersion       int        `json:"expected_version" binding:"min=0"`
	VendorReference       string     `json:"vendor_reference" binding:"max=100"`
	ConfirmedDeliveryDate *time.Time `json:"confirmed_delivery_date"`
	Actor                 string     `json:"-"`
}

// ReportReceiptRequest carries quantities reported back by Receiving
type ReportReceiptRequest struct {
	Lines []trade.LineReceipt `json:"lines" binding:"required,min=1"`
	Actor string              `json:"-"`
}

// PurchaseOrderListFilter represents filter options for purchase order list
type PurchaseOrderListFilter struct {
	Search   string `form:"search"`
	Status   string `form:"status"`
	VendorID string `form:"vendor_id" binding:"omitempty,uuid"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// PurchaseOrderLineResponse represents a PO line in API responses
type PurchaseOrderLineResponse struct {
	ID          uuid.UUID  `json:"id"`
	LineNumber  int        `json:"line_number"`
	ProductID   uuid.UUID  `json:"product_id"`
	VariantID   *uuid.UUID `json:"variant_id,omitempty"`
	VendorSKU   string     `json:"vendor_sku,omitempty"`
	Description string     `json:"description,omitempty"`
	OrderQty    int64      `json:"order_qty"`
	UnitsPerUom int64      `json:"units_per_uom"`
	UnitCost    *string    `json:"unit_cost"`
	LineTotal   string     `json:"line_total"`
	ReceivedQty int64      `json:"received_qty"`
	DamagedQty  int64      `json:"damaged_qty"`
	OpenQty     int64      `json:"open_qty"`
	Status      string     `json:"status"`
}

// ChargeApplicabilityResponse tells the client which charge inputs to enable
type ChargeApplicabilityResponse struct {
	Tax      bool `json:"tax"`
	Shipping bool `json:"shipping"`
}

// PurchaseOrderResponse represents a purchase order in API responses
type PurchaseOrderResponse struct {
	ID                    uuid.UUID                   `json:"id"`
	Number                string                      `json:"number"`
	VendorID              uuid.UUID                   `json:"vendor_id"`
	Status                string                      `json:"status"`
	Incoterm              *string                     `json:"incoterm"`
	PoType                string                      `json:"po_type"`
	Priority              string                      `json:"priority"`
	Currency              string                      `json:"currency"`
	Lines                 []PurchaseOrderLineResponse `json:"lines"`
	Subtotal              string                      `json:"subtotal"`
	Discount              string                      `json:"discount"`
	Tax                   string                      `json:"tax"`
	ShippingCost          string                      `json:"shipping_cost"`
	Total                 string                      `json:"total"`
	ExpectedDate          *time.Time                  `json:"expected_date,omitempty"`
	VendorReference       string                      `json:"vendor_reference,omitempty"`
	ConfirmedDeliveryDate *time.Time                  `json:"confirmed_delivery_date,omitempty"`
	CancelReason          string                      `json:"cancel_reason,omitempty"`
	Notes                 string                      `json:"notes,omitempty"`
	SubmittedAt           *time.Time                  `json:"submitted_at,omitempty"`
	ApprovedAt            *time.Time                  `json:"approved_at,omitempty"`
	SentAt                *time.Time                  `json:"sent_at,omitempty"`
	AcknowledgedAt        *time.Time                  `json:"acknowledged_at,omitempty"`
	ClosedAt              *time.Time                  `json:"closed_at,omitempty"`
	CancelledAt           *time.Time                  `json:"cancelled_at,omitempty"`
	AvailableActions      []string                    `json:"available_actions"`
	CanEditCharge         ChargeApplicabilityResponse `json:"can_edit_charge"`
	History               []shared.StatusChange       `json:"history,omitempty"`
	CreatedAt             time.Time                   `json:"created_at"`
	UpdatedAt             time.Time                   `json:"updated_at"`
	Version               int                         `json:"version"`
}

// PurchaseOrderListItemResponse represents a purchase order in list responses (less detail)
type PurchaseOrderListItemResponse struct {
	ID        uuid.UUID  `json:"id"`
	Number    string     `json:"number"`
	VendorID  uuid.UUID  `json:"vendor_id"`
	Status    string     `json:"status"`
	Priority  string     `json:"priority"`
	LineCount int        `json:"line_count"`
	Total     string     `json:"total"`
	Currency  string     `json:"currency"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	Version   int        `json:"version"`
}

// TransitionResponse reports an applied action together with the resulting order
type TransitionResponse struct {
	From    string                `json:"from"`
	To      string                `json:"to"`
	Action  string                `json:"action"`
	Effects []string              `json:"effects"`
	Order   PurchaseOrderResponse `json:"order"`
}

// ToPurchaseOrderResponse converts a domain order to a response DTO
func ToPurchaseOrderResponse(o *trade.PurchaseOrder) PurchaseOrderResponse {
	lines := make([]PurchaseOrderLineResponse, len(o.Lines))
	for i := range o.Lines {
		l := &o.Lines[i]
		var cost *string
		if l.UnitCost != nil {
			s := l.UnitCost.String()
			cost = &s
		}
		lines[i] = PurchaseOrderLineResponse{
			ID:          l.ID,
			LineNumber:  l.LineNumber,
			ProductID:   l.ProductID,
			VariantID:   l.VariantID,
			VendorSKU:   l.VendorSKU,
			Description: l.Description,
			OrderQty:    l.OrderQty,
			UnitsPerUom: l.UnitsPerUom,
			UnitCost:    cost,
			LineTotal:   l.LineTotal().String(),
			ReceivedQty: l.ReceivedQty,
			DamagedQty:  l.DamagedQty,
			OpenQty:     l.OpenQty(),
			Status:      string(l.Status),
		}
	}

	var term *string
	if o.Incoterm != nil {
		s := o.Incoterm.String()
		term = &s
	}
	actions := o.AvailableActions()
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	rules := o.CanEditCharge()

	return PurchaseOrderResponse{
		ID:                    o.ID,
		Number:                o.Number,
		VendorID:              o.VendorID,
		Status:                string(o.Status),
		Incoterm:              term,
		PoType:                string(o.PoType),
		Priority:              string(o.Priority),
		Currency:              string(o.Currency),
		Lines:                 lines,
		Subtotal:              o.Subtotal.String(),
		Discount:              o.Discount.String(),
		Tax:                   o.Tax.String(),
		ShippingCost:          o.ShippingCost.String(),
		Total:                 o.Total.String(),
		ExpectedDate:          o.ExpectedDate,
		VendorReference:       o.VendorReference,
		ConfirmedDeliveryDate: o.ConfirmedDeliveryDate,
		CancelReason:          o.CancelReason,
		Notes:                 o.Notes,
		SubmittedAt:           o.SubmittedAt,
		ApprovedAt:            o.ApprovedAt,
		SentAt:                o.SentAt,
		AcknowledgedAt:        o.AcknowledgedAt,
		ClosedAt:              o.ClosedAt,
		CancelledAt:           o.CancelledAt,
		AvailableActions:      names,
		CanEditCharge:         ChargeApplicabilityResponse{Tax: rules.TaxApplicable, Shipping: rules.ShippingApplicable},
		History:               o.History,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
		Version:               o.Version,
	}
}

// ToPurchaseOrderListItemResponses converts orders to list item DTOs
func ToPurchaseOrderListItemResponses(orders []trade.PurchaseOrder) []PurchaseOrderListItemResponse {
	items := make([]PurchaseOrderListItemResponse, len(orders))
	for i := range orders {
		o := &orders[i]
		items[i] = PurchaseOrderListItemResponse{
			ID:        o.ID,
			Number:    o.Number,
			VendorID:  o.VendorID,
			Status:    string(o.Status),
			Priority:  string(o.Priority),
			LineCount: len(o.Lines),
			Total:     o.Total.String(),
			Currency:  string(o.Currency),
			SentAt:    o.SentAt,
			CreatedAt: o.CreatedAt,
			Version:   o.Version,
		}
	}
	return items
}

// IncotermResponse is one row of the charge applicability table
type IncotermResponse struct {
	Code               string `json:"code"`
	TaxApplicable      bool   `json:"tax_applicable"`
	ShippingApplicable bool   `json:"shipping_applicable"`
}

// IncotermTable lists every incoterm with its charge rules
func IncotermTable() []IncotermResponse {
	terms := trade.AllIncoterms()
	rows := make([]IncotermResponse, len(terms))
	for i, t := range terms {
		term := t
		rules := trade.Applicability(&term)
		rows[i] = IncotermResponse{
			Code:               t.String(),
			TaxApplicable:      rules.TaxApplicable,
			ShippingApplicable: rules.ShippingApplicable,
		}
	}
	return rows
}
