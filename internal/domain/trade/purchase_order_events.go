package trade

import (
	"time"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// AggregateTypePurchaseOrder names purchase orders in events and the outbox
const AggregateTypePurchaseOrder = "PurchaseOrder"

// Event type constants
const (
	EventTypePurchaseOrderCreated         = "PurchaseOrderCreated"
	EventTypePurchaseOrderStatusChanged   = "PurchaseOrderStatusChanged"
	EventTypeVendorNotificationRequested  = "VendorNotificationRequested"
	EventTypeReceivingRequested           = "ReceivingRequested"
	EventTypePurchaseOrderChargesEdited   = "PurchaseOrderChargesEdited"
	EventTypePurchaseOrderReceiptRecorded = "PurchaseOrderReceiptRecorded"
)

// VendorNotice distinguishes why the vendor is being contacted
type VendorNotice string

const (
	VendorNoticeOrderSent VendorNotice = "order_sent"
	VendorNoticeVoided    VendorNotice = "order_voided"
)

// PurchaseOrderCreatedEvent is raised when a new purchase order is created
type PurchaseOrderCreatedEvent struct {
	shared.BaseDomainEvent
	OrderID  uuid.UUID `json:"order_id"`
	Number   string    `json:"number"`
	VendorID uuid.UUID `json:"vendor_id"`
}

// NewPurchaseOrderCreatedEvent creates a new PurchaseOrderCreatedEvent
func NewPurchaseOrderCreatedEvent(order *PurchaseOrder, at time.Time) *PurchaseOrderCreatedEvent {
	return &PurchaseOrderCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePurchaseOrderCreated, AggregateTypePurchaseOrder, order.ID, at),
		OrderID:         order.ID,
		Number:          order.Number,
		VendorID:        order.VendorID,
	}
}

// PurchaseOrderStatusChangedEvent accompanies every lifecycle transition
type PurchaseOrderStatusChangedEvent struct {
	shared.BaseDomainEvent
	OrderID uuid.UUID           `json:"order_id"`
	Number  string              `json:"number"`
	From    PurchaseOrderStatus `json:"from"`
	To      PurchaseOrderStatus `json:"to"`
	Action  PurchaseOrderAction `json:"action"`
	Actor   string              `json:"actor"`
	Notes   string              `json:"notes,omitempty"`
}

// NewPurchaseOrderStatusChangedEvent creates a new PurchaseOrderStatusChangedEvent
func NewPurchaseOrderStatusChangedEvent(order *PurchaseOrder, change shared.StatusChange) *PurchaseOrderStatusChangedEvent {
	return &PurchaseOrderStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePurchaseOrderStatusChanged, AggregateTypePurchaseOrder, order.ID, change.At),
		OrderID:         order.ID,
		Number:          order.Number,
		From:            PurchaseOrderStatus(change.From),
		To:              PurchaseOrderStatus(change.To),
		Action:          PurchaseOrderAction(change.Action),
		Actor:           change.Actor,
		Notes:           change.Notes,
	}
}

// VendorNotificationRequestedEvent asks the notification worker to contact the
// vendor. Raised on send, and on cancel once the vendor already holds the PO.
type VendorNotificationRequestedEvent struct {
	shared.BaseDomainEvent
	OrderID  uuid.UUID            `json:"order_id"`
	Number   string               `json:"number"`
	VendorID uuid.UUID            `json:"vendor_id"`
	Notice   VendorNotice         `json:"notice"`
	Reason   string               `json:"reason,omitempty"`
	Total    valueobject.Money    `json:"total_cents"`
	Currency valueobject.Currency `json:"currency"`
}

// NewVendorNotificationRequestedEvent creates a new VendorNotificationRequestedEvent
func NewVendorNotificationRequestedEvent(order *PurchaseOrder, notice VendorNotice, reason string, at time.Time) *VendorNotificationRequestedEvent {
	return &VendorNotificationRequestedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeVendorNotificationRequested, AggregateTypePurchaseOrder, order.ID, at),
		OrderID:         order.ID,
		Number:          order.Number,
		VendorID:        order.VendorID,
		Notice:          notice,
		Reason:          reason,
		Total:           order.Total,
		Currency:        order.Currency,
	}
}

// ReceivingLine is an expected receipt quantity for one PO line
type ReceivingLine struct {
	LineID      uuid.UUID `json:"line_id"`
	ProductID   uuid.UUID `json:"product_id"`
	VendorSKU   string    `json:"vendor_sku,omitempty"`
	ExpectedQty int64     `json:"expected_qty"`
}

// ReceivingRequestedEvent asks the Receiving subsystem to open a receipt for
// every open line. Raised by the create_receipt action.
type ReceivingRequestedEvent struct {
	shared.BaseDomainEvent
	OrderID uuid.UUID       `json:"order_id"`
	Number  string          `json:"number"`
	Lines   []ReceivingLine `json:"lines"`
}

// NewReceivingRequestedEvent creates a ReceivingRequestedEvent covering every open line
func NewReceivingRequestedEvent(order *PurchaseOrder, at time.Time) *ReceivingRequestedEvent {
	lines := make([]ReceivingLine, 0, len(order.Lines))
	for _, l := range order.Lines {
		if !l.IsOpen() {
			continue
		}
		lines = append(lines, ReceivingLine{
			LineID:      l.ID,
			ProductID:   l.ProductID,
			VendorSKU:   l.VendorSKU,
			ExpectedQty: l.OpenQty(),
		})
	}
	return &ReceivingRequestedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReceivingRequested, AggregateTypePurchaseOrder, order.ID, at),
		OrderID:         order.ID,
		Number:          order.Number,
		Lines:           lines,
	}
}

// PurchaseOrderChargesEditedEvent records a successful charge edit
type PurchaseOrderChargesEditedEvent struct {
	shared.BaseDomainEvent
	OrderID      uuid.UUID         `json:"order_id"`
	Incoterm     *Incoterm         `json:"incoterm,omitempty"`
	Discount     valueobject.Money `json:"discount_cents"`
	Tax          valueobject.Money `json:"tax_cents"`
	ShippingCost valueobject.Money `json:"shipping_cost_cents"`
	Total        valueobject.Money `json:"total_cents"`
}

// NewPurchaseOrderChargesEditedEvent creates a new PurchaseOrderChargesEditedEvent
func NewPurchaseOrderChargesEditedEvent(order *PurchaseOrder, at time.Time) *PurchaseOrderChargesEditedEvent {
	return &PurchaseOrderChargesEditedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePurchaseOrderChargesEdited, AggregateTypePurchaseOrder, order.ID, at),
		OrderID:         order.ID,
		Incoterm:        order.Incoterm,
		Discount:        order.Discount,
		Tax:             order.Tax,
		ShippingCost:    order.ShippingCost,
		Total:           order.Total,
	}
}

// PurchaseOrderReceiptRecordedEvent is raised when Receiving reports quantities back
type PurchaseOrderReceiptRecordedEvent struct {
	shared.BaseDomainEvent
	OrderID  uuid.UUID           `json:"order_id"`
	Status   PurchaseOrderStatus `json:"status"`
	Receipts []LineReceipt       `json:"receipts"`
}

// NewPurchaseOrderReceiptRecordedEvent creates a new PurchaseOrderReceiptRecordedEvent
func NewPurchaseOrderReceiptRecordedEvent(order *PurchaseOrder, receipts []LineReceipt, at time.Time) *PurchaseOrderReceiptRecordedEvent {
	return &PurchaseOrderReceiptRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePurchaseOrderReceiptRecorded, AggregateTypePurchaseOrder, order.ID, at),
		OrderID:         order.ID,
		Status:          order.Status,
		Receipts:        receipts,
	}
}
