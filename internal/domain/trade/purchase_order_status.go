package trade

// PurchaseOrderStatus represents the lifecycle state of a purchase order
type PurchaseOrderStatus string

const (
	PurchaseOrderStatusDraft             PurchaseOrderStatus = "draft"
	PurchaseOrderStatusPendingApproval   PurchaseOrderStatus = "pending_approval"
	PurchaseOrderStatusApproved          PurchaseOrderStatus = "approved"
	PurchaseOrderStatusSent              PurchaseOrderStatus = "sent"
	PurchaseOrderStatusAcknowledged      PurchaseOrderStatus = "acknowledged"
	PurchaseOrderStatusPartiallyReceived PurchaseOrderStatus = "partially_received"
	PurchaseOrderStatusReceived          PurchaseOrderStatus = "received"
	PurchaseOrderStatusClosed            PurchaseOrderStatus = "closed"
	PurchaseOrderStatusCancelled         PurchaseOrderStatus = "cancelled"
	PurchaseOrderStatusVoided            PurchaseOrderStatus = "voided"
)

// AllPurchaseOrderStatuses lists every status in lifecycle order
func AllPurchaseOrderStatuses() []PurchaseOrderStatus {
	return []PurchaseOrderStatus{
		PurchaseOrderStatusDraft,
		PurchaseOrderStatusPendingApproval,
		PurchaseOrderStatusApproved,
		PurchaseOrderStatusSent,
		PurchaseOrderStatusAcknowledged,
		PurchaseOrderStatusPartiallyReceived,
		PurchaseOrderStatusReceived,
		PurchaseOrderStatusClosed,
		PurchaseOrderStatusCancelled,
		PurchaseOrderStatusVoided,
	}
}

// IsValid checks if the status is a valid PurchaseOrderStatus
func (s PurchaseOrderStatus) IsValid() bool {
	for _, known := range AllPurchaseOrderStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// String returns the string representation of PurchaseOrderStatus
func (s PurchaseOrderStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further action is possible
func (s PurchaseOrderStatus) IsTerminal() bool {
	return s == PurchaseOrderStatusClosed || s == PurchaseOrderStatusCancelled || s == PurchaseOrderStatusVoided
}

// ChargesEditable reports whether discount, tax, shipping and incoterm may change
func (s PurchaseOrderStatus) ChargesEditable() bool {
	return !s.IsTerminal()
}

// AcceptsReceipts reports whether Receiving may report quantities against the PO
func (s PurchaseOrderStatus) AcceptsReceipts() bool {
	switch s {
	case PurchaseOrderStatusSent, PurchaseOrderStatusAcknowledged, PurchaseOrderStatusPartiallyReceived:
		return true
	}
	return false
}

// PurchaseOrderAction is a caller-requested lifecycle action
type PurchaseOrderAction string

const (
	ActionSubmit        PurchaseOrderAction = "submit"
	ActionReturnToDraft PurchaseOrderAction = "return_to_draft"
	ActionApprove       PurchaseOrderAction = "approve"
	ActionSend          PurchaseOrderAction = "send"
	ActionAcknowledge   PurchaseOrderAction = "acknowledge"
	ActionCreateReceipt PurchaseOrderAction = "create_receipt"
	ActionClose         PurchaseOrderAction = "close"
	ActionCancel        PurchaseOrderAction = "cancel"
)

// Audit-only actions recorded in the history next to lifecycle actions
const (
	historyActionCreate        = "create"
	historyActionEditCharges   = "edit_charges"
	historyActionReceiptReport = "receipt_reported"
)

// PoType classifies the order
type PoType string

const (
	PoTypeStandard PoType = "standard"
	PoTypeBlanket  PoType = "blanket"
	PoTypeDropship PoType = "dropship"
)

// IsValid checks if the type is known
func (t PoType) IsValid() bool {
	return t == PoTypeStandard || t == PoTypeBlanket || t == PoTypeDropship
}

// Priority ranks orders for buyers
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// IsValid checks if the priority is known
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
