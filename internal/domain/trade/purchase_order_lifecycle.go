package trade

import (
	"strings"
	"time"

	"github.com/cardshellz/echelon/internal/domain/shared/statemachine"
)

// TransitionInput is the caller-supplied guard data for a PO transition
type TransitionInput struct {
	Actor string
	// Notes doubles as the cancel/void reason
	Notes string
	// ExpectedVersion is the version the caller last read; 0 skips the check
	ExpectedVersion       int
	VendorReference       string
	ConfirmedDeliveryDate *time.Time
}

// poGuardData is what lifecycle guards see. In preview mode (listing available
// actions) guards that depend on caller input pass, since the input is not known yet.
type poGuardData struct {
	order   *PurchaseOrder
	input   TransitionInput
	preview bool
}

type poTransition = statemachine.Transition[PurchaseOrderStatus, PurchaseOrderAction, poGuardData]

var purchaseOrderLifecycle = statemachine.New(
	poTransition{
		Action: ActionSubmit,
		From:   []PurchaseOrderStatus{PurchaseOrderStatusDraft},
		To:     PurchaseOrderStatusPendingApproval,
		Guard:  guardLinesComplete,
	},
	poTransition{
		Action: ActionReturnToDraft,
		From:   []PurchaseOrderStatus{PurchaseOrderStatusPendingApproval},
		To:     PurchaseOrderStatusDraft,
	},
	poTransition{
		Action: ActionApprove,
		From:   []PurchaseOrderStatus{PurchaseOrderStatusPendingApproval},
		To:     PurchaseOrderStatusApproved,
	},
	poTransition{
		Action: ActionSend,
		From:   []PurchaseOrderStatus{PurchaseOrderStatusApproved},
		To:     PurchaseOrderStatusSent,
	},
	poTransition{
		Action: ActionAcknowledge,
		From:   []PurchaseOrderStatus{PurchaseOrderStatusSent},
		To:     PurchaseOrderStatusAcknowledged,
	},
	poTransition{
		Action:    ActionCreateReceipt,
		From:      []PurchaseOrderStatus{PurchaseOrderStatusSent, PurchaseOrderStatusAcknowledged, PurchaseOrderStatusPartiallyReceived},
		KeepState: true,
		Guard:     guardNotFullyReceived,
	},
	poTransition{
		Action: ActionClose,
		From:   []PurchaseOrderStatus{PurchaseOrderStatusReceived},
		To:     PurchaseOrderStatusClosed,
		Guard:  guardNoOpenLines,
	},
	poTransition{
		Action: ActionCancel,
		From:   []PurchaseOrderStatus{PurchaseOrderStatusDraft, PurchaseOrderStatusPendingApproval, PurchaseOrderStatusApproved},
		To:     PurchaseOrderStatusCancelled,
		Guard:  guardReasonProvided,
	},
	// Once the vendor holds the order a cancel becomes a void.
	poTransition{
		Action: ActionCancel,
		From:   []PurchaseOrderStatus{PurchaseOrderStatusSent, PurchaseOrderStatusAcknowledged},
		To:     PurchaseOrderStatusVoided,
		Guard:  guardReasonProvided,
	},
)

func guardLinesComplete(d poGuardData) statemachine.GuardResult {
	if len(d.order.Lines) == 0 {
		return statemachine.Deny("purchase order has no lines")
	}
	for _, l := range d.order.Lines {
		if l.OrderQty <= 0 {
			return statemachine.Deny("line %d has no quantity", l.LineNumber)
		}
		if l.UnitCost == nil {
			return statemachine.Deny("line %d has no unit cost", l.LineNumber)
		}
	}
	return statemachine.Allow()
}

func guardNotFullyReceived(d poGuardData) statemachine.GuardResult {
	if !d.order.HasOpenLines() {
		return statemachine.Deny("purchase order is fully received")
	}
	return statemachine.Allow()
}

func guardNoOpenLines(d poGuardData) statemachine.GuardResult {
	if d.order.HasOpenLines() {
		return statemachine.Deny("purchase order still has open lines")
	}
	return statemachine.Allow()
}

func guardReasonProvided(d poGuardData) statemachine.GuardResult {
	if d.preview || strings.TrimSpace(d.input.Notes) != "" {
		return statemachine.Allow()
	}
	return statemachine.Deny("a reason is required")
}

// PurchaseOrderActions lists every lifecycle action in table order
func PurchaseOrderActions() []PurchaseOrderAction {
	return purchaseOrderLifecycle.Actions()
}

// ParsePurchaseOrderAction validates an action name
func ParsePurchaseOrderAction(s string) (PurchaseOrderAction, bool) {
	for _, a := range PurchaseOrderActions() {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}
