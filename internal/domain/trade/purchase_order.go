package trade

import (
	"fmt"
	"strings"
	"time"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseOrder is a commitment to buy from a vendor. It owns its lines, its
// charges and an append-only history of status changes and audited edits.
type PurchaseOrder struct {
	shared.BaseAggregateRoot
	Number                string
	VendorID              uuid.UUID
	Status                PurchaseOrderStatus
	Incoterm              *Incoterm
	PoType                PoType
	Priority              Priority
	Currency              valueobject.Currency
	Lines                 []PurchaseOrderLine
	Subtotal              valueobject.Money
	Discount              valueobject.Money
	Tax                   valueobject.Money
	ShippingCost          valueobject.Money
	Total                 valueobject.Money
	ExpectedDate          *time.Time
	VendorReference       string
	ConfirmedDeliveryDate *time.Time
	CancelReason          string
	Notes                 string
	SubmittedAt           *time.Time
	ApprovedAt            *time.Time
	SentAt                *time.Time
	AcknowledgedAt        *time.Time
	ClosedAt              *time.Time
	CancelledAt           *time.Time
	History               []shared.StatusChange

	clock shared.Clock
}

// NewPurchaseOrderInput holds the header fields of a new PO
type NewPurchaseOrderInput struct {
	Number       string
	VendorID     uuid.UUID
	Incoterm     *Incoterm
	PoType       PoType
	Priority     Priority
	Currency     valueobject.Currency
	ExpectedDate *time.Time
	Notes        string
	Actor        string
	Clock        shared.Clock
}

// NewPurchaseOrder creates a draft purchase order
func NewPurchaseOrder(in NewPurchaseOrderInput) (*PurchaseOrder, error) {
	if strings.TrimSpace(in.Number) == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "order number cannot be empty")
	}
	if len(in.Number) > 50 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "order number cannot exceed 50 characters")
	}
	if in.VendorID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "vendor is required")
	}
	if in.PoType == "" {
		in.PoType = PoTypeStandard
	}
	if !in.PoType.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown PO type %q", in.PoType))
	}
	if in.Priority == "" {
		in.Priority = PriorityNormal
	}
	if !in.Priority.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown priority %q", in.Priority))
	}
	if in.Incoterm != nil && !in.Incoterm.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown incoterm %q", *in.Incoterm))
	}
	if in.Currency == "" {
		in.Currency = valueobject.DefaultCurrency
	}

	order := &PurchaseOrder{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Number:            in.Number,
		VendorID:          in.VendorID,
		Status:            PurchaseOrderStatusDraft,
		Incoterm:          in.Incoterm,
		PoType:            in.PoType,
		Priority:          in.Priority,
		Currency:          in.Currency,
		Lines:             make([]PurchaseOrderLine, 0),
		ExpectedDate:      in.ExpectedDate,
		Notes:             in.Notes,
		clock:             in.Clock,
	}
	now := order.now()
	order.CreatedAt = now
	order.UpdatedAt = now
	order.appendHistory("", PurchaseOrderStatusDraft, historyActionCreate, in.Actor, "", now)
	order.AddDomainEvent(NewPurchaseOrderCreatedEvent(order, now))

	return order, nil
}

// SetClock overrides the time source, used by tests and by repositories that
// rehydrate an order.
func (o *PurchaseOrder) SetClock(c shared.Clock) {
	o.clock = c
}

func (o *PurchaseOrder) now() time.Time {
	if o.clock != nil {
		return o.clock()
	}
	return shared.SystemClock()
}

// AddLine appends a line. Only allowed in draft.
func (o *PurchaseOrder) AddLine(in LineInput) (*PurchaseOrderLine, error) {
	if err := o.requireDraft("add lines to"); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := o.now()
	line := PurchaseOrderLine{
		ID:              uuid.New(),
		PurchaseOrderID: o.ID,
		LineNumber:      o.nextLineNumber(),
		Status:          LineStatusOpen,
		CreatedAt:       now,
	}
	line.apply(in, now)
	o.Lines = append(o.Lines, line)
	o.recalculateTotals()
	o.UpdatedAt = now

	return &o.Lines[len(o.Lines)-1], nil
}

// UpdateLine replaces the editable fields of a line. Only allowed in draft.
func (o *PurchaseOrder) UpdateLine(lineID uuid.UUID, in LineInput) error {
	if err := o.requireDraft("update lines of"); err != nil {
		return err
	}
	if err := in.validate(); err != nil {
		return err
	}
	line := o.Line(lineID)
	if line == nil {
		return shared.NewDomainError(shared.CodeNotFound, "purchase order line not found")
	}
	now := o.now()
	line.apply(in, now)
	o.recalculateTotals()
	o.UpdatedAt = now
	return nil
}

// RemoveLine deletes a line. Only allowed in draft.
func (o *PurchaseOrder) RemoveLine(lineID uuid.UUID) error {
	if err := o.requireDraft("remove lines from"); err != nil {
		return err
	}
	for idx := range o.Lines {
		if o.Lines[idx].ID == lineID {
			o.Lines = append(o.Lines[:idx], o.Lines[idx+1:]...)
			o.recalculateTotals()
			o.UpdatedAt = o.now()
			return nil
		}
	}
	return shared.NewDomainError(shared.CodeNotFound, "purchase order line not found")
}

// Line returns the line with the given ID, or nil
func (o *PurchaseOrder) Line(lineID uuid.UUID) *PurchaseOrderLine {
	for idx := range o.Lines {
		if o.Lines[idx].ID == lineID {
			return &o.Lines[idx]
		}
	}
	return nil
}

// HasOpenLines reports whether any line still expects pieces
func (o *PurchaseOrder) HasOpenLines() bool {
	for idx := range o.Lines {
		if o.Lines[idx].IsOpen() {
			return true
		}
	}
	return false
}

// TransitionResult describes an applied lifecycle action and the side effects
// the caller must carry out.
type TransitionResult struct {
	From    PurchaseOrderStatus
	To      PurchaseOrderStatus
	Action  PurchaseOrderAction
	Effects []shared.DomainEvent
}

// ApplyTransition runs a lifecycle action. It returns
// *statemachine.InvalidTransitionError when the action is illegal from the
// current status or a guard fails, and ErrConcurrentModification when the
// caller's expected version does not match this snapshot.
func (o *PurchaseOrder) ApplyTransition(action PurchaseOrderAction, in TransitionInput) (*TransitionResult, error) {
	if err := o.CheckVersion(in.ExpectedVersion); err != nil {
		return nil, err
	}

	from := o.Status
	to, err := purchaseOrderLifecycle.Fire(from, action, poGuardData{order: o, input: in})
	if err != nil {
		return nil, err
	}

	now := o.now()
	notes := strings.TrimSpace(in.Notes)
	var effects []shared.DomainEvent

	switch action {
	case ActionSubmit:
		o.SubmittedAt = &now
	case ActionApprove:
		o.ApprovedAt = &now
	case ActionReturnToDraft:
		o.SubmittedAt = nil
	case ActionSend:
		o.SentAt = &now
		effects = append(effects, NewVendorNotificationRequestedEvent(o, VendorNoticeOrderSent, "", now))
	case ActionAcknowledge:
		o.AcknowledgedAt = &now
		if in.VendorReference != "" {
			o.VendorReference = in.VendorReference
		}
		if in.ConfirmedDeliveryDate != nil {
			d := *in.ConfirmedDeliveryDate
			o.ConfirmedDeliveryDate = &d
		}
	case ActionCreateReceipt:
		effects = append(effects, NewReceivingRequestedEvent(o, now))
	case ActionClose:
		o.ClosedAt = &now
	case ActionCancel:
		o.CancelledAt = &now
		o.CancelReason = notes
		if to == PurchaseOrderStatusVoided {
			effects = append(effects, NewVendorNotificationRequestedEvent(o, VendorNoticeVoided, notes, now))
		}
	}

	o.Status = to
	o.UpdatedAt = now
	change := o.appendHistory(from, to, string(action), in.Actor, notes, now)
	effects = append([]shared.DomainEvent{NewPurchaseOrderStatusChangedEvent(o, change)}, effects...)
	for _, e := range effects {
		o.AddDomainEvent(e)
	}

	return &TransitionResult{From: from, To: to, Action: action, Effects: effects}, nil
}

// AvailableActions lists the lifecycle actions legal right now. Guards on
// caller input, such as the cancel reason, are assumed satisfiable.
func (o *PurchaseOrder) AvailableActions() []PurchaseOrderAction {
	return purchaseOrderLifecycle.AvailableActions(o.Status, poGuardData{order: o, preview: true})
}

// LineReceipt is a quantity report from the Receiving subsystem for one line.
// Quantities are increments since the previous report.
type LineReceipt struct {
	LineID      uuid.UUID `json:"line_id"`
	ReceivedQty int64     `json:"received_qty"`
	DamagedQty  int64     `json:"damaged_qty"`
}

// ApplyReceipt records quantities reported by Receiving and moves the order to
// partially_received or received. This is driven by Receiving, not requested
// by a buyer, so it is not part of the action table.
func (o *PurchaseOrder) ApplyReceipt(receipts []LineReceipt, actor string) error {
	if !o.Status.AcceptsReceipts() {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("cannot record receipts for a purchase order in %s status", o.Status))
	}
	if len(receipts) == 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "receipt has no lines")
	}
	for _, r := range receipts {
		if r.ReceivedQty < 0 || r.DamagedQty < 0 {
			return shared.NewDomainError(shared.CodeInvalidInput, "receipt quantities cannot be negative")
		}
		if r.DamagedQty > r.ReceivedQty {
			return shared.NewDomainError(shared.CodeInvalidInput, "damaged quantity cannot exceed received quantity")
		}
		if o.Line(r.LineID) == nil {
			return shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("purchase order line %s not found", r.LineID))
		}
	}

	now := o.now()
	var received []string
	for _, r := range receipts {
		line := o.Line(r.LineID)
		line.ReceivedQty += r.ReceivedQty
		line.DamagedQty += r.DamagedQty
		line.UpdatedAt = now
		line.refreshStatus()
		received = append(received, fmt.Sprintf("line %d +%d", line.LineNumber, r.ReceivedQty))
	}

	from := o.Status
	to := from
	switch {
	case !o.HasOpenLines():
		to = PurchaseOrderStatusReceived
	case o.anyReceived():
		to = PurchaseOrderStatusPartiallyReceived
	}
	o.Status = to
	o.UpdatedAt = now
	o.appendHistory(from, to, historyActionReceiptReport, actor, strings.Join(received, ", "), now)
	o.AddDomainEvent(NewPurchaseOrderReceiptRecordedEvent(o, receipts, now))
	return nil
}

func (o *PurchaseOrder) anyReceived() bool {
	for idx := range o.Lines {
		if o.Lines[idx].ReceivedQty > 0 {
			return true
		}
	}
	return false
}

// LinesTotal is the exact, unrounded sum of line totals
func (o *PurchaseOrder) LinesTotal() decimal.Decimal {
	sum := decimal.Zero
	for idx := range o.Lines {
		sum = sum.Add(o.Lines[idx].LineTotal())
	}
	return sum
}

// recalculateTotals keeps total = subtotal - discount + tax + shipping.
// The subtotal is the only rounding point: sub-cent line totals are summed
// exactly, then rounded half away from zero to cents.
func (o *PurchaseOrder) recalculateTotals() {
	o.Subtotal = valueobject.RoundToMoney(o.LinesTotal())
	o.Total = o.Subtotal.Subtract(o.Discount).Add(o.Tax).Add(o.ShippingCost)
}

func (o *PurchaseOrder) requireDraft(verb string) error {
	if o.Status != PurchaseOrderStatusDraft {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("cannot %s a purchase order in %s status", verb, o.Status))
	}
	return nil
}

func (o *PurchaseOrder) nextLineNumber() int {
	n := 0
	for _, l := range o.Lines {
		if l.LineNumber > n {
			n = l.LineNumber
		}
	}
	return n + 1
}

func (o *PurchaseOrder) appendHistory(from, to PurchaseOrderStatus, action, actor, notes string, at time.Time) shared.StatusChange {
	change := shared.StatusChange{
		From:   string(from),
		To:     string(to),
		Action: action,
		At:     at,
		Actor:  actor,
		Notes:  notes,
	}
	o.History = append(o.History, change)
	return change
}
