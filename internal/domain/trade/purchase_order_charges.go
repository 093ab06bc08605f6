package trade

import (
	"fmt"
	"strings"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/domain/shared/valueobject"
)

// ChargePatch is a partial update of PO-level charges. Nil fields are left as they are.
type ChargePatch struct {
	Discount     *valueobject.Money
	Tax          *valueobject.Money
	ShippingCost *valueobject.Money
	// Incoterm replaces the term; ClearIncoterm removes it
	Incoterm      *Incoterm
	ClearIncoterm bool
	Actor         string
	Notes         string
	// ExpectedVersion is the version the caller last read; 0 skips the check
	ExpectedVersion int
}

func (p ChargePatch) isEmpty() bool {
	return p.Discount == nil && p.Tax == nil && p.ShippingCost == nil && p.Incoterm == nil && !p.ClearIncoterm
}

func chargeNotApplicable(charge string, term *Incoterm) error {
	return shared.NewDomainError(shared.CodeChargeNotApplicable,
		fmt.Sprintf("%s is not applicable under incoterm %s", charge, *term))
}

// EditCharges applies a charge patch. A patch that touches tax or shipping is
// refused when the resulting incoterm does not allow that charge, whatever the
// amount. Changing the incoterm is refused while a charge it forbids is still
// non-zero, so such charges are cleared under the old term first. Every
// successful edit recomputes the total and appends a history entry.
func (o *PurchaseOrder) EditCharges(patch ChargePatch) error {
	if err := o.CheckVersion(patch.ExpectedVersion); err != nil {
		return err
	}
	if !o.Status.ChargesEditable() {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("charges cannot be edited on a purchase order in %s status", o.Status))
	}
	if patch.isEmpty() {
		return shared.NewDomainError(shared.CodeInvalidInput, "charge patch is empty")
	}
	if patch.Incoterm != nil && patch.ClearIncoterm {
		return shared.NewDomainError(shared.CodeInvalidInput, "cannot set and clear the incoterm at once")
	}
	for _, c := range []struct {
		name   string
		amount *valueobject.Money
	}{{"discount", patch.Discount}, {"tax", patch.Tax}, {"shipping cost", patch.ShippingCost}} {
		if c.amount != nil && c.amount.IsNegative() {
			return shared.NewDomainError(shared.CodeInvalidInput, c.name+" cannot be negative")
		}
	}
	if patch.Incoterm != nil && !patch.Incoterm.IsValid() {
		return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown incoterm %q", *patch.Incoterm))
	}

	term := o.Incoterm
	switch {
	case patch.ClearIncoterm:
		term = nil
	case patch.Incoterm != nil:
		t := *patch.Incoterm
		term = &t
	}
	rules := Applicability(term)

	tax, shipping, discount := o.Tax, o.ShippingCost, o.Discount
	if patch.Tax != nil {
		if !rules.TaxApplicable {
			return chargeNotApplicable("tax", term)
		}
		tax = *patch.Tax
	}
	if patch.ShippingCost != nil {
		if !rules.ShippingApplicable {
			return chargeNotApplicable("shipping cost", term)
		}
		shipping = *patch.ShippingCost
	}
	if patch.Discount != nil {
		discount = *patch.Discount
	}
	if !tax.IsZero() && !rules.TaxApplicable {
		return chargeNotApplicable("tax", term)
	}
	if !shipping.IsZero() && !rules.ShippingApplicable {
		return chargeNotApplicable("shipping cost", term)
	}

	o.Incoterm = term
	o.Tax = tax
	o.ShippingCost = shipping
	o.Discount = discount
	o.recalculateTotals()

	now := o.now()
	o.UpdatedAt = now
	o.appendHistory(o.Status, o.Status, historyActionEditCharges, patch.Actor, describeCharges(o, patch.Notes), now)
	o.AddDomainEvent(NewPurchaseOrderChargesEditedEvent(o, now))
	return nil
}

// CanEditCharge reports which charge inputs the presentation layer should enable
func (o *PurchaseOrder) CanEditCharge() ChargeApplicability {
	if !o.Status.ChargesEditable() {
		return ChargeApplicability{}
	}
	return Applicability(o.Incoterm)
}

func describeCharges(o *PurchaseOrder, notes string) string {
	term := "none"
	if o.Incoterm != nil {
		term = o.Incoterm.String()
	}
	parts := []string{
		"incoterm=" + term,
		"discount=" + o.Discount.String(),
		"tax=" + o.Tax.String(),
		"shipping=" + o.ShippingCost.String(),
		"total=" + o.Total.String(),
	}
	if n := strings.TrimSpace(notes); n != "" {
		parts = append(parts, n)
	}
	return strings.Join(parts, " ")
}
