package trade

import (
	"errors"
	"testing"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func money(c int64) *valueobject.Money {
	m := valueobject.Cents(c)
	return &m
}

func term(i Incoterm) *Incoterm {
	return &i
}

func TestEditCharges_IncotermRules(t *testing.T) {
	tests := []struct {
		name     string
		incoterm *Incoterm
		patch    ChargePatch
		wantErr  error
	}{
		{"DDP allows tax", term(IncotermDDP), ChargePatch{Tax: money(500)}, nil},
		{"DDP allows shipping", term(IncotermDDP), ChargePatch{ShippingCost: money(500)}, nil},
		{"FOB rejects tax", term(IncotermFOB), ChargePatch{Tax: money(500)}, shared.ErrChargeNotApplicable},
		{"FOB rejects shipping", term(IncotermFOB), ChargePatch{ShippingCost: money(500)}, shared.ErrChargeNotApplicable},
		{"CIF allows shipping", term(IncotermCIF), ChargePatch{ShippingCost: money(500)}, nil},
		{"CIF rejects tax", term(IncotermCIF), ChargePatch{Tax: money(500)}, shared.ErrChargeNotApplicable},
		{"no incoterm allows both", nil, ChargePatch{Tax: money(1), ShippingCost: money(2)}, nil},
		{"FOB rejects zero tax and shipping", term(IncotermFOB), ChargePatch{Tax: money(0), ShippingCost: money(0)}, shared.ErrChargeNotApplicable},
		{"EXW rejects zero tax", term(IncotermEXW), ChargePatch{Tax: money(0)}, shared.ErrChargeNotApplicable},
		{"DDP allows clearing to zero", term(IncotermDDP), ChargePatch{Tax: money(0)}, nil},
		{"discount is always allowed", term(IncotermEXW), ChargePatch{Discount: money(100)}, nil},
		{"negative rejected", nil, ChargePatch{Discount: money(-1)}, shared.ErrInvalidInput},
		{"empty patch rejected", nil, ChargePatch{}, shared.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := createTestPurchaseOrder(t)
			order.Incoterm = tt.incoterm
			addTestLine(t, order, 10, "10")
			before := len(order.History)

			err := order.EditCharges(tt.patch)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Len(t, order.History, before)
				return
			}
			require.NoError(t, err)
			assert.Len(t, order.History, before+1)
			assert.Equal(t, "edit_charges", order.History[len(order.History)-1].Action)
			assert.Equal(t, order.Subtotal-order.Discount+order.Tax+order.ShippingCost, order.Total)
		})
	}
}

func TestEditCharges_ChangingIncoterm(t *testing.T) {
	order := createTestPurchaseOrder(t)
	addTestLine(t, order, 1, "100")
	require.NoError(t, order.EditCharges(ChargePatch{Tax: money(700), ShippingCost: money(1500)}))

	// FOB would strand the existing tax and shipping
	err := order.EditCharges(ChargePatch{Incoterm: term(IncotermFOB)})
	assert.ErrorIs(t, err, shared.ErrChargeNotApplicable)
	assert.Nil(t, order.Incoterm)

	// FOB forbids touching tax and shipping at all, even to clear them
	err = order.EditCharges(ChargePatch{Incoterm: term(IncotermFOB), Tax: money(0), ShippingCost: money(0)})
	assert.ErrorIs(t, err, shared.ErrChargeNotApplicable)

	// clear them under the current term, then switch
	require.NoError(t, order.EditCharges(ChargePatch{Tax: money(0), ShippingCost: money(0)}))
	require.NoError(t, order.EditCharges(ChargePatch{Incoterm: term(IncotermFOB)}))
	assert.Equal(t, IncotermFOB, *order.Incoterm)
	assert.Equal(t, valueobject.Dollars(100), order.Total)
	assert.Equal(t, ChargeApplicability{}, order.CanEditCharge())

	require.NoError(t, order.EditCharges(ChargePatch{ClearIncoterm: true, ShippingCost: money(250)}))
	assert.Nil(t, order.Incoterm)
	assert.Equal(t, valueobject.Cents(10250), order.Total)

	var de *shared.DomainError
	err = order.EditCharges(ChargePatch{ClearIncoterm: true, Incoterm: term(IncotermDDP)})
	require.True(t, errors.As(err, &de))
	assert.Equal(t, shared.CodeInvalidInput, de.Code)
}

func TestEditCharges_TerminalStatus(t *testing.T) {
	for _, status := range []PurchaseOrderStatus{PurchaseOrderStatusClosed, PurchaseOrderStatusCancelled, PurchaseOrderStatusVoided} {
		t.Run(string(status), func(t *testing.T) {
			order := createTestPurchaseOrder(t)
			order.Status = status
			err := order.EditCharges(ChargePatch{Discount: money(1)})
			assert.ErrorIs(t, err, shared.ErrInvalidState)
		})
	}

	order := sentOrder(t)
	assert.NoError(t, order.EditCharges(ChargePatch{ShippingCost: money(999)}))
}

func TestEditCharges_VersionCheck(t *testing.T) {
	order := createTestPurchaseOrder(t)
	err := order.EditCharges(ChargePatch{Discount: money(1), ExpectedVersion: 9})
	assert.ErrorIs(t, err, shared.ErrConcurrentModification)
}
