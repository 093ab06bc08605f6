package inbound

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func uc(s string) *valueobject.UnitCost {
	u := valueobject.MustParseUnitCost(s)
	return &u
}

// line builds a shipment line; a unit cost makes it a PO-linked line
func line(qty int64, weight, volume string, cost *valueobject.UnitCost) ShipmentLine {
	l := ShipmentLine{
		ID:             uuid.New(),
		QtyShipped:     qty,
		TotalWeightKg:  d(weight),
		GrossVolumeCbm: d(volume),
		PoUnitCost:     cost,
	}
	if cost != nil {
		poLineID := uuid.New()
		l.PurchaseOrderLineID = &poLineID
	}
	return l
}

func packingListLine(qty int64, cost *valueobject.UnitCost) ShipmentLine {
	return ShipmentLine{ID: uuid.New(), QtyShipped: qty, TotalWeightKg: d("1"), GrossVolumeCbm: d("1"), PoUnitCost: cost}
}

func cost(t CostType, method AllocationMethod, cents int64) ShipmentCost {
	return ShipmentCost{ID: uuid.New(), CostType: t, AllocationMethod: method, EstimatedAmount: valueobject.Cents(cents)}
}

func TestAllocate_VolumeScenario(t *testing.T) {
	lines := []ShipmentLine{line(10, "0", "2.0", nil), line(10, "0", "1.0", nil)}
	costs := []ShipmentCost{cost(CostTypeFreight, MethodByVolume, 30000)}

	res, err := Allocate(ModeOcean, costs, lines)
	require.NoError(t, err)

	assert.Equal(t, valueobject.Dollars(200), res.Lines[0].Freight)
	assert.Equal(t, valueobject.Dollars(100), res.Lines[1].Freight)
	assert.Equal(t, valueobject.Dollars(300), res.TotalAllocated())
	assert.Equal(t, MethodByVolume, res.Costs[0].Basis)
}

func TestAllocate_Methods(t *testing.T) {
	lines := []ShipmentLine{
		line(100, "500", "0.2", uc("1.00")), // chargeable: max(500, 200) = 500
		line(50, "100", "0.8", uc("4.00")),  // chargeable: max(100, 800) = 800
	}

	tests := []struct {
		name   string
		method AllocationMethod
		want   []int64
	}{
		{"by weight 5:1", MethodByWeight, []int64{1000, 200}},
		{"by volume 1:4", MethodByVolume, []int64{240, 960}},
		{"by chargeable weight 5:8", MethodByChargeableWeight, []int64{462, 738}},
		{"by value 100:200", MethodByValue, []int64{400, 800}},
		{"by line count", MethodByLineCount, []int64{600, 600}},
		{"default uses volume", MethodDefault, []int64{240, 960}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Allocate(ModeOcean, []ShipmentCost{cost(CostTypeDuty, tt.method, 1200)}, lines)
			require.NoError(t, err)
			for i, want := range tt.want {
				assert.Equal(t, valueobject.Cents(want), res.Lines[i].Duty, "line %d", i)
			}
		})
	}
}

func TestAllocate_ChargeableWeightByMode(t *testing.T) {
	// 1 cbm and 200 kg against 1 cbm and 0 kg
	lines := []ShipmentLine{line(1, "200", "1", nil), line(1, "0", "1", nil)}
	tests := []struct {
		mode ShipmentMode
		want []int64
	}{
		{ModeAir, []int64{545, 455}},     // 200 vs 167
		{ModeCourier, []int64{500, 500}}, // 200 vs 200
		{ModeTruck, []int64{500, 500}},   // 333 vs 333
		{ModeOcean, []int64{500, 500}},   // 1000 vs 1000
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			res, err := Allocate(tt.mode, []ShipmentCost{cost(CostTypeFreight, MethodByChargeableWeight, 1000)}, lines)
			require.NoError(t, err)
			assert.Equal(t, valueobject.Cents(tt.want[0]), res.Lines[0].Freight)
			assert.Equal(t, valueobject.Cents(tt.want[1]), res.Lines[1].Freight)
		})
	}
}

func TestAllocate_DefaultFallsBackToLineCount(t *testing.T) {
	lines := []ShipmentLine{line(1, "10", "3", nil), line(1, "10", "0", nil), line(1, "10", "1", nil)}
	res, err := Allocate(ModeOcean, []ShipmentCost{cost(CostTypeBrokerage, MethodDefault, 100)}, lines)
	require.NoError(t, err)

	assert.Equal(t, MethodByLineCount, res.Costs[0].Basis)
	assert.True(t, res.Costs[0].FellBack())
	assert.Equal(t, []valueobject.Money{34, 33, 33}, res.Costs[0].Shares)
}

func TestAllocate_Buckets(t *testing.T) {
	lines := []ShipmentLine{line(4, "1", "1", uc("2.50"))}
	costs := []ShipmentCost{
		cost(CostTypeFreight, MethodByLineCount, 100),
		cost(CostTypeDuty, MethodByLineCount, 20),
		cost(CostTypeInsurance, MethodByLineCount, 3),
		cost(CostTypeDrayage, MethodByLineCount, 5),
		cost(CostTypeInspection, MethodByLineCount, 7),
	}
	actual := valueobject.Cents(50)
	costs[0].ActualAmount = &actual

	res, err := Allocate(ModeTruck, costs, lines)
	require.NoError(t, err)
	out := res.Lines[0]

	assert.Equal(t, valueobject.Cents(50), out.Freight, "actual amount wins over estimate")
	assert.Equal(t, valueobject.Cents(20), out.Duty)
	assert.Equal(t, valueobject.Cents(3), out.Insurance)
	assert.Equal(t, valueobject.Cents(12), out.Other)
	assert.Equal(t, valueobject.Cents(85), out.AllocatedCost)
	// 85 / 4 = 21 per unit, 1 cent left over
	assert.Equal(t, "2.71", out.LandedUnitCost.String())
	assert.Equal(t, valueobject.Cents(1), out.Remainder)
}

func TestAllocate_ZeroQuantityKeepsWholeAmountAsRemainder(t *testing.T) {
	lines := []ShipmentLine{line(0, "1", "1", nil), line(3, "1", "1", uc("0.0525"))}
	res, err := Allocate(ModeAir, []ShipmentCost{cost(CostTypeFreight, MethodByLineCount, 700)}, lines)
	require.NoError(t, err)

	assert.Equal(t, valueobject.Cents(350), res.Lines[0].Remainder)
	assert.True(t, res.Lines[0].LandedUnitCost.IsZero())
	// 350 / 3 = 116 r 2
	assert.Equal(t, "1.2125", res.Lines[1].LandedUnitCost.String())
	assert.Equal(t, valueobject.Cents(2), res.Lines[1].Remainder)
}

func TestAllocate_NoBasis(t *testing.T) {
	lines := []ShipmentLine{line(1, "0", "0", nil), line(1, "0", "0", nil)}

	tests := []struct {
		name   string
		method AllocationMethod
	}{
		{"weight", MethodByWeight},
		{"volume", MethodByVolume},
		{"value without PO cost", MethodByValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cost(CostTypeFreight, tt.method, 100)
			_, err := Allocate(ModeOcean, []ShipmentCost{cost(CostTypeDuty, MethodByLineCount, 10), c}, lines)

			var ae *AllocationError
			require.True(t, errors.As(err, &ae))
			assert.Equal(t, c.ID, ae.CostID)
			assert.Equal(t, tt.method, ae.Method)
			assert.ErrorIs(t, err, valueobject.ErrAllocationNoBasis)
			assert.Equal(t, shared.CodeAllocationNoBasis, shared.CodeOf(err))
		})
	}

	t.Run("value on unlinked lines", func(t *testing.T) {
		unlinked := []ShipmentLine{packingListLine(5, uc("2.00")), packingListLine(5, uc("2.00"))}
		_, err := Allocate(ModeOcean, []ShipmentCost{cost(CostTypeDuty, MethodByValue, 1000)}, unlinked)

		var ae *AllocationError
		require.True(t, errors.As(err, &ae))
		assert.Equal(t, MethodByValue, ae.Method)
		assert.ErrorIs(t, err, valueobject.ErrAllocationNoBasis)
	})

	t.Run("value skips unlinked lines beside linked ones", func(t *testing.T) {
		mixed := []ShipmentLine{line(5, "1", "1", uc("2.00")), packingListLine(5, uc("2.00"))}
		res, err := Allocate(ModeOcean, []ShipmentCost{cost(CostTypeDuty, MethodByValue, 1000)}, mixed)
		require.NoError(t, err)
		assert.Equal(t, valueobject.Cents(1000), res.Lines[0].Duty)
		assert.True(t, res.Lines[1].Duty.IsZero())
	})

	t.Run("zero amount needs no basis", func(t *testing.T) {
		_, err := Allocate(ModeOcean, []ShipmentCost{cost(CostTypeFreight, MethodByWeight, 0)}, lines)
		assert.NoError(t, err)
	})

	t.Run("no lines", func(t *testing.T) {
		_, err := Allocate(ModeOcean, []ShipmentCost{cost(CostTypeFreight, MethodDefault, 10)}, nil)
		assert.ErrorIs(t, err, valueobject.ErrAllocationNoBasis)
	})
}

func TestAllocate_DeterministicAndExact(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	methods := []AllocationMethod{MethodByVolume, MethodByWeight, MethodByChargeableWeight, MethodByValue, MethodByLineCount, MethodDefault}
	types := []CostType{CostTypeFreight, CostTypeDuty, CostTypeInsurance, CostTypeWarehousing}

	for iter := 0; iter < 200; iter++ {
		n := 1 + rng.Intn(6)
		lines := make([]ShipmentLine, n)
		for i := range lines {
			lines[i] = ShipmentLine{
				ID:             uuid.New(),
				QtyShipped:     int64(1 + rng.Intn(500)),
				TotalWeightKg:  decimal.New(int64(1+rng.Intn(10000)), -1),
				GrossVolumeCbm: decimal.New(int64(1+rng.Intn(5000)), -3),
				PoUnitCost:     uc(decimal.New(int64(1+rng.Intn(100000)), -4).String()),
			}
			poLineID := uuid.New()
			lines[i].PurchaseOrderLineID = &poLineID
		}
		var costs []ShipmentCost
		var total valueobject.Money
		for c := 0; c < 1+rng.Intn(4); c++ {
			amt := int64(rng.Intn(1_000_000))
			total += valueobject.Cents(amt)
			costs = append(costs, cost(types[rng.Intn(len(types))], methods[rng.Intn(len(methods))], amt))
		}

		first, err := Allocate(ModeAir, costs, lines)
		require.NoError(t, err)
		second, err := Allocate(ModeAir, costs, lines)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, total, first.TotalAllocated())
		for i, out := range first.Lines {
			per := out.LandedUnitCost.Decimal().Sub(lines[i].PoUnitCost.Decimal())
			rebuilt := valueobject.RoundToMoney(per.Mul(decimal.NewFromInt(lines[i].QtyShipped))).Add(out.Remainder)
			assert.Equal(t, out.AllocatedCost, rebuilt)
		}
	}
}
