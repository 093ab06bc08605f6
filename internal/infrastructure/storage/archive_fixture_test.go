package storage

import (
	"testing"
	"time"

	"github.com/cardshellz/echelon/internal/domain/inbound"
	"github.com/cardshellz/echelon/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

func sampleSnapshot(t *testing.T) *inbound.LandedCostSnapshot {
	t.Helper()
	poCost := valueobject.MustParseUnitCost("4.125")
	return &inbound.LandedCostSnapshot{
		ShipmentID:     uuid.MustParse("6f1a7a52-3c1e-4c59-9d0e-2b8f4a1d9c11"),
		ShipmentNumber: "SHP-2026-0042",
		Revision:       3,
		Currency:       valueobject.Currency("USD"),
		FinalizedAt:    time.Date(2026, 8, 14, 16, 0, 0, 0, time.UTC),
		TotalAllocated: valueobject.Dollars(300),
		Lines: []inbound.SnapshotLine{{
			ShipmentLineID: uuid.MustParse("0b9a2c1e-6d4f-4f7e-8a3b-5c6d7e8f9a01"),
			SKU:            "CS-TOPLOADER-35PT",
			QtyShipped:     1000,
			PoUnitCost:     &poCost,
			LineAllocation: inbound.LineAllocation{
				Freight:        valueobject.Dollars(200),
				AllocatedCost:  valueobject.Dollars(200),
				LandedUnitCost: valueobject.MustParseUnitCost("4.325"),
				Revision:       3,
			},
		}},
		Costs: []inbound.CostAllocation{{
			CostID:    uuid.MustParse("9e8d7c6b-5a49-4382-9170-6f5e4d3c2b1a"),
			CostType:  inbound.CostTypeFreight,
			Requested: inbound.MethodByVolume,
			Basis:     inbound.MethodByVolume,
			Amount:    valueobject.Dollars(300),
			Shares:    []valueobject.Money{valueobject.Dollars(200), valueobject.Dollars(100)},
		}},
	}
}
