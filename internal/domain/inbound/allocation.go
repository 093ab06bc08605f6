package inbound

import (
	"fmt"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationError reports the cost that could not be spread. The whole run
// fails with it; no line output is changed.
type AllocationError struct {
	CostID   uuid.UUID
	CostType CostType
	Method   AllocationMethod
	Err      error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("allocate %s cost %s %s: %v", e.CostType, e.CostID, e.Method, e.Err)
}

func (e *AllocationError) Unwrap() error {
	return e.Err
}

// Code exposes the wrapped domain code to the HTTP error mapping
func (e *AllocationError) Code() string {
	return shared.CodeOf(e.Err)
}

// CostAllocation records how one cost was spread
type CostAllocation struct {
	CostID    uuid.UUID           `json:"cost_id"`
	CostType  CostType            `json:"cost_type"`
	Requested AllocationMethod    `json:"requested_method"`
	Basis     AllocationMethod    `json:"basis"`
	Amount    valueobject.Money   `json:"amount_cents"`
	Shares    []valueobject.Money `json:"shares_cents"`
}

// FellBack reports a default method that had to use line count because some
// line had no volume.
func (c CostAllocation) FellBack() bool {
	return c.Requested == MethodDefault && c.Basis == MethodByLineCount
}

// AllocationResult is the output of one allocation run. Lines is aligned with
// the input lines and Costs with the input costs.
type AllocationResult struct {
	Lines []LineAllocation `json:"lines"`
	Costs []CostAllocation `json:"costs"`
}

// TotalAllocated sums the allocated cost over all lines
func (r *AllocationResult) TotalAllocated() valueobject.Money {
	var total valueobject.Money
	for _, l := range r.Lines {
		total = total.Add(l.AllocatedCost)
	}
	return total
}

// Allocate spreads every cost over the lines by the cost's method and sums the
// shares into freight, duty, insurance and other buckets. It is a pure function
// of its inputs: lines and costs are walked in slice order.
func Allocate(mode ShipmentMode, costs []ShipmentCost, lines []ShipmentLine) (*AllocationResult, error) {
	result := &AllocationResult{
		Lines: make([]LineAllocation, len(lines)),
		Costs: make([]CostAllocation, 0, len(costs)),
	}

	for _, cost := range costs {
		basis := resolveMethod(cost.AllocationMethod, lines)
		amount := cost.Amount()
		shares, err := valueobject.AllocateProportionally(amount, weightsFor(basis, mode, lines))
		if err != nil {
			return nil, &AllocationError{CostID: cost.ID, CostType: cost.CostType, Method: basis, Err: err}
		}

		for i, share := range shares {
			bucket := &result.Lines[i]
			switch cost.CostType {
			case CostTypeFreight:
				bucket.Freight = bucket.Freight.Add(share)
			case CostTypeDuty:
				bucket.Duty = bucket.Duty.Add(share)
			case CostTypeInsurance:
				bucket.Insurance = bucket.Insurance.Add(share)
			default:
				bucket.Other = bucket.Other.Add(share)
			}
		}
		result.Costs = append(result.Costs, CostAllocation{
			CostID:    cost.ID,
			CostType:  cost.CostType,
			Requested: cost.AllocationMethod,
			Basis:     basis,
			Amount:    amount,
			Shares:    shares,
		})
	}

	for i := range lines {
		out := &result.Lines[i]
		out.AllocatedCost = valueobject.Sum(out.Freight, out.Duty, out.Insurance, out.Other)
		per, rem := out.AllocatedCost.DivideByQuantity(lines[i].QtyShipped)
		base := valueobject.UnitCost{}
		if lines[i].PoUnitCost != nil {
			base = *lines[i].PoUnitCost
		}
		out.LandedUnitCost = base.Plus(per)
		out.Remainder = rem
	}
	return result, nil
}

// resolveMethod turns "default" into the concrete basis
func resolveMethod(method AllocationMethod, lines []ShipmentLine) AllocationMethod {
	if method != MethodDefault && method != "" {
		return method
	}
	if len(lines) == 0 {
		return MethodByVolume
	}
	for i := range lines {
		if !lines[i].GrossVolumeCbm.IsPositive() {
			return MethodByLineCount
		}
	}
	return MethodByVolume
}

func weightsFor(method AllocationMethod, mode ShipmentMode, lines []ShipmentLine) []decimal.Decimal {
	weights := make([]decimal.Decimal, len(lines))
	factor := mode.VolumetricFactor()
	for i := range lines {
		l := &lines[i]
		switch method {
		case MethodByVolume:
			weights[i] = l.GrossVolumeCbm
		case MethodByWeight:
			weights[i] = l.TotalWeightKg
		case MethodByChargeableWeight:
			weights[i] = decimal.Max(l.TotalWeightKg, l.GrossVolumeCbm.Mul(factor))
		case MethodByValue:
			weights[i] = l.ExtendedValue()
		default:
			weights[i] = decimal.NewFromInt(1)
		}
	}
	return weights
}
