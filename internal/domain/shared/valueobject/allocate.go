package valueobject

import (
	"math/big"
	"sort"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ErrAllocationNoBasis is returned when a non-zero amount must be split across
// a weight vector that sums to zero.
var ErrAllocationNoBasis = shared.NewDomainError(shared.CodeAllocationNoBasis, "no allocation basis: all weights are zero")

// ErrNegativeWeight is returned for weight vectors with a negative entry
var ErrNegativeWeight = shared.NewDomainError(shared.CodeInvalidInput, "allocation weights must be non-negative")

// AllocateProportionally splits total across weights so that the shares sum to
// total exactly.
//
// Every share starts at floor(|total| * w_i / W) computed in exact integer
// arithmetic. The cents lost to truncation are handed out one at a time to the
// entries with the largest remainders; equal remainders go to the lower index.
// A negative total is split by magnitude and negated, so credits mirror charges.
// Entries with zero weight never receive a cent.
func AllocateProportionally(total Money, weights []decimal.Decimal) ([]Money, error) {
	shares := make([]Money, len(weights))

	scaled, err := scaleWeights(weights)
	if err != nil {
		return nil, err
	}
	sumW := new(big.Int)
	for _, w := range scaled {
		sumW.Add(sumW, w)
	}

	if total == 0 {
		return shares, nil
	}
	if sumW.Sign() == 0 {
		return nil, ErrAllocationNoBasis
	}

	abs := big.NewInt(int64(total.Abs()))
	type remainder struct {
		idx int
		rem *big.Int
	}
	rems := make([]remainder, len(scaled))
	var distributed int64
	for i, w := range scaled {
		num := new(big.Int).Mul(abs, w)
		q, r := new(big.Int).QuoRem(num, sumW, new(big.Int))
		shares[i] = Money(q.Int64())
		distributed += q.Int64()
		rems[i] = remainder{idx: i, rem: r}
	}

	sort.SliceStable(rems, func(a, b int) bool {
		if c := rems[a].rem.Cmp(rems[b].rem); c != 0 {
			return c > 0
		}
		return rems[a].idx < rems[b].idx
	})
	for k := int64(0); k < abs.Int64()-distributed; k++ {
		shares[rems[k].idx]++
	}

	if total < 0 {
		for i := range shares {
			shares[i] = -shares[i]
		}
	}
	return shares, nil
}

// scaleWeights converts decimal weights to integers sharing one exponent, so
// that the ratios between them are preserved exactly.
func scaleWeights(weights []decimal.Decimal) ([]*big.Int, error) {
	minExp := int32(0)
	for _, w := range weights {
		if w.IsNegative() {
			return nil, ErrNegativeWeight
		}
		if e := w.Exponent(); e < minExp {
			minExp = e
		}
	}
	ten := big.NewInt(10)
	out := make([]*big.Int, len(weights))
	for i, w := range weights {
		c := w.Coefficient()
		if shift := int64(w.Exponent() - minExp); shift > 0 {
			c.Mul(c, new(big.Int).Exp(ten, big.NewInt(shift), nil))
		}
		out[i] = c
	}
	return out, nil
}
