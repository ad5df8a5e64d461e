package revenue

import (
	"sort"

	"github.com/shopspring/decimal"
)

// apportion splits total across shares in proportion to each share, in steps
// of 10^-places, with the largest-remainder method: every result is the floor
// or the ceiling of its exact quota and the results add up to total exactly.
// A zero share always gets zero. If total has digits below 10^-places they
// go to the largest result.
//
// When the shares do not sum to a positive number there is nothing to scale
// against and every result is zero.
func apportion(shares []decimal.Decimal, total decimal.Decimal, places int32) []decimal.Decimal {
	out := make([]decimal.Decimal, len(shares))
	for i := range out {
		out[i] = decimal.Zero
	}
	sumShares := decimal.Zero
	for _, s := range shares {
		sumShares = sumShares.Add(s)
	}
	if len(shares) == 0 || !sumShares.IsPositive() {
		return out
	}

	units := total.Shift(places).Floor()
	leftover := total.Sub(units.Shift(-places))

	type remainder struct {
		idx  int
		frac decimal.Decimal
	}
	rems := make([]remainder, 0, len(shares))
	assigned := decimal.Zero
	for i, s := range shares {
		quota := s.Mul(units).Div(sumShares)
		floor := quota.Floor()
		out[i] = floor
		assigned = assigned.Add(floor)
		rems = append(rems, remainder{idx: i, frac: quota.Sub(floor)})
	}

	missing := units.Sub(assigned).IntPart()
	sort.SliceStable(rems, func(a, b int) bool {
		return rems[a].frac.GreaterThan(rems[b].frac)
	})
	one := decimal.NewFromInt(1)
	for k := int64(0); k < missing && k < int64(len(rems)); k++ {
		out[rems[k].idx] = out[rems[k].idx].Add(one)
	}

	largest := 0
	for i := range out {
		out[i] = out[i].Shift(-places)
		if out[i].GreaterThan(out[largest]) {
			largest = i
		}
	}
	if !leftover.IsZero() {
		out[largest] = out[largest].Add(leftover)
	}
	return out
}

// apportionCounts is apportion for whole numbers.
func apportionCounts(shares []decimal.Decimal, total int64) []int64 {
	scaled := apportion(shares, decimal.NewFromInt(total), 0)
	out := make([]int64, len(scaled))
	for i, v := range scaled {
		out[i] = v.IntPart()
	}
	return out
}

func countShares(counts []int64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(counts))
	for i, c := range counts {
		out[i] = decimal.NewFromInt(c)
	}
	return out
}
