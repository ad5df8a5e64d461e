package revenue

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// revenueTolerance is how far a daily series may drift from the trusted
// revenue and still be returned as-is.
const revenueTolerance = 1

// Reconcile returns one bucket per day of period whose revenue, order count
// and units sold add up to totals.
//
// A series whose revenue sums to a positive amount is rescaled
// proportionally, so a day that reported nothing stays at zero. A missing
// series, or one that nets to zero or less (refunds outweighing sales), is
// replaced by a synthesized one shaped by DayWeight. The only failure is
// ErrInvalidPeriod.
func Reconcile(totals PeriodTotals, series []DailyBucket, period Period) ([]DailyBucket, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	aligned, err := alignToPeriod(series, period)
	if err != nil {
		return nil, err
	}
	if !hasRevenue(aligned) {
		return synthesize(totals, period), nil
	}
	if totals.Revenue.Sub(sumRevenue(aligned)).Abs().LessThanOrEqual(decimal.NewFromInt(revenueTolerance)) {
		return aligned, nil
	}
	return rescale(aligned, totals), nil
}

// alignToPeriod merges duplicate days, orders the series and fills the days
// the input skipped with zero buckets.
func alignToPeriod(series []DailyBucket, period Period) ([]DailyBucket, error) {
	byDate := make(map[string]DailyBucket, len(series))
	for _, b := range series {
		day, err := parseDay(b.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: bad bucket date %q", ErrInvalidPeriod, b.Date)
		}
		if !period.containsTime(day) {
			return nil, fmt.Errorf("%w: bucket %s outside %s", ErrInvalidPeriod, b.Date, period)
		}
		key := day.Format(dayLayout)
		acc, ok := byDate[key]
		if !ok {
			b.Date = key
			byDate[key] = b
			continue
		}
		acc.Revenue = acc.Revenue.Add(b.Revenue)
		acc.OrderCount += b.OrderCount
		acc.UnitsSold += b.UnitsSold
		byDate[key] = acc
	}

	dates := period.Dates()
	out := make([]DailyBucket, len(dates))
	for i, d := range dates {
		if b, ok := byDate[d]; ok {
			out[i] = b
			continue
		}
		out[i] = DailyBucket{Date: d, Revenue: decimal.Zero}
	}
	return out, nil
}

// hasRevenue reports whether buckets carry revenue that can be scaled: their
// sum must be positive.
func hasRevenue(buckets []DailyBucket) bool {
	return sumRevenue(buckets).IsPositive()
}

// rescale multiplies every bucket by totals/currentSum, independently for
// revenue, orders and units. Callers guarantee a positive revenue sum. Counts
// that do not sum to a positive number stay zero, so a series with no orders
// keeps zero orders.
func rescale(buckets []DailyBucket, totals PeriodTotals) []DailyBucket {
	out := make([]DailyBucket, len(buckets))
	copy(out, buckets)

	revenues := make([]decimal.Decimal, len(buckets))
	for i, b := range buckets {
		revenues[i] = b.Revenue
	}
	scaled := apportion(revenues, totals.Revenue, 2)
	for i := range out {
		out[i].Revenue = scaled[i]
	}

	orders := make([]int64, len(buckets))
	units := make([]int64, len(buckets))
	for i, b := range buckets {
		orders[i] = b.OrderCount
		units[i] = b.UnitsSold
	}
	scaledOrders := scaleCounts(orders, totals.OrderCount)
	scaledUnits := scaleCounts(units, totals.UnitsSold)
	for i := range out {
		out[i].OrderCount = scaledOrders[i]
		out[i].UnitsSold = scaledUnits[i]
	}
	return out
}

func scaleCounts(counts []int64, total int64) []int64 {
	var sum int64
	for _, c := range counts {
		sum += c
	}
	if sum <= 0 {
		return make([]int64, len(counts))
	}
	return apportionCounts(countShares(counts), total)
}

// synthesize spreads totals over every day of period using DayWeight, then
// forces the provisional values onto the exact totals.
func synthesize(totals PeriodTotals, period Period) []DailyBucket {
	dates := period.Dates()
	days := decimal.NewFromInt(int64(len(dates)))

	revenuePerDay := totals.Revenue.Div(days)
	ordersPerDay := decimal.NewFromInt(totals.OrderCount).Div(days)
	unitsPerDay := decimal.NewFromInt(totals.UnitsSold).Div(days)

	revenues := make([]decimal.Decimal, len(dates))
	orders := make([]decimal.Decimal, len(dates))
	units := make([]decimal.Decimal, len(dates))
	for i := range dates {
		w := DayWeight(period.Start.AddDate(0, 0, i))
		revenues[i] = revenuePerDay.Mul(w)
		orders[i] = ordersPerDay.Mul(w)
		units[i] = unitsPerDay.Mul(w)
	}

	scaledRevenue := apportion(revenues, totals.Revenue, 2)
	scaledOrders := apportionCounts(orders, totals.OrderCount)
	scaledUnits := apportionCounts(units, totals.UnitsSold)

	out := make([]DailyBucket, len(dates))
	for i, d := range dates {
		out[i] = DailyBucket{
			Date:       d,
			Revenue:    scaledRevenue[i],
			OrderCount: scaledOrders[i],
			UnitsSold:  scaledUnits[i],
		}
	}
	return out
}

// ZeroSeries is the all-zero series for period.
func ZeroSeries(period Period) []DailyBucket {
	dates := period.Dates()
	out := make([]DailyBucket, len(dates))
	for i, d := range dates {
		out[i] = DailyBucket{Date: d, Revenue: decimal.Zero}
	}
	return out
}
