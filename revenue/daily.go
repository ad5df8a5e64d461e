package revenue

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FilterToPeriod keeps the buckets whose date falls inside period and
// normalizes their dates to "YYYY-MM-DD". The daily endpoint is known to pad
// its answer with neighbouring days.
func FilterToPeriod(buckets []DailyBucket, period Period) []DailyBucket {
	out := make([]DailyBucket, 0, len(buckets))
	for _, b := range buckets {
		day, err := parseDay(b.Date)
		if err != nil || !period.containsTime(day) {
			continue
		}
		b.Date = day.Format(dayLayout)
		out = append(out, b)
	}
	return out
}

// GroupOrdersByDay builds a daily breakdown out of raw orders. An order is
// dated by Date, or DateCreated when Date is blank; an order with no usable
// date is counted on today (per now) rather than dropped. Orders dated
// outside period are skipped. Only days with at least one order are returned.
func GroupOrdersByDay(orders []RawOrderRecord, period Period, now time.Time) []DailyBucket {
	today := civilDate(now.Year(), now.Month(), now.Day())
	byDate := make(map[string]*DailyBucket)
	for _, o := range orders {
		raw := strings.TrimSpace(o.Date)
		if raw == "" {
			raw = strings.TrimSpace(o.DateCreated)
		}
		day, err := parseDay(raw)
		if err != nil {
			day = today
		}
		if !period.containsTime(day) {
			continue
		}
		key := day.Format(dayLayout)
		b, ok := byDate[key]
		if !ok {
			b = &DailyBucket{Date: key, Revenue: decimal.Zero}
			byDate[key] = b
		}
		b.Revenue = b.Revenue.Add(o.Total)
		b.OrderCount++
		for _, li := range o.LineItems {
			b.UnitsSold += li.Quantity
		}
	}

	out := make([]DailyBucket, 0, len(byDate))
	for _, b := range byDate {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
