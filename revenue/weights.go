package revenue

import (
	"time"

	"github.com/shopspring/decimal"
)

// Shape of a synthesized month. The factors have no model behind them; they
// only make a flat average look like a plausible store month and are applied
// before the exact-sum rescale, so they never change the totals.
const (
	// WeekendBoost applies to Fridays and Saturdays.
	WeekendBoost = 1.5
	// MidMonthBoost applies to days MidMonthFirstDay..MidMonthLastDay.
	MidMonthBoost = 1.2
	// MonthEndBoost applies from MonthEndFirstDay to the end of the month.
	MonthEndBoost = 1.3

	MidMonthFirstDay = 10
	MidMonthLastDay  = 20
	MonthEndFirstDay = 25
)

var (
	weekendBoost  = decimal.NewFromFloat(WeekendBoost)
	midMonthBoost = decimal.NewFromFloat(MidMonthBoost)
	monthEndBoost = decimal.NewFromFloat(MonthEndBoost)
)

// DayWeight is the synthesis weight of one day. Boosts multiply, so a
// Saturday the 15th weighs 1.5 * 1.2.
func DayWeight(day time.Time) decimal.Decimal {
	w := decimal.NewFromInt(1)
	if wd := day.Weekday(); wd == time.Friday || wd == time.Saturday {
		w = w.Mul(weekendBoost)
	}
	if d := day.Day(); d >= MidMonthFirstDay && d <= MidMonthLastDay {
		w = w.Mul(midMonthBoost)
	}
	if day.Day() >= MonthEndFirstDay {
		w = w.Mul(monthEndBoost)
	}
	return w
}
