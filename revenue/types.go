package revenue

import (
	"github.com/shopspring/decimal"
)

// PeriodTotals is the trusted aggregate for one store over one period. It is
// the reconciliation target and is never adjusted to match a daily series.
type PeriodTotals struct {
	OrderCount        int64           `json:"orderCount"`
	Revenue           decimal.Decimal `json:"revenue"`
	AverageOrderValue decimal.Decimal `json:"averageOrderValue"`
	UnitsSold         int64           `json:"unitsSold"`
}

// NewPeriodTotals derives AverageOrderValue from revenue and order count
// instead of trusting the upstream figure.
func NewPeriodTotals(orderCount int64, revenue decimal.Decimal, unitsSold int64) PeriodTotals {
	aov := decimal.Zero
	if orderCount > 0 {
		aov = revenue.Div(decimal.NewFromInt(orderCount)).Round(2)
	}
	return PeriodTotals{
		OrderCount:        orderCount,
		Revenue:           revenue,
		AverageOrderValue: aov,
		UnitsSold:         unitsSold,
	}
}

func (t PeriodTotals) IsZero() bool {
	return t.OrderCount == 0 && t.UnitsSold == 0 && t.Revenue.IsZero()
}

// DailyBucket is one calendar day's share of a PeriodTotals.
type DailyBucket struct {
	Date       string          `json:"date"`
	Revenue    decimal.Decimal `json:"revenue"`
	OrderCount int64           `json:"orderCount"`
	UnitsSold  int64           `json:"unitsSold"`
}

// RawOrderRecord is an order as returned by the upstream order list. Only the
// fields needed to build a daily breakdown are decoded.
type RawOrderRecord struct {
	ID          string          `json:"id"`
	Date        string          `json:"date"`
	DateCreated string          `json:"dateCreated"`
	Total       decimal.Decimal `json:"total"`
	LineItems   []LineItem      `json:"lineItems"`
}

type LineItem struct {
	Quantity int64 `json:"quantity"`
}

// Where a reconciled series' shape came from.
const (
	SourceDailyEndpoint     = "daily-endpoint"
	SourceOrders            = "orders"
	SourceSynthesized       = "synthesized"
	SourceEmptyStatusFilter = "empty-status-filter"
)

// Series is the result of one reconciliation.
type Series struct {
	StoreID string        `json:"storeId"`
	Period  Period        `json:"period"`
	Totals  PeriodTotals  `json:"totals"`
	Buckets []DailyBucket `json:"buckets"`
	Source  string        `json:"source"`
}

func sumRevenue(buckets []DailyBucket) decimal.Decimal {
	sum := decimal.Zero
	for _, b := range buckets {
		sum = sum.Add(b.Revenue)
	}
	return sum
}

func sumOrders(buckets []DailyBucket) int64 {
	var sum int64
	for _, b := range buckets {
		sum += b.OrderCount
	}
	return sum
}

func sumUnits(buckets []DailyBucket) int64 {
	var sum int64
	for _, b := range buckets {
		sum += b.UnitsSold
	}
	return sum
}
