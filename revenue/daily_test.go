package revenue

import (
	"testing"
	"time"
)

func TestFilterToPeriod_DropsForeignDays(t *testing.T) {
	march := MonthPeriod(2025, time.March)
	feed := []DailyBucket{
		{Date: "2025-02-28", Revenue: dec("10")},
		{Date: "2025-03-01", Revenue: dec("20")},
		{Date: "2025-03-31T00:00:00.000Z", Revenue: dec("30")},
		{Date: "2025-04-01", Revenue: dec("40")},
		{Date: "", Revenue: dec("50")},
	}

	got := FilterToPeriod(feed, march)
	if len(got) != 2 {
		t.Fatalf("expected 2 buckets, got %d: %+v", len(got), got)
	}
	if got[0].Date != "2025-03-01" || got[1].Date != "2025-03-31" {
		t.Fatalf("unexpected dates %s, %s", got[0].Date, got[1].Date)
	}
}

func TestGroupOrdersByDay(t *testing.T) {
	march := MonthPeriod(2025, time.March)
	now := time.Date(2025, time.March, 10, 15, 0, 0, 0, time.UTC)
	orders := []RawOrderRecord{
		{ID: "1", Date: "2025-03-02T10:15:00", Total: dec("100.50"), LineItems: []LineItem{{Quantity: 2}, {Quantity: 1}}},
		{ID: "2", DateCreated: "2025-03-02T23:59:59", Total: dec("20"), LineItems: []LineItem{{Quantity: 1}}},
		{ID: "3", Date: "not a date", Total: dec("5")},
		{ID: "4", Date: "2025-02-27T08:00:00", Total: dec("999"), LineItems: []LineItem{{Quantity: 9}}},
		{ID: "5", Date: "2025-03-31", Total: dec("1.25"), LineItems: []LineItem{{Quantity: 4}}},
	}

	got := GroupOrdersByDay(orders, march, now)
	expected := []DailyBucket{
		{Date: "2025-03-02", Revenue: dec("120.50"), OrderCount: 2, UnitsSold: 4},
		{Date: "2025-03-10", Revenue: dec("5"), OrderCount: 1, UnitsSold: 0},
		{Date: "2025-03-31", Revenue: dec("1.25"), OrderCount: 1, UnitsSold: 4},
	}
	if len(got) != len(expected) {
		t.Fatalf("expected %d buckets, got %d: %+v", len(expected), len(got), got)
	}
	for i, want := range expected {
		b := got[i]
		if b.Date != want.Date || !b.Revenue.Equal(want.Revenue) || b.OrderCount != want.OrderCount || b.UnitsSold != want.UnitsSold {
			t.Fatalf("bucket %d: expected %+v, got %+v", i, want, b)
		}
	}
}

func TestGroupOrdersByDay_UndatedOrderOutsidePeriod(t *testing.T) {
	feb := MonthPeriod(2025, time.February)
	now := time.Date(2025, time.March, 10, 15, 0, 0, 0, time.UTC)
	got := GroupOrdersByDay([]RawOrderRecord{{ID: "1", Total: dec("5")}}, feb, now)
	if len(got) != 0 {
		t.Fatalf("expected an undated order to land on today and be excluded, got %+v", got)
	}
}

func TestGroupOrdersByDay_RefundsNetAgainstSales(t *testing.T) {
	march := MonthPeriod(2025, time.March)
	now := time.Date(2025, time.March, 20, 9, 0, 0, 0, time.UTC)
	orders := []RawOrderRecord{
		{ID: "1", Date: "2025-03-04", Total: dec("80.00"), LineItems: []LineItem{{Quantity: 2}}},
		{ID: "2", Date: "2025-03-04", Total: dec("-25.50")},
		{ID: "3", Date: "2025-03-05", Total: dec("-10")},
	}

	got := GroupOrdersByDay(orders, march, now)
	if len(got) != 2 {
		t.Fatalf("expected 2 buckets, got %d: %+v", len(got), got)
	}
	if !got[0].Revenue.Equal(dec("54.50")) || got[0].OrderCount != 2 {
		t.Fatalf("expected the refund to net against the sale, got %+v", got[0])
	}
	if !got[1].Revenue.Equal(dec("-10")) {
		t.Fatalf("expected a refund-only day to stay negative, got %+v", got[1])
	}
}
