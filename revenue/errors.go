package revenue

import "errors"

var (
	// ErrAggregateUnavailable means the summary endpoint failed. It is fatal to
	// a reconciliation and is never papered over with fabricated totals.
	ErrAggregateUnavailable = errors.New("aggregate unavailable")

	// ErrDailyUnavailable means neither daily strategy produced usable data.
	// BuildSeries recovers from it by synthesizing a series.
	ErrDailyUnavailable = errors.New("daily breakdown unavailable")

	// ErrInvalidPeriod is a caller error: an empty or inverted period, or a
	// daily series holding dates outside the requested period.
	ErrInvalidPeriod = errors.New("invalid period")
)

// ErrStoreRequired is returned when a query names no store.
var ErrStoreRequired = errors.New("store id is required")
