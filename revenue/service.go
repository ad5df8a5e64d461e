package revenue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/storecrm_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("storecrm-revenue-series")

// Query names one reconciliation: a store, a period and the order statuses
// that count.
type Query struct {
	StoreID  string
	Period   Period
	Statuses StatusFilter
}

// AggregateSource returns the trusted totals for a query.
type AggregateSource interface {
	FetchTotals(ctx context.Context, q Query) (PeriodTotals, error)
}

// DailySource returns a ready-made daily breakdown.
type DailySource interface {
	FetchDaily(ctx context.Context, q Query) ([]DailyBucket, error)
}

// OrderSource returns the raw orders of a query's period.
type OrderSource interface {
	FetchOrders(ctx context.Context, q Query) ([]RawOrderRecord, error)
}

// Builder produces reconciled series. Service implements it; caching layers
// wrap it.
type Builder interface {
	BuildSeries(ctx context.Context, q Query) (*Series, error)
}

type ServiceConfig struct {
	Aggregate AggregateSource
	// Daily and Orders are optional; a nil source is skipped.
	Daily  DailySource
	Orders OrderSource
	Logger *logrus.Logger
	// Now defaults to time.Now. Orders without a usable date are counted on Now's day.
	Now func() time.Time
}

// Service fetches totals and a daily breakdown for a query and reconciles
// them. It holds no per-request state, so one Service serves concurrent
// queries.
type Service struct {
	aggregate AggregateSource
	daily     DailySource
	orders    OrderSource
	logger    *logrus.Logger
	now       func() time.Time
}

func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		aggregate: cfg.Aggregate,
		daily:     cfg.Daily,
		orders:    cfg.Orders,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// EmptySeries is the answer for a query whose status filter excludes every
// status.
func EmptySeries(q Query) *Series {
	return &Series{
		StoreID: q.StoreID,
		Period:  q.Period,
		Totals:  NewPeriodTotals(0, decimal.Zero, 0),
		Buckets: ZeroSeries(q.Period),
		Source:  SourceEmptyStatusFilter,
	}
}

func (s *Service) BuildSeries(ctx context.Context, q Query) (*Series, error) {
	ctx, span := tracer.Start(ctx, "revenue.BuildSeries", trace.WithAttributes(
		attribute.String("store.id", q.StoreID),
		attribute.String("period", q.Period.String()),
		attribute.String("statuses", q.Statuses.Key()),
	))
	defer span.End()

	if strings.TrimSpace(q.StoreID) == "" {
		return nil, ErrStoreRequired
	}
	if err := q.Period.Validate(); err != nil {
		return nil, err
	}
	if q.Statuses.IsEmpty() {
		span.SetAttributes(attribute.String("source", SourceEmptyStatusFilter))
		return EmptySeries(q), nil
	}

	var (
		totals PeriodTotals
		daily  []DailyBucket
		source string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.fetchTotals(gctx, q)
		if err != nil {
			return err
		}
		totals = t
		return nil
	})
	g.Go(func() error {
		buckets, src, err := s.FetchDailySeries(gctx, q)
		if err != nil {
			// Recovered below by synthesis.
			return nil
		}
		daily, source = buckets, src
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if !hasRevenue(daily) {
		source = SourceSynthesized
	}
	buckets, err := Reconcile(totals, daily, q.Period)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("source", source))
	return &Series{
		StoreID: q.StoreID,
		Period:  q.Period,
		Totals:  totals,
		Buckets: buckets,
		Source:  source,
	}, nil
}

func (s *Service) fetchTotals(ctx context.Context, q Query) (PeriodTotals, error) {
	ctx, span := tracer.Start(ctx, "revenue.fetchTotals")
	defer span.End()

	if s.aggregate == nil {
		return PeriodTotals{}, fmt.Errorf("%w: no aggregate source configured", ErrAggregateUnavailable)
	}
	totals, err := s.aggregate.FetchTotals(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logFields(ctx, q, "fetchTotals").Error("summary endpoint failed: " + err.Error())
		return PeriodTotals{}, fmt.Errorf("%w: %v", ErrAggregateUnavailable, err)
	}
	return totals, nil
}

// FetchDailySeries tries the daily endpoint, then the raw order list. It
// returns the first breakdown inside the query's period that carries revenue
// along with the source it came from, or ErrDailyUnavailable. A breakdown
// padded with zero days counts as no data.
func (s *Service) FetchDailySeries(ctx context.Context, q Query) ([]DailyBucket, string, error) {
	if s.daily != nil {
		buckets, err := s.fetchFromDailyEndpoint(ctx, q)
		if err == nil && hasRevenue(buckets) {
			return buckets, SourceDailyEndpoint, nil
		}
		if err != nil {
			s.logFields(ctx, q, "FetchDailySeries").WithField("strategy", SourceDailyEndpoint).
				Warn("daily endpoint failed: " + err.Error())
		}
	}
	if s.orders != nil {
		buckets, err := s.fetchFromOrders(ctx, q)
		if err == nil && hasRevenue(buckets) {
			return buckets, SourceOrders, nil
		}
		if err != nil {
			s.logFields(ctx, q, "FetchDailySeries").WithField("strategy", SourceOrders).
				Warn("order list failed: " + err.Error())
		}
	}
	return nil, "", fmt.Errorf("%w: store %s %s", ErrDailyUnavailable, q.StoreID, q.Period)
}

func (s *Service) fetchFromDailyEndpoint(ctx context.Context, q Query) ([]DailyBucket, error) {
	ctx, span := tracer.Start(ctx, "revenue.fetchDaily")
	defer span.End()

	buckets, err := s.daily.FetchDaily(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	filtered := FilterToPeriod(buckets, q.Period)
	span.SetAttributes(
		attribute.Int("buckets.received", len(buckets)),
		attribute.Int("buckets.kept", len(filtered)),
	)
	return filtered, nil
}

func (s *Service) fetchFromOrders(ctx context.Context, q Query) ([]DailyBucket, error) {
	ctx, span := tracer.Start(ctx, "revenue.fetchOrders")
	defer span.End()

	orders, err := s.orders.FetchOrders(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	buckets := GroupOrdersByDay(orders, q.Period, s.now())
	span.SetAttributes(
		attribute.Int("orders.received", len(orders)),
		attribute.Int("buckets.kept", len(buckets)),
	)
	return buckets, nil
}

func (s *Service) logFields(ctx context.Context, q Query, funcName string) *logrus.Entry {
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	return s.logger.WithFields(logrus.Fields{
		"field":          funcName,
		"store_id":       q.StoreID,
		"period":         q.Period.String(),
		"correlation_id": cid,
	})
}

// BatchResult pairs a query with its outcome.
type BatchResult struct {
	Query  Query
	Series *Series
	Err    error
}

// BuildBatch reconciles independent queries concurrently, at most limit at a
// time (limit <= 0 means no bound). Results keep the order of queries and a
// failed query does not stop the others.
func BuildBatch(ctx context.Context, b Builder, queries []Query, limit int) []BatchResult {
	results := make([]BatchResult, len(queries))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, q := range queries {
		g.Go(func() error {
			series, err := b.BuildSeries(ctx, q)
			results[i] = BatchResult{Query: q, Series: series, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
