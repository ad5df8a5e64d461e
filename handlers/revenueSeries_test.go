package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/storecrm_backend/revenue"
	"github.com/mmdatafocus/storecrm_backend/staleguard"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var fixedNow = time.Date(2025, time.March, 18, 9, 30, 0, 0, time.UTC)

type recordingBuilder struct {
	mu      sync.Mutex
	queries []revenue.Query
	err     error
}

func (b *recordingBuilder) BuildSeries(ctx context.Context, q revenue.Query) (*revenue.Series, error) {
	b.mu.Lock()
	b.queries = append(b.queries, q)
	b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	return &revenue.Series{StoreID: q.StoreID, Period: q.Period, Buckets: revenue.ZeroSeries(q.Period)}, nil
}

type staleAlways struct{}

func (staleAlways) Begin(ctx context.Context, viewKey string) staleguard.Ticket {
	return staleguard.Ticket{ViewKey: viewKey, Generation: 1}
}

func (staleAlways) IsCurrent(ctx context.Context, tk staleguard.Ticket) bool { return false }

type countingAggregate struct {
	calls  int
	totals revenue.PeriodTotals
	err    error
}

func (a *countingAggregate) FetchTotals(ctx context.Context, q revenue.Query) (revenue.PeriodTotals, error) {
	a.calls++
	return a.totals, a.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestRouter(b revenue.Builder, guard StaleGuard) *gin.Engine {
	gin.SetMode(gin.TestMode)
	if guard == nil {
		guard = staleguard.NewTracker(nil, quietLogger())
	}
	d := SeriesDeps{
		Builder:    b,
		Guard:      guard,
		Location:   time.UTC,
		Now:        func() time.Time { return fixedNow },
		BatchLimit: 2,
	}
	r := gin.New()
	r.GET("/api/stores/:id/revenue-series", RevenueSeriesHandler(d))
	r.POST("/api/revenue-series/batch", BatchRevenueSeriesHandler(d))
	return r
}

func get(r *gin.Engine, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestRevenueSeriesHandler_ResolvesPeriods(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		start    string
		end      string
		statuses string
		present  bool
	}{
		{name: "month", query: "month=2025-02", start: "2025-02-01", end: "2025-02-28"},
		{name: "default is current month", query: "", start: "2025-03-01", end: "2025-03-31"},
		{name: "week", query: "period=week", start: "2025-03-12", end: "2025-03-18"},
		{name: "custom", query: "startDate=2025-03-05&endDate=2025-03-09", start: "2025-03-05", end: "2025-03-09"},
		{name: "statuses", query: "month=2025-02&statuses=completed,processing", start: "2025-02-01", end: "2025-02-28", statuses: "[completed,processing]", present: true},
		{name: "repeated statuses", query: "month=2025-02&statuses=completed&statuses=refunded", start: "2025-02-01", end: "2025-02-28", statuses: "[completed,refunded]", present: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &recordingBuilder{}
			w := get(newTestRouter(b, nil), "/api/stores/42/revenue-series?"+tt.query)
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
			}
			if len(b.queries) != 1 {
				t.Fatalf("expected 1 build, got %d", len(b.queries))
			}
			q := b.queries[0]
			if q.StoreID != "42" || q.Period.StartDate() != tt.start || q.Period.EndDate() != tt.end {
				t.Fatalf("unexpected query %s %s", q.StoreID, q.Period)
			}
			if q.Statuses.Present() != tt.present {
				t.Fatalf("expected present=%v", tt.present)
			}
			if tt.present && q.Statuses.Key() != tt.statuses {
				t.Fatalf("expected statuses %s, got %s", tt.statuses, q.Statuses.Key())
			}
		})
	}
}

func TestRevenueSeriesHandler_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		query string
		field string
	}{
		{name: "bad month", query: "month=2025-13", field: "Month"},
		{name: "unknown period", query: "period=fortnight", field: "Period"},
		{name: "bad start date", query: "startDate=03/05/2025&endDate=2025-03-09", field: "StartDate"},
		{name: "reversed custom range", query: "startDate=2025-03-09&endDate=2025-03-05"},
		{name: "custom without bounds", query: "period=custom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &recordingBuilder{}
			w := get(newTestRouter(b, nil), "/api/stores/42/revenue-series?"+tt.query)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
			if len(b.queries) != 0 {
				t.Fatalf("an invalid request must not reach the builder")
			}
			if tt.field == "" {
				return
			}
			var body struct {
				Errors map[string]string `json:"errors"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if _, ok := body.Errors[tt.field]; !ok {
				t.Fatalf("expected a validation error on %s, got %v", tt.field, body.Errors)
			}
		})
	}
}

func TestRevenueSeriesHandler_EmptyStatusFilterSkipsUpstream(t *testing.T) {
	agg := &countingAggregate{totals: revenue.NewPeriodTotals(3, decimal.NewFromInt(300), 3)}
	svc := revenue.NewService(revenue.ServiceConfig{Aggregate: agg, Logger: quietLogger()})

	w := get(newTestRouter(svc, nil), "/api/stores/42/revenue-series?month=2025-02&statuses=")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if agg.calls != 0 {
		t.Fatalf("expected no upstream call, got %d", agg.calls)
	}
	var body struct {
		Data revenue.Series `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data.Buckets) != 28 || !body.Data.Totals.Revenue.IsZero() || body.Data.Source != revenue.SourceEmptyStatusFilter {
		t.Fatalf("unexpected series %+v", body.Data)
	}
}

func TestRevenueSeriesHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{name: "aggregate unavailable", err: revenue.ErrAggregateUnavailable, code: http.StatusBadGateway},
		{name: "invalid period", err: revenue.ErrInvalidPeriod, code: http.StatusBadRequest},
		{name: "unexpected", err: errors.New("boom"), code: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(newTestRouter(&recordingBuilder{err: tt.err}, nil), "/api/stores/42/revenue-series?month=2025-02")
			if w.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, w.Code)
			}
		})
	}
}

func TestRevenueSeriesHandler_AggregateFailureThroughService(t *testing.T) {
	agg := &countingAggregate{err: errors.New("connection refused")}
	svc := revenue.NewService(revenue.ServiceConfig{Aggregate: agg, Logger: quietLogger()})

	w := get(newTestRouter(svc, nil), "/api/stores/42/revenue-series?month=2025-02")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRevenueSeriesHandler_StaleResponse(t *testing.T) {
	w := get(newTestRouter(&recordingBuilder{}, staleAlways{}), "/api/stores/42/revenue-series?month=2025-02")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"stale":true`) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestBatchRevenueSeriesHandler(t *testing.T) {
	b := &recordingBuilder{}
	body := `{"queries":[
		{"storeId":"1","month":"2025-02"},
		{"storeId":"2","startDate":"2025-03-09","endDate":"2025-03-05"},
		{"storeId":"3","period":"week","statuses":[]}
	]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/revenue-series/batch", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	newTestRouter(b, nil).ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data []batchItem `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 3 {
		t.Fatalf("expected 3 items, got %d", len(resp.Data))
	}
	if resp.Data[0].Status != http.StatusOK || resp.Data[0].Series == nil || len(resp.Data[0].Series.Buckets) != 28 {
		t.Fatalf("unexpected first item %+v", resp.Data[0])
	}
	if resp.Data[1].Status != http.StatusBadRequest || resp.Data[1].Error == "" {
		t.Fatalf("expected the reversed range to fail alone, got %+v", resp.Data[1])
	}
	if resp.Data[2].Status != http.StatusOK || resp.Data[2].StoreID != "3" {
		t.Fatalf("unexpected third item %+v", resp.Data[2])
	}
	if len(b.queries) != 2 {
		t.Fatalf("expected 2 builds, got %d", len(b.queries))
	}
	for _, q := range b.queries {
		if q.StoreID == "3" && !q.Statuses.IsEmpty() {
			t.Fatalf("an empty statuses list must become the empty filter")
		}
	}
}

func TestBatchRevenueSeriesHandler_RejectsEmptyBody(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/revenue-series/batch", strings.NewReader(`{"queries":[]}`))
	req.Header.Set("Content-Type", "application/json")
	newTestRouter(&recordingBuilder{}, nil).ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
