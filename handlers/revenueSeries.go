package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/storecrm_backend/revenue"
	"github.com/mmdatafocus/storecrm_backend/staleguard"
	"github.com/mmdatafocus/storecrm_backend/utils"
)

// StaleGuard tells whether a newer request from the same view has begun
// since this one started.
type StaleGuard interface {
	Begin(ctx context.Context, viewKey string) staleguard.Ticket
	IsCurrent(ctx context.Context, tk staleguard.Ticket) bool
}

type SeriesDeps struct {
	Builder revenue.Builder
	Guard   StaleGuard
	// Location resolves "today" for named periods.
	Location *time.Location
	Now      func() time.Time
	// BatchLimit bounds concurrent reconciliations per batch request.
	BatchLimit int
}

func (d SeriesDeps) now() time.Time {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	return now().In(loc)
}

type periodParams struct {
	Month     string `form:"month" json:"month" binding:"omitempty,datetime=2006-01"`
	Period    string `form:"period" json:"period" binding:"omitempty,oneof=today week month year custom"`
	StartDate string `form:"startDate" json:"startDate" binding:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"endDate" json:"endDate" binding:"omitempty,datetime=2006-01-02"`
}

// resolve picks month first, then a named or custom period. With nothing set
// the current month is used.
func (p periodParams) resolve(now time.Time) (revenue.Period, error) {
	if p.Month != "" {
		return revenue.ParseMonth(p.Month)
	}
	name := p.Period
	if name == "" && p.StartDate == "" && p.EndDate == "" {
		name = revenue.PeriodMonth
	}
	return revenue.ResolvePeriod(name, now, p.StartDate, p.EndDate)
}

type batchQuery struct {
	StoreID string `json:"storeId" binding:"required"`
	periodParams
	// nil means no filter; an empty list means nothing matches.
	Statuses *[]string `json:"statuses"`
}

type batchRequest struct {
	Queries []batchQuery `json:"queries" binding:"required,min=1,max=100,dive"`
}

type batchItem struct {
	StoreID string          `json:"storeId"`
	Series  *revenue.Series `json:"series,omitempty"`
	Error   string          `json:"error,omitempty"`
	Status  int             `json:"status"`
}

// RevenueSeriesHandler serves GET /api/stores/:id/revenue-series.
func RevenueSeriesHandler(d SeriesDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var params periodParams
		if err := c.ShouldBindQuery(&params); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "errors": ProcessValidationErrors(err)})
			return
		}
		period, err := params.resolve(d.now())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var statuses revenue.StatusFilter
		if values, ok := c.GetQueryArray("statuses"); ok {
			statuses = revenue.ParseStatusFilter(strings.Join(values, ","), true)
		}

		storeID := strings.TrimSpace(c.Param("id"))
		c.Request = c.Request.WithContext(utils.SetStoreIdInContext(c.Request.Context(), storeID))
		ctx := c.Request.Context()
		viewID, _ := utils.GetViewIdFromContext(ctx)
		ticket := d.Guard.Begin(ctx, viewID)

		series, err := d.Builder.BuildSeries(ctx, revenue.Query{
			StoreID:  storeID,
			Period:   period,
			Statuses: statuses,
		})
		if !d.Guard.IsCurrent(ctx, ticket) {
			c.JSON(http.StatusConflict, gin.H{"stale": true})
			return
		}
		if err != nil {
			_ = c.Error(err)
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": series})
	}
}

// BatchRevenueSeriesHandler serves POST /api/revenue-series/batch. Each query
// succeeds or fails on its own; the response is 200 unless the body itself is
// invalid or the view has moved on.
func BatchRevenueSeriesHandler(d SeriesDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req batchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "errors": ProcessValidationErrors(err)})
			return
		}

		ctx := c.Request.Context()
		viewID, _ := utils.GetViewIdFromContext(ctx)
		ticket := d.Guard.Begin(ctx, viewID)

		now := d.now()
		items := make([]batchItem, len(req.Queries))
		queries := make([]revenue.Query, 0, len(req.Queries))
		positions := make([]int, 0, len(req.Queries))
		for i, bq := range req.Queries {
			items[i].StoreID = bq.StoreID
			period, err := bq.resolve(now)
			if err != nil {
				items[i].Error = err.Error()
				items[i].Status = http.StatusBadRequest
				continue
			}
			statuses := revenue.AllStatuses()
			if bq.Statuses != nil {
				statuses = revenue.OnlyStatuses(*bq.Statuses...)
			}
			queries = append(queries, revenue.Query{StoreID: strings.TrimSpace(bq.StoreID), Period: period, Statuses: statuses})
			positions = append(positions, i)
		}

		for j, res := range revenue.BuildBatch(ctx, d.Builder, queries, d.BatchLimit) {
			item := &items[positions[j]]
			if res.Err != nil {
				item.Error = res.Err.Error()
				item.Status = statusForError(res.Err)
				continue
			}
			item.Series = res.Series
			item.Status = http.StatusOK
		}

		if !d.Guard.IsCurrent(ctx, ticket) {
			c.JSON(http.StatusConflict, gin.H{"stale": true})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": items})
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, revenue.ErrInvalidPeriod), errors.Is(err, revenue.ErrStoreRequired):
		return http.StatusBadRequest
	case errors.Is(err, revenue.ErrAggregateUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
