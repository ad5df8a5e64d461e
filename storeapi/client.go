package storeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmdatafocus/storecrm_backend/config"
	"github.com/mmdatafocus/storecrm_backend/revenue"
	"github.com/mmdatafocus/storecrm_backend/utils"
	"golang.org/x/time/rate"
)

// APIError is a non-2xx answer from the CRM backend.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("store api error %d: %s", e.StatusCode, e.Body)
}

// Client talks to the CRM REST backend. The caller's token travels in the
// request context and is forwarded as a bearer token; it is never inspected.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds a client; ratePerMin <= 0 disables rate limiting.
func NewClient(baseURL string, timeout time.Duration, ratePerMin int) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
	if ratePerMin > 0 {
		interval := time.Minute / time.Duration(ratePerMin)
		c.limiter = rate.NewLimiter(rate.Every(interval), 1+ratePerMin/60)
	}
	return c
}

func NewClientFromEnv() *Client {
	return NewClient(config.StoreAPIBaseURL(), config.StoreAPITimeout(), config.StoreAPIRateLimitPerMin())
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, dest any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if token, ok := utils.GetTokenFromContext(ctx); ok && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok && cid != "" {
		req.Header.Set("x-correlation-id", cid)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// rangeParams carries the period bounds and, when present and non-empty, the
// status allow-list.
func rangeParams(q revenue.Query) url.Values {
	params := url.Values{}
	params.Set("startDate", q.Period.StartDate())
	params.Set("endDate", q.Period.EndDate())
	if v := q.Statuses.QueryValue(); v != "" {
		params.Set("statuses", v)
	}
	return params
}

type statsResponse struct {
	Data struct {
		Stats struct {
			OrderCount int64           `json:"orderCount"`
			Revenue    json.RawMessage `json:"revenue"`
			UnitsSold  int64           `json:"unitsSold"`
		} `json:"stats"`
	} `json:"data"`
}

// FetchTotals calls GET /stores/{id}/stats.
func (c *Client) FetchTotals(ctx context.Context, q revenue.Query) (revenue.PeriodTotals, error) {
	params := rangeParams(q)
	switch q.Period.Name {
	case revenue.PeriodToday, revenue.PeriodWeek, revenue.PeriodMonth, revenue.PeriodYear:
		params.Set("period", q.Period.Name)
	}

	var parsed statsResponse
	path := "/stores/" + url.PathEscape(q.StoreID) + "/stats"
	if err := c.getJSON(ctx, path, params, &parsed); err != nil {
		return revenue.PeriodTotals{}, err
	}
	stats := parsed.Data.Stats
	amount, err := utils.DecimalFromJSON(stats.Revenue)
	if err != nil {
		return revenue.PeriodTotals{}, fmt.Errorf("decode stats revenue: %w", err)
	}
	return revenue.NewPeriodTotals(stats.OrderCount, amount, stats.UnitsSold), nil
}

type cashflowResponse struct {
	Data   []dailyRecord `json:"data"`
	Source string        `json:"source"`
}

// dailyRecord keeps revenue raw so "1,234.50" style amounts decode the same
// way as order totals.
type dailyRecord struct {
	Date       string          `json:"date"`
	Revenue    json.RawMessage `json:"revenue"`
	OrderCount int64           `json:"orderCount"`
	UnitsSold  int64           `json:"unitsSold"`
}

// FetchDaily calls GET /cashflow.
func (c *Client) FetchDaily(ctx context.Context, q revenue.Query) ([]revenue.DailyBucket, error) {
	params := rangeParams(q)
	params.Set("storeId", q.StoreID)

	var parsed cashflowResponse
	if err := c.getJSON(ctx, "/cashflow", params, &parsed); err != nil {
		return nil, err
	}
	out := make([]revenue.DailyBucket, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		amount, err := utils.DecimalFromJSON(d.Revenue)
		if err != nil {
			return nil, fmt.Errorf("decode %s revenue: %w", d.Date, err)
		}
		out = append(out, revenue.DailyBucket{
			Date:       d.Date,
			Revenue:    amount,
			OrderCount: d.OrderCount,
			UnitsSold:  d.UnitsSold,
		})
	}
	return out, nil
}

type ordersResponse struct {
	Data struct {
		Orders []orderRecord `json:"orders"`
	} `json:"data"`
}

// orderRecord tolerates WooCommerce's habit of sending ids as numbers and
// totals as strings, sometimes empty.
type orderRecord struct {
	ID          flexString         `json:"id"`
	Date        string             `json:"date"`
	DateCreated string             `json:"dateCreated"`
	Total       json.RawMessage    `json:"total"`
	LineItems   []revenue.LineItem `json:"lineItems"`
}

type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = flexString(str)
		return nil
	}
	*s = flexString(strings.TrimSpace(string(b)))
	return nil
}

// FetchOrders calls GET /orders.
func (c *Client) FetchOrders(ctx context.Context, q revenue.Query) ([]revenue.RawOrderRecord, error) {
	params := rangeParams(q)
	params.Set("storeId", q.StoreID)

	var parsed ordersResponse
	if err := c.getJSON(ctx, "/orders", params, &parsed); err != nil {
		return nil, err
	}
	out := make([]revenue.RawOrderRecord, 0, len(parsed.Data.Orders))
	for _, o := range parsed.Data.Orders {
		total, err := utils.DecimalFromJSON(o.Total)
		if err != nil {
			return nil, fmt.Errorf("decode order %s total: %w", o.ID, err)
		}
		out = append(out, revenue.RawOrderRecord{
			ID:          string(o.ID),
			Date:        o.Date,
			DateCreated: o.DateCreated,
			Total:       total,
			LineItems:   o.LineItems,
		})
	}
	return out, nil
}
