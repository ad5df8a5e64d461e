package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmdatafocus/storecrm_backend/config"
	"github.com/mmdatafocus/storecrm_backend/revenue"
	"github.com/mmdatafocus/storecrm_backend/storeapi"
	"github.com/mmdatafocus/storecrm_backend/utils"
)

// statusesFlag remembers whether -statuses was given at all, so that
// -statuses= selects nothing while omitting it selects everything.
type statusesFlag struct {
	raw string
	set bool
}

func (f *statusesFlag) String() string { return f.raw }

func (f *statusesFlag) Set(v string) error {
	f.raw, f.set = v, true
	return nil
}

func main() {
	storeID := flag.String("store", "", "Store id (required).")
	month := flag.String("month", "", "Calendar month, YYYY-MM. Takes precedence over -period.")
	period := flag.String("period", "", "today, week, month, year or custom. Defaults to the current month.")
	from := flag.String("from", "", "Start date (YYYY-MM-DD) for -period=custom.")
	to := flag.String("to", "", "End date (YYYY-MM-DD) for -period=custom.")
	token := flag.String("token", "", "Bearer token forwarded to the store API. Defaults to STORE_API_TOKEN.")
	var statuses statusesFlag
	flag.Var(&statuses, "statuses", "Comma separated order statuses. An empty value selects nothing.")
	flag.Parse()

	if strings.TrimSpace(*storeID) == "" {
		fmt.Fprintln(os.Stderr, "-store is required")
		flag.Usage()
		os.Exit(2)
	}

	loc := config.StoreLocation()
	p, err := resolvePeriod(*month, *period, *from, *to, time.Now().In(loc))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid period: %v\n", err)
		os.Exit(2)
	}

	ctx := context.Background()
	tok := strings.TrimSpace(*token)
	if tok == "" {
		tok = config.EnvString("STORE_API_TOKEN", "")
	}
	if tok != "" {
		ctx = utils.SetTokenInContext(ctx, tok)
	}

	client := storeapi.NewClientFromEnv()
	svc := revenue.NewService(revenue.ServiceConfig{
		Aggregate: client,
		Daily:     client,
		Orders:    client,
		Logger:    config.GetLogger(),
		Now:       func() time.Time { return time.Now().In(loc) },
	})
	series, err := svc.BuildSeries(ctx, revenue.Query{
		StoreID:  strings.TrimSpace(*storeID),
		Period:   p,
		Statuses: revenue.ParseStatusFilter(statuses.raw, statuses.set),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile store %s %s: %v\n", *storeID, p, err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(series); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}
}

func resolvePeriod(month, name, from, to string, now time.Time) (revenue.Period, error) {
	if strings.TrimSpace(month) != "" {
		return revenue.ParseMonth(month)
	}
	if strings.TrimSpace(name) == "" && from == "" && to == "" {
		name = revenue.PeriodMonth
	}
	return revenue.ResolvePeriod(name, now, from, to)
}
