package reports

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/storecrm_backend/config"
	"github.com/mmdatafocus/storecrm_backend/revenue"
	"github.com/mmdatafocus/storecrm_backend/utils"
	"github.com/sirupsen/logrus"
)

const (
	lockTTL  = 30 * time.Second
	lockWait = 5 * time.Second
)

// CacheStore is the slice of Redis the cache needs. The default
// implementation goes through the config package's shared client.
type CacheStore interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, obj any, ttl time.Duration) error
}

// Locker obtains a short lock around a cold fill.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

type redisStore struct{}

func (redisStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	return config.GetRedisObject(ctx, key, dest)
}

func (redisStore) Set(ctx context.Context, key string, obj any, ttl time.Duration) error {
	return config.SetRedisObject(ctx, key, obj, ttl)
}

// CachedBuilder serves reconciled series from Redis when ENABLE_REPORT_CACHE
// is on, and logs reconciliations slower than REPORT_SLOW_MS either way.
type CachedBuilder struct {
	next    revenue.Builder
	store   CacheStore
	locker  Locker
	logger  *logrus.Logger
	enabled bool
	ttl     time.Duration
	slow    time.Duration
}

func NewCachedBuilder(next revenue.Builder, logger *logrus.Logger) *CachedBuilder {
	b := &CachedBuilder{
		next:    next,
		store:   redisStore{},
		logger:  logger,
		enabled: config.ReportCacheEnabled(),
		ttl:     config.ReportCacheTTL(),
		slow:    config.ReportSlowThreshold(),
	}
	// Avoid a typed-nil interface when redis is not connected.
	if l := config.GetRedisLock(); l != nil {
		b.locker = l
	}
	if b.logger == nil {
		b.logger = config.GetLogger()
	}
	return b
}

func SeriesCacheKey(q revenue.Query) string {
	return strings.Join([]string{
		"RevenueSeries",
		q.StoreID,
		q.Period.Name,
		q.Period.StartDate(),
		q.Period.EndDate(),
		q.Statuses.Key(),
	}, ":")
}

func (b *CachedBuilder) BuildSeries(ctx context.Context, q revenue.Query) (*revenue.Series, error) {
	started := time.Now()
	defer b.logSlow(ctx, q, started)

	if !b.enabled || q.Statuses.IsEmpty() {
		return b.next.BuildSeries(ctx, q)
	}

	key := SeriesCacheKey(q)
	if series, ok := b.cached(ctx, key); ok {
		return series, nil
	}

	if lock := b.obtainLock(ctx, key); lock != nil {
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				b.logger.WithFields(logrus.Fields{"field": "CachedBuilder", "key": key}).
					Warn("failed to release redis lock: " + err.Error())
			}
		}()
		// Another instance may have filled the key while we waited.
		if series, ok := b.cached(ctx, key); ok {
			return series, nil
		}
	}

	series, err := b.next.BuildSeries(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := b.store.Set(ctx, key, series, b.ttl); err != nil {
		config.LogError(b.logger, "reports", "CachedBuilder.BuildSeries", "cache set", key, err)
	}
	return series, nil
}

func (b *CachedBuilder) cached(ctx context.Context, key string) (*revenue.Series, bool) {
	var series revenue.Series
	found, err := b.store.Get(ctx, key, &series)
	if err != nil {
		config.LogError(b.logger, "reports", "CachedBuilder.cached", "cache get", key, err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	return &series, true
}

// obtainLock is best-effort: nil means "go on without a lock".
func (b *CachedBuilder) obtainLock(ctx context.Context, key string) *redislock.Lock {
	if b.locker == nil {
		return nil
	}
	lockCtx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()
	lock, err := b.locker.Obtain(lockCtx, "lock:"+key, lockTTL, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(100 * time.Millisecond),
	})
	if err != nil {
		b.logger.WithFields(logrus.Fields{"field": "CachedBuilder", "key": key}).
			Warn("could not obtain redis lock; proceeding without redis lock: " + err.Error())
		return nil
	}
	return lock
}

func (b *CachedBuilder) logSlow(ctx context.Context, q revenue.Query, started time.Time) {
	d := time.Since(started)
	if d < b.slow {
		return
	}
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	b.logger.WithFields(logrus.Fields{
		"field":          "slow_report",
		"name":           "RevenueSeries",
		"ms":             d.Milliseconds(),
		"store_id":       q.StoreID,
		"period":         q.Period.String(),
		"correlation_id": cid,
	}).Warn("slow reconciliation")
}
