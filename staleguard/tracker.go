package staleguard

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	keyPrefix  = "ViewGeneration:"
	defaultTTL = 30 * time.Minute
	// pruneAbove bounds the in-process map; views idle longer than the TTL are
	// dropped once it grows past this size.
	pruneAbove = 10000
)

// Ticket identifies one request issued by a view. It stays current until the
// same view begins a newer request.
type Ticket struct {
	ViewKey    string
	Generation int64
	// local marks tickets numbered by the in-process map rather than Redis.
	local bool
}

type entry struct {
	gen     int64
	touched time.Time
}

// Tracker hands out tickets per view. With a Redis client the generation
// counters are shared by every instance behind the load balancer; without
// one, or when Redis errors, they live in this process.
type Tracker struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *logrus.Logger

	mu    sync.Mutex
	local map[string]entry
	now   func() time.Time
}

func NewTracker(rdb *redis.Client, logger *logrus.Logger) *Tracker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Tracker{
		rdb:    rdb,
		ttl:    defaultTTL,
		logger: logger,
		local:  map[string]entry{},
		now:    time.Now,
	}
}

// Begin starts a request for viewKey and supersedes every earlier ticket of
// that view. An empty viewKey yields a ticket that is always current.
func (t *Tracker) Begin(ctx context.Context, viewKey string) Ticket {
	if viewKey == "" {
		return Ticket{}
	}
	if t.rdb != nil {
		key := keyPrefix + viewKey
		gen, err := t.rdb.Incr(ctx, key).Result()
		if err == nil {
			if err := t.rdb.Expire(ctx, key, t.ttl).Err(); err != nil {
				t.logger.WithFields(logrus.Fields{"field": "staleguard.Begin", "view": viewKey}).
					Warn("redis expire failed: " + err.Error())
			}
			return Ticket{ViewKey: viewKey, Generation: gen}
		}
		t.logger.WithFields(logrus.Fields{"field": "staleguard.Begin", "view": viewKey}).
			Warn("redis incr failed; tracking view in process: " + err.Error())
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if len(t.local) > pruneAbove {
		for k, e := range t.local {
			if now.Sub(e.touched) > t.ttl {
				delete(t.local, k)
			}
		}
	}
	e := t.local[viewKey]
	e.gen++
	e.touched = now
	t.local[viewKey] = e
	return Ticket{ViewKey: viewKey, Generation: e.gen, local: true}
}

// IsCurrent reports whether no newer request has begun for the ticket's
// view. A ticket is checked against the store that numbered it. Lookup
// failures count as current: a result is only discarded when it is known to
// be stale.
func (t *Tracker) IsCurrent(ctx context.Context, tk Ticket) bool {
	if tk.ViewKey == "" {
		return true
	}
	if !tk.local {
		if t.rdb == nil {
			return true
		}
		val, err := t.rdb.Get(ctx, keyPrefix+tk.ViewKey).Result()
		if err != nil {
			if err != redis.Nil {
				t.logger.WithFields(logrus.Fields{"field": "staleguard.IsCurrent", "view": tk.ViewKey}).
					Warn("redis get failed; treating request as current: " + err.Error())
			}
			return true
		}
		gen, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return true
		}
		return gen == tk.Generation
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.local[tk.ViewKey]
	if !ok {
		return true
	}
	return e.gen == tk.Generation
}
