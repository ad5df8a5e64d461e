package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultStoreAPIBaseURL = "http://localhost:3001/api"
	defaultStoreTimezone   = "Asia/Jerusalem"
)

func EnvString(key string, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func EnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvBool(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}

// StoreAPIBaseURL is the root of the CRM REST backend that owns stores,
// orders and the cash-flow endpoints.
func StoreAPIBaseURL() string {
	return strings.TrimRight(EnvString("STORE_API_BASE_URL", defaultStoreAPIBaseURL), "/")
}

func StoreAPITimeout() time.Duration {
	secs := EnvInt("STORE_API_TIMEOUT_SECONDS", 30)
	if secs <= 0 {
		secs = 30
	}
	return time.Duration(secs) * time.Second
}

// StoreAPIRateLimitPerMin caps outbound calls per client. 0 disables the limiter.
func StoreAPIRateLimitPerMin() int {
	n := EnvInt("STORE_API_RATE_LIMIT_PER_MIN", 600)
	if n < 0 {
		return 0
	}
	return n
}

// StoreLocation is the timezone used to resolve "today" for named periods and
// for orders whose date cannot be parsed.
func StoreLocation() *time.Location {
	loc, err := time.LoadLocation(EnvString("STORE_TIMEZONE", defaultStoreTimezone))
	if err != nil {
		return time.UTC
	}
	return loc
}

func BatchConcurrency() int {
	n := EnvInt("BATCH_CONCURRENCY", 4)
	if n <= 0 {
		return 1
	}
	return n
}

func IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
}
