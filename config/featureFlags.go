package config

import (
	"time"
)

// ReportCacheEnabled turns on the Redis cache of reconciled revenue series.
//
// Set via env:
// - ENABLE_REPORT_CACHE=true
func ReportCacheEnabled() bool {
	return EnvBool("ENABLE_REPORT_CACHE", false)
}

// ReportCacheTTL reads REPORT_CACHE_TTL_SECONDS (default 120s).
func ReportCacheTTL() time.Duration {
	ttl := EnvInt("REPORT_CACHE_TTL_SECONDS", 120)
	if ttl <= 0 {
		ttl = 120
	}
	return time.Duration(ttl) * time.Second
}

// ReportSlowThreshold reads REPORT_SLOW_MS (default 500ms). Reconciliations
// slower than this are logged.
func ReportSlowThreshold() time.Duration {
	ms := EnvInt("REPORT_SLOW_MS", 500)
	if ms <= 0 {
		ms = 500
	}
	return time.Duration(ms) * time.Millisecond
}
