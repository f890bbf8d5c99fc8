package models

// ErrorInfo describes the most recent recorded error.
type ErrorInfo struct {
	Timestamp int64  `json:"timestamp"` // unix ms
	Message   string `json:"message"`
	Context   string `json:"context"`
}

// Metrics is the advisory counter record kept in the cache store.
// Counters are monotonically non-decreasing for the lifetime of the store;
// increments are read-modify-write and may under-count under concurrency.
type Metrics struct {
	RequestCount    int64      `json:"requestCount"`
	ErrorCount      int64      `json:"errorCount"`
	PriceUpdates    int64      `json:"priceUpdates"`
	LastPriceUpdate int64      `json:"lastPriceUpdate"` // unix ms
	LastError       *ErrorInfo `json:"lastError,omitempty"`
}

// PriceCacheInfo summarises the snapshot for the health report.
type PriceCacheInfo struct {
	LastUpdated int64  `json:"lastUpdated"`
	Status      string `json:"status"`
	TokenCount  int    `json:"tokenCount"`
}

// HealthReport is the /health payload.
type HealthReport struct {
	Status     string         `json:"status"` // ok | degraded | error
	Version    string         `json:"version"`
	Timestamp  int64          `json:"timestamp"` // unix ms
	UptimeMs   int64          `json:"uptime"`
	PriceCache PriceCacheInfo `json:"priceCache"`
	Error      string         `json:"error,omitempty"`
}

// MetricsReport is the /metrics payload: the raw counters plus derived
// freshness fields.
type MetricsReport struct {
	Metrics
	CacheAgeMs             int64 `json:"cacheAge"`
	LastPriceUpdateSeconds int64 `json:"lastPriceUpdateSeconds"`
	PriceCount             int   `json:"priceCount"`
}

// BreakerState is a point-in-time view of one named circuit breaker.
type BreakerState struct {
	Name            string `json:"name"`
	State           string `json:"state"` // closed | open | half-open
	FailureCount    int    `json:"failureCount"`
	LastFailureTime int64  `json:"lastFailureTime"` // unix ms
	Threshold       int    `json:"threshold"`
	ResetTimeoutMs  int64  `json:"resetTimeoutMs"`
}
