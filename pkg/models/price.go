package models

// Snapshot status values. The status field, not the HTTP code, is the
// canonical signal for whether the data is trustworthy.
const (
	StatusUninitialized = "uninitialized"
	StatusSuccess       = "success"
	StatusDegraded      = "degraded"
	StatusFallback      = "fallback"
	StatusError         = "error"
)

// PriceEntry is a single symbol's price at the moment it was obtained.
type PriceEntry struct {
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"` // unix ms
}

// PriceSnapshot is the authoritative price record. It is replaced wholesale
// on every refresh cycle and never mutated in place.
type PriceSnapshot struct {
	Prices      map[string]PriceEntry `json:"prices"`
	LastUpdated int64                 `json:"lastUpdated"` // unix ms
	Status      string                `json:"status"`
	Error       string                `json:"error,omitempty"`
}

// NewEmptySnapshot is the state before the first refresh has run.
func NewEmptySnapshot() PriceSnapshot {
	return PriceSnapshot{
		Prices: make(map[string]PriceEntry),
		Status: StatusUninitialized,
	}
}

// TickEvent is the payload published per symbol after a refresh cycle,
// both on the Redis price channels and the optional Kafka feed.
type TickEvent struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"` // unix ms
	Source    string  `json:"source"`    // snapshot status at publish time
}
