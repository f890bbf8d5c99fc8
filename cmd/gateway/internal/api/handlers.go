// Package api serves the HTTP read surface. Every handler is a pure read
// against the cache store: nothing here ever calls the chain, so a failing
// upstream can never slow a response down. Degraded data is reported
// through the payload's status field, not through HTTP 5xx.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Tytandoteth/world-oracle-gateway/pkg/cache"
	"github.com/Tytandoteth/world-oracle-gateway/pkg/metrics"
	"github.com/Tytandoteth/world-oracle-gateway/pkg/models"
)

// for deterministic testing
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

type Handler struct {
	store     *cache.Store
	recorder  *metrics.Recorder
	symbols   []string // configured order, for supportedTokens listings
	supported map[string]bool
	maxAge    time.Duration
	version   string
	clock     Clock
	logger    *zap.Logger
}

func NewHandler(
	store *cache.Store,
	recorder *metrics.Recorder,
	symbols []string,
	maxAge time.Duration,
	version string,
	clock Clock,
	logger *zap.Logger,
) *Handler {
	supported := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		supported[strings.ToUpper(s)] = true
	}
	return &Handler{
		store:     store,
		recorder:  recorder,
		symbols:   symbols,
		supported: supported,
		maxAge:    maxAge,
		version:   version,
		clock:     clock,
		logger:    logger,
	}
}

// pricesPayload is the /prices response.
type pricesPayload struct {
	Prices      map[string]float64 `json:"prices"`
	Timestamp   int64              `json:"timestamp"`
	LastUpdated int64              `json:"lastUpdated"`
	Status      string             `json:"status"`
	Stale       bool               `json:"stale"`
	Error       string             `json:"error,omitempty"`
}

type singlePricePayload struct {
	Symbol      string  `json:"symbol"`
	Price       float64 `json:"price"`
	Timestamp   int64   `json:"timestamp"`
	LastUpdated int64   `json:"lastUpdated"`
	Status      string  `json:"status"`
	Stale       bool    `json:"stale"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.recorder.RecordRequest(r.Context())
	writeJSON(w, http.StatusOK, h.recorder.Health(r.Context(), h.version))
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	h.recorder.RecordRequest(r.Context())

	report, err := h.recorder.Report(r.Context())
	if err != nil {
		// Structured degraded payload, never a 5xx.
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":    models.StatusError,
			"error":     err.Error(),
			"timestamp": h.clock.Now().UnixMilli(),
		})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handlePrices(w http.ResponseWriter, r *http.Request) {
	h.recorder.RecordRequest(r.Context())

	payload, _ := h.pricesFromCache(r.Context())
	writeJSON(w, http.StatusOK, payload)
}

// pricesFromCache builds the /prices payload. ok is false when the store
// read itself failed and the payload only carries the error.
func (h *Handler) pricesFromCache(ctx context.Context) (pricesPayload, bool) {
	now := h.clock.Now().UnixMilli()

	snap, err := h.store.LoadSnapshot(ctx)
	if err != nil {
		h.logger.Error("Snapshot read failed", zap.Error(err))
		return pricesPayload{
			Prices:    map[string]float64{},
			Timestamp: now,
			Status:    models.StatusError,
			Error:     err.Error(),
		}, false
	}

	prices := make(map[string]float64, len(snap.Prices))
	for sym, entry := range snap.Prices {
		prices[sym] = entry.Price
	}

	// Staleness is reported, never acted on: refreshing is the
	// scheduler's job and reads must stay O(1).
	stale := snap.LastUpdated > 0 && now-snap.LastUpdated > h.maxAge.Milliseconds()

	return pricesPayload{
		Prices:      prices,
		Timestamp:   now,
		LastUpdated: snap.LastUpdated,
		Status:      snap.Status,
		Stale:       stale,
		Error:       snap.Error,
	}, true
}

func (h *Handler) handleSinglePrice(w http.ResponseWriter, r *http.Request) {
	h.recorder.RecordRequest(r.Context())

	symbol := strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/price/")))
	now := h.clock.Now().UnixMilli()

	if symbol == "" || !h.supported[symbol] {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error":           "Unsupported token: " + symbol,
			"supportedTokens": h.symbols,
			"timestamp":       now,
		})
		return
	}

	payload, ok := h.pricesFromCache(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, payload)
		return
	}

	price, found := payload.Prices[symbol]
	if !found {
		// Supported but missing from the current snapshot: "not
		// available" is deliberately distinct from "unsupported".
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error":     "Price not available for token: " + symbol,
			"symbol":    symbol,
			"status":    payload.Status,
			"timestamp": now,
		})
		return
	}

	writeJSON(w, http.StatusOK, singlePricePayload{
		Symbol:      symbol,
		Price:       price,
		Timestamp:   now,
		LastUpdated: payload.LastUpdated,
		Status:      payload.Status,
		Stale:       payload.Stale,
	})
}

func (h *Handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]interface{}{
		"error": "Not found: " + r.URL.Path,
		"endpoints": []string{
			"GET /health",
			"GET /metrics",
			"GET /prices",
			"GET /price/{symbol}",
			"GET /ws",
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
