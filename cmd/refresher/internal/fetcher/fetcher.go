// Package fetcher assembles price snapshots from the on-chain oracle,
// degrading through partial results down to synthetic prices rather than
// failing a whole cycle.
package fetcher

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Tytandoteth/world-oracle-gateway/cmd/refresher/internal/oracle"
	"github.com/Tytandoteth/world-oracle-gateway/cmd/refresher/internal/synthetic"
	"github.com/Tytandoteth/world-oracle-gateway/pkg/breaker"
	"github.com/Tytandoteth/world-oracle-gateway/pkg/models"
)

type Fetcher struct {
	source   oracle.Reader
	synth    *synthetic.Generator
	brk      *breaker.Breaker
	decimals int32
	clock    Clock
	logger   *zap.Logger
}

func NewFetcher(source oracle.Reader, synth *synthetic.Generator, brk *breaker.Breaker, decimals int, clock Clock, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		source:   source,
		synth:    synth,
		brk:      brk,
		decimals: int32(decimals),
		clock:    clock,
		logger:   logger,
	}
}

// FetchSnapshot builds a fresh snapshot for the given symbols.
//
// The upstream is gated by the circuit breaker: if the chain endpoint is
// unreachable (or the breaker is already open) the whole snapshot comes
// from the synthetic generator with status "fallback". Otherwise a batch
// read is attempted first; on batch failure each symbol is retried
// independently so one bad symbol cannot lose the rest. Missing symbols
// are left absent, never backfilled with synthetic entries, so every entry
// in a "degraded" snapshot still came from the chain.
func (f *Fetcher) FetchSnapshot(ctx context.Context, symbols []string) models.PriceSnapshot {
	if err := f.brk.Execute(ctx, f.source.Ping, nil); err != nil {
		f.logger.Warn("Oracle unreachable, serving synthetic prices",
			zap.String("breaker", f.brk.State().State),
			zap.Error(err))
		return f.fallbackSnapshot(symbols, err)
	}

	if snap, ok := f.fetchBatch(ctx, symbols); ok {
		return snap
	}

	prices := make(map[string]models.PriceEntry, len(symbols))
	failures := 0
	for _, sym := range symbols {
		var raw *big.Int
		err := f.brk.Execute(ctx, func(ctx context.Context) error {
			var cerr error
			raw, cerr = f.source.LatestPrice(ctx, sym)
			return cerr
		}, nil)
		if err != nil {
			failures++
			f.logger.Warn("Symbol fetch failed", zap.String("symbol", sym), zap.Error(err))
			continue
		}
		// Timestamp at acquisition time, not snapshot-assembly time.
		prices[sym] = models.PriceEntry{
			Price:     f.toFloat(raw),
			Timestamp: f.clock.Now().UnixMilli(),
		}
	}

	if len(prices) == 0 {
		err := fmt.Errorf("all %d symbol fetches failed", len(symbols))
		f.logger.Warn("Oracle returned no prices, serving synthetic prices", zap.Error(err))
		return f.fallbackSnapshot(symbols, err)
	}

	status := models.StatusSuccess
	if failures > 0 {
		status = models.StatusDegraded
	}
	return models.PriceSnapshot{
		Prices:      prices,
		LastUpdated: f.clock.Now().UnixMilli(),
		Status:      status,
	}
}

// fetchBatch tries the single-call batch read. ok is false when the batch
// failed and the caller should fall through to per-symbol fetches.
func (f *Fetcher) fetchBatch(ctx context.Context, symbols []string) (models.PriceSnapshot, bool) {
	var raw []*big.Int
	err := f.brk.Execute(ctx, func(ctx context.Context) error {
		var cerr error
		raw, cerr = f.source.LatestPrices(ctx, symbols)
		return cerr
	}, nil)
	if err != nil {
		f.logger.Debug("Batch fetch failed, retrying per symbol", zap.Error(err))
		return models.PriceSnapshot{}, false
	}
	if len(raw) != len(symbols) {
		f.logger.Warn("Batch returned wrong price count, retrying per symbol",
			zap.Int("got", len(raw)),
			zap.Int("want", len(symbols)))
		return models.PriceSnapshot{}, false
	}

	now := f.clock.Now().UnixMilli()
	prices := make(map[string]models.PriceEntry, len(symbols))
	for i, sym := range symbols {
		prices[sym] = models.PriceEntry{Price: f.toFloat(raw[i]), Timestamp: now}
	}
	return models.PriceSnapshot{
		Prices:      prices,
		LastUpdated: now,
		Status:      models.StatusSuccess,
	}, true
}

// fallbackSnapshot builds an all-synthetic snapshot. Status is "error"
// only when the generator itself has nothing to offer.
func (f *Fetcher) fallbackSnapshot(symbols []string, cause error) models.PriceSnapshot {
	prices := f.synth.Generate(symbols)

	status := models.StatusFallback
	if len(prices) == 0 {
		status = models.StatusError
	}
	return models.PriceSnapshot{
		Prices:      prices,
		LastUpdated: f.clock.Now().UnixMilli(),
		Status:      status,
		Error:       cause.Error(),
	}
}

// toFloat converts a fixed-point integer using the configured exponent.
// The exponent is configuration: inferring it would silently corrupt every
// downstream consumer.
func (f *Fetcher) toFloat(raw *big.Int) float64 {
	return decimal.NewFromBigInt(raw, -f.decimals).InexactFloat64()
}
