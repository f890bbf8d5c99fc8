// Package synthetic produces plausible last-resort prices when the chain is
// unreachable. It is pure computation: no I/O and no failure mode.
package synthetic

import (
	"github.com/Tytandoteth/world-oracle-gateway/pkg/models"
)

type Generator struct {
	basePrices map[string]float64
	jitter     float64 // fraction, e.g. 0.05 for ±5%
	rand       Rand
	clock      Clock
}

func NewGenerator(basePrices map[string]float64, jitter float64, rnd Rand, clock Clock) *Generator {
	return &Generator{
		basePrices: basePrices,
		jitter:     jitter,
		rand:       rnd,
		clock:      clock,
	}
}

// Generate returns one entry per requested symbol that has a configured
// base price, each jittered uniformly within ±jitter of the base. Symbols
// without a base price are omitted, never defaulted to zero.
func (g *Generator) Generate(symbols []string) map[string]models.PriceEntry {
	now := g.clock.Now().UnixMilli()
	out := make(map[string]models.PriceEntry, len(symbols))

	for _, sym := range symbols {
		base, ok := g.basePrices[sym]
		if !ok {
			continue
		}
		// Uniform in [-jitter, +jitter].
		offset := (g.rand.Float64()*2 - 1) * g.jitter
		out[sym] = models.PriceEntry{
			Price:     base * (1 + offset),
			Timestamp: now,
		}
	}
	return out
}
