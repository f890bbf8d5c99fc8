package oracle

import (
	"context"
	"math/big"
)

// Reader is the upstream price source contract. Prices come back as
// fixed-point integers; the decimal exponent is configuration on the
// consumer side, never inferred from the value.
type Reader interface {
	// LatestPrice fetches the current fixed-point price for one symbol.
	LatestPrice(ctx context.Context, symbol string) (*big.Int, error)

	// LatestPrices fetches fixed-point prices for multiple symbols in one
	// call. A nil error means exactly one price per requested symbol, in
	// request order.
	LatestPrices(ctx context.Context, symbols []string) ([]*big.Int, error)

	// Ping checks that the chain endpoint is reachable.
	Ping(ctx context.Context) error
}
