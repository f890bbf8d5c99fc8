package repository

import (
	"context"

	"github.com/Tytandoteth/world-oracle-gateway/pkg/models"
)

// PriceFeed is what the websocket hub needs from the cache store: the
// latest entries for a symbol set, plus the pub/sub update feed the
// refresher publishes to.
type PriceFeed interface {
	// LatestEntries returns the cached snapshot entries for the given
	// symbols; symbols missing from the snapshot are simply absent.
	LatestEntries(ctx context.Context, symbols []string) (map[string]models.PriceEntry, string, error)

	SubscribeToFeed(ctx context.Context, symbol string) error
	UnsubscribeFromFeed(ctx context.Context, symbol string) error

	// RunPubSub is a blocking loop delivering published ticks to onTick.
	RunPubSub(ctx context.Context, onTick func(symbol string, payload string))

	Close() error
}
