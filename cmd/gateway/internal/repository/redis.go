package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/Tytandoteth/world-oracle-gateway/pkg/cache"
	"github.com/Tytandoteth/world-oracle-gateway/pkg/models"
)

const channelPrefix = "prices."

// Compile-time check to ensure RedisFeed implements PriceFeed
var _ PriceFeed = (*RedisFeed)(nil)

// RedisFeed serves snapshot reads from the cache store and relays the
// refresher's pub/sub ticks to the hub.
type RedisFeed struct {
	store  *cache.Store
	pubsub *redis.PubSub
	mu     sync.Mutex // serializes pubsub (un)subscribe calls
}

func NewRedisFeed(client *redis.Client, store *cache.Store) *RedisFeed {
	ps := client.Subscribe(context.Background())
	return &RedisFeed{
		store:  store,
		pubsub: ps,
	}
}

func (r *RedisFeed) LatestEntries(ctx context.Context, symbols []string) (map[string]models.PriceEntry, string, error) {
	snap, err := r.store.LoadSnapshot(ctx)
	if err != nil {
		return nil, "", err
	}

	entries := make(map[string]models.PriceEntry, len(symbols))
	for _, sym := range symbols {
		if entry, ok := snap.Prices[sym]; ok {
			entries[sym] = entry
		}
	}
	return entries, snap.Status, nil
}

func (r *RedisFeed) SubscribeToFeed(ctx context.Context, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pubsub.Subscribe(ctx, channelPrefix+symbol)
}

func (r *RedisFeed) UnsubscribeFromFeed(ctx context.Context, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pubsub.Unsubscribe(ctx, channelPrefix+symbol)
}

func (r *RedisFeed) RunPubSub(ctx context.Context, onTick func(symbol string, payload string)) {
	ch := r.pubsub.Channel()

	for msg := range ch {
		symbol := strings.TrimPrefix(msg.Channel, channelPrefix)
		if symbol == msg.Channel {
			continue // not a price channel
		}
		onTick(symbol, msg.Payload)
	}
}

func (r *RedisFeed) Close() error {
	return r.pubsub.Close()
}
