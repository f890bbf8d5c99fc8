// Package refresher owns the refresh timeline: a periodic cycle that
// fetches a snapshot, replaces the cached one wholesale, and fans updates
// out to subscribers. The read path never waits on any of this.
package refresher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Tytandoteth/world-oracle-gateway/cmd/refresher/internal/synthetic"
	"github.com/Tytandoteth/world-oracle-gateway/pkg/cache"
	"github.com/Tytandoteth/world-oracle-gateway/pkg/metrics"
	"github.com/Tytandoteth/world-oracle-gateway/pkg/models"
)

const priceChannelPrefix = "prices."

type Scheduler struct {
	fetcher  SnapshotFetcher
	store    *cache.Store
	recorder *metrics.Recorder
	synth    *synthetic.Generator
	pub      Publisher
	events   EventWriter // nil when the Kafka feed is disabled
	symbols  []string
	interval time.Duration
	clock    Clock
	logger   *zap.Logger
}

func NewScheduler(
	fetcher SnapshotFetcher,
	store *cache.Store,
	recorder *metrics.Recorder,
	synth *synthetic.Generator,
	pub Publisher,
	events EventWriter,
	symbols []string,
	interval time.Duration,
	clock Clock,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		fetcher:  fetcher,
		store:    store,
		recorder: recorder,
		synth:    synth,
		pub:      pub,
		events:   events,
		symbols:  symbols,
		interval: interval,
		clock:    clock,
		logger:   logger,
	}
}

// Run refreshes once immediately, then on every tick until the context is
// cancelled. There is no retry within a cycle; the next tick is the retry.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Refresher started",
		zap.Strings("symbols", s.symbols),
		zap.Duration("interval", s.interval))

	s.RefreshOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Refresher stopping")
			if s.events != nil {
				if err := s.events.Close(); err != nil {
					s.logger.Error("Error closing event writer", zap.Error(err))
				}
			}
			return nil
		case <-ticker.C:
			s.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce executes one full refresh cycle. A failed snapshot write
// records the error and attempts a last-resort synthetic write so the
// cache never silently holds an arbitrarily old snapshot: an explicit
// fallback snapshot beats silence.
func (s *Scheduler) RefreshOnce(ctx context.Context) {
	snap := s.fetcher.FetchSnapshot(ctx, s.symbols)

	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		s.logger.Error("Snapshot write failed", zap.Error(err))
		s.recorder.RecordError(ctx, err.Error(), "snapshot write")
		s.writeLastResort(ctx, err)
		return
	}

	s.recorder.RecordPriceUpdate(ctx)
	if snap.Error != "" {
		s.recorder.RecordError(ctx, snap.Error, "price fetch")
	}

	s.logger.Info("Snapshot refreshed",
		zap.String("status", snap.Status),
		zap.Int("prices", len(snap.Prices)))

	s.publish(ctx, snap)
}

// publish fans the cycle's entries out: one Redis pub/sub message per
// symbol for websocket subscribers, plus the optional Kafka tick feed.
// Publish failures degrade the stream, not the snapshot, so they only log.
func (s *Scheduler) publish(ctx context.Context, snap models.PriceSnapshot) {
	var events []kafka.Message

	for sym, entry := range snap.Prices {
		tick := models.TickEvent{
			Symbol:    sym,
			Price:     entry.Price,
			Timestamp: entry.Timestamp,
			Source:    snap.Status,
		}
		payload, err := json.Marshal(tick)
		if err != nil {
			s.logger.Error("Tick encode failed", zap.String("symbol", sym), zap.Error(err))
			continue
		}

		if err := s.pub.Publish(ctx, priceChannelPrefix+sym, payload); err != nil {
			s.logger.Warn("Pub/sub publish failed", zap.String("symbol", sym), zap.Error(err))
		}

		if s.events != nil {
			events = append(events, kafka.Message{Key: []byte(sym), Value: payload})
		}
	}

	if s.events != nil && len(events) > 0 {
		if err := s.events.WriteMessages(ctx, events...); err != nil {
			s.logger.Warn("Kafka write failed", zap.Error(err))
		}
	}
}

func (s *Scheduler) writeLastResort(ctx context.Context, cause error) {
	snap := models.PriceSnapshot{
		Prices:      s.synth.Generate(s.symbols),
		LastUpdated: s.clock.Now().UnixMilli(),
		Status:      models.StatusFallback,
		Error:       fmt.Sprintf("refresh cycle failed: %v", cause),
	}
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		s.logger.Error("Last-resort snapshot write failed", zap.Error(err))
	}
}
