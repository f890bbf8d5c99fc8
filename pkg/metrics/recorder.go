// Package metrics maintains the advisory counters and derives the health
// and metrics reports. Recording is best-effort: a store failure while
// recording must never surface to the caller, so every write path swallows
// and logs instead of returning errors.
package metrics

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Tytandoteth/world-oracle-gateway/pkg/cache"
	"github.com/Tytandoteth/world-oracle-gateway/pkg/models"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Recorder struct {
	store  *cache.Store
	logger *zap.Logger
	clock  Clock
}

func NewRecorder(store *cache.Store, logger *zap.Logger) *Recorder {
	return NewRecorderWithClock(store, logger, realClock{})
}

func NewRecorderWithClock(store *cache.Store, logger *zap.Logger, clock Clock) *Recorder {
	return &Recorder{store: store, logger: logger, clock: clock}
}

// RecordRequest increments the request counter.
func (r *Recorder) RecordRequest(ctx context.Context) {
	r.update(ctx, func(m *models.Metrics) {
		m.RequestCount++
	})
}

// RecordError increments the error counter and overwrites lastError.
func (r *Recorder) RecordError(ctx context.Context, message, errCtx string) {
	r.update(ctx, func(m *models.Metrics) {
		m.ErrorCount++
		m.LastError = &models.ErrorInfo{
			Timestamp: r.clock.Now().UnixMilli(),
			Message:   message,
			Context:   errCtx,
		}
	})
}

// RecordPriceUpdate increments the refresh counter and stamps the cycle.
func (r *Recorder) RecordPriceUpdate(ctx context.Context) {
	r.update(ctx, func(m *models.Metrics) {
		m.PriceUpdates++
		m.LastPriceUpdate = r.clock.Now().UnixMilli()
	})
}

// update is the shared read-modify-write. Concurrent updates can race and
// under-count; the counters are advisory, not billing-grade.
func (r *Recorder) update(ctx context.Context, mutate func(*models.Metrics)) {
	m, err := r.store.LoadMetrics(ctx)
	if err != nil {
		r.logger.Warn("Metrics read failed, dropping update", zap.Error(err))
		return
	}
	mutate(&m)
	if err := r.store.SaveMetrics(ctx, m); err != nil {
		r.logger.Warn("Metrics write failed, dropping update", zap.Error(err))
	}
}

// Health derives the health report from the cached snapshot. A store
// failure produces a structured error report, never a hard failure: the
// caller is a load balancer or dashboard and must always get a payload.
func (r *Recorder) Health(ctx context.Context, version string) models.HealthReport {
	now := r.clock.Now()
	report := models.HealthReport{
		Status:    "ok",
		Version:   version,
		Timestamp: now.UnixMilli(),
	}

	start, err := r.store.ServiceStart(ctx, now)
	if err != nil {
		r.logger.Warn("Service start read failed", zap.Error(err))
	} else {
		report.UptimeMs = now.UnixMilli() - start
	}

	snap, err := r.store.LoadSnapshot(ctx)
	if err != nil {
		report.Status = "error"
		report.Error = err.Error()
		return report
	}

	if snap.Status == models.StatusError {
		report.Status = "degraded"
	}
	report.PriceCache = models.PriceCacheInfo{
		LastUpdated: snap.LastUpdated,
		Status:      snap.Status,
		TokenCount:  len(snap.Prices),
	}
	return report
}

// Report returns the counters augmented with derived freshness fields.
func (r *Recorder) Report(ctx context.Context) (models.MetricsReport, error) {
	m, err := r.store.LoadMetrics(ctx)
	if err != nil {
		return models.MetricsReport{}, err
	}

	report := models.MetricsReport{Metrics: m}

	snap, err := r.store.LoadSnapshot(ctx)
	if err != nil {
		r.logger.Warn("Snapshot read failed while building metrics report", zap.Error(err))
		return report, nil
	}

	now := r.clock.Now().UnixMilli()
	if snap.LastUpdated > 0 {
		report.CacheAgeMs = now - snap.LastUpdated
	}
	if m.LastPriceUpdate > 0 {
		report.LastPriceUpdateSeconds = (now - m.LastPriceUpdate) / 1000
	}
	report.PriceCount = len(snap.Prices)
	return report, nil
}
