package metrics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Tytandoteth/world-oracle-gateway/pkg/cache"
	"github.com/Tytandoteth/world-oracle-gateway/pkg/metrics"
	"github.com/Tytandoteth/world-oracle-gateway/pkg/models"
)

const nowMs = int64(1700000000000)

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

// failKV fails every operation, to exercise the best-effort paths.
type failKV struct{}

func (failKV) Get(ctx context.Context, key string) (string, error) {
	return "", errors.New("kv: unavailable")
}

func (failKV) Put(ctx context.Context, key, value string) error {
	return errors.New("kv: unavailable")
}

func newRecorder(t *testing.T) (*metrics.Recorder, *cache.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := cache.NewStore(cache.NewRedisKV(rdb))
	return metrics.NewRecorderWithClock(store, zap.NewNop(), fixedClock{t: time.UnixMilli(nowMs)}), store
}

func TestRecordRequest_Increments(t *testing.T) {
	rec, store := newRecorder(t)
	ctx := context.Background()

	rec.RecordRequest(ctx)
	rec.RecordRequest(ctx)
	rec.RecordRequest(ctx)

	m, _ := store.LoadMetrics(ctx)
	if m.RequestCount != 3 {
		t.Errorf("expected 3 requests, got %d", m.RequestCount)
	}
}

func TestRecordError_KeepsLatest(t *testing.T) {
	rec, store := newRecorder(t)
	ctx := context.Background()

	rec.RecordError(ctx, "first", "refresh")
	rec.RecordError(ctx, "second", "oracle")

	m, _ := store.LoadMetrics(ctx)
	if m.ErrorCount != 2 {
		t.Errorf("expected 2 errors, got %d", m.ErrorCount)
	}
	if m.LastError == nil || m.LastError.Message != "second" || m.LastError.Context != "oracle" {
		t.Errorf("lastError must be the most recent: %+v", m.LastError)
	}
	if m.LastError.Timestamp != nowMs {
		t.Errorf("lastError timestamp from clock, got %d", m.LastError.Timestamp)
	}
}

func TestRecordPriceUpdate_StampsCycle(t *testing.T) {
	rec, store := newRecorder(t)
	ctx := context.Background()

	rec.RecordPriceUpdate(ctx)

	m, _ := store.LoadMetrics(ctx)
	if m.PriceUpdates != 1 || m.LastPriceUpdate != nowMs {
		t.Errorf("unexpected update record: %+v", m)
	}
}

func TestRecord_SwallowsStoreFailure(t *testing.T) {
	rec := metrics.NewRecorderWithClock(cache.NewStore(failKV{}), zap.NewNop(), fixedClock{t: time.UnixMilli(nowMs)})

	// Must not panic or block; failures are logged and dropped.
	rec.RecordRequest(context.Background())
	rec.RecordError(context.Background(), "boom", "test")
	rec.RecordPriceUpdate(context.Background())
}

func TestHealth_OKAndUptime(t *testing.T) {
	rec, store := newRecorder(t)
	ctx := context.Background()

	// Stamp service start an hour before now.
	if _, err := store.ServiceStart(ctx, time.UnixMilli(nowMs).Add(-time.Hour)); err != nil {
		t.Fatalf("service start: %v", err)
	}
	store.SaveSnapshot(ctx, models.PriceSnapshot{
		Prices:      map[string]models.PriceEntry{"WLD": {Price: 1.25, Timestamp: nowMs}},
		LastUpdated: nowMs,
		Status:      models.StatusSuccess,
	})

	report := rec.Health(ctx, "1.0.0")
	if report.Status != "ok" {
		t.Errorf("expected ok, got %s", report.Status)
	}
	if report.UptimeMs != time.Hour.Milliseconds() {
		t.Errorf("expected 1h uptime, got %d", report.UptimeMs)
	}
	if report.PriceCache.TokenCount != 1 || report.PriceCache.Status != models.StatusSuccess {
		t.Errorf("unexpected price cache info: %+v", report.PriceCache)
	}
}

func TestHealth_DegradedOnErrorSnapshot(t *testing.T) {
	rec, store := newRecorder(t)
	ctx := context.Background()

	store.SaveSnapshot(ctx, models.PriceSnapshot{
		Prices: map[string]models.PriceEntry{},
		Status: models.StatusError,
		Error:  "all sources failed",
	})

	report := rec.Health(ctx, "1.0.0")
	if report.Status != "degraded" {
		t.Errorf("error snapshot should degrade health, got %s", report.Status)
	}
}

func TestHealth_StructuredOnStoreFailure(t *testing.T) {
	rec := metrics.NewRecorderWithClock(cache.NewStore(failKV{}), zap.NewNop(), fixedClock{t: time.UnixMilli(nowMs)})

	report := rec.Health(context.Background(), "1.0.0")
	if report.Status != "error" || report.Error == "" {
		t.Errorf("expected structured error report, got %+v", report)
	}
	if report.Timestamp != nowMs {
		t.Errorf("report must still carry a timestamp, got %d", report.Timestamp)
	}
}

func TestReport_DerivedFields(t *testing.T) {
	rec, store := newRecorder(t)
	ctx := context.Background()

	store.SaveMetrics(ctx, models.Metrics{
		RequestCount:    10,
		PriceUpdates:    4,
		LastPriceUpdate: nowMs - 5000,
	})
	store.SaveSnapshot(ctx, models.PriceSnapshot{
		Prices: map[string]models.PriceEntry{
			"WLD": {Price: 1.25, Timestamp: nowMs - 2000},
			"ETH": {Price: 3450.75, Timestamp: nowMs - 2000},
		},
		LastUpdated: nowMs - 2000,
		Status:      models.StatusSuccess,
	})

	report, err := rec.Report(ctx)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.RequestCount != 10 {
		t.Errorf("counters must pass through, got %d", report.RequestCount)
	}
	if report.CacheAgeMs != 2000 {
		t.Errorf("expected cacheAge 2000, got %d", report.CacheAgeMs)
	}
	if report.LastPriceUpdateSeconds != 5 {
		t.Errorf("expected 5s since last update, got %d", report.LastPriceUpdateSeconds)
	}
	if report.PriceCount != 2 {
		t.Errorf("expected priceCount 2, got %d", report.PriceCount)
	}
}

func TestReport_FailsOnStoreFailure(t *testing.T) {
	rec := metrics.NewRecorderWithClock(cache.NewStore(failKV{}), zap.NewNop(), fixedClock{t: time.UnixMilli(nowMs)})

	if _, err := rec.Report(context.Background()); err == nil {
		t.Error("expected error when counters are unreadable")
	}
}
