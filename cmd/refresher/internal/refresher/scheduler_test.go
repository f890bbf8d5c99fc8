package refresher_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Tytandoteth/world-oracle-gateway/cmd/refresher/internal/refresher"
	"github.com/Tytandoteth/world-oracle-gateway/cmd/refresher/internal/synthetic"
	"github.com/Tytandoteth/world-oracle-gateway/cmd/refresher/internal/testutils"
	"github.com/Tytandoteth/world-oracle-gateway/pkg/cache"
	"github.com/Tytandoteth/world-oracle-gateway/pkg/metrics"
	"github.com/Tytandoteth/world-oracle-gateway/pkg/models"
)

var symbols = []string{"WLD", "ETH"}

func goodSnapshot() models.PriceSnapshot {
	return models.PriceSnapshot{
		Prices: map[string]models.PriceEntry{
			"WLD": {Price: 1.25, Timestamp: 1700000000000},
			"ETH": {Price: 3450.75, Timestamp: 1700000000000},
		},
		LastUpdated: 1700000000000,
		Status:      models.StatusSuccess,
	}
}

func newScheduler(kv *testutils.MemKV, fetch refresher.SnapshotFetcher, pub *testutils.MockPublisher, events refresher.EventWriter) (*refresher.Scheduler, *cache.Store) {
	store := cache.NewStore(kv)
	clk := testutils.FixedClock{T: time.UnixMilli(1700000000000)}
	recorder := metrics.NewRecorderWithClock(store, zap.NewNop(), clk)
	gen := synthetic.NewGenerator(
		map[string]float64{"WLD": 1.25, "ETH": 3450.75},
		0.05,
		&testutils.SeqRand{Vals: []float64{0.5}},
		clk,
	)
	return refresher.NewScheduler(fetch, store, recorder, gen, pub, events, symbols, 30*time.Second, clk, zap.NewNop()), store
}

func TestRefreshOnce_WritesSnapshotAndPublishes(t *testing.T) {
	kv := testutils.NewMemKV()
	pub := testutils.NewMockPublisher()
	events := &testutils.MockEventWriter{}
	sched, store := newScheduler(kv, &testutils.StubFetcher{Snapshot: goodSnapshot()}, pub, events)

	sched.RefreshOnce(context.Background())

	snap, err := store.LoadSnapshot(context.Background())
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if snap.Status != models.StatusSuccess {
		t.Errorf("expected success snapshot in store, got %s", snap.Status)
	}
	if len(snap.Prices) != 2 {
		t.Errorf("expected 2 prices, got %d", len(snap.Prices))
	}

	if len(pub.Messages["prices.WLD"]) != 1 || len(pub.Messages["prices.ETH"]) != 1 {
		t.Errorf("expected one pub/sub message per symbol, got %v", pub.Messages)
	}
	if !strings.Contains(pub.Messages["prices.WLD"][0], `"symbol":"WLD"`) {
		t.Errorf("tick payload malformed: %s", pub.Messages["prices.WLD"][0])
	}

	if len(events.Written) != 2 {
		t.Errorf("expected 2 kafka events, got %d", len(events.Written))
	}

	m, _ := store.LoadMetrics(context.Background())
	if m.PriceUpdates != 1 {
		t.Errorf("expected priceUpdates=1, got %d", m.PriceUpdates)
	}
	if m.LastPriceUpdate != 1700000000000 {
		t.Errorf("lastPriceUpdate should be stamped, got %d", m.LastPriceUpdate)
	}
}

func TestRefreshOnce_RecordsFetchError(t *testing.T) {
	kv := testutils.NewMemKV()
	snap := goodSnapshot()
	snap.Status = models.StatusFallback
	snap.Error = "oracle unreachable"
	sched, store := newScheduler(kv, &testutils.StubFetcher{Snapshot: snap}, testutils.NewMockPublisher(), nil)

	sched.RefreshOnce(context.Background())

	m, _ := store.LoadMetrics(context.Background())
	if m.ErrorCount != 1 {
		t.Fatalf("expected errorCount=1, got %d", m.ErrorCount)
	}
	if m.LastError == nil || m.LastError.Message != "oracle unreachable" {
		t.Errorf("lastError should record the fetch failure, got %+v", m.LastError)
	}
	// The fallback snapshot itself still counts as a completed update.
	if m.PriceUpdates != 1 {
		t.Errorf("expected priceUpdates=1, got %d", m.PriceUpdates)
	}
}

func TestRefreshOnce_LastResortOnWriteFailure(t *testing.T) {
	kv := testutils.NewMemKV()
	kv.FailPuts = 1 // first snapshot write fails, last-resort write succeeds
	sched, store := newScheduler(kv, &testutils.StubFetcher{Snapshot: goodSnapshot()}, testutils.NewMockPublisher(), nil)

	sched.RefreshOnce(context.Background())

	snap, err := store.LoadSnapshot(context.Background())
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if snap.Status != models.StatusFallback {
		t.Fatalf("expected last-resort fallback snapshot, got %s", snap.Status)
	}
	if snap.Error == "" {
		t.Error("last-resort snapshot must explain the failed cycle")
	}
	if len(snap.Prices) != 2 {
		t.Errorf("last-resort snapshot should carry synthetic prices, got %d", len(snap.Prices))
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	kv := testutils.NewMemKV()
	events := &testutils.MockEventWriter{}
	fetch := &testutils.StubFetcher{Snapshot: goodSnapshot()}
	sched, _ := newScheduler(kv, fetch, testutils.NewMockPublisher(), events)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	// Give the immediate first refresh a moment, then stop.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}

	fetch.Mu.Lock()
	calls := fetch.Calls
	fetch.Mu.Unlock()
	if calls != 1 {
		t.Errorf("expected exactly the immediate refresh, got %d", calls)
	}
	if !events.Closed {
		t.Error("event writer must be flushed and closed on shutdown")
	}
}
