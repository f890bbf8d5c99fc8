package stream_test

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Tytandoteth/world-oracle-gateway/cmd/gateway/internal/hub"
	"github.com/Tytandoteth/world-oracle-gateway/cmd/gateway/internal/protocol"
	"github.com/Tytandoteth/world-oracle-gateway/cmd/gateway/internal/stream"
	"github.com/Tytandoteth/world-oracle-gateway/cmd/gateway/internal/testutils"
	"github.com/Tytandoteth/world-oracle-gateway/pkg/models"
)

var supported = map[string]bool{"WLD": true, "ETH": true, "BTC": true}

// gatedFeed blocks snapshot reads until released, so tests can interleave
// a disconnect between the subscribe ack and the async snapshot push.
type gatedFeed struct {
	*testutils.MockPriceFeed
	release chan struct{}
}

func (g *gatedFeed) LatestEntries(ctx context.Context, symbols []string) (map[string]models.PriceEntry, string, error) {
	<-g.release
	return g.MockPriceFeed.LatestEntries(ctx, symbols)
}

func newAdapter(t *testing.T, h *hub.Hub) *stream.ClientAdapter {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return stream.NewClient(server, h, zap.NewNop(), supported)
}

func TestSendAfterCloseDoesNotPanic(t *testing.T) {
	h := hub.NewHub(testutils.NewMockFeed(), zap.NewNop())
	c := newAdapter(t, h)

	c.Close()
	c.Close() // idempotent

	c.SendBytes([]byte(`{"symbol":"WLD","price":1.25}`))
	c.SendJSON(protocol.WSResponse{Type: "ack", Status: "success"})
}

func TestSubscribeThenDisconnectBeforeSnapshotPush(t *testing.T) {
	feed := &gatedFeed{
		MockPriceFeed: testutils.NewMockFeed(),
		release:       make(chan struct{}),
	}
	feed.Entries["WLD"] = models.PriceEntry{Price: 1.25, Timestamp: 1700000000000}

	h := hub.NewHub(feed, zap.NewNop())
	c := newAdapter(t, h)

	h.HandleCommand(c, protocol.WSRequest{
		Action:  protocol.ActionSubscribe,
		ID:      "r1",
		Payload: protocol.RequestPayload{Symbols: []string{"WLD"}},
	}, supported)

	// Disconnect while the snapshot push is still waiting on the feed.
	h.Unregister(c)
	close(feed.release)

	// Give the push goroutine time to deliver into the closed client.
	time.Sleep(50 * time.Millisecond)
}

func TestSendJSONDoesNotBlockOnFullBuffer(t *testing.T) {
	h := hub.NewHub(testutils.NewMockFeed(), zap.NewNop())
	c := newAdapter(t, h)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// No write pump is draining, so this overruns the buffer.
		for i := 0; i < 500; i++ {
			c.SendJSON(protocol.WSResponse{Type: "tick"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SendJSON blocked on a full buffer")
	}
}
