package testutils

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Tytandoteth/world-oracle-gateway/cmd/gateway/internal/protocol"
	"github.com/Tytandoteth/world-oracle-gateway/pkg/models"
)

// FixedClock always returns the same instant.
type FixedClock struct{ T time.Time }

func (f FixedClock) Now() time.Time { return f.T }

// FailKV fails every operation, to exercise degraded read paths.
type FailKV struct{}

func (FailKV) Get(ctx context.Context, key string) (string, error) {
	return "", errors.New("kv: unavailable")
}

func (FailKV) Put(ctx context.Context, key, value string) error {
	return errors.New("kv: unavailable")
}

// MockClient simulates a connected websocket client
type MockClient struct {
	IDVal    string
	Messages []protocol.WSResponse // Stores decoded JSON messages
	RawBytes []string              // Stores raw bytes
	Closed   bool
	Mu       sync.Mutex
}

func NewMockClient(id string) *MockClient {
	return &MockClient{IDVal: id, Messages: make([]protocol.WSResponse, 0)}
}

func (m *MockClient) ID() string { return m.IDVal }

func (m *MockClient) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}

func (m *MockClient) SendJSON(v interface{}) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if resp, ok := v.(protocol.WSResponse); ok {
		m.Messages = append(m.Messages, resp)
	}
}

func (m *MockClient) SendBytes(b []byte) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RawBytes = append(m.RawBytes, string(b))
}

func (m *MockClient) LastMsgType() string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if len(m.Messages) == 0 {
		return ""
	}
	return m.Messages[len(m.Messages)-1].Type
}

// MockPriceFeed simulates the cache-store-backed feed
type MockPriceFeed struct {
	Entries            map[string]models.PriceEntry
	SubscribedChannels map[string]int // symbol -> count
	Mu                 sync.Mutex
}

func NewMockFeed() *MockPriceFeed {
	return &MockPriceFeed{
		Entries:            make(map[string]models.PriceEntry),
		SubscribedChannels: make(map[string]int),
	}
}

func (m *MockPriceFeed) LatestEntries(ctx context.Context, symbols []string) (map[string]models.PriceEntry, string, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	out := make(map[string]models.PriceEntry)
	for _, sym := range symbols {
		if entry, ok := m.Entries[sym]; ok {
			out[sym] = entry
		}
	}
	return out, models.StatusSuccess, nil
}

func (m *MockPriceFeed) SubscribeToFeed(ctx context.Context, symbol string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.SubscribedChannels[symbol]++
	return nil
}

func (m *MockPriceFeed) UnsubscribeFromFeed(ctx context.Context, symbol string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.SubscribedChannels[symbol]--
	if m.SubscribedChannels[symbol] <= 0 {
		delete(m.SubscribedChannels, symbol)
	}
	return nil
}

func (m *MockPriceFeed) RunPubSub(ctx context.Context, onTick func(symbol string, payload string)) {
	// No-op for unit tests
}

func (m *MockPriceFeed) Close() error { return nil }
