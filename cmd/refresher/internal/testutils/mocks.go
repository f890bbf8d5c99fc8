package testutils

import (
	"context"
	"math/big"
	"sync"
	"time"
)

// MockOracle simulates the on-chain price source. Per-symbol errors make
// the batch call fail too, mirroring a reverting contract call.
type MockOracle struct {
	Prices   map[string]*big.Int
	Errors   map[string]error
	PingErr  error
	BatchErr error

	Mu         sync.Mutex
	PingCalls  int
	BatchCalls int
	CallsFor   map[string]int
}

func NewMockOracle() *MockOracle {
	return &MockOracle{
		Prices:   make(map[string]*big.Int),
		Errors:   make(map[string]error),
		CallsFor: make(map[string]int),
	}
}

func (m *MockOracle) LatestPrice(ctx context.Context, symbol string) (*big.Int, error) {
	m.Mu.Lock()
	m.CallsFor[symbol]++
	m.Mu.Unlock()

	if err, ok := m.Errors[symbol]; ok {
		return nil, err
	}
	return m.Prices[symbol], nil
}

func (m *MockOracle) LatestPrices(ctx context.Context, symbols []string) ([]*big.Int, error) {
	m.Mu.Lock()
	m.BatchCalls++
	m.Mu.Unlock()

	if m.BatchErr != nil {
		return nil, m.BatchErr
	}
	out := make([]*big.Int, 0, len(symbols))
	for _, sym := range symbols {
		if err, ok := m.Errors[sym]; ok {
			return nil, err
		}
		out = append(out, m.Prices[sym])
	}
	return out, nil
}

func (m *MockOracle) Ping(ctx context.Context) error {
	m.Mu.Lock()
	m.PingCalls++
	m.Mu.Unlock()
	return m.PingErr
}

// FixedClock always returns the same instant. Sleep is a no-op so retry
// loops run instantly in tests.
type FixedClock struct{ T time.Time }

func (f FixedClock) Now() time.Time      { return f.T }
func (f FixedClock) Sleep(time.Duration) {}

// SeqRand replays a fixed sequence of values.
type SeqRand struct {
	Vals []float64
	i    int
}

func (s *SeqRand) Float64() float64 {
	v := s.Vals[s.i%len(s.Vals)]
	s.i++
	return v
}
