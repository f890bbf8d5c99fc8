package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/Tytandoteth/world-oracle-gateway/cmd/refresher/internal/refresher"
	"github.com/Tytandoteth/world-oracle-gateway/pkg/cache"
	"github.com/Tytandoteth/world-oracle-gateway/pkg/models"
)

// MemKV is an in-memory cache store. FailPuts makes the next N writes
// fail, to exercise last-resort paths.
type MemKV struct {
	Data     map[string]string
	FailPuts int
	Mu       sync.Mutex
}

func NewMemKV() *MemKV {
	return &MemKV{Data: make(map[string]string)}
}

func (m *MemKV) Get(ctx context.Context, key string) (string, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	val, ok := m.Data[key]
	if !ok {
		return "", cache.ErrNotFound
	}
	return val, nil
}

func (m *MemKV) Put(ctx context.Context, key, value string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.FailPuts > 0 {
		m.FailPuts--
		return errors.New("kv: write failed")
	}
	m.Data[key] = value
	return nil
}

// MockPublisher records pub/sub messages by channel.
type MockPublisher struct {
	Messages map[string][]string
	Err      error
	Mu       sync.Mutex
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{Messages: make(map[string][]string)}
}

func (m *MockPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Messages[channel] = append(m.Messages[channel], string(payload))
	return nil
}

// MockEventWriter records Kafka messages.
type MockEventWriter struct {
	Written []kafka.Message
	Closed  bool
	Mu      sync.Mutex
}

func (m *MockEventWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Written = append(m.Written, msgs...)
	return nil
}

func (m *MockEventWriter) Close() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
	return nil
}

// MockKafkaConn records topic creation requests and reports the topic
// ready immediately.
type MockKafkaConn struct {
	CreatedTopics []string
	DialErr       error
}

func (m *MockKafkaConn) Controller() (kafka.Broker, error) {
	return kafka.Broker{Host: "localhost", Port: 9092}, nil
}
func (m *MockKafkaConn) Close() error { return nil }
func (m *MockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	for _, t := range topics {
		m.CreatedTopics = append(m.CreatedTopics, t.Topic)
	}
	return nil
}
func (m *MockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	return []kafka.Partition{{ID: 0}}, nil
}

type MockKafkaDialer struct {
	ConnSpy *MockKafkaConn
}

func (m *MockKafkaDialer) DialContext(ctx context.Context, network, address string) (refresher.KafkaConn, error) {
	if m.ConnSpy == nil {
		m.ConnSpy = &MockKafkaConn{}
	}
	if m.ConnSpy.DialErr != nil {
		return nil, m.ConnSpy.DialErr
	}
	return m.ConnSpy, nil
}

// StubFetcher returns a canned snapshot.
type StubFetcher struct {
	Snapshot models.PriceSnapshot
	Calls    int
	Mu       sync.Mutex
}

func (s *StubFetcher) FetchSnapshot(ctx context.Context, symbols []string) models.PriceSnapshot {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.Calls++
	return s.Snapshot
}
