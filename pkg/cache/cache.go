// Package cache is the durable key/value store shared by the refresh and
// read paths. Three records live here: the price snapshot, the metrics
// counters, and the service-start timestamp. All values are JSON so new
// optional fields can be added without breaking old readers.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Tytandoteth/world-oracle-gateway/pkg/models"
)

const (
	KeySnapshot     = "price:snapshot"
	KeyMetrics      = "price:metrics"
	KeyServiceStart = "service:start"
)

// ErrNotFound is returned by Get when a key has never been written.
var ErrNotFound = errors.New("cache: key not found")

// KV is the minimal store contract: get-or-absent and whole-value put.
// There is no atomic increment; counter updates are read-modify-write and
// callers accept the resulting approximation.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
}

// Store wraps a KV with typed access to the three well-known records.
type Store struct {
	kv KV
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// LoadSnapshot returns the cached snapshot, or an empty uninitialized one
// if no refresh has ever completed.
func (s *Store) LoadSnapshot(ctx context.Context) (models.PriceSnapshot, error) {
	raw, err := s.kv.Get(ctx, KeySnapshot)
	if errors.Is(err, ErrNotFound) {
		return models.NewEmptySnapshot(), nil
	}
	if err != nil {
		return models.PriceSnapshot{}, err
	}

	var snap models.PriceSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return models.PriceSnapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Prices == nil {
		snap.Prices = make(map[string]models.PriceEntry)
	}
	return snap, nil
}

// SaveSnapshot replaces the snapshot wholesale.
func (s *Store) SaveSnapshot(ctx context.Context, snap models.PriceSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.kv.Put(ctx, KeySnapshot, string(raw))
}

// LoadMetrics returns the counter record, zeroed if absent.
func (s *Store) LoadMetrics(ctx context.Context) (models.Metrics, error) {
	raw, err := s.kv.Get(ctx, KeyMetrics)
	if errors.Is(err, ErrNotFound) {
		return models.Metrics{}, nil
	}
	if err != nil {
		return models.Metrics{}, err
	}

	var m models.Metrics
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return models.Metrics{}, fmt.Errorf("decode metrics: %w", err)
	}
	return m, nil
}

func (s *Store) SaveMetrics(ctx context.Context, m models.Metrics) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	return s.kv.Put(ctx, KeyMetrics, string(raw))
}

// ServiceStart returns the service-start timestamp in unix ms, creating it
// on first access. Once written it is never overwritten, so uptime survives
// process restarts that share the store.
func (s *Store) ServiceStart(ctx context.Context, now time.Time) (int64, error) {
	raw, err := s.kv.Get(ctx, KeyServiceStart)
	if err == nil {
		ts, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			return 0, fmt.Errorf("decode service start: %w", perr)
		}
		return ts, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, err
	}

	ts := now.UnixMilli()
	if err := s.kv.Put(ctx, KeyServiceStart, strconv.FormatInt(ts, 10)); err != nil {
		return 0, err
	}
	return ts, nil
}
