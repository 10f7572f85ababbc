package redis

import (
	"context"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROCESSED EVENT STORE
// ══════════════════════════════════════════════════════════════════════════════

// ProcessedEventStore implements progress.ProcessedEventStore with a
// SETNX-guarded key per event. The atomic set doubles as check and
// record, so concurrent deliveries of the same event race safely.
type ProcessedEventStore struct {
	cache *Cache
}

// NewProcessedEventStore creates a new ProcessedEventStore.
func NewProcessedEventStore(cache *Cache) *ProcessedEventStore {
	return &ProcessedEventStore{cache: cache}
}

// CheckAndRecord atomically tests the key and records it when absent.
// Returns true when the event was processed before.
func (s *ProcessedEventStore) CheckAndRecord(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = TTLProcessedEvent
	}

	set, err := s.cache.SetNX(ctx, PrefixProcessedEvent+key, "1", ttl)
	if err != nil {
		return false, fmt.Errorf("failed to record processed event: %w", err)
	}
	return !set, nil
}
