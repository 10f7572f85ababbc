package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/progress"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

// ProgressRepository is an in-memory progress.Repository.
type ProgressRepository struct {
	mu      sync.RWMutex
	records map[string]*progress.Record
}

// NewProgressRepository creates an empty ledger.
func NewProgressRepository() *ProgressRepository {
	return &ProgressRepository{records: make(map[string]*progress.Record)}
}

// Save implements progress.Repository.
func (r *ProgressRepository) Save(ctx context.Context, rec *progress.Record) error {
	if rec.ID == "" {
		return shared.ErrInvalidID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = cloneRecord(rec)
	return nil
}

// GetByID implements progress.Repository.
func (r *ProgressRepository) GetByID(ctx context.Context, id string) (*progress.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, shared.ErrProgressRecordNotFound
	}
	return cloneRecord(rec), nil
}

// ListRecentByChild implements progress.Repository.
func (r *ProgressRepository) ListRecentByChild(ctx context.Context, childID shared.ChildID, limit int) ([]*progress.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*progress.Record
	for _, rec := range r.records {
		if rec.ChildID == childID {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListCompletedInRange implements progress.Repository.
func (r *ProgressRepository) ListCompletedInRange(ctx context.Context, childID shared.ChildID, from, to time.Time) ([]*progress.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*progress.Record
	for _, rec := range r.records {
		if rec.ChildID != childID || !rec.IsCompleted() {
			continue
		}
		if !rec.CompletedAt.Before(from) && rec.CompletedAt.Before(to) {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(out[j].CompletedAt) })
	return out, nil
}

// CountCompletedSince implements progress.Repository.
func (r *ProgressRepository) CountCompletedSince(ctx context.Context, childID shared.ChildID, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, rec := range r.records {
		if rec.ChildID == childID && rec.IsCompleted() && !rec.CompletedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func cloneRecord(rec *progress.Record) *progress.Record {
	clone := *rec
	clone.SkillsDemonstrated = append([]shared.SkillID(nil), rec.SkillsDemonstrated...)
	return &clone
}

// ProcessedEventStore is an in-memory progress.ProcessedEventStore.
// TTLs are honored lazily on lookup.
type ProcessedEventStore struct {
	mu   sync.Mutex
	seen map[string]time.Time // key -> expiry
}

// NewProcessedEventStore creates an empty store.
func NewProcessedEventStore() *ProcessedEventStore {
	return &ProcessedEventStore{seen: make(map[string]time.Time)}
}

// CheckAndRecord implements progress.ProcessedEventStore.
func (s *ProcessedEventStore) CheckAndRecord(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if expiry, ok := s.seen[key]; ok && now.Before(expiry) {
		return true, nil
	}
	s.seen[key] = now.Add(ttl)
	return false, nil
}
