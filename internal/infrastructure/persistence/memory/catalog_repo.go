package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/seedlinghq/seedling-engine/internal/domain/catalog"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

// CatalogRepository is an in-memory catalog.Repository.
type CatalogRepository struct {
	mu         sync.RWMutex
	activities map[shared.ActivityID]*catalog.Activity
}

// NewCatalogRepository creates an empty store.
func NewCatalogRepository() *CatalogRepository {
	return &CatalogRepository{activities: make(map[shared.ActivityID]*catalog.Activity)}
}

// GetByID implements catalog.Repository.
func (r *CatalogRepository) GetByID(ctx context.Context, id shared.ActivityID) (*catalog.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.activities[id]
	if !ok {
		return nil, shared.ErrActivityNotFound
	}
	return cloneActivity(a), nil
}

// ListActiveByAgeGroup implements catalog.Repository.
func (r *CatalogRepository) ListActiveByAgeGroup(ctx context.Context, group shared.AgeGroup) ([]*catalog.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*catalog.Activity
	for _, a := range r.activities {
		if a.IsActive() && a.SuitsAgeGroup(group) {
			out = append(out, cloneActivity(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListByIDs implements catalog.Repository. Missing IDs are skipped.
func (r *CatalogRepository) ListByIDs(ctx context.Context, ids []shared.ActivityID) ([]*catalog.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*catalog.Activity, 0, len(ids))
	for _, id := range ids {
		if a, ok := r.activities[id]; ok {
			out = append(out, cloneActivity(a))
		}
	}
	return out, nil
}

// Save implements catalog.Repository.
func (r *CatalogRepository) Save(ctx context.Context, a *catalog.Activity) error {
	if !a.ID.IsValid() {
		return shared.ErrInvalidID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activities[a.ID] = cloneActivity(a)
	return nil
}

func cloneActivity(a *catalog.Activity) *catalog.Activity {
	clone := *a
	clone.AgeRanges = append([]shared.AgeGroup(nil), a.AgeRanges...)
	clone.SkillsAddressed = append([]shared.SkillID(nil), a.SkillsAddressed...)
	return &clone
}
