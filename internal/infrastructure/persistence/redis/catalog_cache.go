package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/catalog"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG CACHE
// ══════════════════════════════════════════════════════════════════════════════

// CatalogCache implements catalog.Cache on top of the shared Cache
// client. One key per age group holds the whole candidate set.
type CatalogCache struct {
	cache *Cache
}

// NewCatalogCache creates a new CatalogCache.
func NewCatalogCache(cache *Cache) *CatalogCache {
	return &CatalogCache{cache: cache}
}

func catalogKey(group shared.AgeGroup) string {
	return PrefixCatalog + "age:" + string(group)
}

// GetByAgeGroup returns the cached candidate set, or (nil, nil) on a miss.
func (c *CatalogCache) GetByAgeGroup(ctx context.Context, group shared.AgeGroup) ([]*catalog.Activity, error) {
	var activities []*catalog.Activity
	err := c.cache.Get(ctx, catalogKey(group), &activities)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read catalog cache: %w", err)
	}
	return activities, nil
}

// SetByAgeGroup stores the candidate set with a TTL.
func (c *CatalogCache) SetByAgeGroup(ctx context.Context, group shared.AgeGroup, activities []*catalog.Activity, ttl time.Duration) error {
	if err := c.cache.Set(ctx, catalogKey(group), activities, ttl); err != nil {
		return fmt.Errorf("failed to write catalog cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached set for one age group.
func (c *CatalogCache) Invalidate(ctx context.Context, group shared.AgeGroup) error {
	return c.cache.Delete(ctx, catalogKey(group))
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHING REPOSITORY DECORATOR
// ══════════════════════════════════════════════════════════════════════════════

// CachedCatalogRepository decorates a catalog.Repository with the
// candidate-set cache. Only ListActiveByAgeGroup is cached; it is the
// hot read of every scoring pass. Saves invalidate the activity's age
// groups so the next read repopulates.
type CachedCatalogRepository struct {
	inner catalog.Repository
	cache catalog.Cache
	ttl   time.Duration
}

// NewCachedCatalogRepository creates the caching decorator. A zero ttl
// defaults to TTLCatalogCache.
func NewCachedCatalogRepository(inner catalog.Repository, cache catalog.Cache, ttl time.Duration) *CachedCatalogRepository {
	if ttl <= 0 {
		ttl = TTLCatalogCache
	}
	return &CachedCatalogRepository{inner: inner, cache: cache, ttl: ttl}
}

// GetByID delegates to the inner repository.
func (r *CachedCatalogRepository) GetByID(ctx context.Context, id shared.ActivityID) (*catalog.Activity, error) {
	return r.inner.GetByID(ctx, id)
}

// ListActiveByAgeGroup serves the candidate set from cache when
// possible. Cache failures fall through to the inner repository; a
// cold cache must never fail a scoring pass.
func (r *CachedCatalogRepository) ListActiveByAgeGroup(ctx context.Context, group shared.AgeGroup) ([]*catalog.Activity, error) {
	if cached, err := r.cache.GetByAgeGroup(ctx, group); err == nil && cached != nil {
		return cached, nil
	}

	activities, err := r.inner.ListActiveByAgeGroup(ctx, group)
	if err != nil {
		return nil, err
	}

	// Best effort; the read already succeeded.
	_ = r.cache.SetByAgeGroup(ctx, group, activities, r.ttl)

	return activities, nil
}

// ListByIDs delegates to the inner repository.
func (r *CachedCatalogRepository) ListByIDs(ctx context.Context, ids []shared.ActivityID) ([]*catalog.Activity, error) {
	return r.inner.ListByIDs(ctx, ids)
}

// Save persists through the inner repository and invalidates the
// activity's age groups.
func (r *CachedCatalogRepository) Save(ctx context.Context, a *catalog.Activity) error {
	if err := r.inner.Save(ctx, a); err != nil {
		return err
	}
	for _, group := range a.AgeRanges {
		_ = r.cache.Invalidate(ctx, group)
	}
	return nil
}
