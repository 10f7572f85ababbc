// Package catalog contains the activity catalog.
package catalog

import (
	"context"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

// Repository defines persistence for the activity catalog.
type Repository interface {
	// GetByID returns one activity.
	GetByID(ctx context.Context, id shared.ActivityID) (*Activity, error)

	// ListActiveByAgeGroup returns all active activities suitable for
	// the given age group. This is the candidate set for scoring.
	ListActiveByAgeGroup(ctx context.Context, group shared.AgeGroup) ([]*Activity, error)

	// ListByIDs returns the activities for the given IDs. Missing IDs
	// are silently skipped; callers that care check the result length.
	ListByIDs(ctx context.Context, ids []shared.ActivityID) ([]*Activity, error)

	// Save persists an activity (create or update).
	Save(ctx context.Context, a *Activity) error
}

// Cache is a read-through cache over the catalog, typically backed by
// Redis. The candidate set per age group is stable between catalog
// edits, so it caches well.
type Cache interface {
	// GetByAgeGroup returns the cached candidate set, or (nil, nil) on
	// a miss.
	GetByAgeGroup(ctx context.Context, group shared.AgeGroup) ([]*Activity, error)

	// SetByAgeGroup stores the candidate set with a TTL.
	SetByAgeGroup(ctx context.Context, group shared.AgeGroup, activities []*Activity, ttl time.Duration) error

	// Invalidate drops the cached set for one age group.
	Invalidate(ctx context.Context, group shared.AgeGroup) error
}
