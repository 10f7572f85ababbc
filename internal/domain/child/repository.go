// Package child contains the domain model for child profiles and owners.
package child

import (
	"context"

	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

// Repository defines persistence for child profiles.
// Implemented by the infrastructure layer; the domain has no knowledge
// of the storage mechanism.
type Repository interface {
	// GetByID returns a child profile by ID.
	GetByID(ctx context.Context, id shared.ChildID) (*Child, error)

	// ListActive returns all active profiles, the working set for batch
	// jobs. Ordered by creation time for stable batch iteration.
	ListActive(ctx context.Context) ([]*Child, error)

	// ListByOwner returns all profiles belonging to one owner.
	ListByOwner(ctx context.Context, ownerID shared.OwnerID) ([]*Child, error)

	// Save persists a profile (create or update).
	Save(ctx context.Context, c *Child) error

	// TouchPlanGeneratedAt updates only the last-plan-generated marker.
	TouchPlanGeneratedAt(ctx context.Context, id shared.ChildID) error

	// TouchPlanEvolvedAt updates only the last-plan-evolved marker.
	TouchPlanEvolvedAt(ctx context.Context, id shared.ChildID) error
}

// OwnerRepository defines persistence for owner accounts.
type OwnerRepository interface {
	// GetByID returns an owner by ID.
	GetByID(ctx context.Context, id shared.OwnerID) (*Owner, error)

	// ListAll returns every owner, used by the monthly digest job.
	ListAll(ctx context.Context) ([]*Owner, error)

	// Save persists an owner (create or update).
	Save(ctx context.Context, o *Owner) error
}
