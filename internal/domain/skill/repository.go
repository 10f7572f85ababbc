// Package skill contains the developmental skill model.
package skill

import (
	"context"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

// Repository defines persistence for skill definitions.
type Repository interface {
	// GetByID returns one skill definition.
	GetByID(ctx context.Context, id shared.SkillID) (*DevelopmentalSkill, error)

	// ListAll returns every skill definition.
	ListAll(ctx context.Context) ([]*DevelopmentalSkill, error)

	// Save persists a skill definition.
	Save(ctx context.Context, s *DevelopmentalSkill) error
}

// StatusRepository defines persistence for per-child skill statuses.
type StatusRepository interface {
	// GetStatus returns the tracking record for one (child, skill) pair.
	// Returns shared.ErrSkillStatusNotFound when the skill has never
	// been demonstrated by this child.
	GetStatus(ctx context.Context, childID shared.ChildID, skillID shared.SkillID) (*ChildSkillStatus, error)

	// ListByChild returns all tracked statuses for a child, keyed by
	// skill ID. Skills never demonstrated have no entry.
	ListByChild(ctx context.Context, childID shared.ChildID) (map[shared.SkillID]*ChildSkillStatus, error)

	// SaveStatus persists a status record (create or update).
	SaveStatus(ctx context.Context, s *ChildSkillStatus) error

	// CountAdvancedInRange returns how many status records for the
	// child's skills moved forward in [from, to). Used by the monthly
	// digest.
	CountAdvancedInRange(ctx context.Context, childID shared.ChildID, from, to time.Time) (int, error)
}
