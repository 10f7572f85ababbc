// Package plan contains the weekly plan model.
package plan

import (
	"context"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

// Repository defines persistence for weekly plans.
type Repository interface {
	// GetByID returns one plan by its deterministic ID.
	GetByID(ctx context.Context, id string) (*WeeklyPlan, error)

	// GetByChildAndWeek returns the plan for the week containing the
	// given time, or shared.ErrPlanNotFound. The implementation aligns
	// the time to its Monday before looking up.
	GetByChildAndWeek(ctx context.Context, childID shared.ChildID, weekStart time.Time) (*WeeklyPlan, error)

	// ExistsForWeek reports whether a plan exists for the child's week.
	// Batch generation uses this to skip children already planned.
	ExistsForWeek(ctx context.Context, childID shared.ChildID, weekStart time.Time) (bool, error)

	// Save persists a plan (create or update by ID).
	Save(ctx context.Context, p *WeeklyPlan) error

	// ListByChild returns the child's plans, most recent week first.
	ListByChild(ctx context.Context, childID shared.ChildID, limit int) ([]*WeeklyPlan, error)
}
