package command

import (
	"context"
	"fmt"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/child"
	"github.com/seedlinghq/seedling-engine/internal/domain/progress"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVOLVE PLANS COMMAND
// Rebuilds a child's current and next week when enough new progress has
// accumulated since the last evolution. A plan built on Monday can be
// stale by Thursday: three new completions shift scores enough that the
// remaining suggested entries deserve a re-rank.
// ══════════════════════════════════════════════════════════════════════════════

// EvolutionThreshold is how many completed records since the last
// evolution it takes to justify a rebuild.
const EvolutionThreshold = 3

// EvolvePlansCommand contains the data needed to evolve one child's plans.
type EvolvePlansCommand struct {
	ChildID shared.ChildID

	// Force rebuilds regardless of the threshold.
	Force bool

	// Now anchors the target weeks. Zero means wall clock.
	Now time.Time
}

// Validate validates the command.
func (c EvolvePlansCommand) Validate() error {
	if !c.ChildID.IsValid() {
		return shared.ErrInvalidChildID
	}
	return nil
}

// EvolvePlansResult reports whether anything was rebuilt.
type EvolvePlansResult struct {
	ChildID shared.ChildID

	// Evolved is true when the plans were regenerated.
	Evolved bool

	// NewCompletions is how many completed records accumulated since
	// the last evolution.
	NewCompletions int
}

// EvolvePlansHandler handles the EvolvePlansCommand.
type EvolvePlansHandler struct {
	childRepo    child.Repository
	progressRepo progress.Repository
	weekly       *GenerateWeeklyPlanHandler
}

// NewEvolvePlansHandler creates a new EvolvePlansHandler.
func NewEvolvePlansHandler(
	childRepo child.Repository,
	progressRepo progress.Repository,
	weekly *GenerateWeeklyPlanHandler,
) *EvolvePlansHandler {
	return &EvolvePlansHandler{
		childRepo:    childRepo,
		progressRepo: progressRepo,
		weekly:       weekly,
	}
}

// Handle executes the evolve plans command.
func (h *EvolvePlansHandler) Handle(ctx context.Context, cmd EvolvePlansCommand) (*EvolvePlansResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("evolve_plans: validation failed: %w", err)
	}
	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	c, err := h.childRepo.GetByID(ctx, cmd.ChildID)
	if err != nil {
		return nil, fmt.Errorf("evolve_plans: failed to load child: %w", err)
	}
	if !c.Active {
		return nil, shared.ErrChildInactive
	}

	// A child never evolved before counts from the profile's creation.
	since := c.CreatedAt
	if c.LastPlanEvolvedAt != nil {
		since = *c.LastPlanEvolvedAt
	}

	count, err := h.progressRepo.CountCompletedSince(ctx, c.ID, since)
	if err != nil {
		return nil, fmt.Errorf("evolve_plans: failed to count completions: %w", err)
	}

	result := &EvolvePlansResult{ChildID: c.ID, NewCompletions: count}
	if !cmd.Force && count < EvolutionThreshold {
		return result, nil
	}

	for _, weekOf := range []time.Time{now, timeutil.NextWeekStart(now)} {
		_, err := h.weekly.Handle(ctx, GenerateWeeklyPlanCommand{
			ChildID:     c.ID,
			WeekOf:      weekOf,
			GeneratedBy: "evolution",
			Now:         now,
		})
		if err != nil {
			return result, fmt.Errorf("evolve_plans: failed to rebuild week of %s: %w", timeutil.FormatDate(weekOf), err)
		}
	}

	if err := h.childRepo.TouchPlanEvolvedAt(ctx, c.ID); err != nil {
		return result, fmt.Errorf("evolve_plans: failed to update child marker: %w", err)
	}

	result.Evolved = true
	return result, nil
}
