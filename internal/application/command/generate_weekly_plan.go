package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/application/scoring"
	"github.com/seedlinghq/seedling-engine/internal/domain/catalog"
	"github.com/seedlinghq/seedling-engine/internal/domain/child"
	"github.com/seedlinghq/seedling-engine/internal/domain/plan"
	"github.com/seedlinghq/seedling-engine/internal/domain/progress"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/internal/domain/skill"
	"github.com/seedlinghq/seedling-engine/internal/domain/suggestion"
	"github.com/seedlinghq/seedling-engine/pkg/batch"
	"github.com/seedlinghq/seedling-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GENERATE WEEKLY PLAN COMMAND
// On-demand plan generation for one child and one week. Unlike the batch
// job, this path honors the owner's schedule preferences and merges with
// an existing plan instead of skipping it: completed and user-modified
// entries survive, everything else is rebuilt from current scores.
// ══════════════════════════════════════════════════════════════════════════════

// GenerateWeeklyPlanCommand contains the data needed to build one plan.
type GenerateWeeklyPlanCommand struct {
	// ChildID is the profile to plan for.
	ChildID shared.ChildID

	// WeekOf is any time inside the target week; it is aligned to its
	// Monday. Zero means the current week.
	WeekOf time.Time

	// GeneratedBy tags the producing path. Defaults to "on_demand".
	GeneratedBy string

	// Now anchors scoring windows. Zero means wall clock.
	Now time.Time
}

// Validate validates the command.
func (c GenerateWeeklyPlanCommand) Validate() error {
	if !c.ChildID.IsValid() {
		return shared.ErrInvalidChildID
	}
	return nil
}

// GenerateWeeklyPlanResult contains the built plan and placement counts.
type GenerateWeeklyPlanResult struct {
	Plan *plan.WeeklyPlan

	// SuggestionsPlaced is how many pending suggestions were scheduled
	// and accepted.
	SuggestionsPlaced int

	// FillersPlaced is how many score-ranked catalog entries topped up
	// the remaining capacity.
	FillersPlaced int

	// PreservedEntries is how many entries survived from the previous
	// version of the plan.
	PreservedEntries int
}

// GenerateWeeklyPlanHandler handles the GenerateWeeklyPlanCommand.
type GenerateWeeklyPlanHandler struct {
	childRepo      child.Repository
	ownerRepo      child.OwnerRepository
	catalogRepo    catalog.Repository
	statusRepo     skill.StatusRepository
	progressRepo   progress.Repository
	suggestionRepo suggestion.Repository
	planRepo       plan.Repository
	eventPublisher shared.EventPublisher
}

// NewGenerateWeeklyPlanHandler creates a new GenerateWeeklyPlanHandler.
func NewGenerateWeeklyPlanHandler(
	childRepo child.Repository,
	ownerRepo child.OwnerRepository,
	catalogRepo catalog.Repository,
	statusRepo skill.StatusRepository,
	progressRepo progress.Repository,
	suggestionRepo suggestion.Repository,
	planRepo plan.Repository,
	eventPublisher shared.EventPublisher,
) *GenerateWeeklyPlanHandler {
	return &GenerateWeeklyPlanHandler{
		childRepo:      childRepo,
		ownerRepo:      ownerRepo,
		catalogRepo:    catalogRepo,
		statusRepo:     statusRepo,
		progressRepo:   progressRepo,
		suggestionRepo: suggestionRepo,
		planRepo:       planRepo,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the generate weekly plan command.
func (h *GenerateWeeklyPlanHandler) Handle(ctx context.Context, cmd GenerateWeeklyPlanCommand) (*GenerateWeeklyPlanResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("generate_plan: validation failed: %w", err)
	}
	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	weekOf := cmd.WeekOf
	if weekOf.IsZero() {
		weekOf = now
	}
	generatedBy := cmd.GeneratedBy
	if generatedBy == "" {
		generatedBy = "on_demand"
	}

	c, err := h.childRepo.GetByID(ctx, cmd.ChildID)
	if err != nil {
		return nil, fmt.Errorf("generate_plan: failed to load child: %w", err)
	}
	if !c.Active {
		return nil, shared.ErrChildInactive
	}

	weekStart := timeutil.StartOfWeek(weekOf)

	newPlan, err := plan.NewWeeklyPlan(c.ID, weekStart, generatedBy)
	if err != nil {
		return nil, fmt.Errorf("generate_plan: %w", err)
	}

	result := &GenerateWeeklyPlanResult{Plan: newPlan}

	// Seed the rebuilt plan with what must survive from the previous
	// version, preserving the old creation time so the plan's age is
	// honest.
	existing, err := h.planRepo.GetByChildAndWeek(ctx, c.ID, weekStart)
	switch {
	case err == nil:
		newPlan.Days = existing.PreservedEntries()
		newPlan.CreatedAt = existing.CreatedAt
		result.PreservedEntries = newPlan.EntryCount()
	case errors.Is(err, shared.ErrPlanNotFound) || shared.IsNotFound(err):
		// first plan for this week
	default:
		return nil, fmt.Errorf("generate_plan: failed to load existing plan: %w", err)
	}

	prefs := h.loadPreferences(ctx, c)

	accepted, err := h.placeSuggestions(ctx, newPlan, c, prefs)
	if err != nil {
		return nil, err
	}
	result.SuggestionsPlaced = len(accepted)

	fillers, err := h.placeFillers(ctx, newPlan, c, prefs, now)
	if err != nil {
		return nil, err
	}
	result.FillersPlaced = fillers

	// Plan save and suggestion accepts commit through one chunked
	// writer, so a failed plan write never leaves accepted suggestions
	// pointing at a plan that does not exist.
	writer := batch.NewWriter(func(ctx context.Context, ops []func(context.Context) error) error {
		for _, op := range ops {
			if err := op(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err := writer.Add(ctx, func(ctx context.Context) error {
		return h.planRepo.Save(ctx, newPlan)
	}); err != nil {
		return nil, err
	}
	for _, s := range accepted {
		s := s
		if err := writer.Add(ctx, func(ctx context.Context) error {
			return h.suggestionRepo.Save(ctx, s)
		}); err != nil {
			return nil, err
		}
	}
	if err := writer.Add(ctx, func(ctx context.Context) error {
		return h.childRepo.TouchPlanGeneratedAt(ctx, c.ID)
	}); err != nil {
		return nil, err
	}
	if err := writer.Flush(ctx); err != nil {
		return nil, fmt.Errorf("generate_plan: failed to save plan: %w", err)
	}

	if h.eventPublisher != nil {
		event := shared.NewPlanGeneratedEvent(newPlan.ID, c.ID, timeutil.FormatDate(weekStart), newPlan.EntryCount(), generatedBy)
		_ = h.eventPublisher.Publish(event)
	}

	return result, nil
}

// loadPreferences fetches the owner's schedule preferences. A missing
// or invalid owner record falls back to the default capacities.
func (h *GenerateWeeklyPlanHandler) loadPreferences(ctx context.Context, c *child.Child) *child.SchedulePreferences {
	owner, err := h.ownerRepo.GetByID(ctx, c.OwnerID)
	if err != nil || owner.Schedule == nil {
		return nil
	}
	if err := owner.Schedule.Validate(); err != nil {
		return nil
	}
	return owner.Schedule
}

// capacityFor resolves the per-day capacity from preferences, falling
// back to the batch defaults when the owner set none.
func capacityFor(prefs *child.SchedulePreferences, day plan.Weekday) int {
	if prefs == nil {
		return day.DefaultCapacity()
	}
	return prefs.CapacityFor(day.String(), day.Index())
}

// placeSuggestions distributes pending suggestions, highest priority
// first, across the week's free capacity. Each placed suggestion is
// accepted and linked to the plan; writing the accepts is left to the
// caller so they commit together with the plan.
func (h *GenerateWeeklyPlanHandler) placeSuggestions(ctx context.Context, p *plan.WeeklyPlan, c *child.Child, prefs *child.SchedulePreferences) ([]*suggestion.ActivitySuggestion, error) {
	pending, err := h.suggestionRepo.ListPendingByChild(ctx, c.ID, len(plan.Weekdays()))
	if err != nil {
		return nil, fmt.Errorf("generate_plan: failed to load suggestions: %w", err)
	}

	var accepted []*suggestion.ActivitySuggestion
	next := 0
	for _, day := range plan.Weekdays() {
		if next >= len(pending) {
			break
		}
		s := pending[next]
		if p.ContainsActivity(s.ActivityID) {
			// Already preserved from the previous plan; the suggestion
			// stays pending for a later week.
			next++
			continue
		}
		entry := plan.Entry{
			ActivityID:   s.ActivityID,
			SuggestionID: s.ID,
			Slot:         plan.SlotForSuggestion(day),
			Status:       plan.EntryStatusSuggested,
		}
		if err := p.AddEntry(day, entry, capacityFor(prefs, day)); err != nil {
			// Day is full; try the next day with the same suggestion.
			continue
		}
		if err := s.Accept(p.ID); err == nil {
			accepted = append(accepted, s)
		}
		next++
	}
	return accepted, nil
}

// placeFillers tops up the remaining capacity with the best currently
// scoring catalog activities, ranked by score descending.
func (h *GenerateWeeklyPlanHandler) placeFillers(ctx context.Context, p *plan.WeeklyPlan, c *child.Child, prefs *child.SchedulePreferences, now time.Time) (int, error) {
	activities, err := h.catalogRepo.ListActiveByAgeGroup(ctx, c.AgeGroup)
	if err != nil {
		return 0, fmt.Errorf("generate_plan: failed to load catalog: %w", err)
	}
	statuses, err := h.statusRepo.ListByChild(ctx, c.ID)
	if err != nil {
		return 0, fmt.Errorf("generate_plan: failed to load skill statuses: %w", err)
	}
	records, err := h.progressRepo.ListRecentByChild(ctx, c.ID, ScoringHistoryLookback)
	if err != nil {
		return 0, fmt.Errorf("generate_plan: failed to load history: %w", err)
	}

	ranked := scoring.RankEligible(c, activities, statuses, progress.FoldHistory(records), now)

	placed := 0
	next := 0
	for _, day := range plan.Weekdays() {
		capacity := capacityFor(prefs, day)
		for p.DayCount(day) < capacity && next < len(ranked) {
			cand := ranked[next]
			next++
			if p.ContainsActivity(cand.Activity.ID) {
				continue
			}
			entry := plan.Entry{
				ActivityID: cand.Activity.ID,
				Slot:       plan.SlotForFiller(day, p.DayCount(day)),
				Status:     plan.EntryStatusSuggested,
			}
			if err := p.AddEntry(day, entry, capacity); err != nil {
				continue
			}
			placed++
		}
	}
	return placed, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GENERATE UPCOMING PLANS COMMAND
// Builds the current and next week in one call, the shape the dashboard
// asks for after onboarding or a preference change.
// ══════════════════════════════════════════════════════════════════════════════

// GenerateUpcomingPlansCommand plans the current and next week.
type GenerateUpcomingPlansCommand struct {
	ChildID shared.ChildID

	// Now anchors which weeks count as current and next.
	Now time.Time
}

// Validate validates the command.
func (c GenerateUpcomingPlansCommand) Validate() error {
	if !c.ChildID.IsValid() {
		return shared.ErrInvalidChildID
	}
	return nil
}

// GenerateUpcomingPlansResult holds both generated plans.
type GenerateUpcomingPlansResult struct {
	CurrentWeek *GenerateWeeklyPlanResult
	NextWeek    *GenerateWeeklyPlanResult
}

// GenerateUpcomingPlansHandler handles the GenerateUpcomingPlansCommand.
type GenerateUpcomingPlansHandler struct {
	weekly *GenerateWeeklyPlanHandler
}

// NewGenerateUpcomingPlansHandler creates a new handler wrapping the
// weekly one.
func NewGenerateUpcomingPlansHandler(weekly *GenerateWeeklyPlanHandler) *GenerateUpcomingPlansHandler {
	return &GenerateUpcomingPlansHandler{weekly: weekly}
}

// Handle executes the generate upcoming plans command.
func (h *GenerateUpcomingPlansHandler) Handle(ctx context.Context, cmd GenerateUpcomingPlansCommand) (*GenerateUpcomingPlansResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("generate_upcoming: validation failed: %w", err)
	}
	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	current, err := h.weekly.Handle(ctx, GenerateWeeklyPlanCommand{ChildID: cmd.ChildID, WeekOf: now, Now: now})
	if err != nil {
		return nil, err
	}
	next, err := h.weekly.Handle(ctx, GenerateWeeklyPlanCommand{ChildID: cmd.ChildID, WeekOf: timeutil.NextWeekStart(now), Now: now})
	if err != nil {
		return nil, err
	}

	return &GenerateUpcomingPlansResult{CurrentWeek: current, NextWeek: next}, nil
}
