package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/plan"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/internal/domain/suggestion"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACCEPT SUGGESTION COMMAND
// Owner-initiated acceptance of a single recommendation. The suggestion
// moves to accepted and, when the current week's plan has room, is
// scheduled right away as a confirmed entry.
// ══════════════════════════════════════════════════════════════════════════════

// AcceptSuggestionCommand contains the data needed to accept a suggestion.
type AcceptSuggestionCommand struct {
	// SuggestionID identifies the suggestion to accept.
	SuggestionID string

	// Now anchors the target week. Zero means wall clock.
	Now time.Time
}

// Validate validates the command.
func (c AcceptSuggestionCommand) Validate() error {
	if c.SuggestionID == "" {
		return shared.ErrSuggestionNotFound
	}
	return nil
}

// AcceptSuggestionResult reports what happened to the suggestion.
type AcceptSuggestionResult struct {
	Suggestion *suggestion.ActivitySuggestion

	// PlacedInPlan is true when the activity was scheduled into the
	// current week. False means the plan was missing or full; the
	// acceptance still stands.
	PlacedInPlan bool

	// PlannedDay is the bucket the entry landed in, empty when not placed.
	PlannedDay plan.Weekday
}

// AcceptSuggestionHandler handles the AcceptSuggestionCommand.
type AcceptSuggestionHandler struct {
	suggestionRepo suggestion.Repository
	logRepo        suggestion.LogRepository
	planRepo       plan.Repository
}

// NewAcceptSuggestionHandler creates a new AcceptSuggestionHandler.
func NewAcceptSuggestionHandler(
	suggestionRepo suggestion.Repository,
	logRepo suggestion.LogRepository,
	planRepo plan.Repository,
) *AcceptSuggestionHandler {
	return &AcceptSuggestionHandler{
		suggestionRepo: suggestionRepo,
		logRepo:        logRepo,
		planRepo:       planRepo,
	}
}

// Handle executes the accept suggestion command.
func (h *AcceptSuggestionHandler) Handle(ctx context.Context, cmd AcceptSuggestionCommand) (*AcceptSuggestionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("accept_suggestion: validation failed: %w", err)
	}
	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s, err := h.suggestionRepo.GetByID(ctx, cmd.SuggestionID)
	if err != nil {
		return nil, fmt.Errorf("accept_suggestion: failed to load suggestion: %w", err)
	}

	result := &AcceptSuggestionResult{Suggestion: s}

	// Try to schedule into the current week before accepting, so the
	// acceptance can carry the plan link.
	currentPlan, planErr := h.planRepo.GetByChildAndWeek(ctx, s.ChildID, now)
	planID := ""
	if planErr == nil {
		if day, placed := h.tryPlace(currentPlan, s); placed {
			if err := h.planRepo.Save(ctx, currentPlan); err != nil {
				return nil, fmt.Errorf("accept_suggestion: failed to save plan: %w", err)
			}
			planID = currentPlan.ID
			result.PlacedInPlan = true
			result.PlannedDay = day
		}
	} else if !errors.Is(planErr, shared.ErrPlanNotFound) && !shared.IsNotFound(planErr) {
		return nil, fmt.Errorf("accept_suggestion: failed to load plan: %w", planErr)
	}

	if err := s.Accept(planID); err != nil {
		return nil, fmt.Errorf("accept_suggestion: %w", err)
	}
	if err := h.suggestionRepo.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("accept_suggestion: failed to save suggestion: %w", err)
	}
	_ = h.logRepo.CloseOpen(ctx, s.ChildID, s.ActivityID, suggestion.StatusAccepted, now)

	return result, nil
}

// tryPlace finds the first day with room for a confirmed entry.
func (h *AcceptSuggestionHandler) tryPlace(p *plan.WeeklyPlan, s *suggestion.ActivitySuggestion) (plan.Weekday, bool) {
	if p.ContainsActivity(s.ActivityID) {
		return "", false
	}
	for _, day := range plan.Weekdays() {
		entry := plan.Entry{
			ActivityID:   s.ActivityID,
			SuggestionID: s.ID,
			Slot:         plan.SlotForFiller(day, p.DayCount(day)),
			Status:       plan.EntryStatusConfirmed,
			UserModified: true,
		}
		if err := p.AddEntry(day, entry, day.DefaultCapacity()); err == nil {
			return day, true
		}
	}
	return "", false
}
