package query

import (
	"context"
	"fmt"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/catalog"
	"github.com/seedlinghq/seedling-engine/internal/domain/plan"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET WEEKLY PLAN QUERY
// Returns one child's plan for the week containing a given date, joined
// with catalog details, shaped for the dashboard's week view.
// ══════════════════════════════════════════════════════════════════════════════

// GetWeeklyPlanQuery contains the query parameters.
type GetWeeklyPlanQuery struct {
	ChildID shared.ChildID

	// WeekOf is any time inside the target week. Zero means now.
	WeekOf time.Time
}

// Validate validates and normalizes the query.
func (q *GetWeeklyPlanQuery) Validate() error {
	if !q.ChildID.IsValid() {
		return shared.ErrInvalidChildID
	}
	if q.WeekOf.IsZero() {
		q.WeekOf = time.Now().UTC()
	}
	return nil
}

// PlanEntryDTO is one scheduled entry with catalog details.
type PlanEntryDTO struct {
	ActivityID   string `json:"activity_id"`
	Name         string `json:"name"`
	Area         string `json:"area"`
	Slot         string `json:"slot"`
	Status       string `json:"status"`
	Order        int    `json:"order"`
	SuggestionID string `json:"suggestion_id,omitempty"`
	UserModified bool   `json:"user_modified,omitempty"`
}

// WeeklyPlanDTO is the week view.
type WeeklyPlanDTO struct {
	PlanID      string                    `json:"plan_id"`
	ChildID     string                    `json:"child_id"`
	WeekStart   string                    `json:"week_start"`
	GeneratedBy string                    `json:"generated_by"`
	Days        map[string][]PlanEntryDTO `json:"days"`
	EntryCount  int                       `json:"entry_count"`
}

// GetWeeklyPlanHandler handles the GetWeeklyPlanQuery.
type GetWeeklyPlanHandler struct {
	planRepo    plan.Repository
	catalogRepo catalog.Repository
}

// NewGetWeeklyPlanHandler creates a new GetWeeklyPlanHandler.
func NewGetWeeklyPlanHandler(planRepo plan.Repository, catalogRepo catalog.Repository) *GetWeeklyPlanHandler {
	return &GetWeeklyPlanHandler{planRepo: planRepo, catalogRepo: catalogRepo}
}

// Handle executes the query.
func (h *GetWeeklyPlanHandler) Handle(ctx context.Context, q GetWeeklyPlanQuery) (*WeeklyPlanDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_weekly_plan: validation failed: %w", err)
	}

	p, err := h.planRepo.GetByChildAndWeek(ctx, q.ChildID, q.WeekOf)
	if err != nil {
		return nil, fmt.Errorf("get_weekly_plan: %w", err)
	}

	var ids []shared.ActivityID
	for _, entries := range p.Days {
		for _, e := range entries {
			ids = append(ids, e.ActivityID)
		}
	}
	activities, err := h.catalogRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get_weekly_plan: failed to load activities: %w", err)
	}
	byID := make(map[shared.ActivityID]*catalog.Activity, len(activities))
	for _, a := range activities {
		byID[a.ID] = a
	}

	dto := &WeeklyPlanDTO{
		PlanID:      p.ID,
		ChildID:     p.ChildID.String(),
		WeekStart:   timeutil.FormatDate(p.WeekStart),
		GeneratedBy: p.GeneratedBy,
		Days:        make(map[string][]PlanEntryDTO, len(p.Days)),
		EntryCount:  p.EntryCount(),
	}
	for _, day := range plan.Weekdays() {
		entries := p.Days[day]
		if len(entries) == 0 {
			continue
		}
		out := make([]PlanEntryDTO, 0, len(entries))
		for _, e := range entries {
			item := PlanEntryDTO{
				ActivityID:   e.ActivityID.String(),
				Slot:         string(e.Slot),
				Status:       string(e.Status),
				Order:        e.Order,
				SuggestionID: e.SuggestionID,
				UserModified: e.UserModified,
			}
			if a, ok := byID[e.ActivityID]; ok {
				item.Name = a.Name
				item.Area = a.Area
			}
			out = append(out, item)
		}
		dto.Days[day.String()] = out
	}
	return dto, nil
}
