package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlinghq/seedling-engine/internal/domain/plan"
	"github.com/seedlinghq/seedling-engine/internal/domain/suggestion"
	"github.com/seedlinghq/seedling-engine/internal/infrastructure/persistence/memory"
)

func TestAcceptSuggestion_PlacesIntoCurrentWeek(t *testing.T) {
	f := newPlanFixture(t)
	f.seedChild(t)
	f.seedActivities(t, 4)
	ctx := context.Background()

	// Existing plan for the week with Monday free.
	p, err := plan.NewWeeklyPlan("child1", f.now, "on_demand")
	require.NoError(t, err)
	require.NoError(t, f.planRepo.Save(ctx, p))

	s := f.seedPending(t, "sug1", "act-a", 9.0)

	handler := NewAcceptSuggestionHandler(f.suggestionRepo, memory.NewSuggestionLogRepository(), f.planRepo)
	res, err := handler.Handle(ctx, AcceptSuggestionCommand{SuggestionID: s.ID, Now: f.now})
	require.NoError(t, err)

	assert.True(t, res.PlacedInPlan)
	assert.Equal(t, plan.Monday, res.PlannedDay)
	assert.Equal(t, suggestion.StatusAccepted, res.Suggestion.Status)
	assert.Equal(t, p.ID, res.Suggestion.WeeklyPlanID)

	// The entry lands confirmed and marked as a user decision, so a
	// later regeneration keeps it.
	saved, err := f.planRepo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, saved.Days[plan.Monday], 1)
	entry := saved.Days[plan.Monday][0]
	assert.Equal(t, plan.EntryStatusConfirmed, entry.Status)
	assert.True(t, entry.UserModified)
	assert.Equal(t, "sug1", entry.SuggestionID)
}

func TestAcceptSuggestion_MissingPlanStillAccepts(t *testing.T) {
	f := newPlanFixture(t)
	f.seedChild(t)
	ctx := context.Background()

	s := f.seedPending(t, "sug1", "act-a", 9.0)

	handler := NewAcceptSuggestionHandler(f.suggestionRepo, memory.NewSuggestionLogRepository(), f.planRepo)
	res, err := handler.Handle(ctx, AcceptSuggestionCommand{SuggestionID: s.ID, Now: f.now})
	require.NoError(t, err)

	assert.False(t, res.PlacedInPlan)
	assert.Equal(t, suggestion.StatusAccepted, res.Suggestion.Status)
	assert.Empty(t, res.Suggestion.WeeklyPlanID)
}

func TestAcceptSuggestion_FullWeekAcceptsWithoutPlacement(t *testing.T) {
	f := newPlanFixture(t)
	f.seedChild(t)
	f.seedActivities(t, 12)
	ctx := context.Background()

	// Generate a full plan first, then accept one more suggestion.
	_, err := f.handler.Handle(ctx, GenerateWeeklyPlanCommand{ChildID: "child1", Now: f.now})
	require.NoError(t, err)

	s := f.seedPending(t, "sug-extra", "act-l", 9.0)

	handler := NewAcceptSuggestionHandler(f.suggestionRepo, memory.NewSuggestionLogRepository(), f.planRepo)
	res, err := handler.Handle(ctx, AcceptSuggestionCommand{SuggestionID: s.ID, Now: f.now})
	require.NoError(t, err)

	assert.Equal(t, suggestion.StatusAccepted, res.Suggestion.Status)
}

func TestAcceptSuggestion_AlreadyAcceptedRejected(t *testing.T) {
	f := newPlanFixture(t)
	f.seedChild(t)
	ctx := context.Background()

	s := f.seedPending(t, "sug1", "act-a", 9.0)
	require.NoError(t, s.Accept(""))
	require.NoError(t, f.suggestionRepo.Save(ctx, s))

	handler := NewAcceptSuggestionHandler(f.suggestionRepo, memory.NewSuggestionLogRepository(), f.planRepo)
	_, err := handler.Handle(ctx, AcceptSuggestionCommand{SuggestionID: "sug1", Now: f.now})
	assert.Error(t, err)
}
