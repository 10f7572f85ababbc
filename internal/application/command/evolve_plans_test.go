package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlinghq/seedling-engine/internal/domain/progress"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

func seedCompletions(t *testing.T, f *planFixture, n int, at time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		rec, err := progress.NewCompletedRecord(
			"rec-"+string(rune('a'+i)), "child1", shared.ActivityID("act-"+string(rune('a'+i))),
			at.Add(time.Duration(i)*time.Hour),
		)
		require.NoError(t, err)
		require.NoError(t, f.progressRepo.Save(context.Background(), rec))
	}
}

// backdateChild moves the profile's creation before the fixture clock so
// completions stamped at f.now count as new since creation.
func backdateChild(t *testing.T, f *planFixture) {
	t.Helper()
	ctx := context.Background()
	c, err := f.childRepo.GetByID(ctx, "child1")
	require.NoError(t, err)
	c.CreatedAt = f.now.AddDate(0, 0, -30)
	require.NoError(t, f.childRepo.Save(ctx, c))
}

func TestEvolvePlans_BelowThresholdLeavesPlansAlone(t *testing.T) {
	f := newPlanFixture(t)
	f.seedChild(t)
	f.seedActivities(t, 12)
	backdateChild(t, f)
	seedCompletions(t, f, 2, f.now)

	handler := NewEvolvePlansHandler(f.childRepo, f.progressRepo, f.handler)
	res, err := handler.Handle(context.Background(), EvolvePlansCommand{ChildID: "child1", Now: f.now.Add(24 * time.Hour)})
	require.NoError(t, err)

	assert.False(t, res.Evolved)
	assert.Equal(t, 2, res.NewCompletions)
	exists, err := f.planRepo.ExistsForWeek(context.Background(), "child1", f.now)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEvolvePlans_ThresholdTriggersRebuildOfBothWeeks(t *testing.T) {
	f := newPlanFixture(t)
	f.seedChild(t)
	f.seedActivities(t, 20)
	backdateChild(t, f)
	seedCompletions(t, f, EvolutionThreshold, f.now)
	ctx := context.Background()

	handler := NewEvolvePlansHandler(f.childRepo, f.progressRepo, f.handler)
	res, err := handler.Handle(ctx, EvolvePlansCommand{ChildID: "child1", Now: f.now.Add(24 * time.Hour)})
	require.NoError(t, err)

	assert.True(t, res.Evolved)
	assert.Equal(t, EvolutionThreshold, res.NewCompletions)

	current, err := f.planRepo.GetByChildAndWeek(ctx, "child1", f.now)
	require.NoError(t, err)
	assert.Equal(t, "evolution", current.GeneratedBy)
	next, err := f.planRepo.GetByChildAndWeek(ctx, "child1", f.now.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Equal(t, "evolution", next.GeneratedBy)

	c, err := f.childRepo.GetByID(ctx, "child1")
	require.NoError(t, err)
	assert.NotNil(t, c.LastPlanEvolvedAt)
}

func TestEvolvePlans_ForceOverridesThreshold(t *testing.T) {
	f := newPlanFixture(t)
	f.seedChild(t)
	f.seedActivities(t, 12)

	handler := NewEvolvePlansHandler(f.childRepo, f.progressRepo, f.handler)
	res, err := handler.Handle(context.Background(), EvolvePlansCommand{ChildID: "child1", Force: true, Now: f.now})
	require.NoError(t, err)

	assert.True(t, res.Evolved)
	assert.Equal(t, 0, res.NewCompletions)
}

func TestEvolvePlans_CountsFromLastEvolutionMarker(t *testing.T) {
	f := newPlanFixture(t)
	f.seedChild(t)
	f.seedActivities(t, 20)
	backdateChild(t, f)
	seedCompletions(t, f, 3, f.now)
	ctx := context.Background()

	handler := NewEvolvePlansHandler(f.childRepo, f.progressRepo, f.handler)
	_, err := handler.Handle(ctx, EvolvePlansCommand{ChildID: "child1", Now: f.now.Add(24 * time.Hour)})
	require.NoError(t, err)

	// The three completions are consumed by the first evolution; a
	// second pass sees nothing new since the marker.
	res, err := handler.Handle(ctx, EvolvePlansCommand{ChildID: "child1", Now: f.now.Add(48 * time.Hour)})
	require.NoError(t, err)
	assert.False(t, res.Evolved)
	assert.Equal(t, 0, res.NewCompletions)
}
