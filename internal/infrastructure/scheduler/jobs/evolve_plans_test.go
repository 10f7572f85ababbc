package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlinghq/seedling-engine/internal/application/command"
	"github.com/seedlinghq/seedling-engine/internal/domain/catalog"
	"github.com/seedlinghq/seedling-engine/internal/domain/child"
	"github.com/seedlinghq/seedling-engine/internal/domain/progress"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/internal/infrastructure/persistence/memory"
)

func TestEvolvePlansJob_RebuildsOnlyChildrenPastTheThreshold(t *testing.T) {
	childRepo := memory.NewChildRepository()
	ownerRepo := memory.NewOwnerRepository()
	catalogRepo := memory.NewCatalogRepository()
	statusRepo := memory.NewStatusRepository()
	progressRepo := memory.NewProgressRepository()
	suggestionRepo := memory.NewSuggestionRepository()
	planRepo := memory.NewPlanRepository()

	weekly := command.NewGenerateWeeklyPlanHandler(
		childRepo, ownerRepo, catalogRepo, statusRepo,
		progressRepo, suggestionRepo, planRepo, nil,
	)
	evolve := command.NewEvolvePlansHandler(childRepo, progressRepo, weekly)
	job := NewEvolvePlansJob(childRepo, evolve, nil, DefaultEvolvePlansConfig())

	for _, id := range []shared.ChildID{"busy", "quiet"} {
		c, err := child.NewChild(id, "owner1", "Kid "+string(id), "3-4")
		require.NoError(t, err)
		require.NoError(t, childRepo.Save(context.Background(), c))
	}

	for i := 0; i < 3; i++ {
		a, err := catalog.NewActivity(shared.ActivityID("act-"+string(rune('a'+i))), "Activity", "practical life", catalog.DifficultyBeginner, []shared.AgeGroup{"3-4"})
		require.NoError(t, err)
		require.NoError(t, catalogRepo.Save(context.Background(), a))
	}

	// Three fresh completions push "busy" over the threshold; "quiet"
	// has only one.
	now := time.Now().UTC()
	for i, act := range []shared.ActivityID{"act-a", "act-b", "act-c"} {
		rec, err := progress.NewCompletedRecord("busy-rec-"+string(rune('1'+i)), "busy", act, now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.NoError(t, progressRepo.Save(context.Background(), rec))
	}
	rec, err := progress.NewCompletedRecord("quiet-rec", "quiet", "act-a", now)
	require.NoError(t, err)
	require.NoError(t, progressRepo.Save(context.Background(), rec))

	require.NoError(t, job.Run(context.Background()))

	evolved, err := planRepo.GetByChildAndWeek(context.Background(), "busy", now)
	require.NoError(t, err)
	assert.Equal(t, "evolution", evolved.GeneratedBy)

	_, err = planRepo.GetByChildAndWeek(context.Background(), "quiet", now)
	assert.Error(t, err)

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.TotalChildren)
	assert.Equal(t, 1, stats.EvolvedCount)
	assert.Equal(t, 1, stats.UnchangedCount)
}
