package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlinghq/seedling-engine/internal/application/command"
	"github.com/seedlinghq/seedling-engine/internal/domain/catalog"
	"github.com/seedlinghq/seedling-engine/internal/domain/child"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/internal/infrastructure/persistence/memory"
)

func TestRefreshRecommendationsJob_RefreshesEveryActiveChild(t *testing.T) {
	childRepo := memory.NewChildRepository()
	catalogRepo := memory.NewCatalogRepository()
	statusRepo := memory.NewStatusRepository()
	progressRepo := memory.NewProgressRepository()
	suggestionRepo := memory.NewSuggestionRepository()
	logRepo := memory.NewSuggestionLogRepository()

	handler := command.NewRefreshSuggestionsHandler(
		childRepo, catalogRepo, statusRepo, progressRepo,
		suggestionRepo, logRepo, nil,
	)
	job := NewRefreshRecommendationsJob(childRepo, handler, nil, DefaultRefreshRecommendationsConfig())

	for _, id := range []shared.ChildID{"child1", "child2"} {
		c, err := child.NewChild(id, "owner1", "Kid "+string(id), "3-4")
		require.NoError(t, err)
		require.NoError(t, childRepo.Save(context.Background(), c))
	}
	inactive, err := child.NewChild("child3", "owner1", "Paused", "3-4")
	require.NoError(t, err)
	inactive.Deactivate()
	require.NoError(t, childRepo.Save(context.Background(), inactive))

	a, err := catalog.NewActivity("act-a", "Pouring water", "practical life", catalog.DifficultyBeginner, []shared.AgeGroup{"3-4"})
	require.NoError(t, err)
	a.SkillsAddressed = []shared.SkillID{"fine-motor"}
	require.NoError(t, catalogRepo.Save(context.Background(), a))

	require.NoError(t, job.Run(context.Background()))

	for _, id := range []shared.ChildID{"child1", "child2"} {
		pending, err := suggestionRepo.ListPendingByChild(context.Background(), id, 0)
		require.NoError(t, err)
		assert.Len(t, pending, 1, "child %s should have a suggestion", id)
	}
	pending, err := suggestionRepo.ListPendingByChild(context.Background(), "child3", 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.TotalChildren)
	assert.Equal(t, 2, stats.RefreshedCount)
	assert.Equal(t, 2, stats.Created)
	assert.Equal(t, 0, stats.FailedCount)
}
