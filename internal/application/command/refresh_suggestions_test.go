package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlinghq/seedling-engine/internal/domain/catalog"
	"github.com/seedlinghq/seedling-engine/internal/domain/child"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/internal/domain/suggestion"
	"github.com/seedlinghq/seedling-engine/internal/infrastructure/persistence/memory"
)

type refreshFixture struct {
	childRepo      *memory.ChildRepository
	catalogRepo    *memory.CatalogRepository
	statusRepo     *memory.StatusRepository
	progressRepo   *memory.ProgressRepository
	suggestionRepo *memory.SuggestionRepository
	logRepo        *memory.SuggestionLogRepository
	handler        *RefreshSuggestionsHandler
	now            time.Time
}

func newRefreshFixture(t *testing.T) *refreshFixture {
	t.Helper()
	f := &refreshFixture{
		childRepo:      memory.NewChildRepository(),
		catalogRepo:    memory.NewCatalogRepository(),
		statusRepo:     memory.NewStatusRepository(),
		progressRepo:   memory.NewProgressRepository(),
		suggestionRepo: memory.NewSuggestionRepository(),
		logRepo:        memory.NewSuggestionLogRepository(),
		now:            time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	f.handler = NewRefreshSuggestionsHandler(
		f.childRepo, f.catalogRepo, f.statusRepo, f.progressRepo,
		f.suggestionRepo, f.logRepo, nil,
	)
	return f
}

func (f *refreshFixture) seedChild(t *testing.T, interests ...string) {
	t.Helper()
	c, err := child.NewChild("child1", "owner1", "Mika", "3-4")
	require.NoError(t, err)
	c.Interests = interests
	require.NoError(t, f.childRepo.Save(context.Background(), c))
}

func (f *refreshFixture) seedActivity(t *testing.T, id string, area string, skills ...shared.SkillID) {
	t.Helper()
	a, err := catalog.NewActivity(shared.ActivityID(id), "Activity "+id, area, catalog.DifficultyBeginner, []shared.AgeGroup{"3-4"})
	require.NoError(t, err)
	a.SkillsAddressed = skills
	require.NoError(t, f.catalogRepo.Save(context.Background(), a))
}

func TestRefreshSuggestions_CreatesPendingForEligible(t *testing.T) {
	f := newRefreshFixture(t)
	f.seedChild(t)
	f.seedActivity(t, "a1", "practical life", "s1") // new skill +3, novelty +1, alignment +1
	ctx := context.Background()

	res, err := f.handler.Handle(ctx, RefreshSuggestionsCommand{ChildID: "child1", Now: f.now})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 1, res.Evaluated)

	pending, err := f.suggestionRepo.ListPendingByChild(ctx, "child1", 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, shared.ActivityID("a1"), pending[0].ActivityID)
	assert.Equal(t, 10.0, pending[0].Priority) // 5 + 3 + 1 + 1
	assert.NotEmpty(t, pending[0].Reason)

	// One audit entry per evaluated candidate.
	logs, err := f.logRepo.ListByChild(ctx, "child1", 0)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestRefreshSuggestions_SecondRunUpdatesInPlace(t *testing.T) {
	f := newRefreshFixture(t)
	f.seedChild(t)
	f.seedActivity(t, "a1", "practical life", "s1")
	ctx := context.Background()

	_, err := f.handler.Handle(ctx, RefreshSuggestionsCommand{ChildID: "child1", Now: f.now})
	require.NoError(t, err)
	res, err := f.handler.Handle(ctx, RefreshSuggestionsCommand{ChildID: "child1", Now: f.now.Add(time.Hour)})
	require.NoError(t, err)

	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 1, res.Updated)

	// Still exactly one open suggestion for the pair.
	pending, err := f.suggestionRepo.ListPendingByChild(ctx, "child1", 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestRefreshSuggestions_SkipsAcceptedSuggestions(t *testing.T) {
	f := newRefreshFixture(t)
	f.seedChild(t)
	f.seedActivity(t, "a1", "practical life", "s1")
	ctx := context.Background()

	_, err := f.handler.Handle(ctx, RefreshSuggestionsCommand{ChildID: "child1", Now: f.now})
	require.NoError(t, err)

	pending, err := f.suggestionRepo.ListPendingByChild(ctx, "child1", 0)
	require.NoError(t, err)
	require.NoError(t, pending[0].Accept("plan1"))
	require.NoError(t, f.suggestionRepo.Save(ctx, pending[0]))

	res, err := f.handler.Handle(ctx, RefreshSuggestionsCommand{ChildID: "child1", Now: f.now})
	require.NoError(t, err)

	// The accepted suggestion is left alone and no duplicate appears.
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 0, res.Updated)
	pending, err = f.suggestionRepo.ListPendingByChild(ctx, "child1", 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// The evaluation itself is still audited.
	logs, err := f.logRepo.ListByChild(ctx, "child1", 0)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestRefreshSuggestions_EvictsStalePending(t *testing.T) {
	f := newRefreshFixture(t)
	f.seedChild(t)
	ctx := context.Background()

	// A pending suggestion older than the staleness window, for an
	// activity no longer in the catalog.
	stale, err := suggestion.NewActivitySuggestion("old1", "child1", "gone", 8.0, []string{"never tried before"})
	require.NoError(t, err)
	stale.CreatedAt = f.now.Add(-suggestion.StaleAfter - 24*time.Hour)
	require.NoError(t, f.suggestionRepo.Save(ctx, stale))

	res, err := f.handler.Handle(ctx, RefreshSuggestionsCommand{ChildID: "child1", Now: f.now})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Evicted)
	got, err := f.suggestionRepo.GetByID(ctx, "old1")
	require.NoError(t, err)
	assert.Equal(t, suggestion.StatusExpired, got.Status)
}

func TestRefreshSuggestions_CapsAtTen(t *testing.T) {
	f := newRefreshFixture(t)
	f.seedChild(t)
	for i := 0; i < 15; i++ {
		f.seedActivity(t, string(rune('a'+i))+"-act", "practical life", shared.SkillID("s"+string(rune('a'+i))))
	}
	ctx := context.Background()

	res, err := f.handler.Handle(ctx, RefreshSuggestionsCommand{ChildID: "child1", Now: f.now})
	require.NoError(t, err)

	assert.Equal(t, MaxSuggestionsPerRefresh, res.Evaluated)
	assert.Equal(t, MaxSuggestionsPerRefresh, res.Created)
}

func TestRefreshSuggestions_InactiveChildRejected(t *testing.T) {
	f := newRefreshFixture(t)
	c, err := child.NewChild("child1", "owner1", "Mika", "3-4")
	require.NoError(t, err)
	c.Deactivate()
	require.NoError(t, f.childRepo.Save(context.Background(), c))

	_, err = f.handler.Handle(context.Background(), RefreshSuggestionsCommand{ChildID: "child1", Now: f.now})
	assert.ErrorIs(t, err, shared.ErrChildInactive)
}

// countingSuggestionRepo records how writes arrive: buffered chunks
// through SaveAll versus one-off Saves.
type countingSuggestionRepo struct {
	*memory.SuggestionRepository
	saveCalls    int
	saveAllCalls int
	saveAllOps   int
}

func (r *countingSuggestionRepo) Save(ctx context.Context, s *suggestion.ActivitySuggestion) error {
	r.saveCalls++
	return r.SuggestionRepository.Save(ctx, s)
}

func (r *countingSuggestionRepo) SaveAll(ctx context.Context, suggestions []*suggestion.ActivitySuggestion) error {
	r.saveAllCalls++
	r.saveAllOps += len(suggestions)
	return r.SuggestionRepository.SaveAll(ctx, suggestions)
}

func TestRefreshSuggestions_CommitsThroughChunkedWriter(t *testing.T) {
	f := newRefreshFixture(t)
	f.seedChild(t)
	f.seedActivity(t, "a1", "practical life", "s1")
	f.seedActivity(t, "a2", "sensorial", "s2")
	f.seedActivity(t, "a3", "language", "s3")
	ctx := context.Background()

	counting := &countingSuggestionRepo{SuggestionRepository: f.suggestionRepo}
	handler := NewRefreshSuggestionsHandler(
		f.childRepo, f.catalogRepo, f.statusRepo, f.progressRepo,
		counting, f.logRepo, nil,
	)

	res, err := handler.Handle(ctx, RefreshSuggestionsCommand{ChildID: "child1", Now: f.now})
	require.NoError(t, err)
	require.Equal(t, 3, res.Created)

	// Every write lands as one buffered chunk, never as a one-off Save.
	assert.Equal(t, 0, counting.saveCalls)
	assert.Equal(t, 1, counting.saveAllCalls)
	assert.Equal(t, 3, counting.saveAllOps)
}
