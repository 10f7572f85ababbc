package jobs

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlinghq/seedling-engine/internal/domain/catalog"
	"github.com/seedlinghq/seedling-engine/internal/domain/child"
	"github.com/seedlinghq/seedling-engine/internal/domain/plan"
	"github.com/seedlinghq/seedling-engine/internal/domain/progress"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/internal/domain/suggestion"
	"github.com/seedlinghq/seedling-engine/internal/infrastructure/persistence/memory"
)

type planJobFixture struct {
	childRepo      *memory.ChildRepository
	catalogRepo    *memory.CatalogRepository
	statusRepo     *memory.StatusRepository
	progressRepo   *memory.ProgressRepository
	suggestionRepo *memory.SuggestionRepository
	planRepo       *memory.PlanRepository
	job            *GenerateWeeklyPlansJob
	weekStart      time.Time // Monday 2026-03-02
}

func newPlanJobFixture(t *testing.T, seed int64) *planJobFixture {
	t.Helper()
	f := &planJobFixture{
		childRepo:      memory.NewChildRepository(),
		catalogRepo:    memory.NewCatalogRepository(),
		statusRepo:     memory.NewStatusRepository(),
		progressRepo:   memory.NewProgressRepository(),
		suggestionRepo: memory.NewSuggestionRepository(),
		planRepo:       memory.NewPlanRepository(),
		weekStart:      time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}
	f.job = NewGenerateWeeklyPlansJob(
		f.childRepo, f.catalogRepo, f.statusRepo, f.progressRepo,
		f.suggestionRepo, f.planRepo, nil, nil,
		rand.New(rand.NewSource(seed)),
		DefaultGenerateWeeklyPlansConfig(),
	)
	return f
}

func (f *planJobFixture) seedChild(t *testing.T, id shared.ChildID) *child.Child {
	t.Helper()
	c, err := child.NewChild(id, "owner1", "Mika", "3-4")
	require.NoError(t, err)
	require.NoError(t, f.childRepo.Save(context.Background(), c))
	return c
}

func (f *planJobFixture) seedActivities(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		id := shared.ActivityID("act-" + string(rune('a'+i)))
		a, err := catalog.NewActivity(id, "Activity "+string(id), "practical life", catalog.DifficultyBeginner, []shared.AgeGroup{"3-4"})
		require.NoError(t, err)
		a.SkillsAddressed = []shared.SkillID{shared.SkillID("skill-" + string(rune('a'+i)))}
		require.NoError(t, f.catalogRepo.Save(context.Background(), a))
	}
}

func TestGenerateWeeklyPlansJob_FillsEveryChildWithoutAPlan(t *testing.T) {
	f := newPlanJobFixture(t, 1)
	f.seedChild(t, "child1")
	f.seedActivities(t, 12)

	sug, err := suggestion.NewActivitySuggestion("sug1", "child1", "act-a", 9.0, []string{"never tried before"})
	require.NoError(t, err)
	require.NoError(t, f.suggestionRepo.Save(context.Background(), sug))

	require.NoError(t, f.job.RunForWeek(context.Background(), f.weekStart))

	p, err := f.planRepo.GetByChildAndWeek(context.Background(), "child1", f.weekStart)
	require.NoError(t, err)
	assert.Equal(t, "child1_2026-03-02", p.ID)
	assert.Equal(t, "batch", p.GeneratedBy)

	// Full default capacity: one per weekday, two per weekend day.
	assert.Equal(t, 9, p.EntryCount())

	// The suggestion opens the week on Monday afternoon and is accepted.
	monday := p.Days[plan.Monday]
	require.Len(t, monday, 1)
	assert.Equal(t, "sug1", monday[0].SuggestionID)
	assert.Equal(t, plan.SlotAfternoon, monday[0].Slot)

	got, err := f.suggestionRepo.GetByID(context.Background(), "sug1")
	require.NoError(t, err)
	assert.Equal(t, suggestion.StatusAccepted, got.Status)
	assert.Equal(t, p.ID, got.WeeklyPlanID)

	stats := f.job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.PlannedCount)
	assert.Equal(t, 9, stats.EntriesTotal)
}

func TestGenerateWeeklyPlansJob_SecondRunSkipsPlannedChildren(t *testing.T) {
	f := newPlanJobFixture(t, 1)
	f.seedChild(t, "child1")
	f.seedActivities(t, 12)

	require.NoError(t, f.job.RunForWeek(context.Background(), f.weekStart))
	require.NoError(t, f.job.RunForWeek(context.Background(), f.weekStart))

	stats := f.job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 0, stats.PlannedCount)
	assert.Equal(t, 1, stats.SkippedCount)
}

func TestGenerateWeeklyPlansJob_ExcludesRecentCompletionsFromFillers(t *testing.T) {
	f := newPlanJobFixture(t, 1)
	f.seedChild(t, "child1")
	f.seedActivities(t, 3)

	rec, err := progress.NewCompletedRecord("rec1", "child1", "act-a", time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	require.NoError(t, f.progressRepo.Save(context.Background(), rec))

	require.NoError(t, f.job.RunForWeek(context.Background(), f.weekStart))

	p, err := f.planRepo.GetByChildAndWeek(context.Background(), "child1", f.weekStart)
	require.NoError(t, err)
	assert.False(t, p.ContainsActivity("act-a"))
	assert.Equal(t, 2, p.EntryCount())
}

func TestGenerateWeeklyPlansJob_NoDuplicateActivityAcrossWeek(t *testing.T) {
	f := newPlanJobFixture(t, 7)
	f.seedChild(t, "child1")
	f.seedActivities(t, 20)

	require.NoError(t, f.job.RunForWeek(context.Background(), f.weekStart))

	p, err := f.planRepo.GetByChildAndWeek(context.Background(), "child1", f.weekStart)
	require.NoError(t, err)

	seen := make(map[shared.ActivityID]bool)
	for _, day := range plan.Weekdays() {
		for _, e := range p.Days[day] {
			assert.False(t, seen[e.ActivityID], "activity %s placed twice", e.ActivityID)
			seen[e.ActivityID] = true
		}
	}
}

func TestGenerateWeeklyPlansJob_FixedSeedIsDeterministic(t *testing.T) {
	build := func(seed int64) map[plan.Weekday][]plan.Entry {
		f := newPlanJobFixture(t, seed)
		f.seedChild(t, "child1")
		f.seedActivities(t, 15)
		require.NoError(t, f.job.RunForWeek(context.Background(), f.weekStart))
		p, err := f.planRepo.GetByChildAndWeek(context.Background(), "child1", f.weekStart)
		require.NoError(t, err)
		return p.Days
	}

	assert.Equal(t, build(42), build(42))
}

func TestGenerateWeeklyPlansJob_InactiveChildrenAreNotPlanned(t *testing.T) {
	f := newPlanJobFixture(t, 1)
	c := f.seedChild(t, "child1")
	c.Deactivate()
	require.NoError(t, f.childRepo.Save(context.Background(), c))
	f.seedActivities(t, 5)

	require.NoError(t, f.job.RunForWeek(context.Background(), f.weekStart))

	_, err := f.planRepo.GetByChildAndWeek(context.Background(), "child1", f.weekStart)
	assert.Error(t, err)

	stats := f.job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 0, stats.TotalChildren)
}
