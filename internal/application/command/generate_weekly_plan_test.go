package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlinghq/seedling-engine/internal/domain/catalog"
	"github.com/seedlinghq/seedling-engine/internal/domain/child"
	"github.com/seedlinghq/seedling-engine/internal/domain/plan"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/internal/domain/suggestion"
	"github.com/seedlinghq/seedling-engine/internal/infrastructure/persistence/memory"
)

type planFixture struct {
	childRepo      *memory.ChildRepository
	ownerRepo      *memory.OwnerRepository
	catalogRepo    *memory.CatalogRepository
	statusRepo     *memory.StatusRepository
	progressRepo   *memory.ProgressRepository
	suggestionRepo *memory.SuggestionRepository
	planRepo       *memory.PlanRepository
	handler        *GenerateWeeklyPlanHandler
	now            time.Time // Monday 2026-03-02
}

func newPlanFixture(t *testing.T) *planFixture {
	t.Helper()
	f := &planFixture{
		childRepo:      memory.NewChildRepository(),
		ownerRepo:      memory.NewOwnerRepository(),
		catalogRepo:    memory.NewCatalogRepository(),
		statusRepo:     memory.NewStatusRepository(),
		progressRepo:   memory.NewProgressRepository(),
		suggestionRepo: memory.NewSuggestionRepository(),
		planRepo:       memory.NewPlanRepository(),
		now:            time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	f.handler = NewGenerateWeeklyPlanHandler(
		f.childRepo, f.ownerRepo, f.catalogRepo, f.statusRepo,
		f.progressRepo, f.suggestionRepo, f.planRepo, nil,
	)
	return f
}

func (f *planFixture) seedChild(t *testing.T) *child.Child {
	t.Helper()
	c, err := child.NewChild("child1", "owner1", "Mika", "3-4")
	require.NoError(t, err)
	require.NoError(t, f.childRepo.Save(context.Background(), c))
	return c
}

func (f *planFixture) seedActivities(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		id := shared.ActivityID("act-" + string(rune('a'+i)))
		a, err := catalog.NewActivity(id, "Activity "+string(id), "practical life", catalog.DifficultyBeginner, []shared.AgeGroup{"3-4"})
		require.NoError(t, err)
		a.SkillsAddressed = []shared.SkillID{shared.SkillID("skill-" + string(rune('a'+i)))}
		require.NoError(t, f.catalogRepo.Save(context.Background(), a))
	}
}

func (f *planFixture) seedPending(t *testing.T, id string, activityID shared.ActivityID, priority float64) *suggestion.ActivitySuggestion {
	t.Helper()
	s, err := suggestion.NewActivitySuggestion(id, "child1", activityID, priority, []string{"never tried before"})
	require.NoError(t, err)
	require.NoError(t, f.suggestionRepo.Save(context.Background(), s))
	return s
}

func TestGenerateWeeklyPlan_PlacesSuggestionsThenFillers(t *testing.T) {
	f := newPlanFixture(t)
	f.seedChild(t)
	f.seedActivities(t, 12)
	f.seedPending(t, "sug1", "act-a", 12.0)
	f.seedPending(t, "sug2", "act-b", 9.0)
	ctx := context.Background()

	res, err := f.handler.Handle(ctx, GenerateWeeklyPlanCommand{ChildID: "child1", Now: f.now})
	require.NoError(t, err)

	assert.Equal(t, 2, res.SuggestionsPlaced)
	// Default capacities: 1 each weekday, 2 per weekend day = 9 total.
	assert.Equal(t, 7, res.FillersPlaced)
	assert.Equal(t, 9, res.Plan.EntryCount())
	assert.Equal(t, "child1_2026-03-02", res.Plan.ID)

	// Highest priority suggestion lands on Monday.
	monday := res.Plan.Days[plan.Monday]
	require.Len(t, monday, 1)
	assert.Equal(t, shared.ActivityID("act-a"), monday[0].ActivityID)
	assert.Equal(t, "sug1", monday[0].SuggestionID)

	// Placed suggestions are accepted and linked to the plan.
	s, err := f.suggestionRepo.GetByID(ctx, "sug1")
	require.NoError(t, err)
	assert.Equal(t, suggestion.StatusAccepted, s.Status)
	assert.Equal(t, res.Plan.ID, s.WeeklyPlanID)

	// Child's generation marker is touched.
	c, err := f.childRepo.GetByID(ctx, "child1")
	require.NoError(t, err)
	assert.NotNil(t, c.LastPlanGeneratedAt)
}

func TestGenerateWeeklyPlan_NoDuplicateActivityAcrossWeek(t *testing.T) {
	f := newPlanFixture(t)
	f.seedChild(t)
	f.seedActivities(t, 3)

	res, err := f.handler.Handle(context.Background(), GenerateWeeklyPlanCommand{ChildID: "child1", Now: f.now})
	require.NoError(t, err)

	// Only 3 distinct activities exist, so the plan stops at 3 entries
	// even though capacity allows 9.
	assert.Equal(t, 3, res.Plan.EntryCount())
	seen := map[shared.ActivityID]bool{}
	for _, day := range plan.Weekdays() {
		for _, e := range res.Plan.Days[day] {
			assert.False(t, seen[e.ActivityID], "activity %s placed twice", e.ActivityID)
			seen[e.ActivityID] = true
		}
	}
}

func TestGenerateWeeklyPlan_HonorsSchedulePreferences(t *testing.T) {
	f := newPlanFixture(t)
	f.seedChild(t)
	f.seedActivities(t, 12)
	owner := &child.Owner{
		ID:    "owner1",
		Email: "parent@example.com",
		Schedule: &child.SchedulePreferences{
			DaysPerWeek:      3,
			ActivitiesPerDay: 2,
		},
	}
	require.NoError(t, f.ownerRepo.Save(context.Background(), owner))

	res, err := f.handler.Handle(context.Background(), GenerateWeeklyPlanCommand{ChildID: "child1", Now: f.now})
	require.NoError(t, err)

	// 3 days x 2 activities; the remaining four days stay empty.
	assert.Equal(t, 6, res.Plan.EntryCount())
	assert.Len(t, res.Plan.Days[plan.Monday], 2)
	assert.Len(t, res.Plan.Days[plan.Tuesday], 2)
	assert.Len(t, res.Plan.Days[plan.Wednesday], 2)
	assert.Empty(t, res.Plan.Days[plan.Thursday])
	assert.Empty(t, res.Plan.Days[plan.Sunday])
}

func TestGenerateWeeklyPlan_RegenerationPreservesCompletedEntries(t *testing.T) {
	f := newPlanFixture(t)
	f.seedChild(t)
	f.seedActivities(t, 12)
	ctx := context.Background()

	first, err := f.handler.Handle(ctx, GenerateWeeklyPlanCommand{ChildID: "child1", Now: f.now})
	require.NoError(t, err)

	// Complete Monday's activity, then regenerate the same week.
	completedID := first.Plan.Days[plan.Monday][0].ActivityID
	changed := first.Plan.MarkActivityCompleted(completedID)
	require.Equal(t, 1, changed)
	require.NoError(t, f.planRepo.Save(ctx, first.Plan))

	second, err := f.handler.Handle(ctx, GenerateWeeklyPlanCommand{ChildID: "child1", Now: f.now.Add(48 * time.Hour)})
	require.NoError(t, err)

	assert.Equal(t, 1, second.PreservedEntries)
	monday := second.Plan.Days[plan.Monday]
	require.NotEmpty(t, monday)
	assert.Equal(t, completedID, monday[0].ActivityID)
	assert.Equal(t, plan.EntryStatusCompleted, monday[0].Status)
	assert.Equal(t, first.Plan.CreatedAt, second.Plan.CreatedAt)

	// The completed activity is not placed a second time.
	count := 0
	for _, day := range plan.Weekdays() {
		for _, e := range second.Plan.Days[day] {
			if e.ActivityID == completedID {
				count++
			}
		}
	}
	assert.Equal(t, 1, count)
}

func TestGenerateWeeklyPlan_AlignsArbitraryWeekOfToMonday(t *testing.T) {
	f := newPlanFixture(t)
	f.seedChild(t)
	f.seedActivities(t, 4)

	thursday := time.Date(2026, 3, 5, 17, 30, 0, 0, time.UTC)
	res, err := f.handler.Handle(context.Background(), GenerateWeeklyPlanCommand{ChildID: "child1", WeekOf: thursday, Now: f.now})
	require.NoError(t, err)

	assert.Equal(t, "child1_2026-03-02", res.Plan.ID)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), res.Plan.WeekStart)
}

func TestGenerateUpcomingPlans_BuildsTwoConsecutiveWeeks(t *testing.T) {
	f := newPlanFixture(t)
	f.seedChild(t)
	f.seedActivities(t, 12)

	wrapper := NewGenerateUpcomingPlansHandler(f.handler)
	res, err := wrapper.Handle(context.Background(), GenerateUpcomingPlansCommand{ChildID: "child1", Now: f.now})
	require.NoError(t, err)

	assert.Equal(t, "child1_2026-03-02", res.CurrentWeek.Plan.ID)
	assert.Equal(t, "child1_2026-03-09", res.NextWeek.Plan.ID)
}

// failingPlanRepo rejects every Save, simulating an unavailable store.
type failingPlanRepo struct {
	*memory.PlanRepository
}

func (r *failingPlanRepo) Save(ctx context.Context, p *plan.WeeklyPlan) error {
	return errors.New("storage unavailable")
}

func TestGenerateWeeklyPlan_FailedPlanSaveLeavesSuggestionsPending(t *testing.T) {
	f := newPlanFixture(t)
	f.seedChild(t)
	f.seedActivities(t, 3)
	f.seedPending(t, "sug1", "act-a", 12.0)
	ctx := context.Background()

	handler := NewGenerateWeeklyPlanHandler(
		f.childRepo, f.ownerRepo, f.catalogRepo, f.statusRepo,
		f.progressRepo, f.suggestionRepo, &failingPlanRepo{f.planRepo}, nil,
	)

	_, err := handler.Handle(ctx, GenerateWeeklyPlanCommand{ChildID: "child1", Now: f.now})
	require.Error(t, err)

	// The accept never lands without the plan write it points at.
	s, err := f.suggestionRepo.GetByID(ctx, "sug1")
	require.NoError(t, err)
	assert.Equal(t, suggestion.StatusPending, s.Status)
	assert.Empty(t, s.WeeklyPlanID)
}
