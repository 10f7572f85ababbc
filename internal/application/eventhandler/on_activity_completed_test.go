package eventhandler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlinghq/seedling-engine/internal/domain/plan"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/internal/domain/skill"
	"github.com/seedlinghq/seedling-engine/internal/domain/suggestion"
	"github.com/seedlinghq/seedling-engine/internal/infrastructure/persistence/memory"
)

type completedFixture struct {
	statusRepo     *memory.StatusRepository
	planRepo       *memory.PlanRepository
	suggestionRepo *memory.SuggestionRepository
	logRepo        *memory.SuggestionLogRepository
	processed      *memory.ProcessedEventStore
	publisher      *capturingPublisher
	handler        *OnActivityCompletedHandler
	completedAt    time.Time // Wednesday 2026-03-04
}

type capturingPublisher struct {
	events []shared.Event
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

func newCompletedFixture(t *testing.T) *completedFixture {
	t.Helper()
	f := &completedFixture{
		statusRepo:     memory.NewStatusRepository(),
		planRepo:       memory.NewPlanRepository(),
		suggestionRepo: memory.NewSuggestionRepository(),
		logRepo:        memory.NewSuggestionLogRepository(),
		processed:      memory.NewProcessedEventStore(),
		publisher:      &capturingPublisher{},
		completedAt:    time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC),
	}
	f.handler = NewOnActivityCompletedHandler(
		f.statusRepo, f.planRepo, f.suggestionRepo, f.logRepo,
		f.processed, f.publisher, nil, DefaultActivityCompletedConfig(),
	)
	return f
}

func (f *completedFixture) event(skills ...shared.SkillID) shared.ActivityCompletedEvent {
	return shared.NewActivityCompletedEvent("rec1", "child1", "act1", f.completedAt, skills).
		WithObservations(shared.LevelHigh, shared.LevelMedium)
}

func TestOnActivityCompleted_TracksNewSkillAtEmerging(t *testing.T) {
	f := newCompletedFixture(t)
	ctx := context.Background()

	require.NoError(t, f.handler.Handle(f.event("s1")))

	status, err := f.statusRepo.GetStatus(ctx, "child1", "s1")
	require.NoError(t, err)
	assert.Equal(t, skill.StatusEmerging, status.Status)
	assert.Equal(t, 1, status.Demonstrations)
	assert.Equal(t, f.completedAt, status.LastAssessedAt)

	// First sighting announces not_started -> emerging.
	require.Len(t, f.publisher.events, 1)
	advanced, ok := f.publisher.events[0].(shared.SkillAdvancedEvent)
	require.True(t, ok)
	assert.Equal(t, string(skill.StatusNotStarted), advanced.FromStatus)
	assert.Equal(t, string(skill.StatusEmerging), advanced.ToStatus)
}

func TestOnActivityCompleted_MasteryRequiresThreshold(t *testing.T) {
	f := newCompletedFixture(t)
	ctx := context.Background()

	// Demonstration 1 creates at emerging, 2 advances to developing.
	require.NoError(t, f.handler.Handle(f.event("s1")))
	second := f.event("s1")
	second.CompletedAt = f.completedAt.Add(24 * time.Hour)
	require.NoError(t, f.handler.Handle(second))

	status, err := f.statusRepo.GetStatus(ctx, "child1", "s1")
	require.NoError(t, err)
	assert.Equal(t, skill.StatusDeveloping, status.Status)
	assert.Equal(t, 2, status.Demonstrations)

	// Demonstration 3 crosses the mastery threshold.
	third := f.event("s1")
	third.CompletedAt = f.completedAt.Add(48 * time.Hour)
	require.NoError(t, f.handler.Handle(third))

	status, err = f.statusRepo.GetStatus(ctx, "child1", "s1")
	require.NoError(t, err)
	assert.Equal(t, skill.StatusMastered, status.Status)
	assert.Equal(t, 3, status.Demonstrations)
}

func TestOnActivityCompleted_DuplicateDeliveryIsNoOp(t *testing.T) {
	f := newCompletedFixture(t)
	ctx := context.Background()

	event := f.event("s1")
	require.NoError(t, f.handler.Handle(event))
	require.NoError(t, f.handler.Handle(event))

	// The second delivery changed nothing: still one demonstration.
	status, err := f.statusRepo.GetStatus(ctx, "child1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, status.Demonstrations)
	assert.Len(t, f.publisher.events, 1)
}

func TestOnActivityCompleted_ClosesAllMatchingPlanEntries(t *testing.T) {
	f := newCompletedFixture(t)
	ctx := context.Background()

	weekStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	p, err := plan.NewWeeklyPlan("child1", weekStart, "weekly_batch")
	require.NoError(t, err)
	require.NoError(t, p.AddEntry(plan.Monday, plan.Entry{ActivityID: "act1", Slot: plan.SlotAfternoon, Status: plan.EntryStatusSuggested}, 1))
	require.NoError(t, p.AddEntry(plan.Tuesday, plan.Entry{ActivityID: "act2", Slot: plan.SlotAfternoon, Status: plan.EntryStatusSuggested}, 1))
	require.NoError(t, f.planRepo.Save(ctx, p))

	require.NoError(t, f.handler.Handle(f.event()))

	saved, err := f.planRepo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.EntryStatusCompleted, saved.Days[plan.Monday][0].Status)
	assert.Equal(t, plan.EntryStatusSuggested, saved.Days[plan.Tuesday][0].Status)
}

func TestOnActivityCompleted_MissingPlanTolerated(t *testing.T) {
	f := newCompletedFixture(t)

	// No plan for the completion week; the feedback loop still runs.
	require.NoError(t, f.handler.Handle(f.event("s1")))

	status, err := f.statusRepo.GetStatus(context.Background(), "child1", "s1")
	require.NoError(t, err)
	assert.Equal(t, skill.StatusEmerging, status.Status)
}

func TestOnActivityCompleted_CompletesOpenSuggestion(t *testing.T) {
	f := newCompletedFixture(t)
	ctx := context.Background()

	s, err := suggestion.NewActivitySuggestion("sug1", "child1", "act1", 9.0, []string{"never tried before"})
	require.NoError(t, err)
	require.NoError(t, f.suggestionRepo.Save(ctx, s))
	require.NoError(t, f.logRepo.Save(ctx, suggestion.NewRecommendationLog("log1", "child1", "act1", 9.0, []string{"never tried before"})))

	require.NoError(t, f.handler.Handle(f.event()))

	got, err := f.suggestionRepo.GetByID(ctx, "sug1")
	require.NoError(t, err)
	assert.Equal(t, suggestion.StatusCompleted, got.Status)

	logs, err := f.logRepo.ListByChild(ctx, "child1", 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, suggestion.StatusCompleted, logs[0].Outcome)
	require.NotNil(t, logs[0].ClosedAt)
	assert.Equal(t, f.completedAt, *logs[0].ClosedAt)
}

func TestOnActivityCompleted_IgnoresOtherEventTypes(t *testing.T) {
	f := newCompletedFixture(t)

	other := shared.NewPlanGeneratedEvent("plan1", "child1", "2026-03-02", 5, "weekly_batch")
	assert.NoError(t, f.handler.Handle(other))
	assert.Empty(t, f.publisher.events)
}
