package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlinghq/seedling-engine/internal/domain/catalog"
	"github.com/seedlinghq/seedling-engine/internal/domain/child"
	"github.com/seedlinghq/seedling-engine/internal/domain/progress"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/internal/domain/skill"
	"github.com/seedlinghq/seedling-engine/internal/infrastructure/persistence/memory"
)

type analyticsJobFixture struct {
	ownerRepo     *memory.OwnerRepository
	childRepo     *memory.ChildRepository
	catalogRepo   *memory.CatalogRepository
	statusRepo    *memory.StatusRepository
	progressRepo  *memory.ProgressRepository
	analyticsRepo *memory.AnalyticsRepository
	job           *MonthlyAnalyticsJob
	runAt         time.Time // 2026-03-02, so the report covers February
}

func newAnalyticsJobFixture(t *testing.T) *analyticsJobFixture {
	t.Helper()
	f := &analyticsJobFixture{
		ownerRepo:     memory.NewOwnerRepository(),
		childRepo:     memory.NewChildRepository(),
		catalogRepo:   memory.NewCatalogRepository(),
		statusRepo:    memory.NewStatusRepository(),
		progressRepo:  memory.NewProgressRepository(),
		analyticsRepo: memory.NewAnalyticsRepository(),
		runAt:         time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC),
	}
	f.job = NewMonthlyAnalyticsJob(
		f.ownerRepo, f.childRepo, f.catalogRepo, f.statusRepo,
		f.progressRepo, f.analyticsRepo, nil,
		DefaultMonthlyAnalyticsConfig(),
	)
	return f
}

func (f *analyticsJobFixture) seedOwnerAndChild(t *testing.T, optOut bool) {
	t.Helper()
	o := &child.Owner{ID: "owner1", Email: "owner@example.com", DigestOptOut: optOut}
	require.NoError(t, f.ownerRepo.Save(context.Background(), o))
	c, err := child.NewChild("child1", "owner1", "Mika", "3-4")
	require.NoError(t, err)
	require.NoError(t, f.childRepo.Save(context.Background(), c))
}

func (f *analyticsJobFixture) seedActivity(t *testing.T, id shared.ActivityID, area string, minutes int) {
	t.Helper()
	a, err := catalog.NewActivity(id, "Activity "+string(id), area, catalog.DifficultyBeginner, []shared.AgeGroup{"3-4"})
	require.NoError(t, err)
	a.DurationMinutes = minutes
	require.NoError(t, f.catalogRepo.Save(context.Background(), a))
}

func (f *analyticsJobFixture) seedCompletion(t *testing.T, id string, activityID shared.ActivityID, at time.Time, minutes int) {
	t.Helper()
	rec, err := progress.NewCompletedRecord(id, "child1", activityID, at)
	require.NoError(t, err)
	rec.DurationMinutes = minutes
	require.NoError(t, f.progressRepo.Save(context.Background(), rec))
}

func TestMonthlyAnalyticsJob_AggregatesThePreviousMonth(t *testing.T) {
	f := newAnalyticsJobFixture(t)
	f.seedOwnerAndChild(t, false)
	f.seedActivity(t, "act-a", "practical life", 20)
	f.seedActivity(t, "act-b", "sensorial", 0) // falls back to the catalog default

	feb := func(day int) time.Time {
		return time.Date(2026, 2, day, 10, 0, 0, 0, time.UTC)
	}
	f.seedCompletion(t, "rec1", "act-a", feb(10), 0)  // activity duration: 20
	f.seedCompletion(t, "rec2", "act-a", feb(20), 25) // observed duration wins
	f.seedCompletion(t, "rec3", "act-b", feb(15), 0)  // default: 15

	// Outside the window in both directions.
	f.seedCompletion(t, "rec4", "act-a", time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC), 0)
	f.seedCompletion(t, "rec5", "act-b", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), 0)

	// One skill moved forward mid-February.
	st, err := skill.NewChildSkillStatus("st1", "child1", "skill-a", feb(12))
	require.NoError(t, err)
	require.NoError(t, f.statusRepo.SaveStatus(context.Background(), st))

	require.NoError(t, f.job.RunForMonth(context.Background(), f.runAt))

	report, err := f.analyticsRepo.GetByChildAndMonth(context.Background(), "child1", feb(1))
	require.NoError(t, err)
	assert.Equal(t, "child1_2026-02-01", report.ID)
	assert.Equal(t, shared.OwnerID("owner1"), report.OwnerID)
	assert.Equal(t, 3, report.CompletedCount)
	assert.Equal(t, 1, report.SkillsProgressed)
	assert.Equal(t, map[string]int{"practical life": 2, "sensorial": 1}, report.AreaBreakdown)
	assert.Equal(t, 60, report.TotalMinutes)
	assert.Equal(t, "practical life", report.TopArea())

	stats := f.job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.ReportsSaved)
}

func TestMonthlyAnalyticsJob_EmptyMonthStillProducesAReport(t *testing.T) {
	f := newAnalyticsJobFixture(t)
	f.seedOwnerAndChild(t, false)

	require.NoError(t, f.job.RunForMonth(context.Background(), f.runAt))

	report, err := f.analyticsRepo.GetByChildAndMonth(context.Background(), "child1", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, report.IsEmpty())
	assert.Equal(t, "", report.TopArea())
}

func TestMonthlyAnalyticsJob_SkipsOptedOutOwners(t *testing.T) {
	f := newAnalyticsJobFixture(t)
	f.seedOwnerAndChild(t, true)

	require.NoError(t, f.job.RunForMonth(context.Background(), f.runAt))

	_, err := f.analyticsRepo.GetByChildAndMonth(context.Background(), "child1", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)

	stats := f.job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.OptedOut)
	assert.Equal(t, 0, stats.ReportsSaved)
}
