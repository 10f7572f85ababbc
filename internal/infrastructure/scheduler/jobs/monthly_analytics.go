package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seedlinghq/seedling-engine/internal/domain/analytics"
	"github.com/seedlinghq/seedling-engine/internal/domain/catalog"
	"github.com/seedlinghq/seedling-engine/internal/domain/child"
	"github.com/seedlinghq/seedling-engine/internal/domain/progress"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/internal/domain/skill"
	"github.com/seedlinghq/seedling-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MONTHLY ANALYTICS JOB
// ══════════════════════════════════════════════════════════════════════════════

// MonthlyAnalyticsJob builds one report per child covering the previous
// calendar month: completed activities, skills progressed, per-area
// breakdown and estimated time spent. It runs early on the second day of
// the month, after late completion logging has settled. Owners who opted
// out of digests are skipped.
type MonthlyAnalyticsJob struct {
	ownerRepo     child.OwnerRepository
	childRepo     child.Repository
	catalogRepo   catalog.Repository
	statusRepo    skill.StatusRepository
	progressRepo  progress.Repository
	analyticsRepo analytics.Repository
	logger        *slog.Logger

	config MonthlyAnalyticsConfig

	lastRunStats atomic.Value // *AnalyticsStats
}

// MonthlyAnalyticsConfig contains configuration for the analytics job.
type MonthlyAnalyticsConfig struct {
	// Concurrency is the number of owners processed in parallel.
	Concurrency int

	// Timeout bounds the whole run.
	Timeout time.Duration
}

// DefaultMonthlyAnalyticsConfig returns sensible defaults.
func DefaultMonthlyAnalyticsConfig() MonthlyAnalyticsConfig {
	return MonthlyAnalyticsConfig{
		Concurrency: 4,
		Timeout:     15 * time.Minute,
	}
}

// AnalyticsStats contains statistics from one analytics run.
type AnalyticsStats struct {
	StartedAt    time.Time
	CompletedAt  time.Time
	Duration     time.Duration
	TotalOwners  int
	OptedOut     int
	ReportsSaved int
	FailedCount  int
}

// NewMonthlyAnalyticsJob creates the analytics job.
func NewMonthlyAnalyticsJob(
	ownerRepo child.OwnerRepository,
	childRepo child.Repository,
	catalogRepo catalog.Repository,
	statusRepo skill.StatusRepository,
	progressRepo progress.Repository,
	analyticsRepo analytics.Repository,
	logger *slog.Logger,
	config MonthlyAnalyticsConfig,
) *MonthlyAnalyticsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}

	return &MonthlyAnalyticsJob{
		ownerRepo:     ownerRepo,
		childRepo:     childRepo,
		catalogRepo:   catalogRepo,
		statusRepo:    statusRepo,
		progressRepo:  progressRepo,
		analyticsRepo: analyticsRepo,
		logger:        logger,
		config:        config,
	}
}

// Name returns the job name.
func (j *MonthlyAnalyticsJob) Name() string {
	return "monthly_analytics"
}

// Description returns a human-readable description.
func (j *MonthlyAnalyticsJob) Description() string {
	return "Builds per-child reports covering the previous calendar month"
}

// Run executes the analytics job for the previous month.
func (j *MonthlyAnalyticsJob) Run(ctx context.Context) error {
	return j.RunForMonth(ctx, time.Now().UTC())
}

// RunForMonth builds reports for the month before the one containing t.
// The CLI uses this to rebuild historical months.
func (j *MonthlyAnalyticsJob) RunForMonth(ctx context.Context, t time.Time) error {
	startedAt := time.Now()
	from, to := timeutil.PreviousMonthRange(t.UTC())
	stats := &AnalyticsStats{StartedAt: startedAt}

	j.logger.Info("starting monthly_analytics job",
		"month", timeutil.FormatDate(from))

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	owners, err := j.ownerRepo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("monthly_analytics: failed to list owners: %w", err)
	}
	stats.TotalOwners = len(owners)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Concurrency)

	for _, o := range owners {
		if o.DigestOptOut {
			stats.OptedOut++
			continue
		}
		o := o
		g.Go(func() error {
			saved, err := j.reportOwner(gctx, o, from, to)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.FailedCount++
				j.logger.Error("failed to build owner reports",
					"owner_id", o.ID, "error", err)
				return nil
			}
			stats.ReportsSaved += saved
			return nil
		})
	}
	_ = g.Wait()

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("monthly_analytics job completed",
		"duration", stats.Duration.String(),
		"owners", stats.TotalOwners,
		"opted_out", stats.OptedOut,
		"reports", stats.ReportsSaved,
		"failed", stats.FailedCount,
	)

	return nil
}

// reportOwner builds and saves one report per child of the owner.
func (j *MonthlyAnalyticsJob) reportOwner(ctx context.Context, o *child.Owner, from, to time.Time) (int, error) {
	children, err := j.childRepo.ListByOwner(ctx, o.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list children: %w", err)
	}

	saved := 0
	for _, c := range children {
		report, err := j.buildReport(ctx, o.ID, c, from, to)
		if err != nil {
			j.logger.Error("failed to build report",
				"child_id", c.ID, "error", err)
			continue
		}
		if err := j.analyticsRepo.Save(ctx, report); err != nil {
			j.logger.Error("failed to save report",
				"child_id", c.ID, "error", err)
			continue
		}
		saved++
	}
	return saved, nil
}

// buildReport aggregates one child's month.
func (j *MonthlyAnalyticsJob) buildReport(ctx context.Context, ownerID shared.OwnerID, c *child.Child, from, to time.Time) (*analytics.MonthlyReport, error) {
	records, err := j.progressRepo.ListCompletedInRange(ctx, c.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load completions: %w", err)
	}
	advanced, err := j.statusRepo.CountAdvancedInRange(ctx, c.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to count skill advances: %w", err)
	}

	ids := make([]shared.ActivityID, 0, len(records))
	seen := make(map[shared.ActivityID]bool, len(records))
	for _, r := range records {
		if !seen[r.ActivityID] {
			seen[r.ActivityID] = true
			ids = append(ids, r.ActivityID)
		}
	}
	activities, err := j.catalogRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load activities: %w", err)
	}
	byID := make(map[shared.ActivityID]*catalog.Activity, len(activities))
	for _, a := range activities {
		byID[a.ID] = a
	}

	areas := make(map[string]int)
	minutes := 0
	for _, r := range records {
		a := byID[r.ActivityID]
		switch {
		case r.DurationMinutes > 0:
			minutes += r.DurationMinutes
		case a != nil:
			minutes += a.Duration()
		default:
			// Activity was removed from the catalog since completion.
			minutes += catalog.DefaultDurationMinutes
		}
		if a != nil {
			areas[a.Area]++
		}
	}

	return &analytics.MonthlyReport{
		ID:               analytics.ReportID(c.ID, from),
		OwnerID:          ownerID,
		ChildID:          c.ID,
		Month:            from,
		CompletedCount:   len(records),
		SkillsProgressed: advanced,
		AreaBreakdown:    areas,
		TotalMinutes:     minutes,
		GeneratedAt:      time.Now().UTC(),
	}, nil
}

// LastRunStats returns statistics from the last run, nil before the
// first one.
func (j *MonthlyAnalyticsJob) LastRunStats() *AnalyticsStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*AnalyticsStats)
}
