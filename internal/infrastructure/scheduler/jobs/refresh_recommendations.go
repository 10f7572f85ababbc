package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seedlinghq/seedling-engine/internal/application/command"
	"github.com/seedlinghq/seedling-engine/internal/domain/child"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH RECOMMENDATIONS JOB
// ══════════════════════════════════════════════════════════════════════════════

// RefreshRecommendationsJob re-scores the catalog for every active child
// overnight, keeping the suggestion registry aligned with yesterday's
// progress. The per-child work lives in the refresh command handler; the
// job adds iteration, concurrency and aggregate reporting.
type RefreshRecommendationsJob struct {
	childRepo child.Repository
	refresh   *command.RefreshSuggestionsHandler
	logger    *slog.Logger

	config RefreshRecommendationsConfig

	lastRunStats atomic.Value // *RefreshStats
}

// RefreshRecommendationsConfig contains configuration for the refresh job.
type RefreshRecommendationsConfig struct {
	// Concurrency is the number of children refreshed in parallel.
	Concurrency int

	// Timeout bounds the whole run.
	Timeout time.Duration
}

// DefaultRefreshRecommendationsConfig returns sensible defaults.
func DefaultRefreshRecommendationsConfig() RefreshRecommendationsConfig {
	return RefreshRecommendationsConfig{
		Concurrency: 4,
		Timeout:     10 * time.Minute,
	}
}

// RefreshStats contains statistics from one refresh run.
type RefreshStats struct {
	StartedAt      time.Time
	CompletedAt    time.Time
	Duration       time.Duration
	TotalChildren  int
	RefreshedCount int
	FailedCount    int
	Created        int
	Updated        int
	Evicted        int
}

// NewRefreshRecommendationsJob creates the refresh job.
func NewRefreshRecommendationsJob(
	childRepo child.Repository,
	refresh *command.RefreshSuggestionsHandler,
	logger *slog.Logger,
	config RefreshRecommendationsConfig,
) *RefreshRecommendationsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}

	return &RefreshRecommendationsJob{
		childRepo: childRepo,
		refresh:   refresh,
		logger:    logger,
		config:    config,
	}
}

// Name returns the job name.
func (j *RefreshRecommendationsJob) Name() string {
	return "refresh_recommendations"
}

// Description returns a human-readable description.
func (j *RefreshRecommendationsJob) Description() string {
	return "Re-scores the catalog and refreshes suggestions for every active child"
}

// Run executes the refresh job.
func (j *RefreshRecommendationsJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &RefreshStats{StartedAt: startedAt}

	j.logger.Info("starting refresh_recommendations job")

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	children, err := j.childRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("refresh_recommendations: failed to list children: %w", err)
	}
	stats.TotalChildren = len(children)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Concurrency)

	for _, c := range children {
		c := c
		g.Go(func() error {
			res, err := j.refresh.Handle(gctx, command.RefreshSuggestionsCommand{ChildID: c.ID})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.FailedCount++
				j.logger.Error("failed to refresh suggestions",
					"child_id", c.ID, "error", err)
				return nil
			}
			stats.RefreshedCount++
			stats.Created += res.Created
			stats.Updated += res.Updated
			stats.Evicted += res.Evicted
			return nil
		})
	}
	_ = g.Wait()

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("refresh_recommendations job completed",
		"duration", stats.Duration.String(),
		"total", stats.TotalChildren,
		"refreshed", stats.RefreshedCount,
		"failed", stats.FailedCount,
		"created", stats.Created,
		"updated", stats.Updated,
		"evicted", stats.Evicted,
	)

	if stats.FailedCount > 0 && stats.FailedCount == stats.TotalChildren {
		return fmt.Errorf("refresh_recommendations: all %d children failed", stats.FailedCount)
	}
	return nil
}

// LastRunStats returns statistics from the last run, nil before the
// first one.
func (j *RefreshRecommendationsJob) LastRunStats() *RefreshStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*RefreshStats)
}
