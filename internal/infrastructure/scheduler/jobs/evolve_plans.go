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
// EVOLVE PLANS JOB
// ══════════════════════════════════════════════════════════════════════════════

// EvolvePlansJob sweeps active children every few hours and rebuilds the
// current and next week's plans for those that accumulated enough new
// progress since the last evolution. The threshold check and the rebuild
// itself live in the evolve command handler.
type EvolvePlansJob struct {
	childRepo child.Repository
	evolve    *command.EvolvePlansHandler
	logger    *slog.Logger

	config EvolvePlansConfig

	lastRunStats atomic.Value // *EvolveStats
}

// EvolvePlansConfig contains configuration for the evolution sweep.
type EvolvePlansConfig struct {
	// Concurrency is the number of children evaluated in parallel.
	Concurrency int

	// Timeout bounds the whole run.
	Timeout time.Duration
}

// DefaultEvolvePlansConfig returns sensible defaults.
func DefaultEvolvePlansConfig() EvolvePlansConfig {
	return EvolvePlansConfig{
		Concurrency: 4,
		Timeout:     10 * time.Minute,
	}
}

// EvolveStats contains statistics from one sweep.
type EvolveStats struct {
	StartedAt      time.Time
	CompletedAt    time.Time
	Duration       time.Duration
	TotalChildren  int
	EvolvedCount   int
	UnchangedCount int
	FailedCount    int
}

// NewEvolvePlansJob creates the evolution sweep job.
func NewEvolvePlansJob(
	childRepo child.Repository,
	evolve *command.EvolvePlansHandler,
	logger *slog.Logger,
	config EvolvePlansConfig,
) *EvolvePlansJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}

	return &EvolvePlansJob{
		childRepo: childRepo,
		evolve:    evolve,
		logger:    logger,
		config:    config,
	}
}

// Name returns the job name.
func (j *EvolvePlansJob) Name() string {
	return "evolve_plans"
}

// Description returns a human-readable description.
func (j *EvolvePlansJob) Description() string {
	return "Rebuilds plans for children with enough new progress since the last evolution"
}

// Run executes the evolution sweep.
func (j *EvolvePlansJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &EvolveStats{StartedAt: startedAt}

	j.logger.Info("starting evolve_plans job")

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	children, err := j.childRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("evolve_plans: failed to list children: %w", err)
	}
	stats.TotalChildren = len(children)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Concurrency)

	for _, c := range children {
		c := c
		g.Go(func() error {
			res, err := j.evolve.Handle(gctx, command.EvolvePlansCommand{ChildID: c.ID})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.FailedCount++
				j.logger.Error("failed to evolve plans",
					"child_id", c.ID, "error", err)
				return nil
			}
			if res.Evolved {
				stats.EvolvedCount++
				j.logger.Info("plans evolved",
					"child_id", c.ID, "new_completions", res.NewCompletions)
			} else {
				stats.UnchangedCount++
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("evolve_plans job completed",
		"duration", stats.Duration.String(),
		"total", stats.TotalChildren,
		"evolved", stats.EvolvedCount,
		"unchanged", stats.UnchangedCount,
		"failed", stats.FailedCount,
	)

	if stats.FailedCount > 0 && stats.FailedCount == stats.TotalChildren {
		return fmt.Errorf("evolve_plans: all %d children failed", stats.FailedCount)
	}
	return nil
}

// LastRunStats returns statistics from the last run, nil before the
// first one.
func (j *EvolvePlansJob) LastRunStats() *EvolveStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*EvolveStats)
}
