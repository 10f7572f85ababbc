// Package jobs contains the scheduled jobs of the recommendation engine:
// the Sunday weekly-plan batch, the nightly suggestion refresh, the plan
// evolution sweep and the monthly analytics digest. Each job is a
// self-contained unit with its own configuration and concurrency,
// registered on the scheduler by the worker.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seedlinghq/seedling-engine/internal/application/scoring"
	"github.com/seedlinghq/seedling-engine/internal/domain/catalog"
	"github.com/seedlinghq/seedling-engine/internal/domain/child"
	"github.com/seedlinghq/seedling-engine/internal/domain/plan"
	"github.com/seedlinghq/seedling-engine/internal/domain/progress"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/internal/domain/skill"
	"github.com/seedlinghq/seedling-engine/internal/domain/suggestion"
	"github.com/seedlinghq/seedling-engine/pkg/batch"
	"github.com/seedlinghq/seedling-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GENERATE WEEKLY PLANS JOB
// ══════════════════════════════════════════════════════════════════════════════

// GenerateWeeklyPlansJob builds next week's plan for every active child
// that does not have one yet. It runs Sunday evening, ahead of the Monday
// week start.
//
// Unlike the on-demand path, the batch keeps plans varied: after pending
// suggestions are distributed one per day, the remaining capacity is
// filled from a shuffled pool of eligible activities rather than the
// top-scored ones, so two children with identical histories do not end up
// with identical weeks.
type GenerateWeeklyPlansJob struct {
	childRepo      child.Repository
	catalogRepo    catalog.Repository
	statusRepo     skill.StatusRepository
	progressRepo   progress.Repository
	suggestionRepo suggestion.Repository
	planRepo       plan.Repository
	eventPublisher shared.EventPublisher
	logger         *slog.Logger

	config GenerateWeeklyPlansConfig

	// rng drives filler shuffling. Guarded by rngMu because children are
	// planned concurrently; tests inject a fixed seed.
	rng   *rand.Rand
	rngMu sync.Mutex

	lastRunStats atomic.Value // *PlanBatchStats
}

// GenerateWeeklyPlansConfig contains configuration for the plan batch.
type GenerateWeeklyPlansConfig struct {
	// Concurrency is the number of children planned in parallel.
	Concurrency int

	// BatchLimit caps operations per commit chunk.
	BatchLimit int

	// SuggestionsPerWeek is the maximum number of pending suggestions
	// folded into one weekly plan.
	SuggestionsPerWeek int

	// FillerLookback is how many recent ledger entries exclude an
	// activity from the filler pool.
	FillerLookback int

	// Timeout bounds the whole run.
	Timeout time.Duration
}

// DefaultGenerateWeeklyPlansConfig returns sensible defaults.
func DefaultGenerateWeeklyPlansConfig() GenerateWeeklyPlansConfig {
	return GenerateWeeklyPlansConfig{
		Concurrency:        4,
		BatchLimit:         batch.DefaultLimit,
		SuggestionsPerWeek: 7,
		FillerLookback:     20,
		Timeout:            10 * time.Minute,
	}
}

// PlanBatchStats contains statistics from one plan batch run.
type PlanBatchStats struct {
	StartedAt     time.Time
	CompletedAt   time.Time
	Duration      time.Duration
	TotalChildren int
	PlannedCount  int
	SkippedCount  int
	FailedCount   int
	EntriesTotal  int
}

// NewGenerateWeeklyPlansJob creates the plan batch job.
func NewGenerateWeeklyPlansJob(
	childRepo child.Repository,
	catalogRepo catalog.Repository,
	statusRepo skill.StatusRepository,
	progressRepo progress.Repository,
	suggestionRepo suggestion.Repository,
	planRepo plan.Repository,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
	rng *rand.Rand,
	config GenerateWeeklyPlansConfig,
) *GenerateWeeklyPlansJob {
	if logger == nil {
		logger = slog.Default()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.SuggestionsPerWeek <= 0 {
		config.SuggestionsPerWeek = 7
	}
	if config.FillerLookback <= 0 {
		config.FillerLookback = 20
	}

	return &GenerateWeeklyPlansJob{
		childRepo:      childRepo,
		catalogRepo:    catalogRepo,
		statusRepo:     statusRepo,
		progressRepo:   progressRepo,
		suggestionRepo: suggestionRepo,
		planRepo:       planRepo,
		eventPublisher: eventPublisher,
		logger:         logger,
		rng:            rng,
		config:         config,
	}
}

// Name returns the job name.
func (j *GenerateWeeklyPlansJob) Name() string {
	return "generate_weekly_plans"
}

// Description returns a human-readable description.
func (j *GenerateWeeklyPlansJob) Description() string {
	return "Builds next week's plan for every active child without one"
}

// Run executes the plan batch for the upcoming week.
func (j *GenerateWeeklyPlansJob) Run(ctx context.Context) error {
	return j.RunForWeek(ctx, timeutil.NextWeekStart(time.Now().UTC()))
}

// RunForWeek executes the batch for an explicit week. The time is aligned
// to its Monday. The CLI uses this to backfill a specific week.
func (j *GenerateWeeklyPlansJob) RunForWeek(ctx context.Context, weekOf time.Time) error {
	startedAt := time.Now()
	weekStart := timeutil.StartOfWeek(weekOf.UTC())
	stats := &PlanBatchStats{StartedAt: startedAt}

	j.logger.Info("starting generate_weekly_plans job",
		"week_start", timeutil.FormatDate(weekStart))

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	children, err := j.childRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("generate_weekly_plans: failed to list children: %w", err)
	}
	stats.TotalChildren = len(children)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Concurrency)

	for _, c := range children {
		c := c
		g.Go(func() error {
			entries, err := j.planChild(gctx, c, weekStart)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				// One broken child must not starve the rest of the batch.
				stats.FailedCount++
				j.logger.Error("failed to plan child",
					"child_id", c.ID, "error", err)
			case entries < 0:
				stats.SkippedCount++
			default:
				stats.PlannedCount++
				stats.EntriesTotal += entries
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	j.logger.Info("generate_weekly_plans job completed",
		"duration", stats.Duration.String(),
		"total", stats.TotalChildren,
		"planned", stats.PlannedCount,
		"skipped", stats.SkippedCount,
		"failed", stats.FailedCount,
		"entries", stats.EntriesTotal,
	)

	if stats.FailedCount > 0 && stats.FailedCount == stats.TotalChildren {
		return fmt.Errorf("generate_weekly_plans: all %d children failed", stats.FailedCount)
	}
	return nil
}

// planChild builds one child's plan. Returns -1 when the child already
// has a plan for the week and was skipped.
func (j *GenerateWeeklyPlansJob) planChild(ctx context.Context, c *child.Child, weekStart time.Time) (int, error) {
	exists, err := j.planRepo.ExistsForWeek(ctx, c.ID, weekStart)
	if err != nil {
		return 0, fmt.Errorf("failed to check existing plan: %w", err)
	}
	if exists {
		return -1, nil
	}

	p, err := plan.NewWeeklyPlan(c.ID, weekStart, "batch")
	if err != nil {
		return 0, err
	}

	// All reads complete before the first write.
	pending, err := j.suggestionRepo.ListPendingByChild(ctx, c.ID, j.config.SuggestionsPerWeek)
	if err != nil {
		return 0, fmt.Errorf("failed to load suggestions: %w", err)
	}
	fillers, err := j.fillerPool(ctx, c)
	if err != nil {
		return 0, err
	}

	accepted := j.placeSuggestions(p, pending)
	j.placeFillers(p, fillers)

	// Plan save and suggestion accepts commit through one chunked writer,
	// so a partial failure never leaves accepted suggestions pointing at
	// a plan that was not written.
	writer := batch.NewWriter(func(ctx context.Context, ops []func(context.Context) error) error {
		for _, op := range ops {
			if err := op(ctx); err != nil {
				return err
			}
		}
		return nil
	}, batch.WithLimit[func(context.Context) error](j.config.BatchLimit), batch.WithLogger[func(context.Context) error](j.logger))

	if err := writer.Add(ctx, func(ctx context.Context) error {
		return j.planRepo.Save(ctx, p)
	}); err != nil {
		return 0, err
	}
	for _, s := range accepted {
		s := s
		if err := writer.Add(ctx, func(ctx context.Context) error {
			return j.suggestionRepo.Save(ctx, s)
		}); err != nil {
			return 0, err
		}
	}
	if err := writer.Add(ctx, func(ctx context.Context) error {
		return j.childRepo.TouchPlanGeneratedAt(ctx, c.ID)
	}); err != nil {
		return 0, err
	}
	if err := writer.Flush(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit plan: %w", err)
	}

	if j.eventPublisher != nil {
		event := shared.NewPlanGeneratedEvent(p.ID, c.ID, timeutil.FormatDate(weekStart), p.EntryCount(), "batch")
		_ = j.eventPublisher.Publish(event)
	}

	return p.EntryCount(), nil
}

// placeSuggestions distributes pending suggestions one per day, Monday
// first, highest priority first. Placed suggestions are accepted in
// memory; the caller commits them.
func (j *GenerateWeeklyPlansJob) placeSuggestions(p *plan.WeeklyPlan, pending []*suggestion.ActivitySuggestion) []*suggestion.ActivitySuggestion {
	var accepted []*suggestion.ActivitySuggestion
	next := 0
	for _, day := range plan.Weekdays() {
		if next >= len(pending) {
			break
		}
		s := pending[next]
		next++
		if p.ContainsActivity(s.ActivityID) {
			continue
		}
		entry := plan.Entry{
			ActivityID:   s.ActivityID,
			SuggestionID: s.ID,
			Slot:         plan.SlotForSuggestion(day),
			Status:       plan.EntryStatusSuggested,
		}
		if err := p.AddEntry(day, entry, day.DefaultCapacity()); err != nil {
			continue
		}
		if err := s.Accept(p.ID); err != nil {
			continue
		}
		accepted = append(accepted, s)
	}
	return accepted
}

// placeFillers tops up every day to its default capacity from the
// shuffled pool.
func (j *GenerateWeeklyPlansJob) placeFillers(p *plan.WeeklyPlan, pool []*catalog.Activity) {
	next := 0
	for _, day := range plan.Weekdays() {
		for p.DayCount(day) < day.DefaultCapacity() && next < len(pool) {
			a := pool[next]
			next++
			if p.ContainsActivity(a.ID) {
				continue
			}
			entry := plan.Entry{
				ActivityID: a.ID,
				Slot:       plan.SlotForFiller(day, p.DayCount(day)),
				Status:     plan.EntryStatusSuggested,
			}
			if err := p.AddEntry(day, entry, day.DefaultCapacity()); err != nil {
				continue
			}
		}
	}
}

// fillerPool returns the shuffled set of eligible activities for the
// child: active, age-matched, score-eligible and absent from the recent
// ledger lookback.
func (j *GenerateWeeklyPlansJob) fillerPool(ctx context.Context, c *child.Child) ([]*catalog.Activity, error) {
	activities, err := j.catalogRepo.ListActiveByAgeGroup(ctx, c.AgeGroup)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	statuses, err := j.statusRepo.ListByChild(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load skill statuses: %w", err)
	}
	records, err := j.progressRepo.ListRecentByChild(ctx, c.ID, j.config.FillerLookback)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	recent := make(map[shared.ActivityID]bool, len(records))
	for _, r := range records {
		recent[r.ActivityID] = true
	}

	now := time.Now().UTC()
	ranked := scoring.RankEligible(c, activities, statuses, progress.FoldHistory(records), now)

	pool := make([]*catalog.Activity, 0, len(ranked))
	for _, cand := range ranked {
		if recent[cand.Activity.ID] {
			continue
		}
		pool = append(pool, cand.Activity)
	}

	j.rngMu.Lock()
	j.rng.Shuffle(len(pool), func(a, b int) { pool[a], pool[b] = pool[b], pool[a] })
	j.rngMu.Unlock()

	return pool, nil
}

// LastRunStats returns statistics from the last run, nil before the
// first one.
func (j *GenerateWeeklyPlansJob) LastRunStats() *PlanBatchStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*PlanBatchStats)
}
