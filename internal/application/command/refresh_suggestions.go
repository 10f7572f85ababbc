// Package command contains write operations (CQRS - Commands).
// Commands are responsible for changing the state of the system.
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/seedlinghq/seedling-engine/internal/application/scoring"
	"github.com/seedlinghq/seedling-engine/internal/domain/catalog"
	"github.com/seedlinghq/seedling-engine/internal/domain/child"
	"github.com/seedlinghq/seedling-engine/internal/domain/progress"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/internal/domain/skill"
	"github.com/seedlinghq/seedling-engine/internal/domain/suggestion"
	"github.com/seedlinghq/seedling-engine/pkg/batch"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH SUGGESTIONS COMMAND
// Re-scores the catalog for one child and upserts the suggestion registry:
// top candidates become or update pending suggestions, stale pending ones
// are evicted, and every evaluation is audit-logged.
// ══════════════════════════════════════════════════════════════════════════════

// MaxSuggestionsPerRefresh caps how many top candidates one refresh
// pass turns into suggestions.
const MaxSuggestionsPerRefresh = 10

// ScoringHistoryLookback is how many recent ledger entries feed the
// scorer's history digests.
const ScoringHistoryLookback = 100

// RefreshSuggestionsCommand contains the data needed to refresh one child.
type RefreshSuggestionsCommand struct {
	// ChildID is the profile to refresh.
	ChildID shared.ChildID

	// Now anchors scoring windows and staleness. Zero means wall clock.
	Now time.Time
}

// Validate validates the command.
func (c RefreshSuggestionsCommand) Validate() error {
	if !c.ChildID.IsValid() {
		return shared.ErrInvalidChildID
	}
	return nil
}

// RefreshSuggestionsResult summarizes one refresh pass.
type RefreshSuggestionsResult struct {
	ChildID shared.ChildID

	// Evaluated is how many candidates cleared the eligibility bar.
	Evaluated int

	// Created is how many new pending suggestions were written.
	Created int

	// Updated is how many existing pending suggestions were re-scored.
	Updated int

	// Evicted is how many stale pending suggestions were expired.
	Evicted int
}

// RefreshSuggestionsHandler handles the RefreshSuggestionsCommand.
type RefreshSuggestionsHandler struct {
	childRepo      child.Repository
	catalogRepo    catalog.Repository
	statusRepo     skill.StatusRepository
	progressRepo   progress.Repository
	suggestionRepo suggestion.Repository
	logRepo        suggestion.LogRepository
	eventPublisher shared.EventPublisher
}

// NewRefreshSuggestionsHandler creates a new RefreshSuggestionsHandler.
func NewRefreshSuggestionsHandler(
	childRepo child.Repository,
	catalogRepo catalog.Repository,
	statusRepo skill.StatusRepository,
	progressRepo progress.Repository,
	suggestionRepo suggestion.Repository,
	logRepo suggestion.LogRepository,
	eventPublisher shared.EventPublisher,
) *RefreshSuggestionsHandler {
	return &RefreshSuggestionsHandler{
		childRepo:      childRepo,
		catalogRepo:    catalogRepo,
		statusRepo:     statusRepo,
		progressRepo:   progressRepo,
		suggestionRepo: suggestionRepo,
		logRepo:        logRepo,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the refresh suggestions command.
func (h *RefreshSuggestionsHandler) Handle(ctx context.Context, cmd RefreshSuggestionsCommand) (*RefreshSuggestionsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("refresh_suggestions: validation failed: %w", err)
	}
	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	c, err := h.childRepo.GetByID(ctx, cmd.ChildID)
	if err != nil {
		return nil, fmt.Errorf("refresh_suggestions: failed to load child: %w", err)
	}
	if !c.Active {
		return nil, shared.ErrChildInactive
	}

	ranked, err := h.rankCandidates(ctx, c, now)
	if err != nil {
		return nil, err
	}
	if len(ranked) > MaxSuggestionsPerRefresh {
		ranked = ranked[:MaxSuggestionsPerRefresh]
	}

	result := &RefreshSuggestionsResult{ChildID: cmd.ChildID, Evaluated: len(ranked)}

	// Reads are done; everything below buffers into chunked writers
	// and commits in bounded batches at the end of the pass.
	suggestWriter := batch.NewWriter(h.suggestionRepo.SaveAll)
	logWriter := batch.NewWriter(h.logRepo.SaveAll)

	for _, cand := range ranked {
		outcome, err := h.upsertSuggestion(ctx, c, cand, suggestWriter, logWriter)
		if err != nil {
			return nil, fmt.Errorf("refresh_suggestions: failed to upsert suggestion for %s: %w", cand.Activity.ID, err)
		}
		switch outcome {
		case upsertCreated:
			result.Created++
		case upsertUpdated:
			result.Updated++
		}
	}

	evicted, err := h.evictStale(ctx, c.ID, now, suggestWriter)
	if err != nil {
		return nil, fmt.Errorf("refresh_suggestions: failed to evict stale suggestions: %w", err)
	}
	result.Evicted = evicted

	if err := suggestWriter.Flush(ctx); err != nil {
		return nil, fmt.Errorf("refresh_suggestions: failed to commit suggestions: %w", err)
	}
	// The audit log is best-effort: a failed chunk never fails the
	// refresh that already committed.
	_ = logWriter.Flush(ctx)

	if h.eventPublisher != nil {
		event := shared.NewSuggestionsRefreshedEvent(c.ID, result.Created, result.Updated, result.Evicted, result.Evaluated)
		_ = h.eventPublisher.Publish(event)
	}

	return result, nil
}

// rankCandidates loads the child's current state and scores the
// age-matched catalog.
func (h *RefreshSuggestionsHandler) rankCandidates(ctx context.Context, c *child.Child, now time.Time) ([]scoring.Candidate, error) {
	activities, err := h.catalogRepo.ListActiveByAgeGroup(ctx, c.AgeGroup)
	if err != nil {
		return nil, fmt.Errorf("refresh_suggestions: failed to load catalog: %w", err)
	}

	statuses, err := h.statusRepo.ListByChild(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("refresh_suggestions: failed to load skill statuses: %w", err)
	}

	records, err := h.progressRepo.ListRecentByChild(ctx, c.ID, ScoringHistoryLookback)
	if err != nil {
		return nil, fmt.Errorf("refresh_suggestions: failed to load history: %w", err)
	}

	return scoring.RankEligible(c, activities, statuses, progress.FoldHistory(records), now), nil
}

type upsertOutcome int

const (
	upsertSkipped upsertOutcome = iota
	upsertCreated
	upsertUpdated
)

// upsertSuggestion buffers one scored candidate into the registry,
// honoring the one-open-suggestion-per-pair invariant: a pending
// suggestion is re-scored in place, an accepted one is left alone, and
// a missing one is created. Every evaluation, including candidates
// whose suggestion is already accepted, gets an audit entry.
func (h *RefreshSuggestionsHandler) upsertSuggestion(ctx context.Context, c *child.Child, cand scoring.Candidate, suggestWriter *batch.Writer[*suggestion.ActivitySuggestion], logWriter *batch.Writer[*suggestion.RecommendationLog]) (upsertOutcome, error) {
	open, err := h.suggestionRepo.GetOpenByChildAndActivity(ctx, c.ID, cand.Activity.ID)
	switch {
	case err == nil && open.Status == suggestion.StatusPending:
		if err := open.Refresh(cand.Result.Score, cand.Result.Reasons); err != nil {
			return upsertSkipped, err
		}
		if err := suggestWriter.Add(ctx, open); err != nil {
			return upsertSkipped, err
		}
		h.auditEvaluation(ctx, logWriter, c.ID, cand)
		return upsertUpdated, nil

	case err == nil:
		// Accepted: already placed in a plan, nothing to update, but
		// the evaluation still lands in the audit log.
		h.auditEvaluation(ctx, logWriter, c.ID, cand)
		return upsertSkipped, nil

	case errors.Is(err, shared.ErrSuggestionNotFound) || shared.IsNotFound(err):
		s, err := suggestion.NewActivitySuggestion(uuid.NewString(), c.ID, cand.Activity.ID, cand.Result.Score, cand.Result.Reasons)
		if err != nil {
			return upsertSkipped, err
		}
		if err := suggestWriter.Add(ctx, s); err != nil {
			return upsertSkipped, err
		}
		h.auditEvaluation(ctx, logWriter, c.ID, cand)
		return upsertCreated, nil

	default:
		return upsertSkipped, err
	}
}

// auditEvaluation buffers a recommendation log entry. The log is
// best-effort: a failed write never fails the refresh.
func (h *RefreshSuggestionsHandler) auditEvaluation(ctx context.Context, logWriter *batch.Writer[*suggestion.RecommendationLog], childID shared.ChildID, cand scoring.Candidate) {
	l := suggestion.NewRecommendationLog(uuid.NewString(), childID, cand.Activity.ID, cand.Result.Score, cand.Result.Reasons)
	_ = logWriter.Add(ctx, l)
}

// evictStale expires pending suggestions older than the staleness
// window and closes their audit entries.
func (h *RefreshSuggestionsHandler) evictStale(ctx context.Context, childID shared.ChildID, now time.Time, suggestWriter *batch.Writer[*suggestion.ActivitySuggestion]) (int, error) {
	cutoff := now.Add(-suggestion.StaleAfter)
	stale, err := h.suggestionRepo.ListStalePending(ctx, childID, cutoff)
	if err != nil {
		return 0, err
	}

	evicted := 0
	for _, s := range stale {
		if err := s.Expire(); err != nil {
			continue
		}
		if err := suggestWriter.Add(ctx, s); err != nil {
			return evicted, err
		}
		_ = h.logRepo.CloseOpen(ctx, childID, s.ActivityID, suggestion.StatusExpired, now)
		evicted++
	}
	return evicted, nil
}
