// Package suggestion contains the recommendation registry.
package suggestion

import (
	"context"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

// Repository defines persistence for activity suggestions.
type Repository interface {
	// GetByID returns one suggestion.
	GetByID(ctx context.Context, id string) (*ActivitySuggestion, error)

	// GetOpenByChildAndActivity returns the single non-terminal
	// (pending or accepted) suggestion for the pair, or
	// shared.ErrSuggestionNotFound when none exists. This is the upsert
	// lookup that enforces the one-open-suggestion invariant.
	GetOpenByChildAndActivity(ctx context.Context, childID shared.ChildID, activityID shared.ActivityID) (*ActivitySuggestion, error)

	// ListPendingByChild returns the child's pending suggestions,
	// highest priority first, up to limit. limit <= 0 means all.
	ListPendingByChild(ctx context.Context, childID shared.ChildID, limit int) ([]*ActivitySuggestion, error)

	// ListStalePending returns pending suggestions for the child
	// created before the cutoff. The refresh pass expires these.
	ListStalePending(ctx context.Context, childID shared.ChildID, cutoff time.Time) ([]*ActivitySuggestion, error)

	// Save persists a suggestion (create or update).
	Save(ctx context.Context, s *ActivitySuggestion) error

	// SaveAll persists one chunk of suggestions in a single round
	// trip. The refresh pass commits its buffered writes through this.
	SaveAll(ctx context.Context, suggestions []*ActivitySuggestion) error
}

// LogRepository defines persistence for the recommendation audit log.
type LogRepository interface {
	// Save appends an audit entry.
	Save(ctx context.Context, l *RecommendationLog) error

	// SaveAll appends one chunk of audit entries in a single round trip.
	SaveAll(ctx context.Context, logs []*RecommendationLog) error

	// CloseOpen closes the most recent open (outcome pending) entry for
	// the pair with the given outcome. A missing open entry is not an
	// error; the log is best-effort audit data.
	CloseOpen(ctx context.Context, childID shared.ChildID, activityID shared.ActivityID, outcome Status, at time.Time) error

	// ListByChild returns the child's audit entries, newest first.
	ListByChild(ctx context.Context, childID shared.ChildID, limit int) ([]*RecommendationLog, error)
}
