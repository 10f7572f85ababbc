// Package suggestion contains the recommendation registry: scored
// activity suggestions per child and the audit log of every scoring
// decision. At most one non-terminal suggestion exists per
// (child, activity) pair.
package suggestion

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

// Domain errors for the suggestion package.
var (
	ErrInvalidPriority = errors.New("suggestion: priority must be positive")
	ErrNotPending      = errors.New("suggestion: not in pending state")
	ErrTerminal        = errors.New("suggestion: already in a terminal state")
)

// StaleAfter is how long a pending suggestion stays live before the
// refresh pass evicts it.
const StaleAfter = 14 * 24 * time.Hour

// Status is the suggestion lifecycle state.
type Status string

const (
	// StatusPending means the suggestion is live and unplaced.
	StatusPending Status = "pending"
	// StatusAccepted means the suggestion was placed into a weekly plan
	// or explicitly accepted by the owner.
	StatusAccepted Status = "accepted"
	// StatusCompleted means the suggested activity was done.
	StatusCompleted Status = "completed"
	// StatusExpired means the refresh pass evicted a stale suggestion.
	StatusExpired Status = "expired"
)

// IsValid checks that the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusCompleted, StatusExpired:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the suggestion can no longer change state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusExpired
}

// ActivitySuggestion is one live recommendation for one child.
type ActivitySuggestion struct {
	ID         string
	ChildID    shared.ChildID
	ActivityID shared.ActivityID

	// Priority is the score the activity earned at refresh time.
	// Batch planning places suggestions by descending priority.
	Priority float64

	// Reason is the human-readable joined reason codes ("develops
	// emerging skill; matches interest: animals").
	Reason string

	// Status is the lifecycle state.
	Status Status

	// WeeklyPlanID links an accepted suggestion to the plan that placed
	// it. Empty while pending.
	WeeklyPlanID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewActivitySuggestion creates a pending suggestion with validation.
func NewActivitySuggestion(id string, childID shared.ChildID, activityID shared.ActivityID, priority float64, reasons []string) (*ActivitySuggestion, error) {
	if !childID.IsValid() {
		return nil, shared.ErrInvalidChildID
	}
	if !activityID.IsValid() {
		return nil, shared.ErrInvalidID
	}
	if priority <= 0 {
		return nil, ErrInvalidPriority
	}

	now := time.Now().UTC()
	return &ActivitySuggestion{
		ID:         id,
		ChildID:    childID,
		ActivityID: activityID,
		Priority:   priority,
		Reason:     JoinReasons(reasons),
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Refresh updates the priority and reason of a pending suggestion in
// place. The creation time is preserved so staleness still counts from
// the original recommendation.
func (s *ActivitySuggestion) Refresh(priority float64, reasons []string) error {
	if s.Status != StatusPending {
		return ErrNotPending
	}
	if priority <= 0 {
		return ErrInvalidPriority
	}
	s.Priority = priority
	s.Reason = JoinReasons(reasons)
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Accept moves a pending suggestion to accepted, linking it to the plan
// that placed it. planID may be empty for a manual acceptance outside
// any plan.
func (s *ActivitySuggestion) Accept(planID string) error {
	if s.Status.IsTerminal() {
		return ErrTerminal
	}
	if s.Status != StatusPending {
		return ErrNotPending
	}
	s.Status = StatusAccepted
	s.WeeklyPlanID = planID
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete moves an accepted or pending suggestion to completed.
func (s *ActivitySuggestion) Complete() error {
	if s.Status.IsTerminal() {
		return ErrTerminal
	}
	s.Status = StatusCompleted
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Expire evicts a stale pending suggestion.
func (s *ActivitySuggestion) Expire() error {
	if s.Status != StatusPending {
		return ErrNotPending
	}
	s.Status = StatusExpired
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// IsStale reports whether a pending suggestion is older than the
// eviction window at the given time.
func (s *ActivitySuggestion) IsStale(now time.Time) bool {
	return s.Status == StatusPending && now.Sub(s.CreatedAt) > StaleAfter
}

// String returns a compact representation for logging.
func (s *ActivitySuggestion) String() string {
	return fmt.Sprintf("Suggestion{Child: %s, Activity: %s, Priority: %.1f, Status: %s}",
		s.ChildID, s.ActivityID, s.Priority, s.Status)
}

// JoinReasons renders reason codes into the stored reason string.
func JoinReasons(reasons []string) string {
	return strings.Join(reasons, "; ")
}

// RecommendationLog is one audit entry: the score and reasons an
// activity earned during one refresh evaluation, and what became of it.
type RecommendationLog struct {
	ID         string
	ChildID    shared.ChildID
	ActivityID shared.ActivityID

	// Score is the raw score at evaluation time.
	Score float64

	// Reasons are the individual reason codes.
	Reasons []string

	// Outcome tracks what happened to the recommendation. Starts at
	// pending and is closed when the suggestion reaches a terminal or
	// accepted state.
	Outcome Status

	CreatedAt time.Time
	ClosedAt  *time.Time
}

// NewRecommendationLog creates an open audit entry.
func NewRecommendationLog(id string, childID shared.ChildID, activityID shared.ActivityID, score float64, reasons []string) *RecommendationLog {
	return &RecommendationLog{
		ID:         id,
		ChildID:    childID,
		ActivityID: activityID,
		Score:      score,
		Reasons:    reasons,
		Outcome:    StatusPending,
		CreatedAt:  time.Now().UTC(),
	}
}

// Close records the final outcome of this recommendation.
func (l *RecommendationLog) Close(outcome Status, at time.Time) {
	l.Outcome = outcome
	t := at.UTC()
	l.ClosedAt = &t
}
