// Package progress contains the history ledger: the append-mostly
// record of what each child actually did. Scoring, plan closure and
// analytics are all driven from this ledger.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

// Domain errors for the progress package.
var (
	ErrInvalidRecordStatus = errors.New("progress: invalid record status")
	ErrMissingCompletedAt  = errors.New("progress: completed record requires a completion time")
)

// RecordStatus is the outcome of one logged activity attempt.
type RecordStatus string

const (
	// RecordStatusCompleted means the child finished the activity.
	// Only completed records feed skill progression and plan closure.
	RecordStatusCompleted RecordStatus = "completed"
	// RecordStatusSkipped means the activity was offered but declined.
	RecordStatusSkipped RecordStatus = "skipped"
	// RecordStatusInProgress means the attempt was started, not finished.
	RecordStatusInProgress RecordStatus = "in_progress"
)

// IsValid checks that the status is a known value.
func (s RecordStatus) IsValid() bool {
	switch s {
	case RecordStatusCompleted, RecordStatusSkipped, RecordStatusInProgress:
		return true
	default:
		return false
	}
}

// Record is one entry in the history ledger.
type Record struct {
	ID         string
	ChildID    shared.ChildID
	ActivityID shared.ActivityID

	// Status is the attempt outcome.
	Status RecordStatus

	// CompletedAt is when the activity finished. Zero unless Status is
	// completed.
	CompletedAt time.Time

	// EngagementLevel and InterestLevel are the owner's observations,
	// optional on every record.
	EngagementLevel shared.Level
	InterestLevel   shared.Level

	// SkillsDemonstrated lists the skills the owner observed during
	// this attempt. Drives the skill state machine on completion.
	SkillsDemonstrated []shared.SkillID

	// DurationMinutes is the observed time spent, zero when not logged.
	DurationMinutes int

	// Notes is the owner's free-form observation text.
	Notes string

	CreatedAt time.Time
}

// NewCompletedRecord creates a completed ledger entry with validation.
func NewCompletedRecord(id string, childID shared.ChildID, activityID shared.ActivityID, completedAt time.Time) (*Record, error) {
	if !childID.IsValid() {
		return nil, shared.ErrInvalidChildID
	}
	if !activityID.IsValid() {
		return nil, shared.ErrInvalidID
	}
	if completedAt.IsZero() {
		return nil, ErrMissingCompletedAt
	}
	return &Record{
		ID:          id,
		ChildID:     childID,
		ActivityID:  activityID,
		Status:      RecordStatusCompleted,
		CompletedAt: completedAt.UTC(),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// IsCompleted reports whether this record counts as a demonstration.
func (r *Record) IsCompleted() bool {
	return r.Status == RecordStatusCompleted
}

// HighEngagement reports whether either observation grade is high.
func (r *Record) HighEngagement() bool {
	return r.EngagementLevel.IsHigh() || r.InterestLevel.IsHigh()
}

// DedupKey derives the idempotency token for the completion event this
// record produces. Deterministic: a re-submitted record yields the same
// key.
func (r *Record) DedupKey() string {
	return fmt.Sprintf("%s:%s:%d", r.ChildID, r.ActivityID, r.CompletedAt.Unix())
}

// ActivityHistory is the per-activity digest the scorer consumes,
// folded from a child's recent ledger entries.
type ActivityHistory struct {
	// CompletionCount is how many completed records exist for the
	// activity within the folded window.
	CompletionCount int

	// LastCompletedAt is the most recent completion, zero if none.
	LastCompletedAt time.Time

	// LastHighEngagement reports whether the most recent completion was
	// graded high on engagement or interest.
	LastHighEngagement bool
}

// FoldHistory builds per-activity digests from ledger entries. Only
// completed records contribute.
func FoldHistory(records []*Record) map[shared.ActivityID]ActivityHistory {
	out := make(map[shared.ActivityID]ActivityHistory)
	for _, r := range records {
		if !r.IsCompleted() {
			continue
		}
		h := out[r.ActivityID]
		h.CompletionCount++
		if r.CompletedAt.After(h.LastCompletedAt) {
			h.LastCompletedAt = r.CompletedAt
			h.LastHighEngagement = r.HighEngagement()
		}
		out[r.ActivityID] = h
	}
	return out
}
