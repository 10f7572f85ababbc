// Package skill contains the developmental skill model and the per-child
// mastery state machine. Skill statuses only ever move forward: a child
// never regresses from a recorded level.
package skill

import (
	"errors"
	"fmt"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

// Domain errors for the skill package.
var (
	ErrInvalidSkillName = errors.New("skill: name is required")
	ErrInvalidStatus    = errors.New("skill: invalid status value")
)

// MasteryThreshold is the number of completed demonstrations required
// before a developing skill may be promoted to mastered.
const MasteryThreshold = 3

// Status is the mastery level of a skill for one child.
type Status string

const (
	// StatusNotStarted means the skill has never been observed.
	StatusNotStarted Status = "not_started"
	// StatusEmerging means the skill was demonstrated at least once.
	StatusEmerging Status = "emerging"
	// StatusDeveloping means the skill is being actively practiced.
	StatusDeveloping Status = "developing"
	// StatusMastered is terminal.
	StatusMastered Status = "mastered"
)

// IsValid checks that the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusEmerging, StatusDeveloping, StatusMastered:
		return true
	default:
		return false
	}
}

// Rank orders statuses for monotonicity checks. Higher is further along.
func (s Status) Rank() int {
	switch s {
	case StatusEmerging:
		return 1
	case StatusDeveloping:
		return 2
	case StatusMastered:
		return 3
	default:
		return 0
	}
}

// Next returns the status one step forward, or the same status if
// already mastered.
func (s Status) Next() Status {
	switch s {
	case StatusNotStarted:
		return StatusEmerging
	case StatusEmerging:
		return StatusDeveloping
	case StatusDeveloping:
		return StatusMastered
	default:
		return s
	}
}

// IsTerminal reports whether the status can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusMastered
}

// DevelopmentalSkill describes one trackable skill in the curriculum,
// e.g. "pincer grasp" or "counting to ten".
type DevelopmentalSkill struct {
	ID shared.SkillID

	// Name is the human-readable skill name.
	Name string

	// Area groups the skill ("fine motor", "language", "practical life").
	Area string

	// AgeGroups lists the profiles the skill is relevant for.
	AgeGroups []shared.AgeGroup

	CreatedAt time.Time
}

// NewDevelopmentalSkill creates a skill definition with validation.
func NewDevelopmentalSkill(id shared.SkillID, name, area string) (*DevelopmentalSkill, error) {
	if !id.IsValid() {
		return nil, shared.ErrInvalidID
	}
	if name == "" {
		return nil, ErrInvalidSkillName
	}
	return &DevelopmentalSkill{
		ID:        id,
		Name:      name,
		Area:      area,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// ChildSkillStatus tracks one child's progress on one skill. The pair
// (ChildID, SkillID) is unique.
type ChildSkillStatus struct {
	ID      string
	ChildID shared.ChildID
	SkillID shared.SkillID

	// Status is the current mastery level.
	Status Status

	// Demonstrations counts completed activities that demonstrated this
	// skill, cumulative over the child's lifetime.
	Demonstrations int

	// LastAssessedAt is refreshed on every demonstration, even when the
	// status does not change.
	LastAssessedAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewChildSkillStatus creates the initial tracking record for a skill
// that was just demonstrated for the first time. It starts at emerging,
// never at not_started: the act of demonstrating is what creates it.
func NewChildSkillStatus(id string, childID shared.ChildID, skillID shared.SkillID, at time.Time) (*ChildSkillStatus, error) {
	if !childID.IsValid() {
		return nil, shared.ErrInvalidChildID
	}
	if !skillID.IsValid() {
		return nil, shared.ErrInvalidID
	}
	now := time.Now().UTC()
	return &ChildSkillStatus{
		ID:             id,
		ChildID:        childID,
		SkillID:        skillID,
		Status:         StatusEmerging,
		Demonstrations: 1,
		LastAssessedAt: at.UTC(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// RecordDemonstration applies one completed demonstration at the given
// time and advances the status where the rules allow:
//
//   - emerging always advances to developing;
//   - developing advances to mastered only once the cumulative
//     demonstration count reaches MasteryThreshold;
//   - mastered never changes.
//
// LastAssessedAt is refreshed in every case. The returned transition
// reports whether the status actually moved.
func (s *ChildSkillStatus) RecordDemonstration(at time.Time) Transition {
	from := s.Status
	s.Demonstrations++
	s.LastAssessedAt = at.UTC()
	s.UpdatedAt = time.Now().UTC()

	switch s.Status {
	case StatusNotStarted:
		s.Status = StatusEmerging
	case StatusEmerging:
		s.Status = StatusDeveloping
	case StatusDeveloping:
		if s.Demonstrations >= MasteryThreshold {
			s.Status = StatusMastered
		}
	case StatusMastered:
		// terminal
	}

	return Transition{From: from, To: s.Status}
}

// Transition describes one status change (or non-change).
type Transition struct {
	From Status
	To   Status
}

// Advanced reports whether the status moved forward.
func (t Transition) Advanced() bool {
	return t.To.Rank() > t.From.Rank()
}

// String returns a compact representation for logging.
func (t Transition) String() string {
	return fmt.Sprintf("%s->%s", t.From, t.To)
}
