// Package catalog contains the activity catalog: the library of
// Montessori activities the engine recommends from.
// This is a pure domain layer with zero external dependencies.
package catalog

import (
	"errors"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

// Domain errors for the catalog package.
var (
	ErrInvalidActivityName = errors.New("catalog: activity name is required")
	ErrInvalidDifficulty   = errors.New("catalog: invalid difficulty")
	ErrNoAgeRanges         = errors.New("catalog: at least one age range is required")
)

// DefaultDurationMinutes is assumed when an activity carries no
// explicit duration. Used by analytics when summing engagement time.
const DefaultDurationMinutes = 15

// Difficulty grades an activity for scoring alignment against the
// child's skill statuses.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// IsValid checks that the difficulty is a known value.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	default:
		return false
	}
}

// ActivityStatus is the catalog lifecycle state.
type ActivityStatus string

const (
	// ActivityStatusActive activities are eligible for recommendation.
	ActivityStatusActive ActivityStatus = "active"
	// ActivityStatusArchived activities are kept for history only.
	ActivityStatusArchived ActivityStatus = "archived"
)

// Activity is one entry in the catalog.
type Activity struct {
	ID shared.ActivityID

	// Name is the activity title shown to owners.
	Name string

	// Description is the full activity write-up.
	Description string

	// Area is the curriculum area ("practical life: pouring", "music
	// and movement"). Interest matching runs against this string.
	Area string

	// AgeRanges lists the age groups the activity suits.
	AgeRanges []shared.AgeGroup

	// Difficulty grades the activity for skill alignment.
	Difficulty Difficulty

	// SkillsAddressed lists the developmental skills the activity
	// exercises. Scoring rewards each one by the child's current level.
	SkillsAddressed []shared.SkillID

	// DurationMinutes is the expected engagement time. Zero means
	// unknown; analytics falls back to DefaultDurationMinutes.
	DurationMinutes int

	// Status is the catalog lifecycle state.
	Status ActivityStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewActivity creates a catalog entry with validation.
func NewActivity(id shared.ActivityID, name, area string, difficulty Difficulty, ageRanges []shared.AgeGroup) (*Activity, error) {
	if !id.IsValid() {
		return nil, shared.ErrInvalidID
	}
	if name == "" {
		return nil, ErrInvalidActivityName
	}
	if !difficulty.IsValid() {
		return nil, ErrInvalidDifficulty
	}
	if len(ageRanges) == 0 {
		return nil, ErrNoAgeRanges
	}

	normalized := make([]shared.AgeGroup, len(ageRanges))
	for i, ag := range ageRanges {
		normalized[i] = ag.Normalize()
	}

	now := time.Now().UTC()
	return &Activity{
		ID:         id,
		Name:       name,
		Area:       area,
		AgeRanges:  normalized,
		Difficulty: difficulty,
		Status:     ActivityStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// IsActive reports whether the activity may be recommended.
func (a *Activity) IsActive() bool {
	return a.Status == ActivityStatusActive
}

// SuitsAgeGroup reports whether the activity targets the given group.
func (a *Activity) SuitsAgeGroup(group shared.AgeGroup) bool {
	want := group.Normalize()
	for _, ag := range a.AgeRanges {
		if ag == want {
			return true
		}
	}
	return false
}

// Duration returns the expected engagement time, applying the default
// when the catalog entry carries none.
func (a *Activity) Duration() int {
	if a.DurationMinutes <= 0 {
		return DefaultDurationMinutes
	}
	return a.DurationMinutes
}

// Archive removes the activity from recommendation.
func (a *Activity) Archive() {
	a.Status = ActivityStatusArchived
	a.UpdatedAt = time.Now().UTC()
}
