// Package child contains the domain model for child profiles and their
// owners (the parent or guardian account that manages them).
// This is a pure domain layer with zero external dependencies.
package child

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

// Domain errors for the child package.
var (
	ErrInvalidName        = errors.New("child: name must be 1-100 chars")
	ErrInvalidOwner       = errors.New("child: owner ID is required")
	ErrInvalidAgeGroup    = errors.New("child: invalid age group")
	ErrInvalidDaysPerWeek = errors.New("child: days per week must be 1-7")
	ErrInvalidPerDayCount = errors.New("child: activities per day must be 1-5")
)

// Child is the central profile entity the engine plans for. Every
// recommendation, plan and progress record hangs off a child ID.
type Child struct {
	// ID is the unique identifier (UUID in string form).
	ID shared.ChildID

	// OwnerID is the account that manages this profile.
	OwnerID shared.OwnerID

	// Name is the display name used in logs and digests.
	Name string

	// AgeGroup buckets the child for catalog matching (e.g. "3-4", "4-5").
	AgeGroup shared.AgeGroup

	// Interests are free-form topic names ("animals", "music"). Scoring
	// matches them against activity areas case-insensitively.
	Interests []string

	// Active profiles are included in batch planning and refresh runs.
	Active bool

	// LastPlanGeneratedAt is when a weekly plan was last built for this
	// child, by batch or on demand.
	LastPlanGeneratedAt *time.Time

	// LastPlanEvolvedAt is when the evolution pass last rebuilt the
	// child's plans in response to new progress.
	LastPlanEvolvedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewChild creates a child profile with validation.
func NewChild(id shared.ChildID, ownerID shared.OwnerID, name string, ageGroup shared.AgeGroup) (*Child, error) {
	if !id.IsValid() {
		return nil, shared.ErrInvalidChildID
	}
	if !ownerID.IsValid() {
		return nil, ErrInvalidOwner
	}
	name = strings.TrimSpace(name)
	if len(name) == 0 || len(name) > 100 {
		return nil, ErrInvalidName
	}
	if !ageGroup.IsValid() {
		return nil, ErrInvalidAgeGroup
	}

	now := time.Now().UTC()
	return &Child{
		ID:        id,
		OwnerID:   ownerID,
		Name:      name,
		AgeGroup:  ageGroup.Normalize(),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// HasInterest reports whether any of the child's interests matches the
// given activity area by case-insensitive substring containment.
func (c *Child) HasInterest(area string) bool {
	return len(c.MatchingInterests(area)) > 0
}

// MatchingInterests returns the distinct interests whose name appears,
// case-insensitively, inside the given activity area.
func (c *Child) MatchingInterests(area string) []string {
	if area == "" {
		return nil
	}
	lowered := strings.ToLower(area)
	seen := make(map[string]struct{}, len(c.Interests))
	var matched []string
	for _, interest := range c.Interests {
		key := strings.ToLower(strings.TrimSpace(interest))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if strings.Contains(lowered, key) {
			matched = append(matched, interest)
		}
	}
	return matched
}

// MarkPlanGenerated records a successful plan generation.
func (c *Child) MarkPlanGenerated(at time.Time) {
	t := at.UTC()
	c.LastPlanGeneratedAt = &t
	c.UpdatedAt = time.Now().UTC()
}

// MarkPlanEvolved records a successful plan evolution pass.
func (c *Child) MarkPlanEvolved(at time.Time) {
	t := at.UTC()
	c.LastPlanEvolvedAt = &t
	c.UpdatedAt = time.Now().UTC()
}

// Deactivate removes the child from batch processing.
func (c *Child) Deactivate() {
	c.Active = false
	c.UpdatedAt = time.Now().UTC()
}

// String returns a compact representation for logging.
func (c *Child) String() string {
	return fmt.Sprintf("Child{ID: %s, Age: %s, Active: %t}", c.ID, c.AgeGroup, c.Active)
}

// Owner is the account that owns one or more child profiles. Schedule
// preferences and digest opt-outs live here, not on the child.
type Owner struct {
	ID    shared.OwnerID
	Email string

	// DigestOptOut disables the monthly analytics digest.
	DigestOptOut bool

	// Schedule holds the owner's planning preferences, if any were set.
	Schedule *SchedulePreferences

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SchedulePreferences steers on-demand plan generation. Either the
// uniform pair (DaysPerWeek, ActivitiesPerDay) or the per-day map is
// used; the map wins when both are present.
type SchedulePreferences struct {
	// DaysPerWeek is how many days, Monday first, receive activities.
	DaysPerWeek int

	// ActivitiesPerDay is the uniform per-day capacity.
	ActivitiesPerDay int

	// ByDay overrides capacity per weekday name ("monday".."sunday").
	// A zero or missing entry means the day stays empty.
	ByDay map[string]int
}

// Validate checks the preference bounds.
func (p *SchedulePreferences) Validate() error {
	if p == nil {
		return nil
	}
	if len(p.ByDay) > 0 {
		for day, n := range p.ByDay {
			if n < 0 || n > 5 {
				return fmt.Errorf("%w: %s=%d", ErrInvalidPerDayCount, day, n)
			}
		}
		return nil
	}
	if p.DaysPerWeek < 1 || p.DaysPerWeek > 7 {
		return ErrInvalidDaysPerWeek
	}
	if p.ActivitiesPerDay < 1 || p.ActivitiesPerDay > 5 {
		return ErrInvalidPerDayCount
	}
	return nil
}

// CapacityFor returns the planned activity count for a weekday name,
// where dayIndex is 0 for Monday through 6 for Sunday.
func (p *SchedulePreferences) CapacityFor(dayName string, dayIndex int) int {
	if p == nil {
		return 0
	}
	if len(p.ByDay) > 0 {
		return p.ByDay[strings.ToLower(dayName)]
	}
	if dayIndex < p.DaysPerWeek {
		return p.ActivitiesPerDay
	}
	return 0
}
