package shared

import "strings"

// Typed identifiers shared across domain packages. Skill statuses, plans,
// suggestions, and progress records all reference children, activities, and
// skills owned by other aggregates, so the ID types live here rather than
// in any single domain package.

// ChildID identifies a child profile.
type ChildID string

// IsValid checks that the child ID is non-empty.
func (id ChildID) IsValid() bool { return id != "" }

// String returns the string representation of the child ID.
func (id ChildID) String() string { return string(id) }

// ActivityID identifies a catalog activity.
type ActivityID string

// IsValid checks that the activity ID is non-empty.
func (id ActivityID) IsValid() bool { return id != "" }

// String returns the string representation of the activity ID.
func (id ActivityID) String() string { return string(id) }

// SkillID identifies a developmental skill.
type SkillID string

// IsValid checks that the skill ID is non-empty.
func (id SkillID) IsValid() bool { return id != "" }

// String returns the string representation of the skill ID.
func (id SkillID) String() string { return string(id) }

// OwnerID identifies the user account that owns one or more child profiles.
type OwnerID string

// IsValid checks that the owner ID is non-empty.
func (id OwnerID) IsValid() bool { return id != "" }

// String returns the string representation of the owner ID.
func (id OwnerID) String() string { return string(id) }

// AgeGroup tags a child (derived from birth date) and an activity's target
// ranges. Values are free-form catalog tags such as "toddler" or "3-6";
// matching is exact after normalization.
type AgeGroup string

// IsValid checks that the age group tag is non-empty.
func (g AgeGroup) IsValid() bool { return g != "" }

// String returns the string representation of the age group.
func (g AgeGroup) String() string { return string(g) }

// Normalize lowercases and trims the tag for comparison.
func (g AgeGroup) Normalize() AgeGroup {
	return AgeGroup(strings.ToLower(strings.TrimSpace(string(g))))
}

// Level grades engagement and interest observations on completions.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// IsValid checks the level is one of the known grades. Empty is allowed
// because engagement and interest are optional on progress records.
func (l Level) IsValid() bool {
	switch l {
	case "", LevelLow, LevelMedium, LevelHigh:
		return true
	}
	return false
}

// IsHigh reports whether the level is the top grade.
func (l Level) IsHigh() bool { return l == LevelHigh }
