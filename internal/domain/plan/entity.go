// Package plan contains the weekly plan model: seven day buckets of
// scheduled activity entries, Monday through Sunday. Plan IDs are
// deterministic per (child, week) so regeneration overwrites in place.
package plan

import (
	"errors"
	"fmt"
	"time"

	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/pkg/timeutil"
)

// Domain errors for the plan package.
var (
	ErrInvalidWeekday     = errors.New("plan: invalid weekday")
	ErrInvalidTimeSlot    = errors.New("plan: invalid time slot")
	ErrInvalidEntryStatus = errors.New("plan: invalid entry status")
	ErrWeekNotAligned     = errors.New("plan: week start must be a Monday")
)

// Default per-day capacities for batch assembly.
const (
	DefaultWeekdayCapacity = 1
	DefaultWeekendCapacity = 2
)

// Weekday names a day bucket. The zero-based index runs Monday=0
// through Sunday=6, matching the week-start alignment.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// Weekdays returns all day buckets in Monday-first order.
func Weekdays() [7]Weekday {
	return [7]Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}

// WeekdayAt returns the bucket for a zero-based index (Monday=0).
func WeekdayAt(index int) (Weekday, error) {
	days := Weekdays()
	if index < 0 || index >= len(days) {
		return "", ErrInvalidWeekday
	}
	return days[index], nil
}

// IsValid checks that the weekday is a known bucket name.
func (w Weekday) IsValid() bool {
	for _, d := range Weekdays() {
		if w == d {
			return true
		}
	}
	return false
}

// Index returns the zero-based position (Monday=0), or -1 if invalid.
func (w Weekday) Index() int {
	for i, d := range Weekdays() {
		if w == d {
			return i
		}
	}
	return -1
}

// IsWeekend reports whether the bucket is Saturday or Sunday.
func (w Weekday) IsWeekend() bool {
	return w == Saturday || w == Sunday
}

// DefaultCapacity returns the batch-assembly capacity for this bucket.
func (w Weekday) DefaultCapacity() int {
	if w.IsWeekend() {
		return DefaultWeekendCapacity
	}
	return DefaultWeekdayCapacity
}

// String returns the bucket name.
func (w Weekday) String() string {
	return string(w)
}

// TimeSlot is the part of day an entry is scheduled for.
type TimeSlot string

const (
	SlotMorning   TimeSlot = "morning"
	SlotAfternoon TimeSlot = "afternoon"
)

// IsValid checks that the slot is a known value.
func (s TimeSlot) IsValid() bool {
	return s == SlotMorning || s == SlotAfternoon
}

// SlotForSuggestion returns where a placed suggestion goes: afternoons
// on school days, mornings on weekends when the day is free anyway.
func SlotForSuggestion(day Weekday) TimeSlot {
	if day.IsWeekend() {
		return SlotMorning
	}
	return SlotAfternoon
}

// SlotForFiller returns where a filler entry goes: the morning when it
// opens an empty day, the afternoon otherwise.
func SlotForFiller(day Weekday, existing int) TimeSlot {
	if existing == 0 {
		return SlotMorning
	}
	return SlotAfternoon
}

// EntryStatus is the lifecycle state of one scheduled entry.
type EntryStatus string

const (
	// EntryStatusSuggested entries came from the engine and were not
	// yet acted on.
	EntryStatusSuggested EntryStatus = "suggested"
	// EntryStatusConfirmed entries were kept or added by the owner.
	EntryStatusConfirmed EntryStatus = "confirmed"
	// EntryStatusCompleted entries have a matching completed progress
	// record.
	EntryStatusCompleted EntryStatus = "completed"
)

// IsValid checks that the status is a known value.
func (s EntryStatus) IsValid() bool {
	switch s {
	case EntryStatusSuggested, EntryStatusConfirmed, EntryStatusCompleted:
		return true
	default:
		return false
	}
}

// Entry is one scheduled activity inside a day bucket.
type Entry struct {
	ActivityID shared.ActivityID

	// SuggestionID links the entry back to the suggestion that produced
	// it. Empty for filler and owner-added entries.
	SuggestionID string

	// Slot is the part of day.
	Slot TimeSlot

	// Status is the entry lifecycle state.
	Status EntryStatus

	// Order positions the entry within its day bucket.
	Order int

	// UserModified marks entries the owner edited or added by hand.
	// Regeneration preserves these.
	UserModified bool
}

// IsPreserved reports whether regeneration must keep this entry as is.
func (e Entry) IsPreserved() bool {
	return e.Status == EntryStatusCompleted || e.UserModified
}

// WeeklyPlan is one child's schedule for one Monday-aligned week.
type WeeklyPlan struct {
	// ID is deterministic: "{childID}_{weekStart ISO date}".
	ID      string
	ChildID shared.ChildID

	// WeekStart is the Monday the plan covers, at midnight UTC.
	WeekStart time.Time

	// Days maps each bucket to its ordered entries. Buckets with no
	// entries may be absent from the map.
	Days map[Weekday][]Entry

	// GeneratedBy records the producing path ("batch", "on_demand",
	// "evolution").
	GeneratedBy string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewWeeklyPlan creates an empty plan for the week containing weekStart.
// weekStart must already be Monday-aligned; use timeutil.StartOfWeek.
func NewWeeklyPlan(childID shared.ChildID, weekStart time.Time, generatedBy string) (*WeeklyPlan, error) {
	if !childID.IsValid() {
		return nil, shared.ErrInvalidChildID
	}
	aligned := timeutil.StartOfWeek(weekStart)
	if !aligned.Equal(timeutil.StartOfDay(weekStart)) {
		return nil, ErrWeekNotAligned
	}

	now := time.Now().UTC()
	return &WeeklyPlan{
		ID:          timeutil.PlanID(childID.String(), aligned),
		ChildID:     childID,
		WeekStart:   aligned,
		Days:        make(map[Weekday][]Entry),
		GeneratedBy: generatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// AddEntry appends an entry to a day bucket, enforcing the bucket
// capacity and the no-duplicate-activity-per-week invariant. Order is
// assigned from the bucket's current length.
func (p *WeeklyPlan) AddEntry(day Weekday, e Entry, capacity int) error {
	if !day.IsValid() {
		return ErrInvalidWeekday
	}
	if !e.Slot.IsValid() {
		return ErrInvalidTimeSlot
	}
	if !e.Status.IsValid() {
		return ErrInvalidEntryStatus
	}
	if len(p.Days[day]) >= capacity {
		return shared.ErrDayAtCapacity
	}
	if p.ContainsActivity(e.ActivityID) {
		return shared.ErrDuplicateActivity
	}

	e.Order = len(p.Days[day])
	p.Days[day] = append(p.Days[day], e)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// ContainsActivity reports whether the activity is scheduled anywhere
// in the week.
func (p *WeeklyPlan) ContainsActivity(id shared.ActivityID) bool {
	for _, entries := range p.Days {
		for _, e := range entries {
			if e.ActivityID == id {
				return true
			}
		}
	}
	return false
}

// EntryCount returns the total number of entries across all buckets.
func (p *WeeklyPlan) EntryCount() int {
	n := 0
	for _, entries := range p.Days {
		n += len(entries)
	}
	return n
}

// DayCount returns the number of entries in one bucket.
func (p *WeeklyPlan) DayCount(day Weekday) int {
	return len(p.Days[day])
}

// MarkActivityCompleted flips every entry for the activity, across all
// seven buckets, to completed. Returns how many entries changed. The
// same activity can legitimately appear in an old user-modified copy
// and a regenerated one, so all matches flip, not just the first.
func (p *WeeklyPlan) MarkActivityCompleted(id shared.ActivityID) int {
	changed := 0
	for day, entries := range p.Days {
		for i := range entries {
			if entries[i].ActivityID == id && entries[i].Status != EntryStatusCompleted {
				entries[i].Status = EntryStatusCompleted
				changed++
			}
		}
		p.Days[day] = entries
	}
	if changed > 0 {
		p.UpdatedAt = time.Now().UTC()
	}
	return changed
}

// PreservedEntries returns the completed and user-modified entries per
// bucket, with Order rewritten to be contiguous. Regeneration seeds the
// new plan from these before placing anything else.
func (p *WeeklyPlan) PreservedEntries() map[Weekday][]Entry {
	out := make(map[Weekday][]Entry)
	for _, day := range Weekdays() {
		for _, e := range p.Days[day] {
			if e.IsPreserved() {
				e.Order = len(out[day])
				out[day] = append(out[day], e)
			}
		}
	}
	return out
}

// SuggestionIDs returns the distinct suggestion IDs referenced by the
// plan's entries.
func (p *WeeklyPlan) SuggestionIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, entries := range p.Days {
		for _, e := range entries {
			if e.SuggestionID == "" {
				continue
			}
			if _, dup := seen[e.SuggestionID]; dup {
				continue
			}
			seen[e.SuggestionID] = struct{}{}
			ids = append(ids, e.SuggestionID)
		}
	}
	return ids
}

// String returns a compact representation for logging.
func (p *WeeklyPlan) String() string {
	return fmt.Sprintf("WeeklyPlan{ID: %s, Entries: %d}", p.ID, p.EntryCount())
}
