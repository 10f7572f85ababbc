package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) // a Monday

func newTestPlan(t *testing.T) *WeeklyPlan {
	t.Helper()
	p, err := NewWeeklyPlan(shared.ChildID("child1"), monday, "batch")
	require.NoError(t, err)
	return p
}

func TestNewWeeklyPlan_DeterministicID(t *testing.T) {
	p := newTestPlan(t)
	assert.Equal(t, "child1_2026-03-02", p.ID)
	assert.Equal(t, monday, p.WeekStart)
}

func TestNewWeeklyPlan_RejectsMisalignedWeek(t *testing.T) {
	wednesday := monday.AddDate(0, 0, 2)
	_, err := NewWeeklyPlan(shared.ChildID("child1"), wednesday, "batch")
	assert.ErrorIs(t, err, ErrWeekNotAligned)
}

func TestAddEntry_EnforcesCapacity(t *testing.T) {
	p := newTestPlan(t)

	err := p.AddEntry(Monday, Entry{ActivityID: "a1", Slot: SlotAfternoon, Status: EntryStatusSuggested}, 1)
	require.NoError(t, err)

	err = p.AddEntry(Monday, Entry{ActivityID: "a2", Slot: SlotAfternoon, Status: EntryStatusSuggested}, 1)
	assert.ErrorIs(t, err, shared.ErrDayAtCapacity)
}

func TestAddEntry_RejectsDuplicateActivityAcrossWeek(t *testing.T) {
	p := newTestPlan(t)

	require.NoError(t, p.AddEntry(Monday, Entry{ActivityID: "a1", Slot: SlotAfternoon, Status: EntryStatusSuggested}, 1))

	err := p.AddEntry(Friday, Entry{ActivityID: "a1", Slot: SlotAfternoon, Status: EntryStatusSuggested}, 1)
	assert.ErrorIs(t, err, shared.ErrDuplicateActivity)
}

func TestAddEntry_AssignsOrderWithinDay(t *testing.T) {
	p := newTestPlan(t)

	require.NoError(t, p.AddEntry(Saturday, Entry{ActivityID: "a1", Slot: SlotMorning, Status: EntryStatusSuggested}, 2))
	require.NoError(t, p.AddEntry(Saturday, Entry{ActivityID: "a2", Slot: SlotAfternoon, Status: EntryStatusSuggested}, 2))

	assert.Equal(t, 0, p.Days[Saturday][0].Order)
	assert.Equal(t, 1, p.Days[Saturday][1].Order)
}

func TestMarkActivityCompleted_FlipsAllBuckets(t *testing.T) {
	p := newTestPlan(t)
	// The same activity can appear twice when a user-modified copy
	// survived regeneration; bypass AddEntry's dup guard to set that up.
	p.Days[Monday] = []Entry{{ActivityID: "a1", Slot: SlotAfternoon, Status: EntryStatusSuggested}}
	p.Days[Thursday] = []Entry{{ActivityID: "a1", Slot: SlotAfternoon, Status: EntryStatusConfirmed, UserModified: true}}
	p.Days[Sunday] = []Entry{{ActivityID: "a2", Slot: SlotMorning, Status: EntryStatusSuggested}}

	changed := p.MarkActivityCompleted("a1")

	assert.Equal(t, 2, changed)
	assert.Equal(t, EntryStatusCompleted, p.Days[Monday][0].Status)
	assert.Equal(t, EntryStatusCompleted, p.Days[Thursday][0].Status)
	assert.Equal(t, EntryStatusSuggested, p.Days[Sunday][0].Status)
}

func TestMarkActivityCompleted_NoMatchReturnsZero(t *testing.T) {
	p := newTestPlan(t)
	assert.Equal(t, 0, p.MarkActivityCompleted("missing"))
}

func TestPreservedEntries_KeepsCompletedAndUserModified(t *testing.T) {
	p := newTestPlan(t)
	p.Days[Monday] = []Entry{
		{ActivityID: "a1", Slot: SlotAfternoon, Status: EntryStatusCompleted, Order: 0},
		{ActivityID: "a2", Slot: SlotAfternoon, Status: EntryStatusSuggested, Order: 1},
	}
	p.Days[Tuesday] = []Entry{
		{ActivityID: "a3", Slot: SlotAfternoon, Status: EntryStatusConfirmed, UserModified: true, Order: 0},
	}

	kept := p.PreservedEntries()

	require.Len(t, kept[Monday], 1)
	assert.Equal(t, shared.ActivityID("a1"), kept[Monday][0].ActivityID)
	assert.Equal(t, 0, kept[Monday][0].Order)
	require.Len(t, kept[Tuesday], 1)
	assert.Equal(t, shared.ActivityID("a3"), kept[Tuesday][0].ActivityID)
}

func TestWeekday_OrderAndCapacity(t *testing.T) {
	days := Weekdays()
	assert.Equal(t, Monday, days[0])
	assert.Equal(t, Sunday, days[6])

	assert.Equal(t, 1, Wednesday.DefaultCapacity())
	assert.Equal(t, 2, Saturday.DefaultCapacity())
	assert.True(t, Sunday.IsWeekend())
	assert.False(t, Friday.IsWeekend())

	day, err := WeekdayAt(3)
	require.NoError(t, err)
	assert.Equal(t, Thursday, day)

	_, err = WeekdayAt(7)
	assert.ErrorIs(t, err, ErrInvalidWeekday)
}

func TestSuggestionIDs_Distinct(t *testing.T) {
	p := newTestPlan(t)
	p.Days[Monday] = []Entry{{ActivityID: "a1", SuggestionID: "s1", Slot: SlotAfternoon, Status: EntryStatusSuggested}}
	p.Days[Tuesday] = []Entry{
		{ActivityID: "a2", SuggestionID: "s1", Slot: SlotAfternoon, Status: EntryStatusSuggested},
		{ActivityID: "a3", Slot: SlotAfternoon, Status: EntryStatusSuggested},
	}

	assert.Equal(t, []string{"s1"}, p.SuggestionIDs())
}
