package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

func TestNewCompletedRecord(t *testing.T) {
	at := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)

	r, err := NewCompletedRecord("r1", shared.ChildID("child1"), shared.ActivityID("a1"), at)
	require.NoError(t, err)

	assert.Equal(t, RecordStatusCompleted, r.Status)
	assert.Equal(t, at, r.CompletedAt)
	assert.True(t, r.IsCompleted())
}

func TestNewCompletedRecord_RequiresCompletionTime(t *testing.T) {
	_, err := NewCompletedRecord("r1", shared.ChildID("child1"), shared.ActivityID("a1"), time.Time{})
	assert.ErrorIs(t, err, ErrMissingCompletedAt)
}

func TestDedupKey_Deterministic(t *testing.T) {
	at := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)
	r := &Record{ChildID: "child1", ActivityID: "a1", CompletedAt: at}

	assert.Equal(t, "child1:a1:1772638200", r.DedupKey())
	// Same triple, same key.
	other := &Record{ID: "different", ChildID: "child1", ActivityID: "a1", CompletedAt: at}
	assert.Equal(t, r.DedupKey(), other.DedupKey())
}

func TestHighEngagement(t *testing.T) {
	assert.True(t, (&Record{EngagementLevel: shared.LevelHigh}).HighEngagement())
	assert.True(t, (&Record{InterestLevel: shared.LevelHigh}).HighEngagement())
	assert.False(t, (&Record{EngagementLevel: shared.LevelMedium, InterestLevel: shared.LevelLow}).HighEngagement())
	assert.False(t, (&Record{}).HighEngagement())
}

func TestFoldHistory(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []*Record{
		{ActivityID: "a1", Status: RecordStatusCompleted, CompletedAt: base},
		{ActivityID: "a1", Status: RecordStatusCompleted, CompletedAt: base.AddDate(0, 0, 5), EngagementLevel: shared.LevelHigh},
		{ActivityID: "a2", Status: RecordStatusSkipped, CompletedAt: base},
		{ActivityID: "a3", Status: RecordStatusCompleted, CompletedAt: base.AddDate(0, 0, 2)},
	}

	hist := FoldHistory(records)

	a1 := hist["a1"]
	assert.Equal(t, 2, a1.CompletionCount)
	assert.Equal(t, base.AddDate(0, 0, 5), a1.LastCompletedAt)
	assert.True(t, a1.LastHighEngagement)

	// Skipped records never contribute.
	_, ok := hist["a2"]
	assert.False(t, ok)

	a3 := hist["a3"]
	assert.Equal(t, 1, a3.CompletionCount)
	assert.False(t, a3.LastHighEngagement)
}
