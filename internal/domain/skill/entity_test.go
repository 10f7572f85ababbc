package skill

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

func TestNewChildSkillStatus_StartsAtEmerging(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	status, err := NewChildSkillStatus("s1", shared.ChildID("child1"), shared.SkillID("skill1"), now)
	require.NoError(t, err)

	assert.Equal(t, StatusEmerging, status.Status)
	assert.Equal(t, 1, status.Demonstrations)
	assert.Equal(t, now, status.LastAssessedAt)
}

func TestRecordDemonstration_EmergingAdvancesToDeveloping(t *testing.T) {
	status := &ChildSkillStatus{
		ChildID:        shared.ChildID("child1"),
		SkillID:        shared.SkillID("skill1"),
		Status:         StatusEmerging,
		Demonstrations: 1,
	}

	tr := status.RecordDemonstration(time.Now())

	assert.Equal(t, StatusDeveloping, status.Status)
	assert.True(t, tr.Advanced())
	assert.Equal(t, StatusEmerging, tr.From)
	assert.Equal(t, StatusDeveloping, tr.To)
}

func TestRecordDemonstration_MasteryRequiresThreshold(t *testing.T) {
	// Two demonstrations so far: the third is the first eligible for mastery.
	status := &ChildSkillStatus{
		Status:         StatusDeveloping,
		Demonstrations: 2,
	}

	tr := status.RecordDemonstration(time.Now())

	assert.Equal(t, 3, status.Demonstrations)
	assert.Equal(t, StatusMastered, status.Status)
	assert.True(t, tr.Advanced())
}

func TestRecordDemonstration_DevelopingStaysBelowThreshold(t *testing.T) {
	// One prior demonstration: count reaches 2, below the threshold of 3.
	status := &ChildSkillStatus{
		Status:         StatusDeveloping,
		Demonstrations: 1,
	}
	before := status.LastAssessedAt

	tr := status.RecordDemonstration(time.Now())

	assert.Equal(t, StatusDeveloping, status.Status)
	assert.False(t, tr.Advanced())
	// Assessment time refreshes even without a transition.
	assert.True(t, status.LastAssessedAt.After(before))
}

func TestRecordDemonstration_MasteredIsTerminal(t *testing.T) {
	status := &ChildSkillStatus{
		Status:         StatusMastered,
		Demonstrations: 10,
	}

	tr := status.RecordDemonstration(time.Now())

	assert.Equal(t, StatusMastered, status.Status)
	assert.False(t, tr.Advanced())
	assert.Equal(t, 11, status.Demonstrations)
}

func TestStatusRank_IsMonotonic(t *testing.T) {
	assert.Less(t, StatusNotStarted.Rank(), StatusEmerging.Rank())
	assert.Less(t, StatusEmerging.Rank(), StatusDeveloping.Rank())
	assert.Less(t, StatusDeveloping.Rank(), StatusMastered.Rank())
}

func TestStatusNext(t *testing.T) {
	assert.Equal(t, StatusEmerging, StatusNotStarted.Next())
	assert.Equal(t, StatusDeveloping, StatusEmerging.Next())
	assert.Equal(t, StatusMastered, StatusDeveloping.Next())
	assert.Equal(t, StatusMastered, StatusMastered.Next())
}
