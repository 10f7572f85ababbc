package suggestion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

func newPending(t *testing.T) *ActivitySuggestion {
	t.Helper()
	s, err := NewActivitySuggestion("s1", shared.ChildID("child1"), shared.ActivityID("a1"), 9.5,
		[]string{"develops emerging skill", "matches interest: animals"})
	require.NoError(t, err)
	return s
}

func TestNewActivitySuggestion(t *testing.T) {
	s := newPending(t)

	assert.Equal(t, StatusPending, s.Status)
	assert.Equal(t, 9.5, s.Priority)
	assert.Equal(t, "develops emerging skill; matches interest: animals", s.Reason)
	assert.Empty(t, s.WeeklyPlanID)
}

func TestNewActivitySuggestion_RejectsNonPositivePriority(t *testing.T) {
	_, err := NewActivitySuggestion("s1", shared.ChildID("child1"), shared.ActivityID("a1"), 0, nil)
	assert.ErrorIs(t, err, ErrInvalidPriority)
}

func TestRefresh_UpdatesPendingInPlace(t *testing.T) {
	s := newPending(t)
	created := s.CreatedAt

	err := s.Refresh(11.0, []string{"reinforces developing skill"})
	require.NoError(t, err)

	assert.Equal(t, 11.0, s.Priority)
	assert.Equal(t, "reinforces developing skill", s.Reason)
	// Staleness still counts from the original recommendation.
	assert.Equal(t, created, s.CreatedAt)
}

func TestRefresh_RejectsNonPending(t *testing.T) {
	s := newPending(t)
	require.NoError(t, s.Accept("plan1"))

	err := s.Refresh(11.0, nil)
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestAccept_LinksPlan(t *testing.T) {
	s := newPending(t)

	require.NoError(t, s.Accept("child1_2026-03-02"))

	assert.Equal(t, StatusAccepted, s.Status)
	assert.Equal(t, "child1_2026-03-02", s.WeeklyPlanID)
}

func TestLifecycle_TerminalStatesAreFinal(t *testing.T) {
	s := newPending(t)
	require.NoError(t, s.Complete())

	assert.ErrorIs(t, s.Accept("p"), ErrTerminal)
	assert.ErrorIs(t, s.Complete(), ErrTerminal)
	assert.ErrorIs(t, s.Expire(), ErrNotPending)
}

func TestExpire_OnlyPending(t *testing.T) {
	s := newPending(t)
	require.NoError(t, s.Accept(""))

	assert.ErrorIs(t, s.Expire(), ErrNotPending)
}

func TestIsStale(t *testing.T) {
	s := newPending(t)
	now := time.Now().UTC()

	assert.False(t, s.IsStale(now))
	assert.True(t, s.IsStale(now.Add(StaleAfter+time.Hour)))

	// Accepted suggestions never go stale.
	require.NoError(t, s.Accept(""))
	assert.False(t, s.IsStale(now.Add(StaleAfter+time.Hour)))
}

func TestRecommendationLog_Close(t *testing.T) {
	l := NewRecommendationLog("l1", shared.ChildID("child1"), shared.ActivityID("a1"), 8.5,
		[]string{"novelty"})
	assert.Equal(t, StatusPending, l.Outcome)
	assert.Nil(t, l.ClosedAt)

	at := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	l.Close(StatusCompleted, at)

	assert.Equal(t, StatusCompleted, l.Outcome)
	require.NotNil(t, l.ClosedAt)
	assert.Equal(t, at, *l.ClosedAt)
}
