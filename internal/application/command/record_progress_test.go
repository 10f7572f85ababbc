package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedlinghq/seedling-engine/internal/domain/child"
	"github.com/seedlinghq/seedling-engine/internal/domain/progress"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/internal/infrastructure/persistence/memory"
)

// capturingPublisher records every published event for assertions.
type capturingPublisher struct {
	events []shared.Event
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

func TestRecordProgress_CompletedPublishesEvent(t *testing.T) {
	childRepo := memory.NewChildRepository()
	progressRepo := memory.NewProgressRepository()
	publisher := &capturingPublisher{}
	handler := NewRecordProgressHandler(childRepo, progressRepo, publisher)
	ctx := context.Background()

	c, err := child.NewChild("child1", "owner1", "Mika", "3-4")
	require.NoError(t, err)
	require.NoError(t, childRepo.Save(ctx, c))

	completedAt := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)
	res, err := handler.Handle(ctx, RecordProgressCommand{
		ChildID:            "child1",
		ActivityID:         "act-a",
		Status:             progress.RecordStatusCompleted,
		CompletedAt:        completedAt,
		EngagementLevel:    shared.LevelHigh,
		InterestLevel:      shared.LevelMedium,
		SkillsDemonstrated: []shared.SkillID{"s1", "s2"},
		DurationMinutes:    20,
	})
	require.NoError(t, err)

	assert.True(t, res.EventPublished)
	require.Len(t, publisher.events, 1)
	event, ok := publisher.events[0].(shared.ActivityCompletedEvent)
	require.True(t, ok)
	assert.Equal(t, shared.EventActivityCompleted, event.EventType())
	assert.Equal(t, shared.ChildID("child1"), event.ChildID)
	assert.Equal(t, completedAt, event.CompletedAt)
	assert.Equal(t, shared.LevelHigh, event.EngagementLevel)
	assert.Len(t, event.SkillsDemonstrated, 2)

	// The ledger entry is durable regardless of event delivery.
	records, err := progressRepo.ListRecentByChild(ctx, "child1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].IsCompleted())
}

func TestRecordProgress_SkippedStaysSilent(t *testing.T) {
	childRepo := memory.NewChildRepository()
	progressRepo := memory.NewProgressRepository()
	publisher := &capturingPublisher{}
	handler := NewRecordProgressHandler(childRepo, progressRepo, publisher)
	ctx := context.Background()

	c, err := child.NewChild("child1", "owner1", "Mika", "3-4")
	require.NoError(t, err)
	require.NoError(t, childRepo.Save(ctx, c))

	res, err := handler.Handle(ctx, RecordProgressCommand{
		ChildID:    "child1",
		ActivityID: "act-a",
		Status:     progress.RecordStatusSkipped,
	})
	require.NoError(t, err)

	assert.False(t, res.EventPublished)
	assert.Empty(t, publisher.events)
}

func TestRecordProgress_CompletedRequiresTimestamp(t *testing.T) {
	handler := NewRecordProgressHandler(memory.NewChildRepository(), memory.NewProgressRepository(), nil)

	_, err := handler.Handle(context.Background(), RecordProgressCommand{
		ChildID:    "child1",
		ActivityID: "act-a",
		Status:     progress.RecordStatusCompleted,
	})
	assert.ErrorIs(t, err, progress.ErrMissingCompletedAt)
}

func TestRecordProgress_UnknownChildRejected(t *testing.T) {
	handler := NewRecordProgressHandler(memory.NewChildRepository(), memory.NewProgressRepository(), nil)

	_, err := handler.Handle(context.Background(), RecordProgressCommand{
		ChildID:     "ghost",
		ActivityID:  "act-a",
		Status:      progress.RecordStatusCompleted,
		CompletedAt: time.Now(),
	})
	assert.Error(t, err)
}
