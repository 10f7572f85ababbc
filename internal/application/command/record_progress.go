package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/seedlinghq/seedling-engine/internal/domain/child"
	"github.com/seedlinghq/seedling-engine/internal/domain/progress"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD PROGRESS COMMAND
// Appends one entry to the history ledger. A completed entry also emits
// the activity-completed event, which is the sole trigger for skill
// progression, plan closure and suggestion completion downstream.
// ══════════════════════════════════════════════════════════════════════════════

// RecordProgressCommand contains one observed activity attempt.
type RecordProgressCommand struct {
	ChildID    shared.ChildID
	ActivityID shared.ActivityID

	// Status is the attempt outcome.
	Status progress.RecordStatus

	// CompletedAt is required when Status is completed.
	CompletedAt time.Time

	// EngagementLevel and InterestLevel are optional observation grades.
	EngagementLevel shared.Level
	InterestLevel   shared.Level

	// SkillsDemonstrated lists the skills observed during the attempt.
	SkillsDemonstrated []shared.SkillID

	// DurationMinutes is the observed time spent, zero when not logged.
	DurationMinutes int

	// Notes is free-form observation text.
	Notes string
}

// Validate validates the command.
func (c RecordProgressCommand) Validate() error {
	if !c.ChildID.IsValid() {
		return shared.ErrInvalidChildID
	}
	if !c.ActivityID.IsValid() {
		return shared.ErrInvalidID
	}
	if !c.Status.IsValid() {
		return progress.ErrInvalidRecordStatus
	}
	if c.Status == progress.RecordStatusCompleted && c.CompletedAt.IsZero() {
		return progress.ErrMissingCompletedAt
	}
	if !c.EngagementLevel.IsValid() || !c.InterestLevel.IsValid() {
		return shared.ErrInvalidInput
	}
	return nil
}

// RecordProgressResult contains the stored record.
type RecordProgressResult struct {
	Record *progress.Record

	// EventPublished is true when a completion event went out.
	EventPublished bool
}

// RecordProgressHandler handles the RecordProgressCommand.
type RecordProgressHandler struct {
	childRepo      child.Repository
	progressRepo   progress.Repository
	eventPublisher shared.EventPublisher
}

// NewRecordProgressHandler creates a new RecordProgressHandler.
func NewRecordProgressHandler(
	childRepo child.Repository,
	progressRepo progress.Repository,
	eventPublisher shared.EventPublisher,
) *RecordProgressHandler {
	return &RecordProgressHandler{
		childRepo:      childRepo,
		progressRepo:   progressRepo,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the record progress command.
func (h *RecordProgressHandler) Handle(ctx context.Context, cmd RecordProgressCommand) (*RecordProgressResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_progress: validation failed: %w", err)
	}

	if _, err := h.childRepo.GetByID(ctx, cmd.ChildID); err != nil {
		return nil, fmt.Errorf("record_progress: failed to load child: %w", err)
	}

	record := &progress.Record{
		ID:                 uuid.NewString(),
		ChildID:            cmd.ChildID,
		ActivityID:         cmd.ActivityID,
		Status:             cmd.Status,
		EngagementLevel:    cmd.EngagementLevel,
		InterestLevel:      cmd.InterestLevel,
		SkillsDemonstrated: cmd.SkillsDemonstrated,
		DurationMinutes:    cmd.DurationMinutes,
		Notes:              cmd.Notes,
		CreatedAt:          time.Now().UTC(),
	}
	if cmd.Status == progress.RecordStatusCompleted {
		record.CompletedAt = cmd.CompletedAt.UTC()
	}

	if err := h.progressRepo.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("record_progress: failed to save record: %w", err)
	}

	result := &RecordProgressResult{Record: record}

	if record.IsCompleted() && h.eventPublisher != nil {
		event := shared.NewActivityCompletedEvent(record.ID, record.ChildID, record.ActivityID, record.CompletedAt, record.SkillsDemonstrated).
			WithObservations(record.EngagementLevel, record.InterestLevel)
		if err := h.eventPublisher.Publish(event); err == nil {
			result.EventPublished = true
		}
	}

	return result, nil
}
