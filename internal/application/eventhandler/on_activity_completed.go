// Package eventhandler contains domain event handlers: the reactive
// half of the engine. Handlers are tolerant by design - a missing plan
// or suggestion is logged and skipped, never fatal, because the ledger
// write that produced the event has already happened.
package eventhandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/seedlinghq/seedling-engine/internal/domain/plan"
	"github.com/seedlinghq/seedling-engine/internal/domain/progress"
	"github.com/seedlinghq/seedling-engine/internal/domain/shared"
	"github.com/seedlinghq/seedling-engine/internal/domain/skill"
	"github.com/seedlinghq/seedling-engine/internal/domain/suggestion"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON ACTIVITY COMPLETED HANDLER
// Runs the completion feedback loop:
//  1. Deduplicate - the same completion may be delivered more than once.
//  2. Advance every demonstrated skill through the mastery state machine.
//  3. Close the matching entries in the week's plan.
//  4. Complete the matching open suggestion and its audit log entry.
// ═══════════════════════════════════════════════════════════════════════════

// OnActivityCompletedHandler reacts to completed progress records.
type OnActivityCompletedHandler struct {
	statusRepo      skill.StatusRepository
	planRepo        plan.Repository
	suggestionRepo  suggestion.Repository
	logRepo         suggestion.LogRepository
	processedEvents progress.ProcessedEventStore
	eventPublisher  shared.EventPublisher

	logger *slog.Logger
	config ActivityCompletedConfig
}

// ActivityCompletedConfig contains handler configuration.
type ActivityCompletedConfig struct {
	// DedupTTL is how long processed-event keys are remembered.
	DedupTTL time.Duration

	// PublishSkillEvents controls whether skill advancements emit their
	// own events.
	PublishSkillEvents bool
}

// DefaultActivityCompletedConfig returns the default configuration.
func DefaultActivityCompletedConfig() ActivityCompletedConfig {
	return ActivityCompletedConfig{
		DedupTTL:           45 * 24 * time.Hour,
		PublishSkillEvents: true,
	}
}

// NewOnActivityCompletedHandler creates a new handler.
func NewOnActivityCompletedHandler(
	statusRepo skill.StatusRepository,
	planRepo plan.Repository,
	suggestionRepo suggestion.Repository,
	logRepo suggestion.LogRepository,
	processedEvents progress.ProcessedEventStore,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
	config ActivityCompletedConfig,
) *OnActivityCompletedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.DedupTTL == 0 {
		config = DefaultActivityCompletedConfig()
	}

	return &OnActivityCompletedHandler{
		statusRepo:      statusRepo,
		planRepo:        planRepo,
		suggestionRepo:  suggestionRepo,
		logRepo:         logRepo,
		processedEvents: processedEvents,
		eventPublisher:  eventPublisher,
		logger:          logger.With("handler", "on_activity_completed"),
		config:          config,
	}
}

// Handle processes an activity completed event.
// Implements the shared.EventHandler signature.
func (h *OnActivityCompletedHandler) Handle(event shared.Event) error {
	ctx := context.Background()

	completed, ok := event.(shared.ActivityCompletedEvent)
	if !ok {
		h.logger.Warn("received non-ActivityCompletedEvent",
			"event_type", event.EventType(),
		)
		return nil
	}

	// 1. Idempotency gate: check and record the dedup key before any
	// side effect, so a redelivery after a partial failure is still
	// recognized.
	already, err := h.processedEvents.CheckAndRecord(ctx, completed.DedupKey(), h.config.DedupTTL)
	if err != nil {
		return fmt.Errorf("check processed events: %w", err)
	}
	if already {
		h.logger.Debug("duplicate completion event skipped",
			"child_id", completed.ChildID,
			"activity_id", completed.ActivityID,
			"dedup_key", completed.DedupKey(),
		)
		return nil
	}

	h.logger.Info("processing activity completion",
		"child_id", completed.ChildID,
		"activity_id", completed.ActivityID,
		"skills", len(completed.SkillsDemonstrated),
	)

	// 2. Skill progression.
	if err := h.advanceSkills(ctx, completed); err != nil {
		h.logger.Error("failed to advance skills",
			"child_id", completed.ChildID,
			"error", err,
		)
		return fmt.Errorf("advance skills: %w", err)
	}

	// 3. Plan closure.
	if err := h.closePlanEntries(ctx, completed); err != nil {
		h.logger.Error("failed to close plan entries",
			"child_id", completed.ChildID,
			"error", err,
		)
	}

	// 4. Suggestion closure.
	if err := h.completeSuggestion(ctx, completed); err != nil {
		h.logger.Error("failed to complete suggestion",
			"child_id", completed.ChildID,
			"activity_id", completed.ActivityID,
			"error", err,
		)
	}

	return nil
}

// advanceSkills runs each demonstrated skill through the state machine,
// creating the tracking record at emerging on first demonstration.
func (h *OnActivityCompletedHandler) advanceSkills(ctx context.Context, event shared.ActivityCompletedEvent) error {
	for _, skillID := range event.SkillsDemonstrated {
		status, err := h.statusRepo.GetStatus(ctx, event.ChildID, skillID)
		switch {
		case errors.Is(err, shared.ErrSkillStatusNotFound) || shared.IsNotFound(err):
			created, err := skill.NewChildSkillStatus(uuid.NewString(), event.ChildID, skillID, event.CompletedAt)
			if err != nil {
				return fmt.Errorf("create status for skill %s: %w", skillID, err)
			}
			if err := h.statusRepo.SaveStatus(ctx, created); err != nil {
				return fmt.Errorf("save status for skill %s: %w", skillID, err)
			}
			h.publishSkillAdvanced(event.ChildID, skillID, skill.StatusNotStarted, skill.StatusEmerging)

		case err != nil:
			return fmt.Errorf("load status for skill %s: %w", skillID, err)

		default:
			tr := status.RecordDemonstration(event.CompletedAt)
			if err := h.statusRepo.SaveStatus(ctx, status); err != nil {
				return fmt.Errorf("save status for skill %s: %w", skillID, err)
			}
			if tr.Advanced() {
				h.publishSkillAdvanced(event.ChildID, skillID, tr.From, tr.To)
			}
		}
	}
	return nil
}

func (h *OnActivityCompletedHandler) publishSkillAdvanced(childID shared.ChildID, skillID shared.SkillID, from, to skill.Status) {
	h.logger.Info("skill advanced",
		"child_id", childID,
		"skill_id", skillID,
		"from", from,
		"to", to,
	)
	if !h.config.PublishSkillEvents || h.eventPublisher == nil {
		return
	}
	_ = h.eventPublisher.Publish(shared.NewSkillAdvancedEvent(childID, skillID, string(from), string(to)))
}

// closePlanEntries flips every matching entry in the completion week's
// plan. A child without a plan for that week is normal - spontaneous
// activity happens - so a missing plan is only logged.
func (h *OnActivityCompletedHandler) closePlanEntries(ctx context.Context, event shared.ActivityCompletedEvent) error {
	p, err := h.planRepo.GetByChildAndWeek(ctx, event.ChildID, event.CompletedAt)
	if errors.Is(err, shared.ErrPlanNotFound) || shared.IsNotFound(err) {
		h.logger.Debug("no plan for completion week",
			"child_id", event.ChildID,
			"completed_at", event.CompletedAt,
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load plan: %w", err)
	}

	changed := p.MarkActivityCompleted(event.ActivityID)
	if changed == 0 {
		return nil
	}
	if err := h.planRepo.Save(ctx, p); err != nil {
		return fmt.Errorf("save plan: %w", err)
	}

	h.logger.Info("plan entries completed",
		"plan_id", p.ID,
		"activity_id", event.ActivityID,
		"entries", changed,
	)
	return nil
}

// completeSuggestion closes the open suggestion for the pair, if any,
// and records the outcome in the audit log.
func (h *OnActivityCompletedHandler) completeSuggestion(ctx context.Context, event shared.ActivityCompletedEvent) error {
	s, err := h.suggestionRepo.GetOpenByChildAndActivity(ctx, event.ChildID, event.ActivityID)
	if errors.Is(err, shared.ErrSuggestionNotFound) || shared.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load suggestion: %w", err)
	}

	if err := s.Complete(); err != nil {
		return fmt.Errorf("complete suggestion %s: %w", s.ID, err)
	}
	if err := h.suggestionRepo.Save(ctx, s); err != nil {
		return fmt.Errorf("save suggestion %s: %w", s.ID, err)
	}
	_ = h.logRepo.CloseOpen(ctx, event.ChildID, event.ActivityID, suggestion.StatusCompleted, event.CompletedAt)
	return nil
}

// EventType returns the event type this handler subscribes to.
func (h *OnActivityCompletedHandler) EventType() shared.EventType {
	return shared.EventActivityCompleted
}
