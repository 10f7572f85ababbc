package shared

import (
	"fmt"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven half of the engine.
const (
	// Progress events
	EventActivityCompleted EventType = "progress.activity_completed"
	EventSkillAdvanced     EventType = "progress.skill_advanced"

	// Plan events
	EventPlanGenerated     EventType = "plan.generated"
	EventPlanEntryComplete EventType = "plan.entry_completed"

	// Suggestion events
	EventSuggestionsRefreshed EventType = "suggestion.refreshed"
	EventSuggestionAccepted   EventType = "suggestion.accepted"
	EventSuggestionCompleted  EventType = "suggestion.completed"

	// System events
	EventBatchRunCompleted EventType = "system.batch_run_completed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType { return e.Type }

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string { return e.AggregateId }

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ActivityCompletedEvent is emitted when a completed progress record is
// written for a child. This is the sole trigger for skill progression and
// plan closure.
type ActivityCompletedEvent struct {
	BaseEvent
	RecordID           string     `json:"record_id"`
	ChildID            ChildID    `json:"child_id"`
	ActivityID         ActivityID `json:"activity_id"`
	CompletedAt        time.Time  `json:"completed_at"`
	EngagementLevel    Level      `json:"engagement_level,omitempty"`
	InterestLevel      Level      `json:"interest_level,omitempty"`
	SkillsDemonstrated []SkillID  `json:"skills_demonstrated"`
}

// Payload implements Event interface.
func (e ActivityCompletedEvent) Payload() map[string]interface{} {
	skills := make([]string, len(e.SkillsDemonstrated))
	for i, s := range e.SkillsDemonstrated {
		skills[i] = s.String()
	}
	return map[string]interface{}{
		"record_id":           e.RecordID,
		"child_id":            e.ChildID.String(),
		"activity_id":         e.ActivityID.String(),
		"completed_at":        e.CompletedAt.Format(time.RFC3339),
		"engagement_level":    string(e.EngagementLevel),
		"interest_level":      string(e.InterestLevel),
		"skills_demonstrated": skills,
	}
}

// DedupKey derives the deterministic idempotency token for this completion:
// the same (child, activity, timestamp) triple always yields the same key,
// so a re-delivered event is recognized as already processed.
func (e ActivityCompletedEvent) DedupKey() string {
	return fmt.Sprintf("%s:%s:%d", e.ChildID, e.ActivityID, e.CompletedAt.Unix())
}

// NewActivityCompletedEvent creates a new ActivityCompletedEvent.
func NewActivityCompletedEvent(
	recordID string,
	childID ChildID,
	activityID ActivityID,
	completedAt time.Time,
	skills []SkillID,
) ActivityCompletedEvent {
	return ActivityCompletedEvent{
		BaseEvent:          NewBaseEvent(EventActivityCompleted, childID.String()),
		RecordID:           recordID,
		ChildID:            childID,
		ActivityID:         activityID,
		CompletedAt:        completedAt,
		SkillsDemonstrated: skills,
	}
}

// WithObservations attaches engagement/interest grades to the event.
func (e ActivityCompletedEvent) WithObservations(engagement, interest Level) ActivityCompletedEvent {
	e.EngagementLevel = engagement
	e.InterestLevel = interest
	return e
}

// SkillAdvancedEvent is emitted when a child's skill status moves forward.
type SkillAdvancedEvent struct {
	BaseEvent
	ChildID    ChildID `json:"child_id"`
	SkillID    SkillID `json:"skill_id"`
	FromStatus string  `json:"from_status"`
	ToStatus   string  `json:"to_status"`
}

// Payload implements Event interface.
func (e SkillAdvancedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"child_id":    e.ChildID.String(),
		"skill_id":    e.SkillID.String(),
		"from_status": e.FromStatus,
		"to_status":   e.ToStatus,
	}
}

// NewSkillAdvancedEvent creates a new SkillAdvancedEvent.
func NewSkillAdvancedEvent(childID ChildID, skillID SkillID, from, to string) SkillAdvancedEvent {
	return SkillAdvancedEvent{
		BaseEvent:  NewBaseEvent(EventSkillAdvanced, childID.String()),
		ChildID:    childID,
		SkillID:    skillID,
		FromStatus: from,
		ToStatus:   to,
	}
}

// PlanGeneratedEvent is emitted when a weekly plan is created or rebuilt.
type PlanGeneratedEvent struct {
	BaseEvent
	PlanID    string  `json:"plan_id"`
	ChildID   ChildID `json:"child_id"`
	WeekStart string  `json:"week_start"`
	Entries   int     `json:"entries"`
	Source    string  `json:"source"` // "batch" or "on_demand"
}

// Payload implements Event interface.
func (e PlanGeneratedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"plan_id":    e.PlanID,
		"child_id":   e.ChildID.String(),
		"week_start": e.WeekStart,
		"entries":    e.Entries,
		"source":     e.Source,
	}
}

// NewPlanGeneratedEvent creates a new PlanGeneratedEvent.
func NewPlanGeneratedEvent(planID string, childID ChildID, weekStart string, entries int, source string) PlanGeneratedEvent {
	return PlanGeneratedEvent{
		BaseEvent: NewBaseEvent(EventPlanGenerated, childID.String()),
		PlanID:    planID,
		ChildID:   childID,
		WeekStart: weekStart,
		Entries:   entries,
		Source:    source,
	}
}

// SuggestionsRefreshedEvent is emitted after a recommendation refresh pass
// for one child.
type SuggestionsRefreshedEvent struct {
	BaseEvent
	ChildID   ChildID `json:"child_id"`
	Created   int     `json:"created"`
	Updated   int     `json:"updated"`
	Evicted   int     `json:"evicted"`
	Evaluated int     `json:"evaluated"`
}

// Payload implements Event interface.
func (e SuggestionsRefreshedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"child_id":  e.ChildID.String(),
		"created":   e.Created,
		"updated":   e.Updated,
		"evicted":   e.Evicted,
		"evaluated": e.Evaluated,
	}
}

// NewSuggestionsRefreshedEvent creates a new SuggestionsRefreshedEvent.
func NewSuggestionsRefreshedEvent(childID ChildID, created, updated, evicted, evaluated int) SuggestionsRefreshedEvent {
	return SuggestionsRefreshedEvent{
		BaseEvent: NewBaseEvent(EventSuggestionsRefreshed, childID.String()),
		ChildID:   childID,
		Created:   created,
		Updated:   updated,
		Evicted:   evicted,
		Evaluated: evaluated,
	}
}

// BatchRunCompletedEvent is emitted when a scheduled job finishes a run.
// The aggregate is the system itself; dashboards subscribe to it for
// job health.
type BatchRunCompletedEvent struct {
	BaseEvent
	JobName    string        `json:"job_name"`
	Succeeded  bool          `json:"succeeded"`
	Duration   time.Duration `json:"duration"`
	Processed  int           `json:"processed"`
	FailedRows int           `json:"failed_rows"`
}

// Payload implements Event interface.
func (e BatchRunCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"job_name":    e.JobName,
		"succeeded":   e.Succeeded,
		"duration_ms": e.Duration.Milliseconds(),
		"processed":   e.Processed,
		"failed_rows": e.FailedRows,
	}
}

// NewBatchRunCompletedEvent creates a new BatchRunCompletedEvent.
func NewBatchRunCompletedEvent(jobName string, succeeded bool, duration time.Duration, processed, failedRows int) BatchRunCompletedEvent {
	return BatchRunCompletedEvent{
		BaseEvent:  NewBaseEvent(EventBatchRunCompleted, "system"),
		JobName:    jobName,
		Succeeded:  succeeded,
		Duration:   duration,
		Processed:  processed,
		FailedRows: failedRows,
	}
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
