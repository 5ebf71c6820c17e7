package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Events are published only after the transaction that
// produced them has committed.
const (
	// Placement lifecycle
	EventPlacementCreated      EventType = "assessment.placement_created"
	EventPlacementLevelChanged EventType = "assessment.level_changed"
	EventPlacementUpdated      EventType = "assessment.placement_updated"
	EventPlacementArchived     EventType = "assessment.placement_archived"

	// Lesson progress
	EventLessonSubmitted   EventType = "assessment.lesson_submitted"
	EventLessonMarked      EventType = "assessment.lesson_marked"
	EventReadyForPromotion EventType = "assessment.ready_for_promotion"
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
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Placement Events
// ═══════════════════════════════════════════════════════════════════════════

// PlacementCreatedEvent is emitted when a student is placed in a subject.
type PlacementCreatedEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	TenantID  string `json:"tenant_id"`
	Subject   string `json:"subject"`
	LevelID   string `json:"level_id"`
	PlacedBy  string `json:"placed_by"`
}

// Payload implements Event interface.
func (e PlacementCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"tenant_id":  e.TenantID,
		"subject":    e.Subject,
		"level_id":   e.LevelID,
		"placed_by":  e.PlacedBy,
	}
}

// NewPlacementCreatedEvent creates a new PlacementCreatedEvent.
func NewPlacementCreatedEvent(placementID, studentID, tenantID, subject, levelID, placedBy string) PlacementCreatedEvent {
	return PlacementCreatedEvent{
		BaseEvent: NewBaseEvent(EventPlacementCreated, placementID),
		StudentID: studentID,
		TenantID:  tenantID,
		Subject:   subject,
		LevelID:   levelID,
		PlacedBy:  placedBy,
	}
}

// PlacementLevelChangedEvent is emitted when an override moves a placement to
// another level.
type PlacementLevelChangedEvent struct {
	BaseEvent
	StudentID   string `json:"student_id"`
	TenantID    string `json:"tenant_id"`
	Subject     string `json:"subject"`
	FromLevelID string `json:"from_level_id"`
	ToLevelID   string `json:"to_level_id"`
	ChangedBy   string `json:"changed_by"`
}

// Payload implements Event interface.
func (e PlacementLevelChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":    e.StudentID,
		"tenant_id":     e.TenantID,
		"subject":       e.Subject,
		"from_level_id": e.FromLevelID,
		"to_level_id":   e.ToLevelID,
		"changed_by":    e.ChangedBy,
	}
}

// NewPlacementLevelChangedEvent creates a new PlacementLevelChangedEvent.
func NewPlacementLevelChangedEvent(placementID, studentID, tenantID, subject, fromLevelID, toLevelID, changedBy string) PlacementLevelChangedEvent {
	return PlacementLevelChangedEvent{
		BaseEvent:   NewBaseEvent(EventPlacementLevelChanged, placementID),
		StudentID:   studentID,
		TenantID:    tenantID,
		Subject:     subject,
		FromLevelID: fromLevelID,
		ToLevelID:   toLevelID,
		ChangedBy:   changedBy,
	}
}

// PlacementUpdatedEvent is emitted for overrides that leave the level unchanged.
type PlacementUpdatedEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	TenantID  string `json:"tenant_id"`
	UpdatedBy string `json:"updated_by"`
}

// Payload implements Event interface.
func (e PlacementUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"tenant_id":  e.TenantID,
		"updated_by": e.UpdatedBy,
	}
}

// NewPlacementUpdatedEvent creates a new PlacementUpdatedEvent.
func NewPlacementUpdatedEvent(placementID, studentID, tenantID, updatedBy string) PlacementUpdatedEvent {
	return PlacementUpdatedEvent{
		BaseEvent: NewBaseEvent(EventPlacementUpdated, placementID),
		StudentID: studentID,
		TenantID:  tenantID,
		UpdatedBy: updatedBy,
	}
}

// PlacementArchivedEvent is emitted when a placement becomes ARCHIVED.
type PlacementArchivedEvent struct {
	BaseEvent
	StudentID  string `json:"student_id"`
	TenantID   string `json:"tenant_id"`
	Subject    string `json:"subject"`
	ArchivedBy string `json:"archived_by"`
}

// Payload implements Event interface.
func (e PlacementArchivedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":  e.StudentID,
		"tenant_id":   e.TenantID,
		"subject":     e.Subject,
		"archived_by": e.ArchivedBy,
	}
}

// NewPlacementArchivedEvent creates a new PlacementArchivedEvent.
func NewPlacementArchivedEvent(placementID, studentID, tenantID, subject, archivedBy string) PlacementArchivedEvent {
	return PlacementArchivedEvent{
		BaseEvent:  NewBaseEvent(EventPlacementArchived, placementID),
		StudentID:  studentID,
		TenantID:   tenantID,
		Subject:    subject,
		ArchivedBy: archivedBy,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Lesson Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// LessonSubmittedEvent is emitted when a completion moves to SUBMITTED.
// RecipientID is the staff member who should review it.
type LessonSubmittedEvent struct {
	BaseEvent
	StudentID   string `json:"student_id"`
	TenantID    string `json:"tenant_id"`
	Subject     string `json:"subject"`
	LessonID    string `json:"lesson_id"`
	LessonTitle string `json:"lesson_title"`
	RecipientID string `json:"recipient_id"`
}

// Payload implements Event interface.
func (e LessonSubmittedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":   e.StudentID,
		"tenant_id":    e.TenantID,
		"subject":      e.Subject,
		"lesson_id":    e.LessonID,
		"lesson_title": e.LessonTitle,
		"recipient_id": e.RecipientID,
	}
}

// NewLessonSubmittedEvent creates a new LessonSubmittedEvent.
func NewLessonSubmittedEvent(placementID, studentID, tenantID, subject, lessonID, lessonTitle, recipientID string) LessonSubmittedEvent {
	return LessonSubmittedEvent{
		BaseEvent:   NewBaseEvent(EventLessonSubmitted, placementID),
		StudentID:   studentID,
		TenantID:    tenantID,
		Subject:     subject,
		LessonID:    lessonID,
		LessonTitle: lessonTitle,
		RecipientID: recipientID,
	}
}

// LessonMarkedEvent is emitted when a completion is graded.
type LessonMarkedEvent struct {
	BaseEvent
	StudentID        string   `json:"student_id"`
	TenantID         string   `json:"tenant_id"`
	LessonID         string   `json:"lesson_id"`
	Score            *float64 `json:"score,omitempty"`
	LessonsCompleted int      `json:"lessons_completed"`
	GradedBy         string   `json:"graded_by"`
}

// Payload implements Event interface.
func (e LessonMarkedEvent) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"student_id":        e.StudentID,
		"tenant_id":         e.TenantID,
		"lesson_id":         e.LessonID,
		"lessons_completed": e.LessonsCompleted,
		"graded_by":         e.GradedBy,
	}
	if e.Score != nil {
		p["score"] = *e.Score
	}
	return p
}

// NewLessonMarkedEvent creates a new LessonMarkedEvent.
func NewLessonMarkedEvent(placementID, studentID, tenantID, lessonID string, score *float64, lessonsCompleted int, gradedBy string) LessonMarkedEvent {
	return LessonMarkedEvent{
		BaseEvent:        NewBaseEvent(EventLessonMarked, placementID),
		StudentID:        studentID,
		TenantID:         tenantID,
		LessonID:         lessonID,
		Score:            score,
		LessonsCompleted: lessonsCompleted,
		GradedBy:         gradedBy,
	}
}

// ReadyForPromotionEvent is emitted once, when a placement first reaches the
// promotion threshold.
type ReadyForPromotionEvent struct {
	BaseEvent
	StudentID        string `json:"student_id"`
	TenantID         string `json:"tenant_id"`
	Subject          string `json:"subject"`
	LevelID          string `json:"level_id"`
	LessonsCompleted int    `json:"lessons_completed"`
	RecipientID      string `json:"recipient_id"`
	ActorID          string `json:"actor_id"`
}

// Payload implements Event interface.
func (e ReadyForPromotionEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":        e.StudentID,
		"tenant_id":         e.TenantID,
		"subject":           e.Subject,
		"level_id":          e.LevelID,
		"lessons_completed": e.LessonsCompleted,
		"recipient_id":      e.RecipientID,
		"actor_id":          e.ActorID,
	}
}

// NewReadyForPromotionEvent creates a new ReadyForPromotionEvent.
func NewReadyForPromotionEvent(placementID, studentID, tenantID, subject, levelID string, lessonsCompleted int, recipientID, actorID string) ReadyForPromotionEvent {
	return ReadyForPromotionEvent{
		BaseEvent:        NewBaseEvent(EventReadyForPromotion, placementID),
		StudentID:        studentID,
		TenantID:         tenantID,
		Subject:          subject,
		LevelID:          levelID,
		LessonsCompleted: lessonsCompleted,
		RecipientID:      recipientID,
		ActorID:          actorID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus contracts
// ═══════════════════════════════════════════════════════════════════════════

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

// StringField reads a string value from an event payload. Events that crossed
// a process boundary only carry their payload, so handlers read through this.
func StringField(e Event, key string) string {
	if v, ok := e.Payload()[key].(string); ok {
		return v
	}
	return ""
}
