package assessment

import (
	"github.com/agepath/placement-engine/internal/domain/shared"
)

// PlacementCreated builds the post-commit event of a new placement.
func PlacementCreated(p *Placement) shared.Event {
	return shared.NewPlacementCreatedEvent(p.ID, p.StudentID, p.TenantID, string(p.Subject), p.CurrentAgeID, p.PlacedBy)
}

// LevelChanged builds the event of an override that moved the level.
func LevelChanged(p *Placement, fromLevelID, actorID string) shared.Event {
	return shared.NewPlacementLevelChangedEvent(p.ID, p.StudentID, p.TenantID, string(p.Subject), fromLevelID, p.CurrentAgeID, actorID)
}

// PlacementUpdated builds the event of an override that kept the level.
func PlacementUpdated(p *Placement, actorID string) shared.Event {
	return shared.NewPlacementUpdatedEvent(p.ID, p.StudentID, p.TenantID, actorID)
}

// PlacementArchived builds the event of an archived placement.
func PlacementArchived(p *Placement, actorID string) shared.Event {
	return shared.NewPlacementArchivedEvent(p.ID, p.StudentID, p.TenantID, string(p.Subject), actorID)
}

// LessonSubmitted builds the event sent to the placing teacher when a lesson is
// submitted for marking.
func LessonSubmitted(p *Placement, lessonID, lessonTitle string) shared.Event {
	return shared.NewLessonSubmittedEvent(p.ID, p.StudentID, p.TenantID, string(p.Subject), lessonID, lessonTitle, p.PlacedBy)
}

// LessonMarked builds the event of a graded lesson.
func LessonMarked(p *Placement, c *LessonCompletion, actorID string) shared.Event {
	return shared.NewLessonMarkedEvent(p.ID, p.StudentID, p.TenantID, c.LessonID, c.Score, p.LessonsCompleted, actorID)
}

// ReadyForPromotion builds the event of the readiness flip.
func ReadyForPromotion(p *Placement, actorID string) shared.Event {
	return shared.NewReadyForPromotionEvent(p.ID, p.StudentID, p.TenantID, string(p.Subject), p.CurrentAgeID, p.LessonsCompleted, p.PlacedBy, actorID)
}
