// Package notification contains the in-app notifications raised by the
// placement engine for staff.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/agepath/placement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION TYPE
// ══════════════════════════════════════════════════════════════════════════════

// Type identifies what a notification is about.
type Type string

const (
	// TypeLessonSubmitted - a student submitted a lesson that needs marking.
	TypeLessonSubmitted Type = "ASSESSMENT_LESSON_SUBMITTED"

	// TypeReadyForPromotion - a placement reached the promotion threshold.
	TypeReadyForPromotion Type = "ASSESSMENT_READY_FOR_PROMOTION"
)

// IsValid checks if the type is known.
func (t Type) IsValid() bool {
	return t == TypeLessonSubmitted || t == TypeReadyForPromotion
}

// String returns the string representation.
func (t Type) String() string {
	return string(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: NOTIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// Notification is stored for the surrounding application to display.
type Notification struct {
	ID          string
	RecipientID string
	TenantID    string
	Type        Type
	Title       string
	Body        string
	Link        string
	Data        map[string]interface{}
	CreatedAt   time.Time
	ReadAt      *time.Time
}

// LessonSubmittedParams describes a submitted lesson.
type LessonSubmittedParams struct {
	RecipientID string
	TenantID    string
	PlacementID string
	StudentID   string
	StudentName string
	Subject     string
	LessonID    string
	LessonTitle string
}

// NewLessonSubmitted builds the notification sent to the placing teacher.
func NewLessonSubmitted(p LessonSubmittedParams, now time.Time) *Notification {
	student := p.StudentName
	if student == "" {
		student = "A student"
	}
	return &Notification{
		ID:          shared.NewID(),
		RecipientID: p.RecipientID,
		TenantID:    p.TenantID,
		Type:        TypeLessonSubmitted,
		Title:       "Lesson submitted for marking",
		Body:        fmt.Sprintf("%s submitted %q in %s.", student, p.LessonTitle, p.Subject),
		Link:        placementLink(p.PlacementID),
		Data: map[string]interface{}{
			"placementId": p.PlacementID,
			"studentId":   p.StudentID,
			"lessonId":    p.LessonID,
			"subject":     p.Subject,
		},
		CreatedAt: now.UTC(),
	}
}

// ReadyForPromotionParams describes a placement that reached the threshold.
type ReadyForPromotionParams struct {
	RecipientID      string
	TenantID         string
	PlacementID      string
	StudentID        string
	StudentName      string
	Subject          string
	LessonsCompleted int
}

// NewReadyForPromotion builds the notification of a readiness flip.
func NewReadyForPromotion(p ReadyForPromotionParams, now time.Time) *Notification {
	student := p.StudentName
	if student == "" {
		student = "A student"
	}
	return &Notification{
		ID:          shared.NewID(),
		RecipientID: p.RecipientID,
		TenantID:    p.TenantID,
		Type:        TypeReadyForPromotion,
		Title:       "Ready for promotion",
		Body:        fmt.Sprintf("%s has %d marked lessons in %s and is ready for a promotion test.", student, p.LessonsCompleted, p.Subject),
		Link:        placementLink(p.PlacementID),
		Data: map[string]interface{}{
			"placementId":      p.PlacementID,
			"studentId":        p.StudentID,
			"subject":          p.Subject,
			"lessonsCompleted": p.LessonsCompleted,
		},
		CreatedAt: now.UTC(),
	}
}

func placementLink(placementID string) string {
	return "/assessment/placements/" + placementID
}

// ══════════════════════════════════════════════════════════════════════════════
// SINK
// ══════════════════════════════════════════════════════════════════════════════

// Sink delivers notifications. Callers treat delivery as fire-and-forget and
// only log failures.
type Sink interface {
	Deliver(ctx context.Context, n *Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n *Notification) error

// Deliver implements Sink.
func (f SinkFunc) Deliver(ctx context.Context, n *Notification) error {
	return f(ctx, n)
}
