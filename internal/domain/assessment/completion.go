package assessment

import (
	"time"

	"github.com/agepath/placement-engine/internal/domain/shared"
)

// CompletionStatus is the progress state of one lesson within a placement.
type CompletionStatus string

const (
	CompletionInProgress CompletionStatus = "IN_PROGRESS"
	CompletionSubmitted  CompletionStatus = "SUBMITTED"
	CompletionMarked     CompletionStatus = "MARKED"
)

// IsValid checks if the status is known.
func (s CompletionStatus) IsValid() bool {
	switch s {
	case CompletionInProgress, CompletionSubmitted, CompletionMarked:
		return true
	default:
		return false
	}
}

// SelfServe reports whether a student may set this status on their own
// placement.
func (s CompletionStatus) SelfServe() bool {
	return s == CompletionInProgress || s == CompletionSubmitted
}

// LessonCompletion is the progress record of one lesson in one placement.
// There is at most one per (PlacementID, LessonID).
type LessonCompletion struct {
	ID              string
	PlacementID     string
	LessonID        string
	Status          CompletionStatus
	Score           *float64
	PercentageScore *float64
	StartedAt       time.Time
	SubmittedAt     *time.Time
	MarkedAt        *time.Time
	GradedBy        *string
	UpdatedAt       time.Time
}

// NewCompletion starts an empty IN_PROGRESS record.
func NewCompletion(placementID, lessonID string, now time.Time) *LessonCompletion {
	now = now.UTC()
	return &LessonCompletion{
		ID:          shared.NewID(),
		PlacementID: placementID,
		LessonID:    lessonID,
		Status:      CompletionInProgress,
		StartedAt:   now,
		UpdatedAt:   now,
	}
}

// CompletionUpdate is one write against a completion record.
type CompletionUpdate struct {
	Status     CompletionStatus
	Score      *float64
	Percentage *float64
	ActorID    string
}

// Apply overwrites status and score with the update. An update without a
// score clears the previous one. MarkedAt and GradedBy describe the latest
// MARKED write and are cleared once the lesson leaves MARKED; SubmittedAt
// keeps the first submission. Re-applying MARKED does not change the MARKED
// count of the placement.
func (c *LessonCompletion) Apply(u CompletionUpdate, now time.Time) {
	now = now.UTC()
	c.Status = u.Status
	switch u.Status {
	case CompletionSubmitted:
		if c.SubmittedAt == nil {
			c.SubmittedAt = &now
		}
	case CompletionMarked:
		c.MarkedAt = &now
		actor := u.ActorID
		c.GradedBy = &actor
	}
	if u.Status != CompletionMarked {
		c.MarkedAt = nil
		c.GradedBy = nil
	}

	c.Score = cloneFloat(u.Score)
	c.PercentageScore = nil
	if c.Score != nil {
		c.PercentageScore = cloneFloat(u.Percentage)
	}
	c.UpdatedAt = now
}

// IsMarked reports whether the completion counts toward promotion.
func (c *LessonCompletion) IsMarked() bool {
	return c.Status == CompletionMarked
}

// Clone returns a deep copy.
func (c *LessonCompletion) Clone() *LessonCompletion {
	out := *c
	out.Score = cloneFloat(c.Score)
	out.PercentageScore = cloneFloat(c.PercentageScore)
	out.SubmittedAt = cloneTime(c.SubmittedAt)
	out.MarkedAt = cloneTime(c.MarkedAt)
	if c.GradedBy != nil {
		g := *c.GradedBy
		out.GradedBy = &g
	}
	return &out
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
