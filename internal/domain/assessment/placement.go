package assessment

import (
	"fmt"
	"strings"
	"time"

	"github.com/agepath/placement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// PlacementStatus is the lifecycle state of a placement.
type PlacementStatus string

const (
	// StatusActive - the placement is the student's current level in the subject.
	StatusActive PlacementStatus = "ACTIVE"
	// StatusArchived - terminal; frees the (student, subject) slot.
	StatusArchived PlacementStatus = "ARCHIVED"
)

// IsValid checks if the status is known.
func (s PlacementStatus) IsValid() bool {
	return s == StatusActive || s == StatusArchived
}

// PlacementMethod records how the initial level was decided.
type PlacementMethod string

const (
	MethodAssessmentTest   PlacementMethod = "ASSESSMENT_TEST"
	MethodTeacherJudgement PlacementMethod = "TEACHER_JUDGEMENT"
	MethodTransfer         PlacementMethod = "TRANSFER"
	MethodOther            PlacementMethod = "OTHER"
)

// IsValid checks if the method is known.
func (m PlacementMethod) IsValid() bool {
	switch m {
	case MethodAssessmentTest, MethodTeacherJudgement, MethodTransfer, MethodOther:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: PLACEMENT
// ══════════════════════════════════════════════════════════════════════════════

// Placement is a student's current assessment level in one subject, with the
// lesson progress counted toward promotion.
type Placement struct {
	ID        string
	StudentID string
	TenantID  string
	Subject   Subject

	CurrentAgeID string
	// InitialAgeID never changes after creation.
	InitialAgeID string

	CurrentLessonNumber int
	// LessonsCompleted mirrors the number of MARKED completions.
	LessonsCompleted  int
	Status            PlacementStatus
	ReadyForPromotion bool

	PlacementMethod PlacementMethod
	Notes           string
	PlacedBy        string

	PlacedAt   time.Time
	UpdatedAt  time.Time
	ArchivedAt *time.Time
}

// NewPlacementParams are the inputs of a new placement.
type NewPlacementParams struct {
	StudentID string
	TenantID  string
	Subject   Subject
	LevelID   string
	Method    PlacementMethod
	Notes     string
	PlacedBy  string
}

// NewPlacement creates an ACTIVE placement at lesson 1 with no progress.
func NewPlacement(params NewPlacementParams, now time.Time) (*Placement, error) {
	var fields []shared.FieldError
	if params.StudentID == "" {
		fields = append(fields, shared.FieldError{Field: "studentId", Message: "is required"})
	}
	if !params.Subject.IsValid() {
		fields = append(fields, shared.FieldError{Field: "subject", Message: "unknown subject"})
	}
	if params.LevelID == "" {
		fields = append(fields, shared.FieldError{Field: "ageLevelId", Message: "is required"})
	}
	if !params.Method.IsValid() {
		fields = append(fields, shared.FieldError{Field: "placementMethod", Message: "unknown placement method"})
	}
	if params.PlacedBy == "" {
		fields = append(fields, shared.FieldError{Field: "placedBy", Message: "is required"})
	}
	if len(fields) > 0 {
		return nil, shared.Invalid("placement", "New", "invalid placement", fields...)
	}

	now = now.UTC()
	return &Placement{
		ID:                  shared.NewID(),
		StudentID:           params.StudentID,
		TenantID:            params.TenantID,
		Subject:             params.Subject,
		CurrentAgeID:        params.LevelID,
		InitialAgeID:        params.LevelID,
		CurrentLessonNumber: 1,
		LessonsCompleted:    0,
		Status:              StatusActive,
		ReadyForPromotion:   false,
		PlacementMethod:     params.Method,
		Notes:               strings.TrimSpace(params.Notes),
		PlacedBy:            params.PlacedBy,
		PlacedAt:            now,
		UpdatedAt:           now,
	}, nil
}

// IsArchived reports whether the placement reached its terminal state.
func (p *Placement) IsArchived() bool {
	return p.Status == StatusArchived
}

// Archive moves an ACTIVE placement to ARCHIVED.
func (p *Placement) Archive(notes string, now time.Time) error {
	if p.IsArchived() {
		return shared.Invalid("placement", "Archive", "placement is already archived")
	}
	now = now.UTC()
	p.Status = StatusArchived
	p.ArchivedAt = &now
	p.UpdatedAt = now
	if notes = strings.TrimSpace(notes); notes != "" {
		p.Notes = notes
	}
	return nil
}

// ApplyMarkedCount stores the recounted number of MARKED completions and flags
// readiness the first time the threshold is reached. It returns true only on
// that false→true flip. Readiness is never cleared here.
func (p *Placement) ApplyMarkedCount(count int, policy Policy, now time.Time) bool {
	p.LessonsCompleted = count
	p.UpdatedAt = now.UTC()
	if !p.ReadyForPromotion && policy.ReachedThreshold(count) {
		p.ReadyForPromotion = true
		return true
	}
	return false
}

// Override is a partial manual correction. Nil fields are left unchanged.
// LevelID is the already resolved target level.
type Override struct {
	LevelID             *string
	CurrentLessonNumber *int
	Status              *PlacementStatus
	ReadyForPromotion   *bool
	Notes               *string
}

// OverrideResult describes what an override changed.
type OverrideResult struct {
	LevelChanged bool
	FromLevelID  string
	Archived     bool
}

// ApplyOverride validates the whole override before mutating anything, so a
// rejected override leaves the placement untouched.
func (p *Placement) ApplyOverride(o Override, policy Policy, now time.Time) (OverrideResult, error) {
	var res OverrideResult
	if p.IsArchived() {
		return res, shared.Invalid("placement", "Override", "archived placements cannot be modified")
	}

	var fields []shared.FieldError
	if o.Status != nil && !o.Status.IsValid() {
		fields = append(fields, shared.FieldError{Field: "status", Message: "unknown status"})
	}
	if o.CurrentLessonNumber != nil && !policy.ValidLessonNumber(*o.CurrentLessonNumber) {
		fields = append(fields, shared.FieldError{
			Field:   "currentLessonNumber",
			Message: fmt.Sprintf("must be between 1 and %d", policy.LessonsPerLevel),
		})
	}
	if o.LevelID != nil && *o.LevelID == "" {
		fields = append(fields, shared.FieldError{Field: "ageLevelId", Message: "is required"})
	}
	if len(fields) > 0 {
		return res, shared.Invalid("placement", "Override", "invalid override", fields...)
	}

	now = now.UTC()
	if o.LevelID != nil && *o.LevelID != p.CurrentAgeID {
		res.LevelChanged = true
		res.FromLevelID = p.CurrentAgeID
		p.CurrentAgeID = *o.LevelID
	}
	if o.CurrentLessonNumber != nil {
		p.CurrentLessonNumber = *o.CurrentLessonNumber
	}
	if o.ReadyForPromotion != nil {
		p.ReadyForPromotion = *o.ReadyForPromotion
	} else if policy.ReachedThreshold(p.LessonsCompleted) {
		p.ReadyForPromotion = true
	}
	if o.Notes != nil {
		p.Notes = strings.TrimSpace(*o.Notes)
	}
	if o.Status != nil && *o.Status == StatusArchived {
		p.Status = StatusArchived
		p.ArchivedAt = &now
		res.Archived = true
	}
	p.UpdatedAt = now
	return res, nil
}

// Clone returns a deep copy of the placement.
func (p *Placement) Clone() *Placement {
	c := *p
	if p.ArchivedAt != nil {
		t := *p.ArchivedAt
		c.ArchivedAt = &t
	}
	return &c
}

// LessonProgress returns "completed/lessonsPerLevel" as shown in the grid.
func (p *Placement) LessonProgress(policy Policy) string {
	return fmt.Sprintf("%d/%d", p.LessonsCompleted, policy.LessonsPerLevel)
}
