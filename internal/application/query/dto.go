package query

import (
	"time"

	"github.com/agepath/placement-engine/internal/domain/assessment"
)

// ══════════════════════════════════════════════════════════════════════════════
// DTOs
// ══════════════════════════════════════════════════════════════════════════════

// LevelDTO is an assessment level as returned to clients.
type LevelDTO struct {
	ID              string    `json:"id"`
	AgeYear         int       `json:"ageYear"`
	AgeMonth        int       `json:"ageMonth"`
	DisplayLabel    string    `json:"displayLabel"`
	LocaleYearLabel *string   `json:"localeYearLabel,omitempty"`
	IsActive        bool      `json:"isActive"`
	CreatedAt       time.Time `json:"createdAt"`
}

// NewLevelDTO converts a level. A nil level yields nil.
func NewLevelDTO(l *assessment.Level) *LevelDTO {
	if l == nil {
		return nil
	}
	return &LevelDTO{
		ID:              l.ID,
		AgeYear:         l.AgeYear,
		AgeMonth:        l.AgeMonth,
		DisplayLabel:    l.DisplayLabel(),
		LocaleYearLabel: l.LocaleYearLabel,
		IsActive:        l.IsActive,
		CreatedAt:       l.CreatedAt,
	}
}

// PlacementDTO is a placement with its resolved levels and lesson progress.
type PlacementDTO struct {
	ID                  string     `json:"id"`
	StudentID           string     `json:"studentId"`
	TenantID            string     `json:"tenantId"`
	Subject             string     `json:"subject"`
	CurrentAgeID        string     `json:"currentAgeId"`
	InitialAgeID        string     `json:"initialAgeId"`
	CurrentLevel        *LevelDTO  `json:"currentLevel,omitempty"`
	InitialLevel        *LevelDTO  `json:"initialLevel,omitempty"`
	CurrentLessonNumber int        `json:"currentLessonNumber"`
	LessonsCompleted    int        `json:"lessonsCompleted"`
	LessonsPerLevel     int        `json:"lessonsPerLevel"`
	LessonProgress      string     `json:"lessonProgress"`
	Status              string     `json:"status"`
	ReadyForPromotion   bool       `json:"readyForPromotion"`
	PlacementMethod     string     `json:"placementMethod"`
	Notes               string     `json:"notes,omitempty"`
	PlacedBy            string     `json:"placedBy"`
	PlacedAt            time.Time  `json:"placedAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
	ArchivedAt          *time.Time `json:"archivedAt,omitempty"`
}

// NewPlacementDTO converts a placement. The catalog may be nil, in which case
// levels are left unresolved.
func NewPlacementDTO(p *assessment.Placement, catalog *assessment.Catalog, policy assessment.Policy) *PlacementDTO {
	dto := &PlacementDTO{
		ID:                  p.ID,
		StudentID:           p.StudentID,
		TenantID:            p.TenantID,
		Subject:             p.Subject.String(),
		CurrentAgeID:        p.CurrentAgeID,
		InitialAgeID:        p.InitialAgeID,
		CurrentLessonNumber: p.CurrentLessonNumber,
		LessonsCompleted:    p.LessonsCompleted,
		LessonsPerLevel:     policy.LessonsPerLevel,
		LessonProgress:      p.LessonProgress(policy),
		Status:              string(p.Status),
		ReadyForPromotion:   p.ReadyForPromotion,
		PlacementMethod:     string(p.PlacementMethod),
		Notes:               p.Notes,
		PlacedBy:            p.PlacedBy,
		PlacedAt:            p.PlacedAt,
		UpdatedAt:           p.UpdatedAt,
		ArchivedAt:          p.ArchivedAt,
	}
	if catalog != nil {
		if l, ok := catalog.ByID(p.CurrentAgeID); ok {
			dto.CurrentLevel = NewLevelDTO(l)
		}
		if l, ok := catalog.ByID(p.InitialAgeID); ok {
			dto.InitialLevel = NewLevelDTO(l)
		}
	}
	return dto
}

// CompletionDTO is one lesson completion.
type CompletionDTO struct {
	ID              string     `json:"id"`
	PlacementID     string     `json:"placementId"`
	LessonID        string     `json:"lessonId"`
	Status          string     `json:"status"`
	Score           *float64   `json:"score,omitempty"`
	PercentageScore *float64   `json:"percentageScore,omitempty"`
	StartedAt       time.Time  `json:"startedAt"`
	SubmittedAt     *time.Time `json:"submittedAt,omitempty"`
	MarkedAt        *time.Time `json:"markedAt,omitempty"`
	GradedBy        *string    `json:"gradedBy,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// NewCompletionDTO converts a completion.
func NewCompletionDTO(c *assessment.LessonCompletion) *CompletionDTO {
	return &CompletionDTO{
		ID:              c.ID,
		PlacementID:     c.PlacementID,
		LessonID:        c.LessonID,
		Status:          string(c.Status),
		Score:           c.Score,
		PercentageScore: c.PercentageScore,
		StartedAt:       c.StartedAt,
		SubmittedAt:     c.SubmittedAt,
		MarkedAt:        c.MarkedAt,
		GradedBy:        c.GradedBy,
		UpdatedAt:       c.UpdatedAt,
	}
}

// HistoryEntryDTO is one audit row with level labels resolved.
type HistoryEntryDTO struct {
	ID          string    `json:"id"`
	PlacementID string    `json:"placementId"`
	StudentID   string    `json:"studentId"`
	Subject     string    `json:"subject"`
	FromLevelID *string   `json:"fromLevelId,omitempty"`
	FromLabel   *string   `json:"fromLabel,omitempty"`
	ToLevelID   string    `json:"toLevelId"`
	ToLabel     string    `json:"toLabel,omitempty"`
	ChangeType  string    `json:"changeType"`
	Reason      string    `json:"reason,omitempty"`
	ActorID     string    `json:"actorId"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newHistoryEntryDTO(h *assessment.HistoryEntry, catalog *assessment.Catalog) HistoryEntryDTO {
	dto := HistoryEntryDTO{
		ID:          h.ID,
		PlacementID: h.PlacementID,
		StudentID:   h.StudentID,
		Subject:     h.Subject.String(),
		FromLevelID: h.FromLevelID,
		ToLevelID:   h.ToLevelID,
		ChangeType:  string(h.ChangeType),
		Reason:      h.Reason,
		ActorID:     h.ActorID,
		CreatedAt:   h.CreatedAt,
	}
	if h.FromLevelID != nil {
		if l, ok := catalog.ByID(*h.FromLevelID); ok {
			label := l.DisplayLabel()
			dto.FromLabel = &label
		}
	}
	if l, ok := catalog.ByID(h.ToLevelID); ok {
		dto.ToLabel = l.DisplayLabel()
	}
	return dto
}
