package assessment

import (
	"time"

	"github.com/agepath/placement-engine/internal/domain/shared"
)

// ChangeType classifies a history row.
type ChangeType string

const (
	ChangeInitialPlacement  ChangeType = "INITIAL_PLACEMENT"
	ChangeManualOverride    ChangeType = "MANUAL_OVERRIDE"
	ChangePromotionTestPass ChangeType = "PROMOTION_TEST_PASS"
	// ChangeReadinessFlagged records a readiness flip without a level change.
	// Only written when readiness auditing is switched on.
	ChangeReadinessFlagged ChangeType = "READINESS_FLAGGED"
)

// HistoryEntry is one append-only row of a placement's level audit trail.
type HistoryEntry struct {
	ID          string
	PlacementID string
	StudentID   string
	Subject     Subject
	FromLevelID *string
	ToLevelID   string
	ChangeType  ChangeType
	Reason      string
	ActorID     string
	CreatedAt   time.Time
}

// NewHistoryEntry records the placement's current level as the target.
func NewHistoryEntry(p *Placement, from *string, changeType ChangeType, reason, actorID string, now time.Time) *HistoryEntry {
	return &HistoryEntry{
		ID:          shared.NewID(),
		PlacementID: p.ID,
		StudentID:   p.StudentID,
		Subject:     p.Subject,
		FromLevelID: from,
		ToLevelID:   p.CurrentAgeID,
		ChangeType:  changeType,
		Reason:      reason,
		ActorID:     actorID,
		CreatedAt:   now.UTC(),
	}
}

// Clone returns a deep copy.
func (h *HistoryEntry) Clone() *HistoryEntry {
	c := *h
	if h.FromLevelID != nil {
		f := *h.FromLevelID
		c.FromLevelID = &f
	}
	return &c
}
