package assessment

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence (postgres, memory).
// Lookups that find nothing return an error matching shared.ErrNotFound.
// ══════════════════════════════════════════════════════════════════════════════

// LevelRepository stores the age-level catalogue.
type LevelRepository interface {
	// Create inserts a level. Returns ErrConflict if (ageYear, ageMonth) exists.
	Create(ctx context.Context, level *Level) error

	// Update persists IsActive and LocaleYearLabel.
	Update(ctx context.Context, level *Level) error

	GetByID(ctx context.Context, id string) (*Level, error)

	GetByAge(ctx context.Context, ageYear, ageMonth int) (*Level, error)

	// List returns every level ordered by year, then month.
	List(ctx context.Context) ([]*Level, error)
}

// PlacementRepository stores placements.
type PlacementRepository interface {
	// Create inserts a placement. Returns ErrConflict if the student already
	// has a non-archived placement in the subject.
	Create(ctx context.Context, p *Placement) error

	Update(ctx context.Context, p *Placement) error

	GetByID(ctx context.Context, id string) (*Placement, error)

	// GetForUpdate reads the placement and holds a row lock until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*Placement, error)

	// FindActive returns the non-archived placement for (student, subject),
	// or nil without error when there is none.
	FindActive(ctx context.Context, studentID string, subject Subject) (*Placement, error)

	// ListByStudent returns a student's placements, newest first.
	ListByStudent(ctx context.Context, studentID string, includeArchived bool) ([]*Placement, error)

	// ListActiveByStudents batch-loads non-archived placements for many
	// students, optionally narrowed to one subject.
	ListActiveByStudents(ctx context.Context, studentIDs []string, subject *Subject) ([]*Placement, error)
}

// CompletionRepository stores lesson completions.
type CompletionRepository interface {
	// Get returns the completion for (placement, lesson), or nil without
	// error when there is none.
	Get(ctx context.Context, placementID, lessonID string) (*LessonCompletion, error)

	// Upsert inserts or replaces the row keyed by (placementID, lessonID).
	Upsert(ctx context.Context, c *LessonCompletion) error

	// CountMarked counts MARKED completions of a placement.
	CountMarked(ctx context.Context, placementID string) (int, error)

	ListByPlacement(ctx context.Context, placementID string) ([]*LessonCompletion, error)
}

// HistoryRepository is the append-only audit trail.
type HistoryRepository interface {
	Append(ctx context.Context, entry *HistoryEntry) error

	// ListByPlacement returns entries oldest first.
	ListByPlacement(ctx context.Context, placementID string) ([]*HistoryEntry, error)
}

// Repositories groups the repositories bound to one unit of work.
type Repositories struct {
	Levels      LevelRepository
	Placements  PlacementRepository
	Completions CompletionRepository
	History     HistoryRepository
}

// Store hands out repositories, either standalone or inside a transaction.
type Store interface {
	// Repositories returns repositories that run outside any transaction.
	Repositories() Repositories

	// WithinTx runs fn in one transaction. If fn returns an error every write
	// made through tx is discarded.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
}
