package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/agepath/placement-engine/internal/domain/assessment"
	"github.com/agepath/placement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PLACEMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// PlacementRepository implements assessment.PlacementRepository for PostgreSQL.
type PlacementRepository struct {
	q Querier
}

const placementColumns = `
	id, student_id, tenant_id, subject, current_age_id, initial_age_id,
	current_lesson_number, lessons_completed, status, ready_for_promotion,
	placement_method, notes, placed_by, placed_at, updated_at, archived_at
`

// ─────────────────────────────────────────────────────────────────────────────
// Writes
// ─────────────────────────────────────────────────────────────────────────────

// Create inserts a placement. The partial unique index on (student_id,
// subject) rejects a second non-archived placement.
func (r *PlacementRepository) Create(ctx context.Context, p *assessment.Placement) error {
	query := `
		INSERT INTO age_placements (` + placementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.q.Exec(ctx, query,
		p.ID,
		p.StudentID,
		p.TenantID,
		string(p.Subject),
		p.CurrentAgeID,
		p.InitialAgeID,
		p.CurrentLessonNumber,
		p.LessonsCompleted,
		string(p.Status),
		p.ReadyForPromotion,
		string(p.PlacementMethod),
		p.Notes,
		p.PlacedBy,
		p.PlacedAt,
		p.UpdatedAt,
		p.ArchivedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.Conflict("placement", "Create", "student already has an active placement in "+p.Subject.String())
		}
		if IsForeignKeyViolation(err) {
			return shared.NotFound("placement", "Create", "assessment level not found")
		}
		return fmt.Errorf("failed to create placement: %w", err)
	}

	return nil
}

// Update persists every mutable column of a placement.
func (r *PlacementRepository) Update(ctx context.Context, p *assessment.Placement) error {
	query := `
		UPDATE age_placements SET
			current_age_id = $1,
			current_lesson_number = $2,
			lessons_completed = $3,
			status = $4,
			ready_for_promotion = $5,
			notes = $6,
			updated_at = $7,
			archived_at = $8
		WHERE id = $9
	`

	result, err := r.q.Exec(ctx, query,
		p.CurrentAgeID,
		p.CurrentLessonNumber,
		p.LessonsCompleted,
		string(p.Status),
		p.ReadyForPromotion,
		p.Notes,
		p.UpdatedAt,
		p.ArchivedAt,
		p.ID,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.Conflict("placement", "Update", "student already has an active placement in "+p.Subject.String())
		}
		return fmt.Errorf("failed to update placement: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.NotFound("placement", "Update", "placement not found")
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

// GetByID returns a placement by ID.
func (r *PlacementRepository) GetByID(ctx context.Context, id string) (*assessment.Placement, error) {
	query := `SELECT ` + placementColumns + ` FROM age_placements WHERE id = $1`
	return r.getOne(ctx, "GetByID", query, id)
}

// GetForUpdate reads the placement with FOR UPDATE. Outside a transaction
// the lock is released as soon as the statement completes.
func (r *PlacementRepository) GetForUpdate(ctx context.Context, id string) (*assessment.Placement, error) {
	query := `SELECT ` + placementColumns + ` FROM age_placements WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, "GetForUpdate", query, id)
}

// FindActive returns the non-archived placement for (student, subject) or nil.
func (r *PlacementRepository) FindActive(ctx context.Context, studentID string, subject assessment.Subject) (*assessment.Placement, error) {
	query := `
		SELECT ` + placementColumns + `
		FROM age_placements
		WHERE student_id = $1 AND subject = $2 AND status <> 'ARCHIVED'
	`

	p, err := scanPlacement(r.q.QueryRow(ctx, query, studentID, string(subject)))
	if IsNoRows(err) {
		return nil, nil
	}
	return p, err
}

// ListByStudent returns a student's placements, newest first.
func (r *PlacementRepository) ListByStudent(ctx context.Context, studentID string, includeArchived bool) ([]*assessment.Placement, error) {
	query := `
		SELECT ` + placementColumns + `
		FROM age_placements
		WHERE student_id = $1 AND ($2 OR status <> 'ARCHIVED')
		ORDER BY placed_at DESC, id
	`

	return r.list(ctx, query, studentID, includeArchived)
}

// ListActiveByStudents batch-loads non-archived placements.
func (r *PlacementRepository) ListActiveByStudents(ctx context.Context, studentIDs []string, subject *assessment.Subject) ([]*assessment.Placement, error) {
	if len(studentIDs) == 0 {
		return []*assessment.Placement{}, nil
	}

	var subjectFilter *string
	if subject != nil {
		s := string(*subject)
		subjectFilter = &s
	}

	query := `
		SELECT ` + placementColumns + `
		FROM age_placements
		WHERE student_id = ANY($1)
		  AND status <> 'ARCHIVED'
		  AND ($2::text IS NULL OR subject = $2)
		ORDER BY student_id, subject
	`

	return r.list(ctx, query, studentIDs, subjectFilter)
}

func (r *PlacementRepository) getOne(ctx context.Context, op, query string, args ...interface{}) (*assessment.Placement, error) {
	p, err := scanPlacement(r.q.QueryRow(ctx, query, args...))
	if IsNoRows(err) {
		return nil, shared.NotFound("placement", op, "placement not found")
	}
	return p, err
}

func (r *PlacementRepository) list(ctx context.Context, query string, args ...interface{}) ([]*assessment.Placement, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list placements: %w", err)
	}
	defer rows.Close()

	placements := make([]*assessment.Placement, 0)
	for rows.Next() {
		p, err := scanPlacement(rows)
		if err != nil {
			return nil, err
		}
		placements = append(placements, p)
	}

	return placements, rows.Err()
}

func scanPlacement(row pgx.Row) (*assessment.Placement, error) {
	var (
		p                       assessment.Placement
		subject, status, method string
	)

	err := row.Scan(
		&p.ID,
		&p.StudentID,
		&p.TenantID,
		&subject,
		&p.CurrentAgeID,
		&p.InitialAgeID,
		&p.CurrentLessonNumber,
		&p.LessonsCompleted,
		&status,
		&p.ReadyForPromotion,
		&method,
		&p.Notes,
		&p.PlacedBy,
		&p.PlacedAt,
		&p.UpdatedAt,
		&p.ArchivedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan placement: %w", err)
	}

	p.Subject = assessment.Subject(subject)
	p.Status = assessment.PlacementStatus(status)
	p.PlacementMethod = assessment.PlacementMethod(method)
	return &p, nil
}
