package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/agepath/placement-engine/internal/domain/assessment"
	"github.com/agepath/placement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LevelRepository implements assessment.LevelRepository for PostgreSQL.
type LevelRepository struct {
	q Querier
}

const levelColumns = `id, age_year, age_month, locale_year_label, is_active, created_at`

// Create inserts a level.
func (r *LevelRepository) Create(ctx context.Context, l *assessment.Level) error {
	query := `
		INSERT INTO assessment_levels (id, age_year, age_month, locale_year_label, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.q.Exec(ctx, query, l.ID, l.AgeYear, l.AgeMonth, l.LocaleYearLabel, l.IsActive, l.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.Conflict("level", "Create", "level "+l.DisplayLabel()+" already exists")
		}
		return fmt.Errorf("failed to create level: %w", err)
	}

	return nil
}

// Update persists IsActive and LocaleYearLabel.
func (r *LevelRepository) Update(ctx context.Context, l *assessment.Level) error {
	query := `
		UPDATE assessment_levels SET
			is_active = $1,
			locale_year_label = $2
		WHERE id = $3
	`

	result, err := r.q.Exec(ctx, query, l.IsActive, l.LocaleYearLabel, l.ID)
	if err != nil {
		return fmt.Errorf("failed to update level: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.NotFound("level", "Update", "level not found")
	}

	return nil
}

// GetByID returns a level by ID.
func (r *LevelRepository) GetByID(ctx context.Context, id string) (*assessment.Level, error) {
	query := `SELECT ` + levelColumns + ` FROM assessment_levels WHERE id = $1`

	l, err := scanLevel(r.q.QueryRow(ctx, query, id))
	if IsNoRows(err) {
		return nil, shared.NotFound("level", "GetByID", "level not found")
	}
	return l, err
}

// GetByAge returns the level for (ageYear, ageMonth).
func (r *LevelRepository) GetByAge(ctx context.Context, ageYear, ageMonth int) (*assessment.Level, error) {
	query := `SELECT ` + levelColumns + ` FROM assessment_levels WHERE age_year = $1 AND age_month = $2`

	l, err := scanLevel(r.q.QueryRow(ctx, query, ageYear, ageMonth))
	if IsNoRows(err) {
		return nil, shared.NotFound("level", "GetByAge", "assessment level not found")
	}
	return l, err
}

// List returns every level ordered by year, then month.
func (r *LevelRepository) List(ctx context.Context) ([]*assessment.Level, error) {
	query := `SELECT ` + levelColumns + ` FROM assessment_levels ORDER BY age_year, age_month`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list levels: %w", err)
	}
	defer rows.Close()

	levels := make([]*assessment.Level, 0)
	for rows.Next() {
		l, err := scanLevel(rows)
		if err != nil {
			return nil, err
		}
		levels = append(levels, l)
	}

	return levels, rows.Err()
}

func scanLevel(row pgx.Row) (*assessment.Level, error) {
	var l assessment.Level
	err := row.Scan(&l.ID, &l.AgeYear, &l.AgeMonth, &l.LocaleYearLabel, &l.IsActive, &l.CreatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan level: %w", err)
	}
	return &l, nil
}
