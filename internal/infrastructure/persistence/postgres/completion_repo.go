package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/agepath/placement-engine/internal/domain/assessment"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CompletionRepository implements assessment.CompletionRepository for PostgreSQL.
type CompletionRepository struct {
	q Querier
}

const completionColumns = `
	id, placement_id, lesson_id, status, score, percentage_score,
	started_at, submitted_at, marked_at, graded_by, updated_at
`

// Get returns the completion for (placement, lesson) or nil.
func (r *CompletionRepository) Get(ctx context.Context, placementID, lessonID string) (*assessment.LessonCompletion, error) {
	query := `
		SELECT ` + completionColumns + `
		FROM lesson_completions
		WHERE placement_id = $1 AND lesson_id = $2
	`

	c, err := scanCompletion(r.q.QueryRow(ctx, query, placementID, lessonID))
	if IsNoRows(err) {
		return nil, nil
	}
	return c, err
}

// Upsert inserts or replaces the row keyed by (placement_id, lesson_id).
// The id and started_at of an existing row are kept.
func (r *CompletionRepository) Upsert(ctx context.Context, c *assessment.LessonCompletion) error {
	query := `
		INSERT INTO lesson_completions (` + completionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (placement_id, lesson_id) DO UPDATE SET
			status = EXCLUDED.status,
			score = EXCLUDED.score,
			percentage_score = EXCLUDED.percentage_score,
			submitted_at = EXCLUDED.submitted_at,
			marked_at = EXCLUDED.marked_at,
			graded_by = EXCLUDED.graded_by,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.q.Exec(ctx, query,
		c.ID,
		c.PlacementID,
		c.LessonID,
		string(c.Status),
		c.Score,
		c.PercentageScore,
		c.StartedAt,
		c.SubmittedAt,
		c.MarkedAt,
		c.GradedBy,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert completion: %w", err)
	}

	return nil
}

// CountMarked counts MARKED completions of a placement.
func (r *CompletionRepository) CountMarked(ctx context.Context, placementID string) (int, error) {
	query := `
		SELECT COUNT(*) FILTER (WHERE status = 'MARKED')
		FROM lesson_completions
		WHERE placement_id = $1
	`

	var count int
	if err := r.q.QueryRow(ctx, query, placementID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count marked lessons: %w", err)
	}

	return count, nil
}

// ListByPlacement returns the completions of a placement, oldest first.
func (r *CompletionRepository) ListByPlacement(ctx context.Context, placementID string) ([]*assessment.LessonCompletion, error) {
	query := `
		SELECT ` + completionColumns + `
		FROM lesson_completions
		WHERE placement_id = $1
		ORDER BY started_at, lesson_id
	`

	rows, err := r.q.Query(ctx, query, placementID)
	if err != nil {
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}
	defer rows.Close()

	completions := make([]*assessment.LessonCompletion, 0)
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, err
		}
		completions = append(completions, c)
	}

	return completions, rows.Err()
}

func scanCompletion(row pgx.Row) (*assessment.LessonCompletion, error) {
	var (
		c      assessment.LessonCompletion
		status string
	)

	err := row.Scan(
		&c.ID,
		&c.PlacementID,
		&c.LessonID,
		&status,
		&c.Score,
		&c.PercentageScore,
		&c.StartedAt,
		&c.SubmittedAt,
		&c.MarkedAt,
		&c.GradedBy,
		&c.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan completion: %w", err)
	}

	c.Status = assessment.CompletionStatus(status)
	return &c, nil
}
