package postgres

import (
	"context"
	"fmt"

	"github.com/agepath/placement-engine/internal/domain/assessment"
)

// HistoryRepository implements assessment.HistoryRepository for PostgreSQL.
// Rows are only ever inserted.
type HistoryRepository struct {
	q Querier
}

// Append inserts a history entry.
func (r *HistoryRepository) Append(ctx context.Context, e *assessment.HistoryEntry) error {
	query := `
		INSERT INTO age_assessment_history (
			id, placement_id, student_id, subject, from_level_id, to_level_id,
			change_type, reason, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.q.Exec(ctx, query,
		e.ID,
		e.PlacementID,
		e.StudentID,
		string(e.Subject),
		e.FromLevelID,
		e.ToLevelID,
		string(e.ChangeType),
		e.Reason,
		e.ActorID,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}

	return nil
}

// ListByPlacement returns entries oldest first.
func (r *HistoryRepository) ListByPlacement(ctx context.Context, placementID string) ([]*assessment.HistoryEntry, error) {
	query := `
		SELECT id, placement_id, student_id, subject, from_level_id, to_level_id,
		       change_type, reason, actor_id, created_at
		FROM age_assessment_history
		WHERE placement_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.q.Query(ctx, query, placementID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	entries := make([]*assessment.HistoryEntry, 0)
	for rows.Next() {
		var (
			e                   assessment.HistoryEntry
			subject, changeType string
		)
		if err := rows.Scan(
			&e.ID,
			&e.PlacementID,
			&e.StudentID,
			&subject,
			&e.FromLevelID,
			&e.ToLevelID,
			&changeType,
			&e.Reason,
			&e.ActorID,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Subject = assessment.Subject(subject)
		e.ChangeType = assessment.ChangeType(changeType)
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}
