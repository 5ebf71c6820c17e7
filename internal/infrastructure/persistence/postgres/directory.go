package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/agepath/placement-engine/internal/domain/directory"
	"github.com/agepath/placement-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DIRECTORY
// Read-only view over the LMS users, class_memberships and lessons tables.
// ══════════════════════════════════════════════════════════════════════════════

// Directory implements directory.Directory for PostgreSQL.
type Directory struct {
	conn *Connection
}

// NewDirectory creates a new Directory.
func NewDirectory(conn *Connection) *Directory {
	return &Directory{conn: conn}
}

const userColumns = `id, tenant_id, full_name, role, date_of_birth, is_active`

// GetUser returns a user by ID.
func (d *Directory) GetUser(ctx context.Context, id string) (*directory.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(d.conn.Pool().QueryRow(ctx, query, id))
	if IsNoRows(err) {
		return nil, shared.NotFound("directory", "GetUser", "user not found")
	}
	return u, err
}

// ListStudents returns active students matching the filter, ordered by name.
func (d *Directory) ListStudents(ctx context.Context, filter directory.StudentFilter) ([]*directory.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		WHERE u.role = 'STUDENT'
		  AND u.is_active
		  AND ($1 = '' OR u.tenant_id = $1)
		  AND ($2 = '' OR EXISTS (
		        SELECT 1 FROM class_memberships m
		        WHERE m.class_id = $2 AND m.student_id = u.id AND m.is_active))
		  AND ($3 = '' OR position(lower($3) in lower(u.full_name)) > 0)
		ORDER BY u.full_name, u.id
	`

	rows, err := d.conn.Pool().Query(ctx, query, filter.TenantID, filter.ClassID, filter.Search)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	users := make([]*directory.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// GetLesson returns a lesson by ID.
func (d *Directory) GetLesson(ctx context.Context, id string) (*directory.Lesson, error) {
	query := `
		SELECT id, subject, COALESCE(age_level_id, ''), lesson_number, title, max_score
		FROM lessons
		WHERE id = $1
	`

	var l directory.Lesson
	err := d.conn.Pool().QueryRow(ctx, query, id).Scan(
		&l.ID, &l.Subject, &l.AgeLevelID, &l.LessonNumber, &l.Title, &l.MaxScore,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NotFound("directory", "GetLesson", "lesson not found")
		}
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}

	return &l, nil
}

func scanUser(row pgx.Row) (*directory.User, error) {
	var (
		u    directory.User
		role string
	)
	if err := row.Scan(&u.ID, &u.TenantID, &u.FullName, &role, &u.DateOfBirth, &u.IsActive); err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	u.Role = shared.Role(role)
	return &u, nil
}
