// Package directory is the read side of the surrounding LMS: users, class
// cohorts and the lesson catalogue. The placement engine never writes here.
package directory

import (
	"context"
	"time"

	"github.com/agepath/placement-engine/internal/domain/shared"
)

// User is an account as seen by the placement engine.
type User struct {
	ID          string
	TenantID    string
	FullName    string
	Role        shared.Role
	DateOfBirth *time.Time
	IsActive    bool
}

// IsStudent reports whether the user holds the STUDENT role.
func (u *User) IsStudent() bool {
	return u.Role == shared.RoleStudent
}

// Lesson is one lesson of the curriculum.
type Lesson struct {
	ID           string
	Subject      string
	AgeLevelID   string
	LessonNumber int
	Title        string
	// MaxScore of 0 means the lesson has no maximum and no percentage.
	MaxScore float64
}

// StudentFilter narrows ListStudents. Empty fields do not filter.
type StudentFilter struct {
	// TenantID restricts to one tenant; empty spans every tenant.
	TenantID string
	// ClassID keeps only students with an active membership in the class.
	ClassID string
	// Search is a case-insensitive substring of the full name.
	Search string
}

// Directory resolves users and lessons. Missing records return an error
// matching shared.ErrNotFound.
type Directory interface {
	GetUser(ctx context.Context, id string) (*User, error)

	// ListStudents returns active STUDENT users matching the filter, ordered
	// by full name.
	ListStudents(ctx context.Context, filter StudentFilter) ([]*User, error)

	GetLesson(ctx context.Context, id string) (*Lesson, error)
}
