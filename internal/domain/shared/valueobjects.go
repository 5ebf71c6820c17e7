package shared

import (
	"math"
	"strings"

	"github.com/google/uuid"
)

// ═══════════════════════════════════════════════════════════════════════════
// Role Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Role is the account role supplied by the upstream identity layer.
type Role string

const (
	RoleStudent     Role = "STUDENT"
	RoleTeacher     Role = "TEACHER"
	RoleCentreAdmin Role = "CENTRE_ADMIN"
	RoleSuperAdmin  Role = "SUPER_ADMIN"
)

// IsValid checks if the role is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleCentreAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role may create and modify placements.
func (r Role) IsStaff() bool {
	return r == RoleTeacher || r == RoleCentreAdmin || r == RoleSuperAdmin
}

// IsAdmin reports whether the role may administer the level catalogue.
func (r Role) IsAdmin() bool {
	return r == RoleCentreAdmin || r == RoleSuperAdmin
}

// SpansTenants reports whether the role is exempt from tenant scoping.
func (r Role) SpansTenants() bool {
	return r == RoleSuperAdmin
}

// String returns the string representation.
func (r Role) String() string {
	return string(r)
}

// ParseRole normalizes a header value into a Role.
func ParseRole(value string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(value)))
	return r, r.IsValid()
}

// ═══════════════════════════════════════════════════════════════════════════
// Identifiers
// ═══════════════════════════════════════════════════════════════════════════

// NewID returns a new random identifier.
func NewID() string {
	return uuid.NewString()
}

// ═══════════════════════════════════════════════════════════════════════════
// Score Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Percentage returns score/maxScore*100 rounded to two decimals, or nil when the
// lesson has no maximum.
func Percentage(score, maxScore float64) *float64 {
	if maxScore <= 0 {
		return nil
	}
	p := math.Round(score/maxScore*100*100) / 100
	return &p
}
