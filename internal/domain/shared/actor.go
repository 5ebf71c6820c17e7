package shared

// Actor is the caller of an operation as asserted by the upstream identity
// layer. It is trusted as given.
type Actor struct {
	UserID   string
	Role     Role
	TenantID string
}

// Validate rejects actors without identity.
func (a Actor) Validate(domain, op string) error {
	if a.UserID == "" || !a.Role.IsValid() {
		return Forbidden(domain, op, "missing or invalid caller identity")
	}
	return nil
}

// IsStaff reports whether the actor may manage placements.
func (a Actor) IsStaff() bool {
	return a.Role.IsStaff()
}

// CanAccessTenant reports whether the actor may act on data of tenantID.
func (a Actor) CanAccessTenant(tenantID string) bool {
	return a.Role.SpansTenants() || a.TenantID == tenantID
}

// RequireStaff fails unless the actor is staff.
func (a Actor) RequireStaff(domain, op string) error {
	if err := a.Validate(domain, op); err != nil {
		return err
	}
	if !a.IsStaff() {
		return Forbidden(domain, op, "staff role required")
	}
	return nil
}

// RequireStaffFor fails unless the actor is staff allowed in tenantID.
func (a Actor) RequireStaffFor(domain, op, tenantID string) error {
	if err := a.RequireStaff(domain, op); err != nil {
		return err
	}
	if !a.CanAccessTenant(tenantID) {
		return Forbidden(domain, op, "tenant mismatch")
	}
	return nil
}
