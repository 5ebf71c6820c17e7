package http

import (
	"net/http"
	"strings"

	"github.com/agepath/placement-engine/internal/domain/shared"
)

// Identity headers set by the upstream gateway after authentication.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
	HeaderTenantID = "X-Tenant-ID"
)

// actorFromRequest reads the caller from the identity headers. Missing or
// unknown values produce an actor that fails Validate.
func actorFromRequest(r *http.Request) shared.Actor {
	role, ok := shared.ParseRole(r.Header.Get(HeaderUserRole))
	if !ok {
		role = ""
	}
	return shared.Actor{
		UserID:   strings.TrimSpace(r.Header.Get(HeaderUserID)),
		Role:     role,
		TenantID: strings.TrimSpace(r.Header.Get(HeaderTenantID)),
	}
}
