package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActor_RequireStaffFor(t *testing.T) {
	tests := []struct {
		name      string
		actor     Actor
		tenantID  string
		forbidden bool
	}{
		{"teacher in own tenant", Actor{UserID: "t1", Role: RoleTeacher, TenantID: "tenant-a"}, "tenant-a", false},
		{"teacher in other tenant", Actor{UserID: "t1", Role: RoleTeacher, TenantID: "tenant-a"}, "tenant-b", true},
		{"super admin anywhere", Actor{UserID: "sa", Role: RoleSuperAdmin}, "tenant-b", false},
		{"student", Actor{UserID: "s1", Role: RoleStudent, TenantID: "tenant-a"}, "tenant-a", true},
		{"anonymous", Actor{}, "tenant-a", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.actor.RequireStaffFor("placement", "Archive", tt.tenantID)
			if !tt.forbidden {
				assert.NoError(t, err)
				return
			}
			assert.True(t, IsForbidden(err), "unexpected error: %v", err)
		})
	}
}
