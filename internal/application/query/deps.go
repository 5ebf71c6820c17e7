// Package query contains read operations (CQRS - Queries).
// Queries never modify state. Each returns DTOs shaped for the HTTP layer.
package query

import (
	"context"
	"time"

	"github.com/agepath/placement-engine/internal/domain/assessment"
	"github.com/agepath/placement-engine/internal/domain/directory"
	"github.com/agepath/placement-engine/internal/domain/shared"
	"github.com/agepath/placement-engine/pkg/logger"
	"github.com/agepath/placement-engine/pkg/timeutil"
)

// Actor is the caller of a query.
type Actor = shared.Actor

// GridCache stores serialized grids. Get returns nil without error on a miss.
//
// Generation is a per-scope counter that InvalidateTenant advances. Set only
// stores a grid if the scope is still at the generation read before the grid
// was built, and reports false otherwise.
type GridCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Generation(ctx context.Context, tenantScope string) (int64, error)
	Set(ctx context.Context, key, tenantScope string, generation int64, value []byte, ttl time.Duration) (bool, error)
	InvalidateTenant(ctx context.Context, tenantID string) error
}

// Toggles are the runtime switches consulted by queries.
type Toggles interface {
	GridCacheEnabled(tenantID string) bool
}

// Deps are the collaborators shared by the query handlers.
type Deps struct {
	Store     assessment.Store
	Directory directory.Directory
	Policy    assessment.Policy
	Clock     timeutil.Clock
	Logger    *logger.Logger

	// Cache is optional. Without it every grid is built from the store.
	Cache    GridCache
	CacheTTL time.Duration
	Toggles  Toggles
}

func (d Deps) withDefaults() Deps {
	if d.Policy.PromotionThreshold == 0 {
		d.Policy = assessment.DefaultPolicy()
	}
	if d.Clock == nil {
		d.Clock = timeutil.SystemClock{}
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.CacheTTL <= 0 {
		d.CacheTTL = 2 * time.Minute
	}
	return d
}

// catalog loads every level, active or not, for label resolution.
func (d Deps) catalog(ctx context.Context) (*assessment.Catalog, error) {
	levels, err := d.Store.Repositories().Levels.List(ctx)
	if err != nil {
		return nil, err
	}
	return assessment.NewCatalog(levels), nil
}

// canRead allows staff of the placement's tenant and the student themself.
func canRead(actor Actor, studentID, tenantID string) bool {
	if actor.IsStaff() {
		return actor.CanAccessTenant(tenantID)
	}
	return actor.Role == shared.RoleStudent && actor.UserID == studentID
}
