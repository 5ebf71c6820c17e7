// Package command contains write operations (CQRS - Commands).
package command

import (
	"errors"

	"github.com/agepath/placement-engine/internal/domain/assessment"
	"github.com/agepath/placement-engine/internal/domain/directory"
	"github.com/agepath/placement-engine/internal/domain/shared"
	"github.com/agepath/placement-engine/pkg/logger"
	"github.com/agepath/placement-engine/pkg/timeutil"
)

// Actor is the caller of a command.
type Actor = shared.Actor

// Toggles are the runtime switches consulted by command handlers.
type Toggles interface {
	AuditReadinessFlip(tenantID string) bool
}

type noToggles struct{}

func (noToggles) AuditReadinessFlip(string) bool { return false }

// Deps are the collaborators shared by the placement command handlers.
type Deps struct {
	Store     assessment.Store
	Directory directory.Directory
	Publisher shared.EventPublisher
	Policy    assessment.Policy
	Toggles   Toggles
	Clock     timeutil.Clock
	Logger    *logger.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Policy.PromotionThreshold == 0 {
		d.Policy = assessment.DefaultPolicy()
	}
	if d.Toggles == nil {
		d.Toggles = noToggles{}
	}
	if d.Clock == nil {
		d.Clock = timeutil.SystemClock{}
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	return d
}

// publish sends events after commit. Failures are logged and never returned;
// the write they describe has already succeeded.
func (d Deps) publish(events ...shared.Event) {
	if d.Publisher == nil {
		return
	}
	for _, event := range events {
		if err := d.Publisher.Publish(event); err != nil {
			d.Logger.Warn("failed to publish event",
				logger.EventType(string(event.EventType())),
				logger.PlacementID(event.AggregateID()),
				logger.Err(err),
			)
		}
	}
}

// asDomainError keeps DomainErrors as they are and wraps anything else as an
// internal failure.
func asDomainError(domain, op string, err error) error {
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	return shared.Internal(domain, op, "unexpected failure", err)
}
