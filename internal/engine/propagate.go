package engine

import (
	"context"
	"fmt"
	"time"

	"device-maintenance-backend/internal/model"
	"device-maintenance-backend/internal/rules"
	"device-maintenance-backend/internal/store"
)

// Propagator applies work order status changes and cascades them one way:
// work order → service request. It is the only code path that moves a work
// order through its lifecycle; downtime closure is derived separately by the
// reconciliation sweep.
type Propagator struct {
	store store.Store
	now   Clock
}

// NewPropagator creates a status propagator. A nil clock defaults to UTC now.
func NewPropagator(s store.Store, clock Clock) *Propagator {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Propagator{store: s, now: clock}
}

// Apply moves a work order to newStatus and updates the parent request
// accordingly. Re-applying the current status is a no-op.
func (p *Propagator) Apply(ctx context.Context, workOrderID int64, newStatus string) (*model.WorkOrder, error) {
	if _, ok := rules.RequestStatusFor(newStatus); !ok {
		return nil, fmt.Errorf("unknown work order status %q", newStatus)
	}
	return p.store.ApplyWorkOrderStatus(ctx, workOrderID, newStatus, p.now())
}
