package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"device-maintenance-backend/internal/model"
	"device-maintenance-backend/internal/rules"
	"device-maintenance-backend/internal/store"
)

// Reconciler keeps device downtime records consistent with the work that
// caused them. It re-derives correct state from current facts on every sweep:
// a device with active work and no open downtime gets one opened, and any open
// downtime whose work has finished gets closed at the best available
// completion timestamp. Both operations are idempotent, so a crashed or
// repeated sweep converges instead of corrupting state.
type Reconciler struct {
	store store.Store
	now   Clock
}

// NewReconciler creates a downtime reconciler. A nil clock defaults to UTC now.
func NewReconciler(s store.Store, clock Clock) *Reconciler {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Reconciler{store: s, now: clock}
}

// Sweep runs one reconciliation pass over all devices. One device's failure is
// logged and does not abort the rest of the sweep.
func (r *Reconciler) Sweep(ctx context.Context, dryRun bool) (TaskResult, error) {
	var res TaskResult
	now := r.now()

	open, err := r.store.OpenDowntimes(ctx)
	if err != nil {
		return res, err
	}
	openByDevice := make(map[int64]*model.DeviceDowntime, len(open))
	for i := range open {
		openByDevice[open[i].DeviceID] = &open[i]
	}

	activeDevices, err := r.store.DeviceIDsWithOpenWork(ctx)
	if err != nil {
		return res, err
	}

	for _, deviceID := range activeDevices {
		if _, exists := openByDevice[deviceID]; exists {
			continue
		}
		created, err := r.openDowntime(ctx, deviceID, now, dryRun)
		if err != nil {
			log.Printf("Downtime sweep: failed to open downtime for device %d: %v", deviceID, err)
			res.Failed++
			continue
		}
		if created {
			res.Created++
		}
	}

	for i := range open {
		closed, err := r.closeIfFinished(ctx, &open[i], now, dryRun)
		if err != nil {
			log.Printf("Downtime sweep: failed to close downtime %d (device %d): %v", open[i].ID, open[i].DeviceID, err)
			res.Failed++
			continue
		}
		if closed {
			res.Updated++
		}
	}
	return res, nil
}

// openDowntime records that a device with active work is out of service. The
// start time is the sweep time the condition was first observed, not the
// work's creation time.
func (r *Reconciler) openDowntime(ctx context.Context, deviceID int64, now time.Time, dryRun bool) (bool, error) {
	var (
		reason      string
		workOrderID *int64
		cause       string
	)

	wo, err := r.store.LatestOpenWorkOrderForDevice(ctx, deviceID)
	if err != nil {
		return false, err
	}
	if wo != nil {
		reason = rules.DowntimeReason(wo.WOType)
		workOrderID = &wo.ID
		cause = fmt.Sprintf("open work order %s (%s)", wo.Code, wo.WOType)
	} else {
		sr, err := r.store.LatestOpenRequestForDevice(ctx, deviceID)
		if err != nil {
			return false, err
		}
		if sr == nil {
			// The work settled between the snapshot and this query; the next
			// sweep will see consistent state.
			return false, nil
		}
		reason = rules.DowntimeReason(sr.RequestType)
		cause = fmt.Sprintf("open service request %s (%s)", sr.Code, sr.RequestType)
	}

	if dryRun {
		log.Printf("Downtime sweep (dry run): would open %s downtime for device %d: %s", reason, deviceID, cause)
		return true, nil
	}

	dt := &model.DeviceDowntime{
		DeviceID:    deviceID,
		WorkOrderID: workOrderID,
		StartTime:   now,
		Reason:      reason,
		Description: fmt.Sprintf("[%s] opened by reconciliation sweep: %s; start time is observation time", now.Format(time.RFC3339), cause),
	}
	return r.store.OpenDowntimeIfNone(ctx, dt)
}

// closeIfFinished closes an open downtime once its triggering work is done,
// selecting the end time from business-event timestamps before falling back to
// the sweep time.
func (r *Reconciler) closeIfFinished(ctx context.Context, dt *model.DeviceDowntime, now time.Time, dryRun bool) (bool, error) {
	if dt.WorkOrderID != nil {
		wo := dt.WorkOrder
		if wo == nil {
			loaded, err := r.store.GetWorkOrder(ctx, *dt.WorkOrderID)
			if err != nil {
				return false, fmt.Errorf("linked work order %d: %w", *dt.WorkOrderID, err)
			}
			wo = loaded
		}
		if !rules.WorkOrderFinished(wo.Status) {
			return false, nil
		}
		end, source := rules.DowntimeEndFromWorkOrder(wo, now)
		note := fmt.Sprintf("[%s] closed by reconciliation sweep: work order %s reached %s; end time from %s",
			now.Format(time.RFC3339), wo.Code, wo.Status, source)
		return r.close(ctx, dt, end, note, dryRun)
	}

	// No linked work order: the downtime closes only when the device has no
	// remaining open work at all.
	openSR, err := r.store.LatestOpenRequestForDevice(ctx, dt.DeviceID)
	if err != nil {
		return false, err
	}
	if openSR != nil {
		return false, nil
	}
	openWO, err := r.store.LatestOpenWorkOrderForDevice(ctx, dt.DeviceID)
	if err != nil {
		return false, err
	}
	if openWO != nil {
		return false, nil
	}

	end, source := now, "sweep time"
	note := "no remaining open work"
	if settled, err := r.store.LatestSettledRequestForDevice(ctx, dt.DeviceID, ""); err != nil {
		return false, err
	} else if settled != nil {
		end, source = rules.DowntimeEndFromRequest(settled, now)
		note = fmt.Sprintf("request %s settled (%s)", settled.Code, settled.Status)
	}
	fullNote := fmt.Sprintf("[%s] closed by reconciliation sweep: %s; end time from %s",
		now.Format(time.RFC3339), note, source)
	return r.close(ctx, dt, end, fullNote, dryRun)
}

func (r *Reconciler) close(ctx context.Context, dt *model.DeviceDowntime, end time.Time, note string, dryRun bool) (bool, error) {
	if dryRun {
		log.Printf("Downtime sweep (dry run): would close downtime %d for device %d at %s", dt.ID, dt.DeviceID, end.Format(time.RFC3339))
		return true, nil
	}
	return r.store.CloseDowntime(ctx, dt.ID, end, note)
}
