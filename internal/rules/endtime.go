package rules

import (
	"time"

	"device-maintenance-backend/internal/model"
)

// The reconciler runs periodically and may observe a completion long after it
// happened. Closing a downtime at wall-clock "now" would systematically
// over-count downtime, so the end time is taken from the best available
// business-event timestamp and only falls back to now when nothing else exists.
// The returned source label is recorded in the downtime's audit note.

// DowntimeEndFromWorkOrder selects the end time for a downtime closed because
// its linked work order finished.
func DowntimeEndFromWorkOrder(wo *model.WorkOrder, now time.Time) (time.Time, string) {
	if wo.CompletedAt != nil {
		return *wo.CompletedAt, "work order completed_at"
	}
	if wo.ActualEnd != nil {
		return *wo.ActualEnd, "work order actual_end"
	}
	if !wo.UpdatedAt.IsZero() {
		return wo.UpdatedAt, "work order updated_at"
	}
	return now, "sweep time"
}

// DowntimeEndFromRequest selects the end time for a downtime with no linked
// work order, closed because the device's last service request settled.
func DowntimeEndFromRequest(sr *model.ServiceRequest, now time.Time) (time.Time, string) {
	if sr.ResolvedAt != nil {
		return *sr.ResolvedAt, "request resolved_at"
	}
	if sr.ClosedAt != nil {
		return *sr.ClosedAt, "request closed_at"
	}
	if !sr.UpdatedAt.IsZero() {
		return sr.UpdatedAt, "request updated_at"
	}
	return now, "sweep time"
}
