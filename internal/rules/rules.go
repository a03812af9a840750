// Package rules contains the pure decision functions of the maintenance
// engine: trigger predicates, interval arithmetic, the work-order to service-
// request status mapping, and the downtime end-time selection ladder. Nothing
// in this package touches the database; every function takes its inputs and
// the current time explicitly so the logic is testable with a fixed clock.
package rules

import (
	"time"

	"device-maintenance-backend/internal/model"
)

// OpenRequestStatuses are the ServiceRequest statuses considered open for the
// duplicate guard and for downtime tracking.
var OpenRequestStatuses = []string{
	model.RequestStatusNew,
	model.RequestStatusAssigned,
	model.RequestStatusInProgress,
}

// OpenWorkOrderStatuses are the WorkOrder statuses under which work is still
// pending or running.
var OpenWorkOrderStatuses = []string{
	model.WorkOrderStatusNew,
	model.WorkOrderStatusAssigned,
	model.WorkOrderStatusInProgress,
	model.WorkOrderStatusWaitParts,
	model.WorkOrderStatusOnHold,
}

// WorkOrderFinished reports whether a work order has reached a state that ends
// the downtime it caused. Resolved and QA-verified count as finished: the work
// itself is done even though the order has not been administratively closed.
func WorkOrderFinished(status string) bool {
	switch status {
	case model.WorkOrderStatusResolved,
		model.WorkOrderStatusQAVerified,
		model.WorkOrderStatusClosed,
		model.WorkOrderStatusCancelled:
		return true
	}
	return false
}

// RequestStatusFor maps a work order status to the service request status the
// propagation cascade derives from it. ok is false for unknown statuses.
func RequestStatusFor(woStatus string) (string, bool) {
	switch woStatus {
	case model.WorkOrderStatusNew:
		return model.RequestStatusNew, true
	case model.WorkOrderStatusAssigned:
		return model.RequestStatusAssigned, true
	case model.WorkOrderStatusInProgress,
		model.WorkOrderStatusWaitParts,
		model.WorkOrderStatusOnHold:
		return model.RequestStatusInProgress, true
	case model.WorkOrderStatusResolved,
		model.WorkOrderStatusQAVerified:
		return model.RequestStatusResolved, true
	case model.WorkOrderStatusClosed:
		return model.RequestStatusClosed, true
	case model.WorkOrderStatusCancelled:
		return model.RequestStatusCancelled, true
	}
	return "", false
}

// DateOf truncates a timestamp to midnight UTC, the granularity at which due
// dates are compared.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PMScheduleDue reports whether an active schedule is due on or before now.
func PMScheduleDue(s *model.PMSchedule, now time.Time) bool {
	if !s.IsActive {
		return false
	}
	return !DateOf(s.NextDueDate).After(DateOf(now))
}

// FrequencyIntervalDays returns the number of days between occurrences for a
// schedule. Monthly is a fixed 30 days, not a calendar month. Unrecognized
// frequencies fall back to 30 days.
func FrequencyIntervalDays(frequency string, frequencyValue int) int {
	switch frequency {
	case model.FrequencyDaily:
		return 1
	case model.FrequencyWeekly:
		return 7
	case model.FrequencyMonthly:
		return 30
	case model.FrequencyQuarterly:
		return 90
	case model.FrequencySemiAnnual:
		return 180
	case model.FrequencyAnnual:
		return 365
	case model.FrequencyCustom:
		if frequencyValue > 0 {
			return frequencyValue
		}
	}
	return 30
}

// NextDueDate computes the schedule's next due date counted from the given day.
func NextDueDate(s *model.PMSchedule, from time.Time) time.Time {
	return DateOf(from).AddDate(0, 0, FrequencyIntervalDays(s.Frequency, s.FrequencyValue))
}

// NormalizedCalibrationStatus derives the status a calibration record should
// carry given its next calibration date. A record more than 0 days past due is
// "overdue", one due today is "due", and a future date means "completed".
func NormalizedCalibrationStatus(rec *model.CalibrationRecord, now time.Time) string {
	next := DateOf(rec.NextCalibrationDate)
	today := DateOf(now)
	switch {
	case next.Before(today):
		return model.CalibrationStatusOverdue
	case next.Equal(today):
		return model.CalibrationStatusDue
	default:
		return model.CalibrationStatusCompleted
	}
}

// CalibrationDue reports whether a calibration record requires action and how
// many days past due it is. Callers must normalize the record's status first;
// a stale "completed" status suppresses the trigger by contract.
func CalibrationDue(rec *model.CalibrationRecord, now time.Time) (bool, int) {
	if rec.Status != model.CalibrationStatusDue && rec.Status != model.CalibrationStatusOverdue {
		return false, 0
	}
	next := DateOf(rec.NextCalibrationDate)
	today := DateOf(now)
	if next.After(today) {
		return false, 0
	}
	return true, int(today.Sub(next).Hours() / 24)
}

// AdvanceCalibration rolls a completed calibration record forward: the next
// calibration date moves by IntervalMonths calendar months from the given day
// and the status is re-derived against the new date.
func AdvanceCalibration(rec *model.CalibrationRecord, completedOn time.Time) {
	months := rec.IntervalMonths
	if months <= 0 {
		months = 12
	}
	day := DateOf(completedOn)
	rec.LastCalibratedAt = &day
	rec.NextCalibrationDate = day.AddDate(0, months, 0)
	rec.Status = NormalizedCalibrationStatus(rec, completedOn)
}

// ResponseBreached reports whether an open request missed its response SLA.
// Only requests not yet being worked on can breach response.
func ResponseBreached(sr *model.ServiceRequest, now time.Time) bool {
	if sr.Status != model.RequestStatusNew && sr.Status != model.RequestStatusAssigned {
		return false
	}
	return sr.ResponseDue != nil && sr.ResponseDue.Before(now)
}

// ResolutionBreached reports whether an open request missed its resolution SLA.
func ResolutionBreached(sr *model.ServiceRequest, now time.Time) bool {
	switch sr.Status {
	case model.RequestStatusNew, model.RequestStatusAssigned, model.RequestStatusInProgress:
	default:
		return false
	}
	return sr.ResolutionDue != nil && sr.ResolutionDue.Before(now)
}

// StockLow reports whether a part is at or below its reorder threshold while
// still in stock.
func StockLow(p *model.SparePart) bool {
	return p.Quantity > 0 && p.MinQuantity > 0 && p.Quantity <= p.MinQuantity
}

// StockOut reports whether a part is completely out of stock.
func StockOut(p *model.SparePart) bool {
	return p.Quantity <= 0
}

// DowntimeReason maps a work order type to the downtime reason recorded when
// the reconciler opens a record for it.
func DowntimeReason(woType string) string {
	switch woType {
	case model.RequestTypeCorrective, model.RequestTypeBreakdown:
		return model.DowntimeReasonBreakdown
	case model.RequestTypePreventive, model.RequestTypeInspection:
		return model.DowntimeReasonMaintenance
	case model.RequestTypeCalibration:
		return model.DowntimeReasonCalibration
	}
	return model.DowntimeReasonOther
}
