package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"device-maintenance-backend/internal/model"
	"device-maintenance-backend/internal/notification"
	"device-maintenance-backend/internal/rules"
	"device-maintenance-backend/internal/sla"
	"device-maintenance-backend/internal/store"
)

// Clock supplies the current time, injectable for tests.
type Clock func() time.Time

// TaskResult summarizes one task run for the operational log.
type TaskResult struct {
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Notified int `json:"notified"`
	Failed   int `json:"failed"`
}

func (r TaskResult) String() string {
	return fmt.Sprintf("created=%d updated=%d skipped=%d notified=%d failed=%d",
		r.Created, r.Updated, r.Skipped, r.Notified, r.Failed)
}

func (r *TaskResult) add(other TaskResult) {
	r.Created += other.Created
	r.Updated += other.Updated
	r.Skipped += other.Skipped
	r.Notified += other.Notified
	r.Failed += other.Failed
}

// Generator converts satisfied, non-duplicate triggers into persisted
// service-request/work-order pairs and advances the triggering records.
type Generator struct {
	store store.Store
	sla   sla.Resolver
	sink  notification.Sink
	now   Clock
}

// NewGenerator creates an action generator. A nil clock defaults to UTC now.
func NewGenerator(s store.Store, resolver sla.Resolver, sink notification.Sink, clock Clock) *Generator {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Generator{store: s, sla: resolver, sink: sink, now: clock}
}

// newCode produces a short human-facing identifier for generated records.
func newCode(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, strings.ToUpper(uuid.NewString()[:8]))
}

// RunPMCheck scans active preventive-maintenance schedules and generates a
// request/work-order pair for each one that is due and not already covered by
// an open preventive request. The schedule is advanced at creation time: the
// next cycle counts from when the work was requested, not when it finishes.
func (g *Generator) RunPMCheck(ctx context.Context, dryRun bool) (TaskResult, error) {
	var res TaskResult
	now := g.now()

	schedules, err := g.store.ActivePMSchedules(ctx)
	if err != nil {
		return res, err
	}

	for i := range schedules {
		schedule := &schedules[i]
		if !rules.PMScheduleDue(schedule, now) {
			continue
		}

		dup, err := g.store.HasOpenRequest(ctx, schedule.DeviceID, model.RequestTypePreventive)
		if err != nil {
			log.Printf("PM check: duplicate guard failed for schedule %d: %v", schedule.ID, err)
			res.Failed++
			continue
		}
		if dup {
			res.Skipped++
			continue
		}

		if dryRun {
			log.Printf("PM check (dry run): would create preventive request for device %d (schedule %d)",
				schedule.DeviceID, schedule.ID)
			res.Created++
			continue
		}

		if err := g.createPMAction(ctx, schedule, now); err != nil {
			log.Printf("PM check: failed to generate action for schedule %d: %v", schedule.ID, err)
			res.Failed++
			continue
		}
		res.Created++
	}
	return res, nil
}

func (g *Generator) createPMAction(ctx context.Context, schedule *model.PMSchedule, now time.Time) error {
	planName := "preventive maintenance"
	description := fmt.Sprintf("Auto-generated preventive maintenance for device %s.", schedule.Device.AssetTag)
	if schedule.JobPlan != nil {
		planName = schedule.JobPlan.Name
		description = fmt.Sprintf("Auto-generated preventive maintenance per job plan %q.\n%s",
			schedule.JobPlan.Name, schedule.JobPlan.Description)
	}

	sr := &model.ServiceRequest{
		Code:            newCode("SR"),
		DeviceID:        schedule.DeviceID,
		RequestType:     model.RequestTypePreventive,
		Title:           fmt.Sprintf("PM due: %s (%s)", schedule.Device.Name, planName),
		Description:     description,
		Priority:        model.PriorityMedium,
		Status:          model.RequestStatusNew,
		IsAutoGenerated: true,
	}
	wo := g.buildWorkOrder(ctx, sr, &schedule.Device, now)

	today := rules.DateOf(now)
	schedule.LastCompletedDate = &today
	schedule.NextDueDate = rules.NextDueDate(schedule, now)

	if err := g.store.CreatePMAction(ctx, sr, wo, schedule); err != nil {
		return err
	}

	g.sink.Notify(notification.Event{
		Kind:      model.NotificationKindPMCreated,
		DeviceID:  &schedule.DeviceID,
		Recipient: "maintenance",
		Title:     fmt.Sprintf("Preventive maintenance scheduled for %s", schedule.Device.Name),
		Message:   fmt.Sprintf("Work order %s created from schedule, due %s.", wo.Code, sr.ResolutionDue.Format(time.RFC3339)),
		Severity:  "info",
		Link:      fmt.Sprintf("/work_orders/%s", wo.Code),
	})
	return nil
}

// buildWorkOrder creates the 1:1 work order for a request, with scheduled
// start/end taken from the SLA deadlines computed at creation time.
func (g *Generator) buildWorkOrder(ctx context.Context, sr *model.ServiceRequest, device *model.Device, now time.Time) *model.WorkOrder {
	terms := g.sla.Resolve(ctx, device.Category, sr.Severity, sr.Impact, sr.Priority)
	response, resolution := terms.Deadlines(now)
	sr.ResponseDue = &response
	sr.ResolutionDue = &resolution

	return &model.WorkOrder{
		Code:           newCode("WO"),
		WOType:         sr.RequestType,
		Status:         model.WorkOrderStatusNew,
		ScheduledStart: sr.ResponseDue,
		ScheduledEnd:   sr.ResolutionDue,
	}
}

// RunCalibrationCheck normalizes calibration statuses, rolls completed cycles
// forward, and generates actions for devices whose calibration is due.
func (g *Generator) RunCalibrationCheck(ctx context.Context, dryRun bool) (TaskResult, error) {
	var res TaskResult
	now := g.now()

	records, err := g.store.CalibrationRecordsDueBy(ctx, now)
	if err != nil {
		return res, err
	}

	for i := range records {
		rec := &records[i]
		if err := g.checkCalibrationRecord(ctx, rec, now, dryRun, &res); err != nil {
			log.Printf("Calibration check: record %d (device %d): %v", rec.ID, rec.DeviceID, err)
			res.Failed++
		}
	}
	return res, nil
}

func (g *Generator) checkCalibrationRecord(ctx context.Context, rec *model.CalibrationRecord, now time.Time, dryRun bool, res *TaskResult) error {
	// A past next_calibration_date with status "completed" is an inconsistency
	// the sweep self-heals before evaluating anything else.
	if norm := rules.NormalizedCalibrationStatus(rec, now); rec.Status != norm {
		rec.Status = norm
		if !dryRun {
			if err := g.store.SaveCalibrationRecord(ctx, rec); err != nil {
				return fmt.Errorf("status normalization: %w", err)
			}
		}
		res.Updated++
	}

	// Rollover: a settled calibration request created on or after the current
	// due date means this cycle completed; advance by the calendar-month
	// interval from the completion time and re-derive the status.
	settled, err := g.store.LatestSettledRequestForDevice(ctx, rec.DeviceID, model.RequestTypeCalibration)
	if err != nil {
		return fmt.Errorf("rollover lookup: %w", err)
	}
	if settled != nil && settled.Status != model.RequestStatusCancelled &&
		!rules.DateOf(settled.CreatedAt).Before(rules.DateOf(rec.NextCalibrationDate)) {
		completedOn := now
		if settled.ResolvedAt != nil {
			completedOn = *settled.ResolvedAt
		} else if settled.ClosedAt != nil {
			completedOn = *settled.ClosedAt
		}
		rules.AdvanceCalibration(rec, completedOn)
		if !dryRun {
			if err := g.store.SaveCalibrationRecord(ctx, rec); err != nil {
				return fmt.Errorf("rollover: %w", err)
			}
		}
		res.Updated++
		return nil
	}

	due, daysOverdue := rules.CalibrationDue(rec, now)
	if !due {
		return nil
	}

	dup, err := g.store.HasOpenRequest(ctx, rec.DeviceID, model.RequestTypeCalibration)
	if err != nil {
		return fmt.Errorf("duplicate guard: %w", err)
	}
	if dup {
		res.Skipped++
		return nil
	}

	if dryRun {
		log.Printf("Calibration check (dry run): would create calibration request for device %d (%d days overdue)",
			rec.DeviceID, daysOverdue)
		res.Created++
		return nil
	}

	sr := &model.ServiceRequest{
		Code:            newCode("SR"),
		DeviceID:        rec.DeviceID,
		RequestType:     model.RequestTypeCalibration,
		Title:           fmt.Sprintf("Calibration due: %s", rec.Device.Name),
		Description:     fmt.Sprintf("Auto-generated calibration request; due %s, %d day(s) overdue.", rules.DateOf(rec.NextCalibrationDate).Format("2006-01-02"), daysOverdue),
		Priority:        model.PriorityLow,
		Status:          model.RequestStatusNew,
		IsAutoGenerated: true,
	}
	wo := g.buildWorkOrder(ctx, sr, &rec.Device, now)

	if err := g.store.CreateCalibrationAction(ctx, sr, wo); err != nil {
		return err
	}
	res.Created++

	g.sink.Notify(notification.Event{
		Kind:      model.NotificationKindCalibrationCreated,
		DeviceID:  &rec.DeviceID,
		Recipient: "maintenance",
		Title:     fmt.Sprintf("Calibration scheduled for %s", rec.Device.Name),
		Message:   fmt.Sprintf("Work order %s created, %d day(s) overdue.", wo.Code, daysOverdue),
		Severity:  "info",
		Link:      fmt.Sprintf("/work_orders/%s", wo.Code),
	})
	return nil
}

// RunSLACheck raises a notification event for every open request past its
// response or resolution deadline. No entities are created; the notification
// layer's own log keeps repeated evaluations from double-firing.
func (g *Generator) RunSLACheck(ctx context.Context, dryRun bool) (TaskResult, error) {
	var res TaskResult
	now := g.now()

	open, err := g.store.OpenServiceRequests(ctx)
	if err != nil {
		return res, err
	}

	for i := range open {
		sr := &open[i]
		if rules.ResponseBreached(sr, now) {
			g.notifyBreach(sr, model.NotificationKindSLAResponseBreach, "response", sr.ResponseDue, now, dryRun)
			res.Notified++
		}
		if rules.ResolutionBreached(sr, now) {
			g.notifyBreach(sr, model.NotificationKindSLAResolutionBreach, "resolution", sr.ResolutionDue, now, dryRun)
			res.Notified++
		}
	}
	return res, nil
}

func (g *Generator) notifyBreach(sr *model.ServiceRequest, kind, stage string, due *time.Time, now time.Time, dryRun bool) {
	if dryRun {
		log.Printf("SLA check (dry run): request %s breached %s SLA", sr.Code, stage)
		return
	}
	overdueBy := now.Sub(*due).Round(time.Minute)
	g.sink.Notify(notification.Event{
		Kind:      kind,
		DeviceID:  &sr.DeviceID,
		Recipient: "maintenance",
		Title:     fmt.Sprintf("SLA %s breach on request %s", stage, sr.Code),
		Message:   fmt.Sprintf("%s was due %s (%s overdue). Device: %s.", stage, due.Format(time.RFC3339), overdueBy, sr.Device.Name),
		Severity:  "warning",
		Link:      fmt.Sprintf("/requests/%s", sr.Code),
	})
}

// RunSparePartsCheck raises stock alerts for parts at or below threshold.
func (g *Generator) RunSparePartsCheck(ctx context.Context, dryRun bool) (TaskResult, error) {
	var res TaskResult

	parts, err := g.store.SpareParts(ctx)
	if err != nil {
		return res, err
	}

	for i := range parts {
		p := &parts[i]
		switch {
		case rules.StockOut(p):
			g.notifyStock(p, model.NotificationKindOutOfStock, "out of stock", "critical", dryRun)
			res.Notified++
		case rules.StockLow(p):
			g.notifyStock(p, model.NotificationKindLowStock, "low stock", "warning", dryRun)
			res.Notified++
		}
	}
	return res, nil
}

func (g *Generator) notifyStock(p *model.SparePart, kind, condition, severity string, dryRun bool) {
	if dryRun {
		log.Printf("Spare parts check (dry run): part %s is %s", p.PartNumber, condition)
		return
	}
	g.sink.Notify(notification.Event{
		Kind:      kind,
		Recipient: "inventory",
		Title:     fmt.Sprintf("Spare part %s %s", p.PartNumber, condition),
		Message:   fmt.Sprintf("%s: %d on hand, reorder threshold %d.", p.Name, p.Quantity, p.MinQuantity),
		Severity:  severity,
	})
}
