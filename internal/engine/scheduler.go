package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"device-maintenance-backend/config"
	"device-maintenance-backend/internal/store"
)

// Task names accepted by RunTask, the CLI and the run-now API endpoint.
const (
	TaskPM          = "pm"
	TaskSLA         = "sla"
	TaskCalibration = "calibration"
	TaskSpareParts  = "spare_parts"
	TaskCleanup     = "cleanup"
	TaskAll         = "all"
)

// Scheduler is the engine's driver: a cooperative loop that wakes on a fixed
// interval and runs the checks in a defined order, with the low-frequency
// cleanup on its own cron expression. It holds configuration only; all
// decision state is re-derived from the store each tick, so the process can be
// restarted at any point.
type Scheduler struct {
	cfg   *config.SchedulerConfig
	gen   *Generator
	recon *Reconciler
	store store.Store
	now   Clock
}

// NewScheduler creates the scheduler driver. A nil clock defaults to UTC now.
func NewScheduler(cfg *config.SchedulerConfig, gen *Generator, recon *Reconciler, s store.Store, clock Clock) *Scheduler {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Scheduler{cfg: cfg, gen: gen, recon: recon, store: s, now: clock}
}

// Run starts the scheduling loop and blocks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Println("Maintenance scheduler is disabled. Not starting.")
		return
	}
	log.Printf("Starting maintenance scheduler (interval %s)...", s.cfg.Interval)

	loc, err := time.LoadLocation(s.cfg.Timezone)
	if err != nil {
		log.Printf("Warning: invalid timezone %q, falling back to UTC: %v", s.cfg.Timezone, err)
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(s.cfg.CleanupCron, func() {
		s.runIsolated(ctx, TaskCleanup, false)
	}); err != nil {
		log.Printf("Warning: invalid cleanup cron expression %q, cleanup will not run: %v", s.cfg.CleanupCron, err)
	}
	c.Start()
	defer c.Stop()

	s.Tick(ctx, false)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Maintenance scheduler shutting down.")
			return
		case <-timer.C:
			s.Tick(ctx, false)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// Tick runs one full scheduling cycle: PM check, SLA check, calibration check,
// spare-parts check, then the downtime reconciliation sweep. Tasks are
// independent; one task's failure does not prevent the others from running.
func (s *Scheduler) Tick(ctx context.Context, dryRun bool) TaskResult {
	var total TaskResult
	for _, name := range []string{TaskPM, TaskSLA, TaskCalibration, TaskSpareParts} {
		total.add(s.runIsolated(ctx, name, dryRun))
	}
	total.add(s.reconcileIsolated(ctx, dryRun))
	return total
}

// RunTask executes a single named task (or "all") and returns its outcome.
// This is the operational "run now" entry point used by the CLI and the API.
func (s *Scheduler) RunTask(ctx context.Context, name string, dryRun bool) (TaskResult, error) {
	switch name {
	case TaskPM, TaskSLA, TaskCalibration, TaskSpareParts, TaskCleanup:
		return s.runTask(ctx, name, dryRun)
	case TaskAll:
		total := s.Tick(ctx, dryRun)
		total.add(s.runIsolated(ctx, TaskCleanup, dryRun))
		return total, nil
	}
	return TaskResult{}, fmt.Errorf("unknown task %q", name)
}

// runIsolated wraps a task with its soft time budget and panic recovery, and
// logs the outcome counts.
func (s *Scheduler) runIsolated(ctx context.Context, name string, dryRun bool) TaskResult {
	res, err := s.runTask(ctx, name, dryRun)
	if err != nil {
		log.Printf("Task %s failed: %v", name, err)
		res.Failed++
		return res
	}
	log.Printf("Task %s finished: %s", name, res)
	return res
}

func (s *Scheduler) reconcileIsolated(ctx context.Context, dryRun bool) (res TaskResult) {
	taskCtx, cancel := context.WithTimeout(ctx, s.cfg.TaskTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Downtime reconciliation panicked: %v", r)
			res.Failed++
		}
	}()

	res, err := s.recon.Sweep(taskCtx, dryRun)
	if err != nil {
		log.Printf("Downtime reconciliation failed: %v", err)
		res.Failed++
		return res
	}
	log.Printf("Downtime reconciliation finished: %s", res)
	return res
}

func (s *Scheduler) runTask(ctx context.Context, name string, dryRun bool) (res TaskResult, err error) {
	taskCtx, cancel := context.WithTimeout(ctx, s.cfg.TaskTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", name, r)
		}
	}()

	switch name {
	case TaskPM:
		return s.gen.RunPMCheck(taskCtx, dryRun)
	case TaskSLA:
		return s.gen.RunSLACheck(taskCtx, dryRun)
	case TaskCalibration:
		return s.gen.RunCalibrationCheck(taskCtx, dryRun)
	case TaskSpareParts:
		return s.gen.RunSparePartsCheck(taskCtx, dryRun)
	case TaskCleanup:
		return s.runCleanup(taskCtx, dryRun)
	}
	return res, fmt.Errorf("unknown task %q", name)
}

// runCleanup prunes read notifications and closed downtime records older than
// the retention window.
func (s *Scheduler) runCleanup(ctx context.Context, dryRun bool) (TaskResult, error) {
	var res TaskResult
	cutoff := s.now().AddDate(0, 0, -s.cfg.RetentionDays)
	if dryRun {
		log.Printf("Cleanup (dry run): would delete read notifications and closed downtimes older than %s", cutoff.Format(time.RFC3339))
		return res, nil
	}
	deleted, err := s.store.DeleteReadNotificationsBefore(ctx, cutoff)
	if err != nil {
		return res, err
	}
	res.Updated += int(deleted)

	pruned, err := s.store.DeleteClosedDowntimesBefore(ctx, cutoff)
	if err != nil {
		return res, err
	}
	res.Updated += int(pruned)
	return res, nil
}
