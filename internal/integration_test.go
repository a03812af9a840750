package internal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"device-maintenance-backend/internal/db"
	"device-maintenance-backend/internal/engine"
	"device-maintenance-backend/internal/model"
	"device-maintenance-backend/internal/notification"
	"device-maintenance-backend/internal/sla"
	"device-maintenance-backend/internal/store"
)

// recordingSink collects engine events synchronously.
type recordingSink struct {
	events []notification.Event
}

func (s *recordingSink) Notify(ev notification.Event) {
	s.events = append(s.events, ev)
}

// TestMaintenanceLifecycle walks a device through a full preventive-maintenance
// cycle: the due schedule generates a request and work order, the sweep opens a
// downtime record, the work order is resolved, and the next sweep closes the
// downtime at the completion timestamp.
func TestMaintenanceLifecycle(t *testing.T) {
	// --- Test Setup ---

	// 1. Setup an in-memory SQLite database with the production schema.
	testDB, err := gorm.Open(sqlite.Open("file:lifecycle?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to the in-memory database: %v", err)
	}
	sqlDB, _ := testDB.DB()
	defer sqlDB.Close()

	require.NoError(t, db.Migrate(testDB))

	// 2. Fixed clock so every timestamp in the scenario is deterministic.
	t0 := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	current := t0
	clock := func() time.Time { return current }

	// 3. Wire the engine the way the daemon does, with a synchronous sink.
	appStore := store.NewGormStore(testDB)
	sink := &recordingSink{}
	resolver := sla.NewResolver(testDB, 24, 72)
	generator := engine.NewGenerator(appStore, resolver, sink, clock)
	reconciler := engine.NewReconciler(appStore, clock)
	propagator := engine.NewPropagator(appStore, clock)
	ctx := context.Background()

	// 4. Seed a device, an SLA definition for its category, and a schedule that
	// came due yesterday.
	device := model.Device{ID: 1, AssetTag: "MRI-001", Name: "MRI Scanner", Category: "imaging"}
	require.NoError(t, testDB.Create(&device).Error)

	slaDef := model.SLADefinition{
		Name: "imaging", DeviceCategory: "imaging",
		ResponseTimeHours: 4, ResolutionTimeHours: 24, IsActive: true,
	}
	require.NoError(t, testDB.Create(&slaDef).Error)

	schedule := model.PMSchedule{
		DeviceID: device.ID, Frequency: model.FrequencyMonthly,
		NextDueDate: t0.AddDate(0, 0, -1), IsActive: true,
	}
	require.NoError(t, testDB.Create(&schedule).Error)

	var workOrderID int64

	// --- Cycle 1: the due schedule generates work ---
	t.Run("Cycle 1: PM Check Generates Action", func(t *testing.T) {
		res, err := generator.RunPMCheck(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Created)

		var sr model.ServiceRequest
		require.NoError(t, testDB.Where("device_id = ?", device.ID).First(&sr).Error)
		assert.Equal(t, model.RequestTypePreventive, sr.RequestType)
		assert.True(t, sr.IsAutoGenerated)
		require.NotNil(t, sr.ResponseDue)
		assert.Equal(t, t0.Add(4*time.Hour), sr.ResponseDue.UTC(), "response due comes from the category SLA")
		require.NotNil(t, sr.ResolutionDue)
		assert.Equal(t, t0.Add(24*time.Hour), sr.ResolutionDue.UTC())

		var wo model.WorkOrder
		require.NoError(t, testDB.Where("service_request_id = ?", sr.ID).First(&wo).Error)
		assert.Equal(t, model.WorkOrderStatusNew, wo.Status)
		workOrderID = wo.ID

		var advanced model.PMSchedule
		require.NoError(t, testDB.First(&advanced, schedule.ID).Error)
		assert.Equal(t, time.Date(2026, 4, 14, 0, 0, 0, 0, time.UTC), advanced.NextDueDate.UTC())

		require.Len(t, sink.events, 1)
		assert.Equal(t, model.NotificationKindPMCreated, sink.events[0].Kind)
	})

	// --- Cycle 2: the sweep sees the open work and records downtime ---
	t.Run("Cycle 2: Sweep Opens Downtime", func(t *testing.T) {
		current = t0.Add(10 * time.Minute)

		res, err := reconciler.Sweep(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Created)

		var dt model.DeviceDowntime
		require.NoError(t, testDB.Where("device_id = ? AND end_time IS NULL", device.ID).First(&dt).Error)
		assert.Equal(t, model.DowntimeReasonMaintenance, dt.Reason)
		require.NotNil(t, dt.WorkOrderID)
		assert.Equal(t, workOrderID, *dt.WorkOrderID)
		assert.Equal(t, t0.Add(10*time.Minute), dt.StartTime.UTC())
	})

	// --- Cycle 3: the technician works the order to completion ---
	var completedAt time.Time
	t.Run("Cycle 3: Status Propagates To The Request", func(t *testing.T) {
		current = t0.Add(1 * time.Hour)
		_, err := propagator.Apply(ctx, workOrderID, model.WorkOrderStatusInProgress)
		require.NoError(t, err)

		var sr model.ServiceRequest
		require.NoError(t, testDB.Where("device_id = ?", device.ID).First(&sr).Error)
		assert.Equal(t, model.RequestStatusInProgress, sr.Status)

		current = t0.Add(3 * time.Hour)
		completedAt = current
		wo, err := propagator.Apply(ctx, workOrderID, model.WorkOrderStatusResolved)
		require.NoError(t, err)
		require.NotNil(t, wo.CompletedAt)
		assert.Equal(t, completedAt, wo.CompletedAt.UTC())

		require.NoError(t, testDB.Where("device_id = ?", device.ID).First(&sr).Error)
		assert.Equal(t, model.RequestStatusResolved, sr.Status)
		require.NotNil(t, sr.ResolvedAt)
	})

	// --- Cycle 4: the next sweep closes the downtime at completion time ---
	t.Run("Cycle 4: Sweep Closes Downtime", func(t *testing.T) {
		current = t0.Add(5 * time.Hour)

		res, err := reconciler.Sweep(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Updated)

		var dt model.DeviceDowntime
		require.NoError(t, testDB.Where("device_id = ?", device.ID).First(&dt).Error)
		require.NotNil(t, dt.EndTime)
		assert.Equal(t, completedAt, dt.EndTime.UTC(), "downtime ends when the work finished, not when the sweep ran")
		assert.Contains(t, dt.Description, "completed_at")

		// The device is fully available again; a further sweep changes nothing.
		res, err = reconciler.Sweep(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, engine.TaskResult{}, res)
	})

	// --- Cycle 5: the advanced schedule is quiet until it comes due again ---
	t.Run("Cycle 5: No Repeat Generation", func(t *testing.T) {
		res, err := generator.RunPMCheck(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Created)
		assert.Len(t, sink.events, 1, "no further notifications were raised")

		var count int64
		testDB.Model(&model.ServiceRequest{}).Where("device_id = ?", device.ID).Count(&count)
		assert.Equal(t, int64(1), count)
	})
}
