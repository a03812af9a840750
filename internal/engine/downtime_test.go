package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"device-maintenance-backend/internal/model"
)

func TestReconciler_Sweep_OpensDowntime(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	appStore, testDB := newTestStore(t)
	recon := NewReconciler(appStore, fixedClock(now))
	ctx := context.Background()

	device := model.Device{ID: 1, AssetTag: "CT-001", Name: "CT Scanner"}
	require.NoError(t, testDB.Create(&device).Error)
	sr := model.ServiceRequest{
		Code: "SR-1", DeviceID: device.ID,
		RequestType: model.RequestTypeCorrective, Title: "tube failure",
		Status: model.RequestStatusInProgress, CreatedAt: now.Add(-3 * time.Hour),
	}
	require.NoError(t, testDB.Create(&sr).Error)
	wo := model.WorkOrder{
		Code: "WO-1", ServiceRequestID: sr.ID,
		WOType: model.RequestTypeCorrective, Status: model.WorkOrderStatusInProgress,
	}
	require.NoError(t, testDB.Create(&wo).Error)

	res, err := recon.Sweep(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 0, res.Updated)

	var dt model.DeviceDowntime
	require.NoError(t, testDB.Where("device_id = ?", device.ID).First(&dt).Error)
	assert.True(t, dt.Open())
	assert.Equal(t, model.DowntimeReasonBreakdown, dt.Reason)
	require.NotNil(t, dt.WorkOrderID)
	assert.Equal(t, wo.ID, *dt.WorkOrderID)
	// The start is when the sweep observed the condition, not when the work
	// was created.
	assert.Equal(t, now, dt.StartTime.UTC())
	assert.Contains(t, dt.Description, "WO-1")

	// A second sweep must not open a duplicate while work continues.
	res, err = recon.Sweep(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 0, res.Updated)

	var count int64
	testDB.Model(&model.DeviceDowntime{}).Where("device_id = ? AND end_time IS NULL", device.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestReconciler_Sweep_ClosesFromWorkOrder(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	appStore, testDB := newTestStore(t)
	recon := NewReconciler(appStore, fixedClock(now))
	ctx := context.Background()

	device := model.Device{ID: 1, AssetTag: "US-001", Name: "Ultrasound"}
	require.NoError(t, testDB.Create(&device).Error)

	completedAt := now.Add(-2 * time.Hour)
	actualEnd := now.Add(-1 * time.Hour)
	sr := model.ServiceRequest{
		Code: "SR-1", DeviceID: device.ID,
		RequestType: model.RequestTypePreventive, Title: "pm",
		Status: model.RequestStatusResolved, ResolvedAt: &completedAt,
	}
	require.NoError(t, testDB.Create(&sr).Error)
	wo := model.WorkOrder{
		Code: "WO-1", ServiceRequestID: sr.ID,
		WOType: model.RequestTypePreventive, Status: model.WorkOrderStatusResolved,
		ActualEnd: &actualEnd, CompletedAt: &completedAt,
	}
	require.NoError(t, testDB.Create(&wo).Error)

	dt := model.DeviceDowntime{
		DeviceID: device.ID, WorkOrderID: &wo.ID,
		StartTime: now.Add(-6 * time.Hour),
		Reason:    model.DowntimeReasonMaintenance, Description: "opened earlier",
	}
	require.NoError(t, testDB.Create(&dt).Error)

	res, err := recon.Sweep(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	var closed model.DeviceDowntime
	require.NoError(t, testDB.First(&closed, dt.ID).Error)
	require.NotNil(t, closed.EndTime)
	// completed_at is preferred over actual_end and over the sweep time.
	assert.Equal(t, completedAt, closed.EndTime.UTC())
	assert.Contains(t, closed.Description, "opened earlier")
	assert.Contains(t, closed.Description, "completed_at")

	// Closing is idempotent across sweeps.
	res, err = recon.Sweep(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Updated)
}

func TestReconciler_Sweep_UnfinishedWorkKeepsDowntimeOpen(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	appStore, testDB := newTestStore(t)
	recon := NewReconciler(appStore, fixedClock(now))
	ctx := context.Background()

	device := model.Device{ID: 1, AssetTag: "ECG-001", Name: "ECG Monitor"}
	require.NoError(t, testDB.Create(&device).Error)
	sr := model.ServiceRequest{
		Code: "SR-1", DeviceID: device.ID,
		RequestType: model.RequestTypeBreakdown, Title: "screen dead",
		Status: model.RequestStatusInProgress,
	}
	require.NoError(t, testDB.Create(&sr).Error)
	wo := model.WorkOrder{
		Code: "WO-1", ServiceRequestID: sr.ID,
		WOType: model.RequestTypeBreakdown, Status: model.WorkOrderStatusWaitParts,
	}
	require.NoError(t, testDB.Create(&wo).Error)
	dt := model.DeviceDowntime{
		DeviceID: device.ID, WorkOrderID: &wo.ID,
		StartTime: now.Add(-time.Hour), Reason: model.DowntimeReasonBreakdown,
	}
	require.NoError(t, testDB.Create(&dt).Error)

	res, err := recon.Sweep(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Updated)

	var saved model.DeviceDowntime
	require.NoError(t, testDB.First(&saved, dt.ID).Error)
	assert.True(t, saved.Open())
}

func TestReconciler_Sweep_ClosesUnlinkedFromSettledRequest(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	appStore, testDB := newTestStore(t)
	recon := NewReconciler(appStore, fixedClock(now))
	ctx := context.Background()

	device := model.Device{ID: 1, AssetTag: "DEF-001", Name: "Defibrillator"}
	require.NoError(t, testDB.Create(&device).Error)

	resolvedAt := now.Add(-30 * time.Minute)
	sr := model.ServiceRequest{
		Code: "SR-1", DeviceID: device.ID,
		RequestType: model.RequestTypeCorrective, Title: "battery fault",
		Status: model.RequestStatusResolved, ResolvedAt: &resolvedAt,
	}
	require.NoError(t, testDB.Create(&sr).Error)

	dt := model.DeviceDowntime{
		DeviceID:  device.ID,
		StartTime: now.Add(-4 * time.Hour), Reason: model.DowntimeReasonBreakdown,
	}
	require.NoError(t, testDB.Create(&dt).Error)

	res, err := recon.Sweep(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	var closed model.DeviceDowntime
	require.NoError(t, testDB.First(&closed, dt.ID).Error)
	require.NotNil(t, closed.EndTime)
	assert.Equal(t, resolvedAt, closed.EndTime.UTC())
	assert.Contains(t, closed.Description, "SR-1")
}

func TestReconciler_Sweep_UnlinkedStaysOpenWhileRequestsRemain(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	appStore, testDB := newTestStore(t)
	recon := NewReconciler(appStore, fixedClock(now))
	ctx := context.Background()

	device := model.Device{ID: 1, AssetTag: "ANE-001", Name: "Anesthesia Machine"}
	require.NoError(t, testDB.Create(&device).Error)
	sr := model.ServiceRequest{
		Code: "SR-1", DeviceID: device.ID,
		RequestType: model.RequestTypeCalibration, Title: "cal",
		Status: model.RequestStatusNew,
	}
	require.NoError(t, testDB.Create(&sr).Error)
	dt := model.DeviceDowntime{
		DeviceID:  device.ID,
		StartTime: now.Add(-time.Hour), Reason: model.DowntimeReasonCalibration,
	}
	require.NoError(t, testDB.Create(&dt).Error)

	res, err := recon.Sweep(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Updated)

	var saved model.DeviceDowntime
	require.NoError(t, testDB.First(&saved, dt.ID).Error)
	assert.True(t, saved.Open())
}

func TestReconciler_Sweep_DryRunWritesNothing(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	appStore, testDB := newTestStore(t)
	recon := NewReconciler(appStore, fixedClock(now))
	ctx := context.Background()

	device := model.Device{ID: 1, AssetTag: "INC-001", Name: "Incubator"}
	require.NoError(t, testDB.Create(&device).Error)
	sr := model.ServiceRequest{
		Code: "SR-1", DeviceID: device.ID,
		RequestType: model.RequestTypeBreakdown, Title: "heater",
		Status: model.RequestStatusNew,
	}
	require.NoError(t, testDB.Create(&sr).Error)

	res, err := recon.Sweep(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	var count int64
	testDB.Model(&model.DeviceDowntime{}).Count(&count)
	assert.Equal(t, int64(0), count)
}
