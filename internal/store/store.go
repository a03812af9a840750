package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"device-maintenance-backend/internal/model"
	"device-maintenance-backend/internal/rules"
)

// Store defines the persistence operations the maintenance engine needs. All
// multi-row mutations are atomic; the engine holds no state between ticks
// beyond what it re-reads through these snapshot queries.
type Store interface {
	DB() *gorm.DB

	// Snapshot reads for trigger evaluation.
	ActivePMSchedules(ctx context.Context) ([]model.PMSchedule, error)
	CalibrationRecordsDueBy(ctx context.Context, date time.Time) ([]model.CalibrationRecord, error)
	OpenServiceRequests(ctx context.Context) ([]model.ServiceRequest, error)
	HasOpenRequest(ctx context.Context, deviceID int64, requestType string) (bool, error)
	SpareParts(ctx context.Context) ([]model.SparePart, error)

	// Action generation.
	CreatePMAction(ctx context.Context, sr *model.ServiceRequest, wo *model.WorkOrder, schedule *model.PMSchedule) error
	CreateCalibrationAction(ctx context.Context, sr *model.ServiceRequest, wo *model.WorkOrder) error
	SaveCalibrationRecord(ctx context.Context, rec *model.CalibrationRecord) error

	// Status propagation.
	GetWorkOrder(ctx context.Context, id int64) (*model.WorkOrder, error)
	ApplyWorkOrderStatus(ctx context.Context, workOrderID int64, newStatus string, now time.Time) (*model.WorkOrder, error)

	// Downtime reconciliation.
	OpenDowntimes(ctx context.Context) ([]model.DeviceDowntime, error)
	DeviceIDsWithOpenWork(ctx context.Context) ([]int64, error)
	LatestOpenWorkOrderForDevice(ctx context.Context, deviceID int64) (*model.WorkOrder, error)
	LatestOpenRequestForDevice(ctx context.Context, deviceID int64) (*model.ServiceRequest, error)
	LatestSettledRequestForDevice(ctx context.Context, deviceID int64, requestType string) (*model.ServiceRequest, error)
	OpenDowntimeIfNone(ctx context.Context, dt *model.DeviceDowntime) (bool, error)
	CloseDowntime(ctx context.Context, downtimeID int64, end time.Time, note string) (bool, error)

	// Cleanup.
	DeleteReadNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteClosedDowntimesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying connection for the API handlers and the
// notification worker, which run their own read-mostly queries.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) ActivePMSchedules(ctx context.Context) ([]model.PMSchedule, error) {
	var schedules []model.PMSchedule
	err := s.db.WithContext(ctx).
		Preload("Device").
		Preload("JobPlan").
		Where("is_active = ?", true).
		Find(&schedules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active PM schedules: %w", err)
	}
	return schedules, nil
}

// CalibrationRecordsDueBy returns every record whose next calibration date is
// on or before the given day, regardless of persisted status. The calibration
// task normalizes stale statuses before evaluating, so a record incorrectly
// marked completed must still be part of the snapshot.
func (s *gormStore) CalibrationRecordsDueBy(ctx context.Context, date time.Time) ([]model.CalibrationRecord, error) {
	var records []model.CalibrationRecord
	err := s.db.WithContext(ctx).
		Preload("Device").
		Where("next_calibration_date < ?", rules.DateOf(date).AddDate(0, 0, 1)).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due calibration records: %w", err)
	}
	return records, nil
}

func (s *gormStore) OpenServiceRequests(ctx context.Context) ([]model.ServiceRequest, error) {
	var requests []model.ServiceRequest
	err := s.db.WithContext(ctx).
		Preload("Device").
		Where("status IN ?", rules.OpenRequestStatuses).
		Find(&requests).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch open service requests: %w", err)
	}
	return requests, nil
}

// HasOpenRequest is the duplicate guard: true if an open request of the given
// type already exists for the device.
func (s *gormStore) HasOpenRequest(ctx context.Context, deviceID int64, requestType string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.ServiceRequest{}).
		Where("device_id = ? AND request_type = ? AND status IN ?", deviceID, requestType, rules.OpenRequestStatuses).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("duplicate guard query failed for device %d: %w", deviceID, err)
	}
	return count > 0, nil
}

func (s *gormStore) SpareParts(ctx context.Context) ([]model.SparePart, error) {
	var parts []model.SparePart
	if err := s.db.WithContext(ctx).Find(&parts).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch spare parts: %w", err)
	}
	return parts, nil
}

// CreatePMAction persists the request/work-order pair and the advanced schedule
// in one transaction, so a crash cannot leave an orphaned request or a schedule
// that would re-fire next tick.
func (s *gormStore) CreatePMAction(ctx context.Context, sr *model.ServiceRequest, wo *model.WorkOrder, schedule *model.PMSchedule) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := createRequestPair(tx, sr, wo); err != nil {
			return err
		}
		if err := tx.Model(&model.PMSchedule{}).
			Where("id = ?", schedule.ID).
			Updates(map[string]any{
				"next_due_date":       schedule.NextDueDate,
				"last_completed_date": schedule.LastCompletedDate,
			}).Error; err != nil {
			return fmt.Errorf("failed to advance PM schedule %d: %w", schedule.ID, err)
		}
		return nil
	})
}

// CreateCalibrationAction persists the request/work-order pair for a due
// calibration. The calibration record itself only advances on completion.
func (s *gormStore) CreateCalibrationAction(ctx context.Context, sr *model.ServiceRequest, wo *model.WorkOrder) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return createRequestPair(tx, sr, wo)
	})
}

func createRequestPair(tx *gorm.DB, sr *model.ServiceRequest, wo *model.WorkOrder) error {
	if err := tx.Create(sr).Error; err != nil {
		return fmt.Errorf("failed to create service request for device %d: %w", sr.DeviceID, err)
	}
	wo.ServiceRequestID = sr.ID
	if err := tx.Create(wo).Error; err != nil {
		return fmt.Errorf("failed to create work order for request %d: %w", sr.ID, err)
	}
	return nil
}

func (s *gormStore) SaveCalibrationRecord(ctx context.Context, rec *model.CalibrationRecord) error {
	err := s.db.WithContext(ctx).Model(&model.CalibrationRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]any{
			"status":                rec.Status,
			"next_calibration_date": rec.NextCalibrationDate,
			"last_calibrated_at":    rec.LastCalibratedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to save calibration record %d: %w", rec.ID, err)
	}
	return nil
}

func (s *gormStore) GetWorkOrder(ctx context.Context, id int64) (*model.WorkOrder, error) {
	var wo model.WorkOrder
	if err := s.db.WithContext(ctx).Preload("ServiceRequest").First(&wo, id).Error; err != nil {
		return nil, err
	}
	return &wo, nil
}

// ApplyWorkOrderStatus writes a work order status change and cascades it to the
// parent service request in one transaction. Re-applying the current status is
// a no-op; timestamps already set are never overwritten.
func (s *gormStore) ApplyWorkOrderStatus(ctx context.Context, workOrderID int64, newStatus string, now time.Time) (*model.WorkOrder, error) {
	var wo model.WorkOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("ServiceRequest").First(&wo, workOrderID).Error; err != nil {
			return fmt.Errorf("work order %d not found: %w", workOrderID, err)
		}

		if wo.Status == newStatus {
			return nil
		}

		srStatus, ok := rules.RequestStatusFor(newStatus)
		if !ok {
			return fmt.Errorf("unknown work order status %q", newStatus)
		}

		wo.Status = newStatus
		switch newStatus {
		case model.WorkOrderStatusInProgress:
			if wo.ActualStart == nil {
				wo.ActualStart = &now
			}
		case model.WorkOrderStatusResolved, model.WorkOrderStatusQAVerified, model.WorkOrderStatusClosed:
			if wo.ActualEnd == nil {
				wo.ActualEnd = &now
			}
			if wo.CompletedAt == nil {
				wo.CompletedAt = &now
			}
		}
		if err := tx.Save(&wo).Error; err != nil {
			return fmt.Errorf("failed to save work order %d: %w", wo.ID, err)
		}

		sr := wo.ServiceRequest
		sr.Status = srStatus
		if srStatus == model.RequestStatusResolved && sr.ResolvedAt == nil {
			sr.ResolvedAt = &now
		}
		if srStatus == model.RequestStatusClosed && sr.ClosedAt == nil {
			sr.ClosedAt = &now
		}
		if err := tx.Save(&sr).Error; err != nil {
			return fmt.Errorf("failed to cascade status to request %d: %w", sr.ID, err)
		}
		wo.ServiceRequest = sr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &wo, nil
}

func (s *gormStore) OpenDowntimes(ctx context.Context) ([]model.DeviceDowntime, error) {
	var downtimes []model.DeviceDowntime
	err := s.db.WithContext(ctx).
		Preload("WorkOrder").
		Where("end_time IS NULL").
		Find(&downtimes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch open downtimes: %w", err)
	}
	return downtimes, nil
}

// DeviceIDsWithOpenWork returns the distinct devices that currently have an
// open service request or an open work order.
func (s *gormStore) DeviceIDsWithOpenWork(ctx context.Context) ([]int64, error) {
	var fromRequests []int64
	err := s.db.WithContext(ctx).
		Model(&model.ServiceRequest{}).
		Distinct("device_id").
		Where("status IN ?", rules.OpenRequestStatuses).
		Pluck("device_id", &fromRequests).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch devices with open requests: %w", err)
	}

	var fromWorkOrders []int64
	err = s.db.WithContext(ctx).
		Model(&model.WorkOrder{}).
		Distinct("service_requests.device_id").
		Joins("JOIN service_requests ON service_requests.id = work_orders.service_request_id").
		Where("work_orders.status IN ?", rules.OpenWorkOrderStatuses).
		Pluck("service_requests.device_id", &fromWorkOrders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch devices with open work orders: %w", err)
	}

	seen := make(map[int64]struct{}, len(fromRequests)+len(fromWorkOrders))
	var ids []int64
	for _, id := range append(fromRequests, fromWorkOrders...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *gormStore) LatestOpenWorkOrderForDevice(ctx context.Context, deviceID int64) (*model.WorkOrder, error) {
	var wo model.WorkOrder
	err := s.db.WithContext(ctx).
		Joins("JOIN service_requests ON service_requests.id = work_orders.service_request_id").
		Where("service_requests.device_id = ? AND work_orders.status IN ?", deviceID, rules.OpenWorkOrderStatuses).
		Order("work_orders.created_at DESC").
		First(&wo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wo, nil
}

func (s *gormStore) LatestOpenRequestForDevice(ctx context.Context, deviceID int64) (*model.ServiceRequest, error) {
	var sr model.ServiceRequest
	err := s.db.WithContext(ctx).
		Where("device_id = ? AND status IN ?", deviceID, rules.OpenRequestStatuses).
		Order("created_at DESC").
		First(&sr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sr, nil
}

// LatestSettledRequestForDevice returns the most recent request that left the
// open set. An empty requestType matches any type.
func (s *gormStore) LatestSettledRequestForDevice(ctx context.Context, deviceID int64, requestType string) (*model.ServiceRequest, error) {
	settled := []string{model.RequestStatusResolved, model.RequestStatusClosed, model.RequestStatusCancelled}
	q := s.db.WithContext(ctx).
		Where("device_id = ? AND status IN ?", deviceID, settled)
	if requestType != "" {
		q = q.Where("request_type = ?", requestType)
	}
	var sr model.ServiceRequest
	err := q.Order("created_at DESC").First(&sr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sr, nil
}

// OpenDowntimeIfNone creates the downtime record unless the device already has
// an open one. Returns true when a record was created.
func (s *gormStore) OpenDowntimeIfNone(ctx context.Context, dt *model.DeviceDowntime) (bool, error) {
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.DeviceDowntime{}).
			Where("device_id = ? AND end_time IS NULL", dt.DeviceID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("open downtime check failed for device %d: %w", dt.DeviceID, err)
		}
		if count > 0 {
			return nil
		}
		if err := tx.Create(dt).Error; err != nil {
			return fmt.Errorf("failed to open downtime for device %d: %w", dt.DeviceID, err)
		}
		created = true
		return nil
	})
	return created, err
}

// CloseDowntime sets the end time and appends the audit note. A record already
// closed is left untouched. Returns true when the record was closed just now.
func (s *gormStore) CloseDowntime(ctx context.Context, downtimeID int64, end time.Time, note string) (bool, error) {
	closed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dt model.DeviceDowntime
		if err := tx.First(&dt, downtimeID).Error; err != nil {
			return fmt.Errorf("downtime %d not found: %w", downtimeID, err)
		}
		if dt.EndTime != nil {
			return nil
		}
		dt.EndTime = &end
		dt.Description = appendNote(dt.Description, note)
		if err := tx.Save(&dt).Error; err != nil {
			return fmt.Errorf("failed to close downtime %d: %w", downtimeID, err)
		}
		closed = true
		return nil
	})
	return closed, err
}

// appendNote keeps the downtime description append-only.
func appendNote(existing, note string) string {
	if note == "" {
		return existing
	}
	if strings.TrimSpace(existing) == "" {
		return note
	}
	return existing + "\n" + note
}

func (s *gormStore) DeleteReadNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&model.Notification{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete old notifications: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteClosedDowntimesBefore prunes downtime records that ended before the
// cutoff. Open records are never touched.
func (s *gormStore) DeleteClosedDowntimesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("end_time IS NOT NULL AND end_time < ?", cutoff).
		Delete(&model.DeviceDowntime{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete old downtimes: %w", res.Error)
	}
	return res.RowsAffected, nil
}
