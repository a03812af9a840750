package model

import "time"

// Downtime reasons, derived from the work order type that caused the outage.
const (
	DowntimeReasonBreakdown   = "breakdown"
	DowntimeReasonMaintenance = "maintenance"
	DowntimeReasonCalibration = "calibration"
	DowntimeReasonOther       = "other"
)

// DeviceDowntime is an interval during which a device is unavailable. A nil
// EndTime marks the record as open; at most one open record may exist per
// device. Description is an append-only narrative of why start/end were chosen.
type DeviceDowntime struct {
	ID          int64  `gorm:"primaryKey"`
	DeviceID    int64  `gorm:"index;not null"`
	WorkOrderID *int64 `gorm:"index"`
	StartTime   time.Time
	EndTime     *time.Time `gorm:"index"`
	Reason      string     `gorm:"size:32;not null;default:other"`
	Description string     `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Associations
	Device    Device     `gorm:"constraint:OnDelete:CASCADE"`
	WorkOrder *WorkOrder `gorm:"constraint:OnDelete:SET NULL"`
}

// Open reports whether the downtime interval is still running.
func (d *DeviceDowntime) Open() bool {
	return d.EndTime == nil
}
