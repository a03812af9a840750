package model

import "time"

// Calibration statuses.
const (
	CalibrationStatusDue       = "due"
	CalibrationStatusOverdue   = "overdue"
	CalibrationStatusCompleted = "completed"
)

// CalibrationRecord tracks the calibration cycle of a device. Status is a
// persisted field; the calibration task re-derives it from NextCalibrationDate
// at the start of every run so a stale "completed" cannot suppress a due check.
type CalibrationRecord struct {
	ID                  int64 `gorm:"primaryKey"`
	DeviceID            int64 `gorm:"index;not null"`
	NextCalibrationDate time.Time
	LastCalibratedAt    *time.Time
	IntervalMonths      int    `gorm:"not null;default:12"`
	Status              string `gorm:"size:16;not null;default:due;index"`
	CreatedAt           time.Time
	UpdatedAt           time.Time

	// Associations
	Device Device `gorm:"constraint:OnDelete:CASCADE"`
}
