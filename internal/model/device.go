package model

import "time"

// Device statuses. The engine never writes Device.Status directly; availability
// is tracked through DeviceDowntime records instead.
const (
	DeviceStatusWorking          = "working"
	DeviceStatusNeedsMaintenance = "needs_maintenance"
	DeviceStatusOutOfOrder       = "out_of_order"
	DeviceStatusNeedsCheck       = "needs_check"
)

// Device represents a medical device tracked by the maintenance engine.
type Device struct {
	ID           int64  `gorm:"primaryKey"`
	AssetTag     string `gorm:"uniqueIndex;size:64;not null"`
	Name         string `gorm:"size:256;not null"`
	Category     string `gorm:"size:64;index"`
	Status       string `gorm:"size:32;not null;default:working"`
	DepartmentID *int64 `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Associations
	Department *Department `gorm:"constraint:OnDelete:SET NULL"`
}

// Department groups devices by the hospital unit that owns them.
type Department struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;size:128;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	// Associations
	Devices []Device `gorm:"foreignKey:DepartmentID"`
}
