package model

import "time"

// Notification event kinds raised by the engine.
const (
	NotificationKindPMCreated          = "pm_created"
	NotificationKindCalibrationCreated = "calibration_created"
	NotificationKindSLAResponseBreach  = "sla_response_breach"
	NotificationKindSLAResolutionBreach = "sla_resolution_breach"
	NotificationKindLowStock           = "low_stock"
	NotificationKindOutOfStock         = "out_of_stock"
)

// Notification is a persisted entry in the system inbox. The notification layer
// consults this log for duplicate suppression; the engine itself never
// suppresses events.
type Notification struct {
	ID        int64  `gorm:"primaryKey"`
	Kind      string `gorm:"size:48;not null;index"`
	DeviceID  *int64 `gorm:"index"`
	Recipient string `gorm:"size:128;not null"`
	Title     string `gorm:"size:256;not null"`
	Message   string `gorm:"type:text"`
	Severity  string `gorm:"size:16;not null;default:info"`
	Link      string `gorm:"size:256"`
	IsRead    bool   `gorm:"not null;default:false;index"`
	CreatedAt time.Time `gorm:"index"`
}
