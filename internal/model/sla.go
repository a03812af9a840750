package model

import "time"

// SLADefinition holds the response/resolution time budgets applied to a service
// request at creation time. Matched on category, severity, impact and priority;
// empty fields act as wildcards with exact matches preferred.
type SLADefinition struct {
	ID                  int64  `gorm:"primaryKey"`
	Name                string `gorm:"size:128;not null"`
	DeviceCategory      string `gorm:"size:64;index"`
	Severity            string `gorm:"size:16"`
	Impact              string `gorm:"size:16"`
	Priority            string `gorm:"size:16"`
	ResponseTimeHours   int    `gorm:"not null"`
	ResolutionTimeHours int    `gorm:"not null"`
	IsActive            bool   `gorm:"not null;default:true"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
