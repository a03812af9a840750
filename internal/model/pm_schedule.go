package model

import "time"

// PM schedule frequencies.
const (
	FrequencyDaily      = "daily"
	FrequencyWeekly     = "weekly"
	FrequencyMonthly    = "monthly"
	FrequencyQuarterly  = "quarterly"
	FrequencySemiAnnual = "semi_annual"
	FrequencyAnnual     = "annual"
	FrequencyCustom     = "custom"
)

// PMSchedule drives recurring preventive maintenance for a device. NextDueDate
// is advanced immediately after the schedule fires; it is never left stale.
type PMSchedule struct {
	ID                int64 `gorm:"primaryKey"`
	DeviceID          int64 `gorm:"index;not null"`
	JobPlanID         *int64
	Frequency         string `gorm:"size:16;not null;default:monthly"`
	FrequencyValue    int    `gorm:"not null;default:0"` // days, used when Frequency is custom
	NextDueDate       time.Time
	LastCompletedDate *time.Time
	IsActive          bool `gorm:"not null;default:true;index"`
	CreatedAt         time.Time
	UpdatedAt         time.Time

	// Associations
	Device  Device   `gorm:"constraint:OnDelete:CASCADE"`
	JobPlan *JobPlan `gorm:"constraint:OnDelete:SET NULL"`
}

// JobPlan is a maintenance procedure template, referenced only to populate
// descriptive text on generated requests.
type JobPlan struct {
	ID          int64  `gorm:"primaryKey"`
	Name        string `gorm:"size:128;not null"`
	Category    string `gorm:"size:64;index"`
	Description string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
