package model

import "time"

// ServiceRequest statuses.
const (
	RequestStatusNew        = "new"
	RequestStatusAssigned   = "assigned"
	RequestStatusInProgress = "in_progress"
	RequestStatusResolved   = "resolved"
	RequestStatusClosed     = "closed"
	RequestStatusCancelled  = "cancelled"
)

// ServiceRequest types.
const (
	RequestTypePreventive  = "preventive"
	RequestTypeCalibration = "calibration"
	RequestTypeCorrective  = "corrective"
	RequestTypeBreakdown   = "breakdown"
	RequestTypeInspection  = "inspection"
)

// Priorities shared by service requests and work orders.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// ServiceRequest is a request for maintenance work on a device. Requests created
// by the scheduler carry IsAutoGenerated=true and due timestamps computed from
// the applicable SLA at creation time.
type ServiceRequest struct {
	ID              int64  `gorm:"primaryKey"`
	Code            string `gorm:"uniqueIndex;size:64;not null"`
	DeviceID        int64  `gorm:"index;not null"`
	RequestType     string `gorm:"size:32;not null;index"`
	Title           string `gorm:"size:256;not null"`
	Description     string `gorm:"type:text"`
	Priority        string `gorm:"size:16;not null;default:medium"`
	Severity        string `gorm:"size:16"`
	Impact          string `gorm:"size:16"`
	Status          string `gorm:"size:32;not null;default:new;index"`
	IsAutoGenerated bool   `gorm:"not null;default:false"`
	ResponseDue     *time.Time
	ResolutionDue   *time.Time
	ResolvedAt      *time.Time
	ClosedAt        *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Associations
	Device Device `gorm:"constraint:OnDelete:CASCADE"`
}
