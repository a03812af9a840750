package model

import "time"

// WorkOrder statuses.
const (
	WorkOrderStatusNew        = "new"
	WorkOrderStatusAssigned   = "assigned"
	WorkOrderStatusInProgress = "in_progress"
	WorkOrderStatusWaitParts  = "wait_parts"
	WorkOrderStatusOnHold     = "on_hold"
	WorkOrderStatusResolved   = "resolved"
	WorkOrderStatusQAVerified = "qa_verified"
	WorkOrderStatusClosed     = "closed"
	WorkOrderStatusCancelled  = "cancelled"
)

// WorkOrder is the executable unit of maintenance work, created 1:1 with its
// ServiceRequest. Its status is the authoritative source the status propagation
// cascade reads from.
type WorkOrder struct {
	ID               int64  `gorm:"primaryKey"`
	Code             string `gorm:"uniqueIndex;size:64;not null"`
	ServiceRequestID int64  `gorm:"uniqueIndex;not null"`
	WOType           string `gorm:"column:wo_type;size:32;not null"`
	Status           string `gorm:"size:32;not null;default:new;index"`
	Assignee         string `gorm:"size:128"`
	ScheduledStart   *time.Time
	ScheduledEnd     *time.Time
	ActualStart      *time.Time
	ActualEnd        *time.Time
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time

	// Associations
	ServiceRequest ServiceRequest `gorm:"constraint:OnDelete:CASCADE"`
}
