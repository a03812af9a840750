package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// Staff subscribe to the devices they care about; the notification worker fans
// alerts out to every subscription mapped to the affected device.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Devices []*Device `gorm:"many2many:subscription_device_mapping;"`
}
