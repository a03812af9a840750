package model

import "time"

// SparePart is an inventory item checked by the stock sweep. MinQuantity is the
// reorder threshold below which a low-stock alert is raised.
type SparePart struct {
	ID          int64  `gorm:"primaryKey"`
	PartNumber  string `gorm:"uniqueIndex;size:64;not null"`
	Name        string `gorm:"size:256;not null"`
	Quantity    int    `gorm:"not null;default:0"`
	MinQuantity int    `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
