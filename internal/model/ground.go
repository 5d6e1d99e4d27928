package model

import "time"

// Ground is a bookable venue managed by the ground-management service. The
// booking service only reads it.
type Ground struct {
	ID        int64  `gorm:"primaryKey"`
	Name      string `gorm:"size:256;not null"`
	Capacity  int    `gorm:"not null;default:0"` // 0 means no player limit
	FlatRate  int64  `gorm:"not null;default:0"` // per hour, minor units
	Discount  int64  `gorm:"not null;default:0"` // flat, minor units
	Currency  string `gorm:"size:3;not null;default:INR"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	RateRanges []RateRange `gorm:"foreignKey:GroundID;constraint:OnDelete:CASCADE"`
}

// RateRange is one row of a ground's tiered price table. Position orders the
// ranges for first-match lookup.
type RateRange struct {
	ID          int64 `gorm:"primaryKey"`
	GroundID    int64 `gorm:"index;not null"`
	Position    int   `gorm:"not null;default:0"`
	StartMinute int   `gorm:"not null"`
	EndMinute   int   `gorm:"not null"`
	PerHour     int64 `gorm:"not null"`
}
