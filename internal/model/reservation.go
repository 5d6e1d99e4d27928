package model

import "time"

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// ActiveStatuses are the statuses that hold a slot.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed}

// Active reports whether the status holds its slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// Reservation is a booking of one interval on one ground and date.
//
// idx_active_slot rejects a second active row with the same ground, date and
// interval. It is the last-resort guard for concurrent admissions; overlap
// across different intervals is prevented by the admission transaction (and,
// on Postgres, optionally by an exclusion constraint).
type Reservation struct {
	ID          string `gorm:"primaryKey;size:36"`
	Code        string `gorm:"uniqueIndex;size:32;not null"`
	GroundKey   string `gorm:"size:64;not null;index:idx_ground_date,priority:1;uniqueIndex:idx_active_slot,priority:1,where:status = 'pending' OR status = 'confirmed'"`
	Date        string `gorm:"size:10;not null;index:idx_ground_date,priority:2;uniqueIndex:idx_active_slot,priority:2"`
	StartMinute int    `gorm:"not null;uniqueIndex:idx_active_slot,priority:3"`
	EndMinute   int    `gorm:"not null;uniqueIndex:idx_active_slot,priority:4"`
	Status      Status `gorm:"size:16;not null;index"`

	UserID       string `gorm:"size:64;index"`
	TeamName     string `gorm:"size:128"`
	PlayerCount  int    `gorm:"not null"`
	ContactName  string `gorm:"size:128;not null"`
	ContactPhone string `gorm:"size:32;not null"`
	ContactEmail string `gorm:"size:256"`
	Requirements string `gorm:"size:1024"`

	Rate     int64  `gorm:"not null"`
	Base     int64  `gorm:"not null"`
	Discount int64  `gorm:"not null"`
	Fee      int64  `gorm:"not null"`
	Total    int64  `gorm:"not null"`
	Currency string `gorm:"size:3;not null"`

	ConfirmedAt  *time.Time
	CancelledAt  *time.Time
	CancelledBy  string `gorm:"size:16"`
	CancelReason string `gorm:"size:512"`
	RefundAmount int64  `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
