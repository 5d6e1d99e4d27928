package booking

import (
	"time"

	"github.com/rag2504/box-host/internal/model"
	"github.com/rag2504/box-host/internal/parse"
	"github.com/rag2504/box-host/internal/pricing"
	"github.com/rag2504/box-host/internal/slot"
)

// Refund tiers, measured from now to the start of the slot.
const (
	FullRefundNotice = 4 * time.Hour
	HalfRefundNotice = 2 * time.Hour
)

// Snapshot is the immutable part of a reservation the cancellation rules
// look at.
type Snapshot struct {
	Status model.Status
	Date   string
	Start  slot.TimeOfDay
	Total  pricing.Money
}

// SnapshotOf copies the policy-relevant fields of r.
func SnapshotOf(r model.Reservation) Snapshot {
	return Snapshot{
		Status: r.Status,
		Date:   r.Date,
		Start:  slot.TimeOfDay(r.StartMinute),
		Total:  pricing.Money(r.Total),
	}
}

// StartsAt is the wall-clock start of the reserved slot in loc.
func StartsAt(s Snapshot, loc *time.Location) (time.Time, error) {
	day, err := parse.ParseDate(s.Date, loc)
	if err != nil {
		return time.Time{}, err
	}
	return wallClock(day, s.Start), nil
}

// CanBeCancelled reports whether the reservation still holds its slot and
// the slot has not started at now.
func CanBeCancelled(s Snapshot, now time.Time, loc *time.Location) bool {
	if !s.Status.Active() {
		return false
	}
	start, err := StartsAt(s, loc)
	if err != nil {
		return false
	}
	return now.Before(start)
}

// RefundFor is the amount returned if the reservation were cancelled at now.
// Only confirmed reservations have been paid for.
func RefundFor(s Snapshot, now time.Time, loc *time.Location) pricing.Money {
	if s.Status != model.StatusConfirmed {
		return 0
	}
	start, err := StartsAt(s, loc)
	if err != nil {
		return 0
	}

	notice := start.Sub(now)
	switch {
	case notice >= FullRefundNotice:
		return s.Total
	case notice >= HalfRefundNotice:
		return (s.Total + 1) / 2
	}
	return 0
}

// wallClock returns t on the calendar day of day, in day's location.
func wallClock(day time.Time, t slot.TimeOfDay) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, day.Location())
}
