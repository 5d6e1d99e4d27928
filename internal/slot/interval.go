package slot

import (
	"fmt"
	"time"
)

// MinutesPerDay is the number of minutes in a calendar day.
const MinutesPerDay = 24 * 60

// TimeOfDay is a minute-resolution time of day. Valid values are 0..1439 for a
// start and 1..1440 for an end, where 1440 is the end of the day.
type TimeOfDay int

// At builds a TimeOfDay from an hour and minute.
func At(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// String renders the time as "HH:MM". The end of day renders as "24:00".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Interval is a half-open time-of-day range [Start, End) within a single day.
type Interval struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// Valid reports whether the interval is non-empty and stays inside one day.
func (iv Interval) Valid() bool {
	return iv.Start >= 0 && iv.End <= MinutesPerDay && iv.Start < iv.End
}

// Minutes returns the length of the interval in minutes.
func (iv Interval) Minutes() int {
	return int(iv.End - iv.Start)
}

// Duration returns the length of the interval.
func (iv Interval) Duration() time.Duration {
	return time.Duration(iv.Minutes()) * time.Minute
}

// Hours returns the length of the interval in (possibly fractional) hours.
func (iv Interval) Hours() float64 {
	return float64(iv.Minutes()) / 60
}

// String renders the interval as "HH:MM-HH:MM".
func (iv Interval) String() string {
	return iv.Start.String() + "-" + iv.End.String()
}
