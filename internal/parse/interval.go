package parse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/rag2504/box-host/internal/slot"
)

// DateLayout is the ISO-8601 calendar date layout accepted by the API.
const DateLayout = "2006-01-02"

var (
	// ErrInvalidInterval is returned for a malformed "HH:MM-HH:MM" string or
	// an interval that is empty or wraps past midnight.
	ErrInvalidInterval = errors.New("invalid time interval")
	// ErrInvalidDate is returned for a malformed calendar date.
	ErrInvalidDate = errors.New("invalid date")
)

var (
	intervalRe  = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*-\s*(\d{1,2}):(\d{2})\s*$`)
	timeOfDayRe = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*$`)
)

// ParseInterval parses "HH:MM-HH:MM" into a same-day interval. An end of
// "24:00", or "00:00" after a non-midnight start, means the end of the day, so
// "23:00-00:00" is the last hour of the day and not a wrap.
func ParseInterval(raw string) (slot.Interval, error) {
	m := intervalRe.FindStringSubmatch(raw)
	if m == nil {
		return slot.Interval{}, fmt.Errorf("%w: %q is not HH:MM-HH:MM", ErrInvalidInterval, raw)
	}

	start, err := clock(m[1], m[2], false)
	if err != nil {
		return slot.Interval{}, fmt.Errorf("%w: %q: %v", ErrInvalidInterval, raw, err)
	}
	end, err := clock(m[3], m[4], true)
	if err != nil {
		return slot.Interval{}, fmt.Errorf("%w: %q: %v", ErrInvalidInterval, raw, err)
	}
	if end == 0 && start > 0 {
		end = slot.MinutesPerDay
	}

	iv := slot.Interval{Start: start, End: end}
	if !iv.Valid() {
		return slot.Interval{}, fmt.Errorf("%w: %q must start before it ends on the same day", ErrInvalidInterval, raw)
	}
	return iv, nil
}

// ParseTimeOfDay parses "HH:MM". "24:00" is accepted as the end of the day.
func ParseTimeOfDay(raw string) (slot.TimeOfDay, error) {
	m := timeOfDayRe.FindStringSubmatch(raw)
	if m == nil {
		return 0, fmt.Errorf("%w: %q is not HH:MM", ErrInvalidInterval, raw)
	}
	t, err := clock(m[1], m[2], true)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidInterval, raw, err)
	}
	return t, nil
}

// ParseDate parses a YYYY-MM-DD date as midnight in loc.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not YYYY-MM-DD", ErrInvalidDate, raw)
	}
	return d, nil
}

func clock(hh, mm string, allowEndOfDay bool) (slot.TimeOfDay, error) {
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, err
	}
	if allowEndOfDay && h == 24 && m == 0 {
		return slot.MinutesPerDay, nil
	}
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("%02d:%02d is out of range", h, m)
	}
	return slot.At(h, m), nil
}
