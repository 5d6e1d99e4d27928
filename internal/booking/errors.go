package booking

import (
	"errors"
	"fmt"

	"github.com/rag2504/box-host/internal/slot"
)

var (
	// Caller input errors. They are reported before storage is touched.
	ErrInvalidInterval  = errors.New("booking: invalid time interval")
	ErrInvalidDate      = errors.New("booking: invalid date")
	ErrPastDate         = errors.New("booking: date is in the past")
	ErrPastTimeToday    = errors.New("booking: time slot has already started today")
	ErrCapacityExceeded = errors.New("booking: party exceeds ground capacity")
	ErrInvalidParty     = errors.New("booking: invalid party details")
	ErrInvalidQuery     = errors.New("booking: invalid listing query")

	ErrGroundNotFound = errors.New("booking: ground not found")
	// ErrNotBookable means the ground resolved but has no reservation storage.
	ErrNotBookable = errors.New("booking: ground cannot be booked")

	// ErrOverlap and ErrConcurrent are normal negative admission results.
	ErrOverlap    = errors.New("booking: time slot overlaps an existing booking")
	ErrConcurrent = errors.New("booking: time slot was taken by a concurrent booking")

	// ErrStorageUnavailable is retryable by the caller.
	ErrStorageUnavailable = errors.New("booking: storage unavailable")

	ErrReservationNotFound = errors.New("booking: reservation not found")
	ErrInvalidTransition   = errors.New("booking: status transition not allowed")
)

// Phase is the admission step an attempt had reached.
type Phase string

const (
	PhaseValidating    Phase = "validating"
	PhaseSnapshotRead  Phase = "snapshot_read"
	PhaseConflictCheck Phase = "conflict_check"
	PhasePriced        Phase = "priced"
	PhaseCommitted     Phase = "committed"
)

// Error is a rejected booking operation. Kind is one of the Err* sentinels
// above, so callers match it with errors.Is.
type Error struct {
	Kind  error
	Phase Phase
	// Conflict is the existing interval an Overlap rejection collided with.
	Conflict *slot.Interval
	Err      error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Conflict != nil {
		msg = fmt.Sprintf("%s (%s)", msg, e.Conflict)
	}
	if e.Phase != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Phase)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func reject(kind error, phase Phase, cause error) *Error {
	return &Error{Kind: kind, Phase: phase, Err: cause}
}

// KindOf maps an error to a stable label for logs and API responses.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrInvalidInterval):
		return "invalid_interval"
	case errors.Is(err, ErrInvalidDate):
		return "invalid_date"
	case errors.Is(err, ErrPastDate):
		return "past_date"
	case errors.Is(err, ErrPastTimeToday):
		return "past_time_today"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrInvalidParty):
		return "invalid_party"
	case errors.Is(err, ErrInvalidQuery):
		return "invalid_query"
	case errors.Is(err, ErrGroundNotFound):
		return "ground_not_found"
	case errors.Is(err, ErrNotBookable):
		return "not_bookable"
	case errors.Is(err, ErrOverlap):
		return "overlap"
	case errors.Is(err, ErrConcurrent):
		return "concurrent"
	case errors.Is(err, ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, ErrReservationNotFound):
		return "reservation_not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	}
	return "unexpected"
}

// IsInputError reports whether err was caused by the request itself.
func IsInputError(err error) bool {
	for _, k := range []error{ErrInvalidInterval, ErrInvalidDate, ErrPastDate, ErrPastTimeToday, ErrCapacityExceeded, ErrInvalidParty, ErrInvalidQuery} {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}
