package events

import (
	"context"
	"time"

	"github.com/rag2504/box-host/internal/model"
	"github.com/rag2504/box-host/internal/slot"
)

// Type is the routing key of a reservation event.
type Type string

const (
	ReservationCreated   Type = "reservation.created"
	ReservationConfirmed Type = "reservation.confirmed"
	ReservationCancelled Type = "reservation.cancelled"
	ReservationCompleted Type = "reservation.completed"
	ReservationNoShow    Type = "reservation.no_show"
)

// ForStatus returns the event type announcing a move into status.
func ForStatus(s model.Status) Type {
	switch s {
	case model.StatusConfirmed:
		return ReservationConfirmed
	case model.StatusCancelled:
		return ReservationCancelled
	case model.StatusCompleted:
		return ReservationCompleted
	case model.StatusNoShow:
		return ReservationNoShow
	}
	return ReservationCreated
}

// Event is the JSON body published for a reservation change.
type Event struct {
	Type          Type         `json:"type"`
	ReservationID string       `json:"reservationId"`
	Code          string       `json:"code"`
	Ground        string       `json:"ground"`
	Date          string       `json:"date"`
	TimeSlot      string       `json:"timeSlot"`
	Status        model.Status `json:"status"`
	Total         int64        `json:"total"`
	Refund        int64        `json:"refund,omitempty"`
	Currency      string       `json:"currency"`
	OccurredAt    time.Time    `json:"occurredAt"`
}

// FromReservation builds the event for r.
func FromReservation(t Type, r model.Reservation, at time.Time) Event {
	iv := slot.Interval{Start: slot.TimeOfDay(r.StartMinute), End: slot.TimeOfDay(r.EndMinute)}
	return Event{
		Type:          t,
		ReservationID: r.ID,
		Code:          r.Code,
		Ground:        r.GroundKey,
		Date:          r.Date,
		TimeSlot:      iv.String(),
		Status:        r.Status,
		Total:         r.Total,
		Refund:        r.RefundAmount,
		Currency:      r.Currency,
		OccurredAt:    at.UTC(),
	}
}

// Publisher delivers reservation events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
