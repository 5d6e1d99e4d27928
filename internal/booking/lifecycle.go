package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/rag2504/box-host/internal/events"
	"github.com/rag2504/box-host/internal/model"
	"github.com/rag2504/box-host/internal/pricing"
	"github.com/rag2504/box-host/internal/store"
)

// Actor is who asked for a cancellation.
type Actor string

const (
	ActorUser   Actor = "user"
	ActorAdmin  Actor = "admin"
	ActorSystem Actor = "system"
)

// Valid reports whether a is a known actor.
func (a Actor) Valid() bool {
	return a == ActorUser || a == ActorAdmin || a == ActorSystem
}

// errNotHere means a store does not hold the reservation.
var errNotHere = errors.New("reservation not in this store")

// Get loads a reservation by id.
func (c *Controller) Get(ctx context.Context, id string) (model.Reservation, error) {
	return c.withReservation(ctx, id, nil)
}

// Confirm moves a pending reservation to confirmed. It is the hook for
// payment confirmation and the administrative override.
func (c *Controller) Confirm(ctx context.Context, id string) (model.Reservation, error) {
	return c.withReservation(ctx, id, func(r *model.Reservation, now time.Time) error {
		if r.Status != model.StatusPending {
			return transitionError(r.Status, model.StatusConfirmed)
		}
		r.Status = model.StatusConfirmed
		r.ConfirmedAt = &now
		return nil
	})
}

// Cancel releases the slot of an active reservation and records the refund
// owed at the time of cancellation. Users can only cancel before the slot
// starts; admins and the system can cancel at any time.
func (c *Controller) Cancel(ctx context.Context, id string, by Actor, reason string) (model.Reservation, error) {
	if !by.Valid() {
		return model.Reservation{}, reject(ErrInvalidTransition, "", fmt.Errorf("unknown actor %q", by))
	}
	return c.withReservation(ctx, id, func(r *model.Reservation, now time.Time) error {
		if !r.Status.Active() {
			return transitionError(r.Status, model.StatusCancelled)
		}
		snap := SnapshotOf(*r)
		if by == ActorUser && !CanBeCancelled(snap, now, c.loc) {
			return reject(ErrInvalidTransition, "", errors.New("the slot has already started"))
		}

		r.RefundAmount = int64(RefundFor(snap, now, c.loc))
		r.Status = model.StatusCancelled
		r.CancelledAt = &now
		r.CancelledBy = string(by)
		r.CancelReason = reason
		return nil
	})
}

// Complete marks a confirmed reservation whose slot has started as played.
func (c *Controller) Complete(ctx context.Context, id string) (model.Reservation, error) {
	return c.finish(ctx, id, model.StatusCompleted)
}

// MarkNoShow marks a confirmed reservation whose slot has started as missed.
func (c *Controller) MarkNoShow(ctx context.Context, id string) (model.Reservation, error) {
	return c.finish(ctx, id, model.StatusNoShow)
}

func (c *Controller) finish(ctx context.Context, id string, to model.Status) (model.Reservation, error) {
	return c.withReservation(ctx, id, func(r *model.Reservation, now time.Time) error {
		if r.Status != model.StatusConfirmed {
			return transitionError(r.Status, to)
		}
		start, err := StartsAt(SnapshotOf(*r), c.loc)
		if err != nil {
			return reject(ErrInvalidTransition, "", err)
		}
		if now.Before(start) {
			return reject(ErrInvalidTransition, "", fmt.Errorf("the slot starts at %s", start.Format(time.RFC3339)))
		}
		r.Status = to
		return nil
	})
}

// Quote is the refund a cancellation at At would produce.
type Quote struct {
	ReservationID string        `json:"reservationId"`
	Status        model.Status  `json:"status"`
	StartsAt      time.Time     `json:"startsAt"`
	At            time.Time     `json:"at"`
	Cancellable   bool          `json:"cancellable"`
	Refund        pricing.Money `json:"refund"`
	Total         pricing.Money `json:"total"`
}

// RefundQuote reports what cancelling the reservation now would refund.
func (c *Controller) RefundQuote(ctx context.Context, id string) (Quote, error) {
	r, err := c.Get(ctx, id)
	if err != nil {
		return Quote{}, err
	}
	now := c.now()
	snap := SnapshotOf(r)
	start, err := StartsAt(snap, c.loc)
	if err != nil {
		return Quote{}, reject(ErrInvalidDate, "", err)
	}
	return Quote{
		ReservationID: r.ID,
		Status:        r.Status,
		StartsAt:      start,
		At:            now,
		Cancellable:   CanBeCancelled(snap, now, c.loc),
		Refund:        RefundFor(snap, now, c.loc),
		Total:         snap.Total,
	}, nil
}

func transitionError(from, to model.Status) error {
	return reject(ErrInvalidTransition, "", fmt.Errorf("%s -> %s", from, to))
}

// withReservation loads id inside a session, applies change and commits.
// A nil change only reads. Reservations are looked up in the durable store
// first and then in the external one.
func (c *Controller) withReservation(ctx context.Context, id string, change func(r *model.Reservation, now time.Time) error) (model.Reservation, error) {
	for _, st := range []store.Store{c.durable, c.external} {
		if st == nil {
			continue
		}
		r, err := c.inSession(ctx, st, id, change)
		if errors.Is(err, errNotHere) {
			continue
		}
		if err != nil {
			return model.Reservation{}, err
		}
		if change != nil {
			log.Printf("reservation %s is now %s", r.ID, r.Status)
			c.publish(ctx, events.ForStatus(r.Status), r)
		}
		return r, nil
	}
	return model.Reservation{}, reject(ErrReservationNotFound, "", fmt.Errorf("id %q", id))
}

func (c *Controller) inSession(ctx context.Context, st store.Store, id string, change func(r *model.Reservation, now time.Time) error) (model.Reservation, error) {
	ctx, cancel := c.storageContext(ctx)
	defer cancel()

	sess, err := st.Begin(ctx)
	if err != nil {
		return model.Reservation{}, reject(ErrStorageUnavailable, "", err)
	}
	defer func() {
		if err := sess.Abort(); err != nil {
			log.Printf("booking: abort transaction for reservation %s: %v", id, err)
		}
	}()

	r, err := sess.GetReservation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.Reservation{}, errNotHere
	}
	if err != nil {
		return model.Reservation{}, lifecycleStorageError(err)
	}
	if change == nil {
		return r, nil
	}

	now := c.now()
	if err := change(&r, now); err != nil {
		return model.Reservation{}, err
	}
	r.UpdatedAt = now

	if err := sess.UpdateReservation(ctx, &r); err != nil {
		return model.Reservation{}, lifecycleStorageError(err)
	}
	if err := sess.Commit(); err != nil {
		return model.Reservation{}, lifecycleStorageError(err)
	}
	return r, nil
}

func lifecycleStorageError(err error) error {
	if errors.Is(err, store.ErrConflict) {
		return reject(ErrConcurrent, "", err)
	}
	return reject(ErrStorageUnavailable, "", err)
}
