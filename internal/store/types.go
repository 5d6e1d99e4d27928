package store

import (
	"context"
	"errors"

	"github.com/rag2504/box-host/internal/model"
)

var (
	// ErrUnavailable means no transactional session could be obtained or the
	// storage call timed out.
	ErrUnavailable = errors.New("store: storage unavailable")
	// ErrConflict means a write lost a race: a unique or exclusion constraint
	// fired, or the database aborted the transaction as non-serializable.
	ErrConflict = errors.New("store: conflicting write")
	// ErrNotFound is returned when a reservation does not exist.
	ErrNotFound = errors.New("store: not found")
)

// Store is a reservation backend.
type Store interface {
	// Begin opens a transactional session. The session must be finished with
	// Commit or Abort.
	Begin(ctx context.Context) (Session, error)
	// Snapshot returns the active reservations of one ground and date in a
	// single consistent read.
	Snapshot(ctx context.Context, groundKey, date string) ([]model.Reservation, error)
	// ListReservations returns one page of the reservations made by userID,
	// newest first, and the number of matching reservations before paging.
	// An empty status matches every status; a non-positive limit returns
	// every row from offset on.
	ListReservations(ctx context.Context, userID string, status model.Status, offset, limit int) ([]model.Reservation, int64, error)
}

// Session is one storage transaction.
type Session interface {
	// ReadReservations returns the reservations of groundKey on date whose
	// status is one of statuses, ordered by start. It also serializes the
	// session against other sessions working on the same ground and date.
	ReadReservations(ctx context.Context, groundKey, date string, statuses []model.Status) ([]model.Reservation, error)
	// InsertReservation stages a new reservation. It returns ErrConflict on a
	// constraint violation.
	InsertReservation(ctx context.Context, r *model.Reservation) error
	// GetReservation loads one reservation and locks its ground and date
	// for the rest of the session.
	GetReservation(ctx context.Context, id string) (model.Reservation, error)
	// UpdateReservation writes back a reservation loaded in this session.
	UpdateReservation(ctx context.Context, r *model.Reservation) error
	Commit() error
	Abort() error
}

func lockKey(groundKey, date string) string {
	return groundKey + "|" + date
}
