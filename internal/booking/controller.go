package booking

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rag2504/box-host/internal/catalog"
	"github.com/rag2504/box-host/internal/events"
	"github.com/rag2504/box-host/internal/model"
	"github.com/rag2504/box-host/internal/parse"
	"github.com/rag2504/box-host/internal/pricing"
	"github.com/rag2504/box-host/internal/slot"
	"github.com/rag2504/box-host/internal/store"
)

// maxAttempts bounds how often one admission runs after losing a race.
const maxAttempts = 2

const (
	defaultStorageTimeout = 5 * time.Second
	defaultPublishTimeout = 2 * time.Second
)

// Options wires a Controller. Catalog is required; everything else has a
// usable default.
type Options struct {
	Catalog catalog.Catalog
	// Durable backs Managed grounds.
	Durable store.Store
	// External backs grounds of the external catalog. Nil makes them
	// unbookable.
	External store.Store

	Resolver  pricing.Resolver
	Publisher events.Publisher

	Now            func() time.Time
	Location       *time.Location
	StorageTimeout time.Duration
	PublishTimeout time.Duration
	CellWidth      time.Duration
	// Currency is used for grounds that do not name their own.
	Currency string
}

// Controller admits reservations so that, per ground and date, no two active
// reservations overlap.
type Controller struct {
	catalog        catalog.Catalog
	durable        store.Store
	external       store.Store
	resolver       pricing.Resolver
	publisher      events.Publisher
	now            func() time.Time
	loc            *time.Location
	storageTimeout time.Duration
	publishTimeout time.Duration
	cell           time.Duration
	currency       string
}

// NewController creates a Controller from opts.
func NewController(opts Options) *Controller {
	c := &Controller{
		catalog:        opts.Catalog,
		durable:        opts.Durable,
		external:       opts.External,
		resolver:       opts.Resolver,
		publisher:      opts.Publisher,
		now:            opts.Now,
		loc:            opts.Location,
		storageTimeout: opts.StorageTimeout,
		publishTimeout: opts.PublishTimeout,
		cell:           opts.CellWidth,
		currency:       opts.Currency,
	}
	if c.resolver == (pricing.Resolver{}) {
		c.resolver = pricing.NewResolver(0, 0)
	}
	if c.publisher == nil {
		c.publisher = events.Nop{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	if c.storageTimeout <= 0 {
		c.storageTimeout = defaultStorageTimeout
	}
	if c.publishTimeout <= 0 {
		c.publishTimeout = defaultPublishTimeout
	}
	if c.cell <= 0 {
		c.cell = slot.DefaultCell
	}
	if c.currency == "" {
		c.currency = "INR"
	}
	return c
}

// Party describes who is playing. PlayerCount is checked against the
// ground's capacity.
type Party struct {
	TeamName     string `json:"teamName"`
	PlayerCount  int    `json:"playerCount"`
	ContactName  string `json:"contactName"`
	ContactPhone string `json:"contactPhone"`
	ContactEmail string `json:"contactEmail"`
}

// Request is one booking attempt.
type Request struct {
	GroundID     string
	Date         string // YYYY-MM-DD
	TimeSlot     string // HH:MM-HH:MM
	Party        Party
	UserID       string
	Requirements string
}

// admission is a validated Request.
type admission struct {
	req    Request
	ground catalog.Ground
	store  store.Store
	date   string
	iv     slot.Interval
}

// TryReserve admits req as a pending reservation or rejects it with an
// *Error. Overlap and Concurrent rejections are expected outcomes under
// contention.
func (c *Controller) TryReserve(ctx context.Context, req Request) (model.Reservation, error) {
	a, err := c.validate(ctx, req)
	if err != nil {
		log.Printf("booking rejected: ground=%q date=%q slot=%q kind=%s: %v", req.GroundID, req.Date, req.TimeSlot, KindOf(err), err)
		return model.Reservation{}, err
	}

	for attempt := 1; ; attempt++ {
		r, err := c.attempt(ctx, a)
		if err == nil {
			log.Printf("booking admitted: id=%s code=%s ground=%s date=%s slot=%s total=%d", r.ID, r.Code, r.GroundKey, r.Date, a.iv, r.Total)
			c.publish(ctx, events.ReservationCreated, r)
			return r, nil
		}

		if errors.Is(err, store.ErrConflict) {
			if attempt < maxAttempts {
				log.Printf("booking lost a race, retrying: ground=%s date=%s slot=%s: %v", a.ground.Ref.Key(), a.date, a.iv, err)
				continue
			}
			err = reject(ErrConcurrent, PhaseCommitted, err)
		}
		log.Printf("booking rejected: ground=%s date=%s slot=%s kind=%s: %v", a.ground.Ref.Key(), a.date, a.iv, KindOf(err), err)
		return model.Reservation{}, err
	}
}

func (c *Controller) validate(ctx context.Context, req Request) (admission, error) {
	iv, err := parse.ParseInterval(req.TimeSlot)
	if err != nil {
		return admission{}, reject(ErrInvalidInterval, PhaseValidating, err)
	}
	day, err := parse.ParseDate(strings.TrimSpace(req.Date), c.loc)
	if err != nil {
		return admission{}, reject(ErrInvalidDate, PhaseValidating, err)
	}
	if err := validateParty(req.Party); err != nil {
		return admission{}, reject(ErrInvalidParty, PhaseValidating, err)
	}

	now := c.now().In(c.loc)
	today := wallClock(now, 0)
	switch {
	case day.Before(today):
		return admission{}, reject(ErrPastDate, PhaseValidating, nil)
	case day.Equal(today) && wallClock(day, iv.Start).Before(now):
		return admission{}, reject(ErrPastTimeToday, PhaseValidating, nil)
	}

	ground, st, err := c.resolve(ctx, req.GroundID, PhaseValidating)
	if err != nil {
		return admission{}, err
	}
	if ground.Capacity > 0 && req.Party.PlayerCount > ground.Capacity {
		return admission{}, reject(ErrCapacityExceeded, PhaseValidating,
			fmt.Errorf("%d players, capacity %d", req.Party.PlayerCount, ground.Capacity))
	}

	return admission{req: req, ground: ground, store: st, date: day.Format(parse.DateLayout), iv: iv}, nil
}

func validateParty(p Party) error {
	switch {
	case p.PlayerCount < 1:
		return errors.New("at least one player is required")
	case strings.TrimSpace(p.ContactName) == "":
		return errors.New("contact name is required")
	case strings.TrimSpace(p.ContactPhone) == "":
		return errors.New("contact phone is required")
	}
	return nil
}

// resolve looks the ground up and picks the store its reservations live in.
func (c *Controller) resolve(ctx context.Context, groundID string, phase Phase) (catalog.Ground, store.Store, error) {
	ctx, cancel := c.storageContext(ctx)
	defer cancel()

	ground, err := c.catalog.GetGround(ctx, groundID)
	switch {
	case errors.Is(err, catalog.ErrGroundNotFound):
		return catalog.Ground{}, nil, reject(ErrGroundNotFound, phase, err)
	case err != nil:
		return catalog.Ground{}, nil, reject(ErrStorageUnavailable, phase, err)
	}

	var st store.Store
	switch ground.Ref.(type) {
	case catalog.Managed:
		st = c.durable
	case catalog.External:
		st = c.external
	}
	if st == nil {
		return catalog.Ground{}, nil, reject(ErrNotBookable, phase, fmt.Errorf("no reservation storage for %s", ground.Ref.Key()))
	}
	return ground, st, nil
}

// storageContext bounds a storage call and detaches it from the caller's
// cancellation, so an abandoned request still commits or aborts cleanly.
func (c *Controller) storageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.storageTimeout)
}

// attempt runs one read-check-write transaction. A store.ErrConflict result
// means the attempt lost a race and may be retried.
func (c *Controller) attempt(ctx context.Context, a admission) (model.Reservation, error) {
	ctx, cancel := c.storageContext(ctx)
	defer cancel()

	key := a.ground.Ref.Key()
	sess, err := a.store.Begin(ctx)
	if err != nil {
		return model.Reservation{}, storageError(PhaseSnapshotRead, err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := sess.Abort(); err != nil {
			log.Printf("booking: abort transaction for %s %s: %v", key, a.date, err)
		}
	}()

	existing, err := sess.ReadReservations(ctx, key, a.date, model.ActiveStatuses)
	if err != nil {
		return model.Reservation{}, storageError(PhaseSnapshotRead, err)
	}

	intervals := make([]slot.Interval, len(existing))
	for i, r := range existing {
		intervals[i] = slot.Interval{Start: slot.TimeOfDay(r.StartMinute), End: slot.TimeOfDay(r.EndMinute)}
	}
	conflict, found := slot.FindConflict(a.iv, intervals, malformedLogger(existing, key, a.date))
	if found {
		return model.Reservation{}, &Error{Kind: ErrOverlap, Phase: PhaseConflictCheck, Conflict: &conflict}
	}

	price := c.resolver.Price(a.ground.Pricing, a.iv)
	r := c.newReservation(a, price)

	if err := sess.InsertReservation(ctx, &r); err != nil {
		return model.Reservation{}, storageError(PhasePriced, err)
	}
	if err := sess.Commit(); err != nil {
		return model.Reservation{}, storageError(PhaseCommitted, err)
	}
	committed = true
	return r, nil
}

// malformedLogger reports stored reservations whose interval is invalid.
func malformedLogger(rows []model.Reservation, key, date string) slot.MalformedFunc {
	return func(i int, bad slot.Interval) {
		log.Printf("booking: ignoring malformed reservation %s on %s %s: %d-%d", rows[i].ID, key, date, bad.Start, bad.End)
	}
}

// storageError keeps store.ErrConflict visible for the retry loop and turns
// every other storage failure into StorageUnavailable.
func storageError(phase Phase, err error) error {
	if errors.Is(err, store.ErrConflict) {
		return err
	}
	return reject(ErrStorageUnavailable, phase, err)
}

func (c *Controller) newReservation(a admission, price pricing.Breakdown) model.Reservation {
	now := c.now()
	id := uuid.New()
	currency := a.ground.Currency
	if currency == "" {
		currency = c.currency
	}
	return model.Reservation{
		ID:           id.String(),
		Code:         bookingCode(now, id),
		GroundKey:    a.ground.Ref.Key(),
		Date:         a.date,
		StartMinute:  int(a.iv.Start),
		EndMinute:    int(a.iv.End),
		Status:       model.StatusPending,
		UserID:       strings.TrimSpace(a.req.UserID),
		TeamName:     strings.TrimSpace(a.req.Party.TeamName),
		PlayerCount:  a.req.Party.PlayerCount,
		ContactName:  strings.TrimSpace(a.req.Party.ContactName),
		ContactPhone: strings.TrimSpace(a.req.Party.ContactPhone),
		ContactEmail: strings.TrimSpace(a.req.Party.ContactEmail),
		Requirements: strings.TrimSpace(a.req.Requirements),
		Rate:         int64(price.Rate),
		Base:         int64(price.Base),
		Discount:     int64(price.Discount),
		Fee:          int64(price.Fee),
		Total:        int64(price.Total),
		Currency:     currency,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// bookingCode is the human-facing reference, "BC" followed by the creation
// time and a random suffix in base 36.
func bookingCode(now time.Time, id uuid.UUID) string {
	ts := strconv.FormatInt(now.UnixMilli(), 36)
	suffix := strconv.FormatUint(uint64(binary.BigEndian.Uint32(id[:4])), 36)
	return strings.ToUpper("BC" + ts + suffix)
}

// Availability is the hour-cell view of one ground and date.
type Availability struct {
	GroundID    string   `json:"groundId"`
	Date        string   `json:"date"`
	BookedCells []string `json:"bookedCells"`
	FreeCells   []string `json:"freeCells"`
}

// QueryAvailability projects the active reservations of a ground and date
// onto display cells. A cell is booked if any reservation touches it.
func (c *Controller) QueryAvailability(ctx context.Context, groundID, date string) (Availability, error) {
	day, err := parse.ParseDate(strings.TrimSpace(date), c.loc)
	if err != nil {
		return Availability{}, reject(ErrInvalidDate, PhaseValidating, err)
	}
	ground, st, err := c.resolve(ctx, groundID, PhaseValidating)
	if err != nil {
		return Availability{}, err
	}

	sctx, cancel := c.storageContext(ctx)
	defer cancel()

	key := ground.Ref.Key()
	dateKey := day.Format(parse.DateLayout)
	rows, err := st.Snapshot(sctx, key, dateKey)
	if err != nil {
		return Availability{}, reject(ErrStorageUnavailable, PhaseSnapshotRead, err)
	}

	booked := make([]slot.Interval, 0, len(rows))
	for _, r := range rows {
		booked = append(booked, slot.Interval{Start: slot.TimeOfDay(r.StartMinute), End: slot.TimeOfDay(r.EndMinute)})
	}
	bookedCells, freeCells := slot.Partition(c.cell, booked, malformedLogger(rows, key, dateKey))

	return Availability{
		GroundID:    key,
		Date:        dateKey,
		BookedCells: cellLabels(bookedCells),
		FreeCells:   cellLabels(freeCells),
	}, nil
}

func cellLabels(cells []slot.Interval) []string {
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		out = append(out, c.Start.String())
	}
	return out
}

func (c *Controller) publish(ctx context.Context, t events.Type, r model.Reservation) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.publishTimeout)
	defer cancel()
	if err := c.publisher.Publish(pctx, events.FromReservation(t, r, c.now())); err != nil {
		log.Printf("booking: publish %s for %s: %v", t, r.ID, err)
	}
}
