package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/rag2504/box-host/internal/model"
	"github.com/rag2504/box-host/internal/pricing"
	"github.com/rag2504/box-host/internal/slot"
	"github.com/rag2504/box-host/internal/store"
)

// ErrGroundNotFound is returned when an id names no ground in either source.
var ErrGroundNotFound = errors.New("catalog: ground not found")

// Ref says where a ground is defined. It is either Managed or External.
type Ref interface {
	// Key is the storage key reservations of the ground are filed under.
	Key() string
	isRef()
}

// Managed is a ground stored in the grounds table.
type Managed struct {
	ID int64
}

func (m Managed) Key() string { return strconv.FormatInt(m.ID, 10) }
func (Managed) isRef()        {}

// External is a ground from the configured external catalog. Its
// reservations live in the in-memory store.
type External struct {
	Entry Entry
}

func (e External) Key() string { return e.Entry.Slug }
func (External) isRef()        {}

// Entry is one ground of the external catalog.
type Entry struct {
	Slug     string
	Name     string
	Capacity int
	Currency string
	Pricing  pricing.Table
}

// Ground is the read-only view of a ground used for admission and pricing.
type Ground struct {
	Ref      Ref
	Name     string
	Capacity int // 0 means no limit
	Currency string
	Pricing  pricing.Table
}

// Catalog resolves ground ids.
type Catalog interface {
	GetGround(ctx context.Context, id string) (Ground, error)
}

type catalog struct {
	db       *gorm.DB
	external map[string]Entry
}

// New creates a catalog over the grounds table and the external entries.
// db may be nil, in which case only external grounds resolve.
func New(db *gorm.DB, external []Entry) Catalog {
	c := &catalog{db: db, external: make(map[string]Entry, len(external))}
	for _, e := range external {
		c.external[e.Slug] = e
	}
	return c
}

// GetGround resolves numeric ids against the database and everything else
// against the external catalog.
func (c *catalog) GetGround(ctx context.Context, id string) (Ground, error) {
	id = strings.TrimSpace(id)
	if n, err := strconv.ParseInt(id, 10, 64); err == nil && c.db != nil {
		return c.managed(ctx, n)
	}

	e, ok := c.external[id]
	if !ok {
		return Ground{}, fmt.Errorf("%w: %q", ErrGroundNotFound, id)
	}
	return Ground{
		Ref:      External{Entry: e},
		Name:     e.Name,
		Capacity: e.Capacity,
		Currency: e.Currency,
		Pricing:  e.Pricing,
	}, nil
}

func (c *catalog) managed(ctx context.Context, id int64) (Ground, error) {
	var g model.Ground
	err := c.db.WithContext(ctx).
		Preload("RateRanges", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		First(&g, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Ground{}, fmt.Errorf("%w: %d", ErrGroundNotFound, id)
	}
	if err != nil {
		return Ground{}, fmt.Errorf("%w: load ground %d: %v", store.ErrUnavailable, id, err)
	}
	return fromModel(g), nil
}

func fromModel(g model.Ground) Ground {
	ranges := make([]pricing.RateRange, 0, len(g.RateRanges))
	for _, r := range g.RateRanges {
		ranges = append(ranges, pricing.RateRange{
			Start:   slot.TimeOfDay(r.StartMinute),
			End:     slot.TimeOfDay(r.EndMinute),
			PerHour: pricing.Money(r.PerHour),
		})
	}
	return Ground{
		Ref:      Managed{ID: g.ID},
		Name:     g.Name,
		Capacity: g.Capacity,
		Currency: g.Currency,
		Pricing: pricing.Table{
			Ranges:   ranges,
			FlatRate: pricing.Money(g.FlatRate),
			Discount: pricing.Money(g.Discount),
		},
	}
}
