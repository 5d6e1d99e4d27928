package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rag2504/box-host/config"
	"github.com/rag2504/box-host/internal/model"
	"github.com/rag2504/box-host/internal/pricing"
	"github.com/rag2504/box-host/internal/slot"
	"github.com/rag2504/box-host/internal/store"
)

func newSQLiteDB(t *testing.T) *gorm.DB {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.Ground{}, &model.RateRange{}))
	return db
}

var greenPark = Entry{
	Slug:     "green-park",
	Name:     "Green Park Turf",
	Capacity: 22,
	Currency: "INR",
	Pricing:  pricing.Table{FlatRate: 800},
}

func TestGetGround_Managed(t *testing.T) {
	db := newSQLiteDB(t)
	g := model.Ground{
		Name:     "City Stadium",
		Capacity: 30,
		FlatRate: 700,
		Discount: 100,
		RateRanges: []model.RateRange{
			{Position: 1, StartMinute: 18 * 60, EndMinute: 6 * 60, PerHour: 1200},
			{Position: 0, StartMinute: 6 * 60, EndMinute: 18 * 60, PerHour: 1000},
		},
	}
	require.NoError(t, db.Create(&g).Error)

	c := New(db, []Entry{greenPark})
	got, err := c.GetGround(context.Background(), fmt.Sprint(g.ID))
	require.NoError(t, err)

	assert.Equal(t, Managed{ID: g.ID}, got.Ref)
	assert.Equal(t, fmt.Sprint(g.ID), got.Ref.Key())
	assert.Equal(t, "City Stadium", got.Name)
	assert.Equal(t, 30, got.Capacity)
	assert.Equal(t, "INR", got.Currency)
	assert.Equal(t, pricing.Table{
		Ranges: []pricing.RateRange{
			{Start: slot.At(6, 0), End: slot.At(18, 0), PerHour: 1000},
			{Start: slot.At(18, 0), End: slot.At(6, 0), PerHour: 1200},
		},
		FlatRate: 700,
		Discount: 100,
	}, got.Pricing)
}

func TestGetGround_ManagedNotFound(t *testing.T) {
	c := New(newSQLiteDB(t), []Entry{greenPark})

	_, err := c.GetGround(context.Background(), "999")
	assert.ErrorIs(t, err, ErrGroundNotFound)
}

func TestGetGround_DatabaseFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT \* FROM "grounds"`).WillReturnError(errors.New("connection reset by peer"))

	_, err = New(db, nil).GetGround(context.Background(), "42")
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.NotErrorIs(t, err, ErrGroundNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetGround_External(t *testing.T) {
	c := New(nil, []Entry{greenPark})

	got, err := c.GetGround(context.Background(), " green-park ")
	require.NoError(t, err)
	assert.Equal(t, External{Entry: greenPark}, got.Ref)
	assert.Equal(t, "green-park", got.Ref.Key())
	assert.Equal(t, 22, got.Capacity)
	assert.Equal(t, pricing.Money(800), got.Pricing.FlatRate)

	_, err = c.GetGround(context.Background(), "unknown-ground")
	assert.ErrorIs(t, err, ErrGroundNotFound)

	// Without a database, numeric ids cannot resolve.
	_, err = c.GetGround(context.Background(), "42")
	assert.ErrorIs(t, err, ErrGroundNotFound)
}

func TestEntriesFromConfig(t *testing.T) {
	entries, err := EntriesFromConfig([]config.ExternalGround{{
		ID:       "green-park",
		Name:     "Green Park Turf",
		Capacity: 22,
		FlatRate: 800,
		Rates: []config.RateEntry{
			{Start: "06:00", End: "18:00", PerHour: 1000},
			{Start: "18:00", End: "24:00", PerHour: 1200},
		},
	}}, "INR")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "INR", e.Currency)
	assert.Equal(t, []pricing.RateRange{
		{Start: slot.At(6, 0), End: slot.At(18, 0), PerHour: 1000},
		{Start: slot.At(18, 0), End: slot.MinutesPerDay, PerHour: 1200},
	}, e.Pricing.Ranges)
}

func TestEntriesFromConfig_Invalid(t *testing.T) {
	testCases := []struct {
		name   string
		ground config.ExternalGround
	}{
		{name: "Missing id", ground: config.ExternalGround{Name: "x"}},
		{name: "Numeric id", ground: config.ExternalGround{ID: "17"}},
		{name: "Negative capacity", ground: config.ExternalGround{ID: "a", Capacity: -1}},
		{name: "Bad rate time", ground: config.ExternalGround{ID: "a", Rates: []config.RateEntry{{Start: "6am", End: "18:00", PerHour: 1}}}},
		{name: "Zero rate", ground: config.ExternalGround{ID: "a", Rates: []config.RateEntry{{Start: "06:00", End: "18:00"}}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := EntriesFromConfig([]config.ExternalGround{tc.ground}, "INR")
			assert.Error(t, err)
		})
	}

	_, err := EntriesFromConfig([]config.ExternalGround{{ID: "a"}, {ID: "a"}}, "INR")
	assert.ErrorContains(t, err, "duplicate")
}
