package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rag2504/box-host/internal/model"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// newSQLiteDB opens a private in-memory SQLite database with the schema applied.
func newSQLiteDB(t *testing.T) *gorm.DB {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.Reservation{}))
	return db
}

func TestGormStore_ReadReservations(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB, sql.LevelSerializable)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
		WithArgs("42|2026-10-20").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "reservations" WHERE .*ground_key = \$1 AND date = \$2 AND status IN \(\$3,\$4\).* ORDER BY start_minute ASC`).
		WithArgs("42", "2026-10-20", "pending", "confirmed").
		WillReturnRows(sqlmock.NewRows([]string{"id", "ground_key", "date", "start_minute", "end_minute", "status"}).
			AddRow("r1", "42", "2026-10-20", 600, 720, "confirmed"))
	mock.ExpectRollback()

	sess, err := s.Begin(ctx)
	require.NoError(t, err)

	rows, err := sess.ReadReservations(ctx, "42", "2026-10-20", model.ActiveStatuses)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 600, rows[0].StartMinute)
	assert.Equal(t, model.StatusConfirmed, rows[0].Status)

	require.NoError(t, sess.Abort())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_BeginFailure(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB, sql.LevelSerializable)

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	_, err := s.Begin(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_InsertTranslatesErrors(t *testing.T) {
	testCases := []struct {
		name     string
		dbErr    error
		expected error
	}{
		{name: "Unique violation", dbErr: &pgconn.PgError{Code: "23505"}, expected: ErrConflict},
		{name: "Exclusion violation", dbErr: &pgconn.PgError{Code: "23P01"}, expected: ErrConflict},
		{name: "Serialization failure", dbErr: &pgconn.PgError{Code: "40001"}, expected: ErrConflict},
		{name: "Other database error", dbErr: &pgconn.PgError{Code: "53300"}, expected: ErrUnavailable},
		{name: "Broken connection", dbErr: errors.New("write tcp: broken pipe"), expected: ErrUnavailable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			s := NewGormStore(gormDB, sql.LevelSerializable)
			ctx := context.Background()

			mock.ExpectBegin()
			mock.ExpectExec(`INSERT INTO "reservations"`).WillReturnError(tc.dbErr)
			mock.ExpectRollback()

			sess, err := s.Begin(ctx)
			require.NoError(t, err)

			err = sess.InsertReservation(ctx, newReservation("r1", 600, 720, model.StatusPending))
			assert.ErrorIs(t, err, tc.expected)

			require.NoError(t, sess.Abort())
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_GetReservationNotFound(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB, sql.LevelSerializable)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "reservations" WHERE id = \$1 .*FOR UPDATE`).
		WithArgs("missing", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	sess, err := s.Begin(ctx)
	require.NoError(t, err)

	_, err = sess.GetReservation(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, sess.Abort())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_Snapshot(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB, sql.LevelSerializable)

	mock.ExpectQuery(`SELECT \* FROM "reservations" WHERE .*ground_key = \$1 AND date = \$2 AND status IN \(\$3,\$4\)`).
		WithArgs("42", "2026-10-20", "pending", "confirmed").
		WillReturnError(errors.New("i/o timeout"))

	_, err := s.Snapshot(context.Background(), "42", "2026-10-20")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_SQLiteActiveSlotIndex(t *testing.T) {
	db := newSQLiteDB(t)
	s := NewGormStore(db, sql.LevelDefault)
	ctx := context.Background()

	first := newReservation("a", 600, 720, model.StatusPending)
	first.CreatedAt = time.Now()

	sess, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.InsertReservation(ctx, first))
	require.NoError(t, sess.Commit())

	// Same ground, date and interval while the first is active.
	sess, err = s.Begin(ctx)
	require.NoError(t, err)
	err = sess.InsertReservation(ctx, newReservation("b", 600, 720, model.StatusPending))
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, sess.Abort())

	// Cancel the first; the slot becomes free for a new active row.
	sess, err = s.Begin(ctx)
	require.NoError(t, err)
	loaded, err := sess.GetReservation(ctx, "a")
	require.NoError(t, err)
	loaded.Status = model.StatusCancelled
	require.NoError(t, sess.UpdateReservation(ctx, &loaded))
	require.NoError(t, sess.InsertReservation(ctx, newReservation("c", 600, 720, model.StatusPending)))
	require.NoError(t, sess.Commit())

	snap, err := s.Snapshot(ctx, "ext-green-park", "2026-10-20")
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, "c", snap[0].ID)
}

func TestGormStore_ListReservations(t *testing.T) {
	s := NewGormStore(newSQLiteDB(t), sql.LevelDefault)
	seedUserBookings(t, s)

	for _, tc := range listCases {
		t.Run(tc.name, func(t *testing.T) {
			rows, total, err := s.ListReservations(context.Background(), tc.user, tc.status, tc.offset, tc.limit)
			require.NoError(t, err)
			assert.Equal(t, tc.expectedIDs, listIDs(rows))
			assert.Equal(t, tc.expectedTotal, total)
		})
	}
}

func TestGormStore_ListReservationsCountFailure(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB, sql.LevelSerializable)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "reservations" WHERE user_id = \$1 AND status = \$2`).
		WithArgs("user-1", "pending").
		WillReturnError(errors.New("connection reset by peer"))

	_, _, err := s.ListReservations(context.Background(), "user-1", model.StatusPending, 0, 10)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParseIsolation(t *testing.T) {
	level, err := ParseIsolation("")
	require.NoError(t, err)
	assert.Equal(t, sql.LevelSerializable, level)

	level, err = ParseIsolation("Read_Committed")
	require.NoError(t, err)
	assert.Equal(t, sql.LevelReadCommitted, level)

	level, err = ParseIsolation("default")
	require.NoError(t, err)
	assert.Equal(t, sql.LevelDefault, level)

	_, err = ParseIsolation("chaos")
	assert.Error(t, err)
}

func TestParseIsolation_RejectsRepeatableRead(t *testing.T) {
	for _, name := range []string{"repeatable_read", "Repeatable Read", "snapshot"} {
		_, err := ParseIsolation(name)
		assert.ErrorContains(t, err, "cannot order admissions", name)
	}
}
