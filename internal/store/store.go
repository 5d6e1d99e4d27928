package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rag2504/box-host/internal/model"
)

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db        *gorm.DB
	isolation sql.IsolationLevel
}

// NewGormStore creates a new GORM-backed store whose transactions run at the
// given isolation level.
func NewGormStore(db *gorm.DB, isolation sql.IsolationLevel) Store {
	return &gormStore{db: db, isolation: isolation}
}

// Begin opens a database transaction bound to ctx. If ctx expires before the
// session finishes, database/sql rolls the transaction back.
func (s *gormStore) Begin(ctx context.Context) (Session, error) {
	tx := s.db.WithContext(ctx).Begin(&sql.TxOptions{Isolation: s.isolation})
	if tx.Error != nil {
		return nil, fmt.Errorf("%w: begin transaction: %v", ErrUnavailable, tx.Error)
	}
	return &gormSession{tx: tx}, nil
}

// Snapshot reads the active reservations of one ground and date.
func (s *gormStore) Snapshot(ctx context.Context, groundKey, date string) ([]model.Reservation, error) {
	var out []model.Reservation
	err := s.db.WithContext(ctx).
		Where("ground_key = ? AND date = ? AND status IN ?", groundKey, date, model.ActiveStatuses).
		Order("start_minute ASC").
		Find(&out).Error
	if err != nil {
		return nil, translate("read snapshot", err)
	}
	return out, nil
}

func (s *gormStore) ListReservations(ctx context.Context, userID string, status model.Status, offset, limit int) ([]model.Reservation, int64, error) {
	byUser := func(db *gorm.DB) *gorm.DB {
		db = db.Where("user_id = ?", userID)
		if status != "" {
			db = db.Where("status = ?", status)
		}
		return db
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&model.Reservation{}).Scopes(byUser).Count(&total).Error; err != nil {
		return nil, 0, translate("count reservations", err)
	}

	q := s.db.WithContext(ctx).Scopes(byUser).Order("created_at DESC, id DESC")
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []model.Reservation
	if err := q.Find(&out).Error; err != nil {
		return nil, 0, translate("list reservations", err)
	}
	return out, total, nil
}

type gormSession struct {
	tx *gorm.DB
}

func (s *gormSession) postgres() bool {
	return s.tx.Dialector.Name() == "postgres"
}

// lock takes a transaction-scoped advisory lock on the ground and date. SQLite
// serializes writers on the whole database, so it needs no extra lock.
// Under read committed the reads after the lock see the previous holder's
// rows; under serializable a late writer fails with 40001 and is retried.
func (s *gormSession) lock(ctx context.Context, groundKey, date string) error {
	if !s.postgres() {
		return nil
	}
	if err := s.tx.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", lockKey(groundKey, date)).Error; err != nil {
		return translate("lock ground date", err)
	}
	return nil
}

func (s *gormSession) ReadReservations(ctx context.Context, groundKey, date string, statuses []model.Status) ([]model.Reservation, error) {
	if err := s.lock(ctx, groundKey, date); err != nil {
		return nil, err
	}

	var out []model.Reservation
	err := s.tx.WithContext(ctx).
		Where("ground_key = ? AND date = ? AND status IN ?", groundKey, date, statuses).
		Order("start_minute ASC").
		Find(&out).Error
	if err != nil {
		return nil, translate("read reservations", err)
	}
	return out, nil
}

func (s *gormSession) InsertReservation(ctx context.Context, r *model.Reservation) error {
	if err := s.tx.WithContext(ctx).Create(r).Error; err != nil {
		return translate(fmt.Sprintf("insert reservation %s", r.ID), err)
	}
	return nil
}

func (s *gormSession) GetReservation(ctx context.Context, id string) (model.Reservation, error) {
	q := s.tx.WithContext(ctx)
	if s.postgres() {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var r model.Reservation
	err := q.First(&r, "id = ?", id).Error
	if err != nil {
		return model.Reservation{}, translate(fmt.Sprintf("get reservation %s", id), err)
	}
	return r, nil
}

func (s *gormSession) UpdateReservation(ctx context.Context, r *model.Reservation) error {
	if err := s.tx.WithContext(ctx).Save(r).Error; err != nil {
		return translate(fmt.Sprintf("update reservation %s", r.ID), err)
	}
	return nil
}

func (s *gormSession) Commit() error {
	if err := s.tx.Commit().Error; err != nil {
		return translate("commit", err)
	}
	return nil
}

func (s *gormSession) Abort() error {
	err := s.tx.Rollback().Error
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return translate("rollback", err)
	}
	return nil
}

// translate maps driver errors onto the store sentinels. Anything that is
// neither a missing row nor a lost race is reported as unavailability.
func translate(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case isConflict(err):
		return fmt.Errorf("%w: %s: %v", ErrConflict, op, err)
	default:
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}
}

func isConflict(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", // unique_violation
			"23P01", // exclusion_violation
			"40001", // serialization_failure
			"40P01": // deadlock_detected
			return true
		}
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "database is locked")
}

// ParseIsolation maps a config value onto a database/sql isolation level.
// Repeatable read is refused: its snapshot predates the advisory lock, so a
// session that waited on the lock would miss the holder's insert.
func ParseIsolation(name string) (sql.IsolationLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "serializable":
		return sql.LevelSerializable, nil
	case "repeatable_read", "repeatable read", "snapshot":
		return sql.LevelDefault, fmt.Errorf("isolation level %q cannot order admissions; use serializable or read_committed", name)
	case "read_committed":
		return sql.LevelReadCommitted, nil
	case "default":
		return sql.LevelDefault, nil
	}
	return sql.LevelDefault, fmt.Errorf("unknown isolation level %q", name)
}
