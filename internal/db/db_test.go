package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rag2504/box-host/config"
	"github.com/rag2504/box-host/internal/model"
)

func TestInit_SQLite(t *testing.T) {
	db, err := Init(&config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      "file:dbinit?mode=memory&cache=shared",
		LogLevel: "silent",
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	for _, table := range []any{&model.Ground{}, &model.RateRange{}, &model.Reservation{}} {
		assert.True(t, db.Migrator().HasTable(table))
	}
	assert.True(t, db.Migrator().HasIndex(&model.Reservation{}, "idx_active_slot"))
	assert.NoError(t, Ping(db)(context.Background()))
}

func TestInit_UnknownDriver(t *testing.T) {
	_, err := Init(&config.DatabaseConfig{Driver: "oracle"})
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestApplyExclusionDDL(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	mock.ExpectExec(`CREATE EXTENSION IF NOT EXISTS btree_gist`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`reservations_interval_valid`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`EXCLUDE USING GIST .*int4range\(start_minute, end_minute, '\[\)'\) WITH &&`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, applyExclusionDDL(db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyExclusionDDL_Failure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	mock.ExpectExec(`CREATE EXTENSION`).WillReturnError(errors.New("permission denied to create extension"))

	err = applyExclusionDDL(db)
	assert.ErrorContains(t, err, "permission denied")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuardOverlaps(t *testing.T) {
	testCases := []struct {
		name    string
		enabled bool
		ddlErr  error
		wantErr string
	}{
		{name: "Disabled runs no DDL", enabled: false},
		{name: "Enabled and applied", enabled: true},
		{name: "Enabled and failing stops startup", enabled: true, ddlErr: errors.New("permission denied to create extension"), wantErr: "overlap guard"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sqlDB, mock, err := sqlmock.New()
			require.NoError(t, err)
			db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
			require.NoError(t, err)

			if tc.enabled {
				if tc.ddlErr != nil {
					mock.ExpectExec(`CREATE EXTENSION`).WillReturnError(tc.ddlErr)
				} else {
					mock.ExpectExec(`CREATE EXTENSION`).WillReturnResult(sqlmock.NewResult(0, 0))
					mock.ExpectExec(`reservations_interval_valid`).WillReturnResult(sqlmock.NewResult(0, 0))
					mock.ExpectExec(`reservations_no_overlap`).WillReturnResult(sqlmock.NewResult(0, 0))
				}
			}

			err = guardOverlaps(db, &config.DatabaseConfig{EnableExclusion: tc.enabled})
			if tc.wantErr != "" {
				assert.ErrorContains(t, err, tc.wantErr)
				assert.ErrorContains(t, err, "permission denied")
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, logLevel("silent"))
	assert.Equal(t, logger.Warn, logLevel("WARN"))
	assert.Equal(t, logger.Info, logLevel(""))
}
