package db

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rag2504/box-host/config"
	"github.com/rag2504/box-host/internal/model"
)

// Init opens the configured database, sets pool limits and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := open(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if db.Dialector.Name() == "sqlite" {
		// SQLite allows one writer; a single connection keeps admissions ordered.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Println("Running database migrations...")
	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := guardOverlaps(db, cfg); err != nil {
		return nil, err
	}

	log.Println("Database initialization complete.")
	return db, nil
}

func open(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "postgres", "postgresql":
		return postgres.Open(cfg.DSN), nil
	case "sqlite", "sqlite3":
		return sqlite.Open(cfg.DSN), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Ground{},
		&model.RateRange{},
		&model.Reservation{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

func logLevel(name string) logger.LogLevel {
	switch strings.ToLower(name) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn", "warning":
		return logger.Warn
	}
	return logger.Info
}

// guardOverlaps installs the exclusion constraint when it is enabled on
// Postgres. Startup fails if the constraint was asked for and could not be
// created.
func guardOverlaps(db *gorm.DB, cfg *config.DatabaseConfig) error {
	if !cfg.EnableExclusion || db.Dialector.Name() != "postgres" {
		return nil
	}
	log.Println("Exclusion constraint is enabled, applying overlap guard DDL...")
	if err := applyExclusionDDL(db); err != nil {
		return fmt.Errorf("overlap guard: %w", err)
	}
	return nil
}

// applyExclusionDDL adds the database-side overlap guard: no two active
// reservations of a ground and date may share a minute.
func applyExclusionDDL(db *gorm.DB) error {
	ddls := []string{
		"CREATE EXTENSION IF NOT EXISTS btree_gist;",

		"DO $$ BEGIN " +
			"IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'reservations_interval_valid') THEN " +
			"ALTER TABLE reservations ADD CONSTRAINT reservations_interval_valid " +
			"CHECK (start_minute >= 0 AND end_minute <= 1440 AND start_minute < end_minute) NOT VALID; " +
			"END IF; END $$;",

		// Half-open ranges, so back-to-back slots do not collide.
		"DO $$ BEGIN " +
			"IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'reservations_no_overlap') THEN " +
			"ALTER TABLE reservations ADD CONSTRAINT reservations_no_overlap EXCLUDE USING GIST " +
			"(ground_key WITH =, date WITH =, int4range(start_minute, end_minute, '[)') WITH &&) " +
			"WHERE (status IN ('pending', 'confirmed')); " +
			"END IF; END $$;",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}

// Ping checks that the database answers within the context deadline.
func Ping(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
