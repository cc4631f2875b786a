package db

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"rubicon/flightlog/internal/config"
	"rubicon/flightlog/internal/logging"
	models "rubicon/flightlog/internal/models/gorm"
)

// Open connects GORM to the configured driver and migrates the schema.
func Open(opts config.DatabaseOptions) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case "postgres":
		dialector = postgres.Open(opts.DSN())
	case "sqlite":
		dialector = sqlite.Open(opts.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(os.Stdout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.Driver, err)
	}

	if opts.Driver == "sqlite" {
		// One writer at a time; sqlite returns SQLITE_BUSY otherwise.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	logging.Info("Connected to database via GORM", "driver", opts.Driver)
	return db, nil
}

// newGormLogger logs slow queries and errors. Not-found lookups are an expected
// outcome of the nil-on-miss repositories and stay silent.
func newGormLogger(out io.Writer) gormlogger.Interface {
	return gormlogger.New(log.New(out, "\r\n", log.LstdFlags), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// AutoMigrate creates or updates every table flightlog owns.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Crew{},
		&models.ReferenceEntity{},
		&models.ImportCheckpoint{},
		&models.FlightRecord{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
