package db

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"gorm.io/gorm"

	"rubicon/flightlog/internal/config"
)

// OpenSQLX returns the sqlx handle used for raw reads and health checks.
// Postgres gets its own lib/pq pool with connection retries; sqlite shares
// GORM's connection so both see the same database.
func OpenSQLX(opts config.DatabaseOptions, orm *gorm.DB) (*sqlx.DB, error) {
	if opts.Driver != "postgres" {
		return WrapSQLX(orm)
	}

	var (
		conn *sqlx.DB
		err  error
	)
	for i := 0; i < 10; i++ {
		conn, err = sqlx.Connect("postgres", opts.DSN())
		if err == nil {
			return conn, nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return nil, fmt.Errorf("failed to connect to postgres: %w", err)
}

// WrapSQLX exposes GORM's pool through sqlx. Queries must be written with '?'
// placeholders and passed through Rebind.
func WrapSQLX(orm *gorm.DB) (*sqlx.DB, error) {
	sqlDB, err := orm.DB()
	if err != nil {
		return nil, err
	}
	driver := "sqlite3"
	if orm.Dialector.Name() == "postgres" {
		driver = "postgres"
	}
	return sqlx.NewDb(sqlDB, driver), nil
}
