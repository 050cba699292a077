// internal/config/database.go
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"gorm.io/gorm"

	"lendingdesk/internal/storage/postgres"
	"lendingdesk/internal/storage/sqlite"
)

// OpenPostgres connects to PostgreSQL and migrates the schema.
func OpenPostgres(ctx context.Context, url string) (*sqlx.DB, error) {
	const defaultMaxOpenConnections = 25
	const defaultMaxIdleConnections = 5
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5

	db, err := sqlx.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConnections)
	db.SetMaxIdleConns(defaultMaxIdleConnections)
	db.SetConnMaxLifetime(defaultMaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// OpenSQLite opens the SQLite file at path and migrates the schema.
func OpenSQLite(path string) (*gorm.DB, error) {
	return sqlite.Open(path)
}
