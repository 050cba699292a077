// internal/storage/sqlite/sqlite.go
package sqlite

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lendingdesk/internal/storage"
)

// MemoryDSN opens a private in-memory database. The pool is capped at one
// connection, so every repository sharing the *gorm.DB sees the same data.
const MemoryDSN = "file::memory:"

// foreignKeys turns on foreign key enforcement for every connection opened
// with the DSN.
const foreignKeys = "_pragma=foreign_keys(1)"

// Open connects to the SQLite database at dsn and migrates the schema.
// Foreign keys are enforced, so a loan cannot be stored for a book or user
// that has been deleted.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(withForeignKeys(dsn)), &gorm.Config{
		Logger: logger.New(log.New(os.Stderr, "", log.LstdFlags), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Error,
			IgnoreRecordNotFoundError: true,
		}),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// SQLite allows a single writer.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(db); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the books, users and loans tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&bookModel{}, &userModel{}, &loanModel{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, foreignKeys) {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + foreignKeys
	}
	return dsn + "?" + foreignKeys
}

// wrap passes storage sentinels through and marks everything else as a
// storage failure.
func wrap(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return storage.ErrNotFound
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%s: %w", op, storage.ErrReferenced)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, storage.ErrConflict)
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, storage.ErrConflict),
		errors.Is(err, storage.ErrReferenced):
		return err
	default:
		return storage.Failure(op, err)
	}
}
