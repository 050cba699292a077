// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"lendingdesk/internal/storage"
)

//go:embed schema.sql
var schema string

// Migrate creates the books, users and loans tables when they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// wrap translates driver errors into storage errors.
func wrap(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23503":
			return storage.ErrReferenced
		case "23505", "23514":
			return fmt.Errorf("%w: %s", storage.ErrConflict, pqErr.Message)
		}
	}

	return storage.Failure(op, err)
}

// affected returns storage.ErrNotFound when res touched no rows.
func affected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storage.Failure(op, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
