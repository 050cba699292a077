// internal/storage/postgres/books.go
package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"lendingdesk/internal/catalog"
	"lendingdesk/internal/storage"
)

// BookRepository implements catalog.Repository.
type BookRepository struct {
	db *sqlx.DB
}

func NewBookRepository(db *sqlx.DB) *BookRepository {
	return &BookRepository{db: db}
}

func (r *BookRepository) FindByID(ctx context.Context, id int64) (*catalog.Book, error) {
	var book catalog.Book
	err := r.db.GetContext(ctx, &book, `
		SELECT id, title, author, publication_year, available_units
		FROM books
		WHERE id = $1
	`, id)
	if err != nil {
		return nil, wrap("find book", err)
	}
	return &book, nil
}

func (r *BookRepository) FindAll(ctx context.Context) ([]*catalog.Book, error) {
	books := []*catalog.Book{}
	err := r.db.SelectContext(ctx, &books, `
		SELECT id, title, author, publication_year, available_units
		FROM books
		ORDER BY id
	`)
	if err != nil {
		return nil, wrap("list books", err)
	}
	return books, nil
}

// Save inserts a book without an ID and updates one that has it.
func (r *BookRepository) Save(ctx context.Context, book *catalog.Book) error {
	if book.ID == 0 {
		err := r.db.QueryRowxContext(ctx, `
			INSERT INTO books (title, author, publication_year, available_units)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, book.Title, book.Author, book.PublicationYear, book.AvailableUnits).Scan(&book.ID)
		if err != nil {
			return wrap("insert book", err)
		}
		return nil
	}

	res, err := r.db.NamedExecContext(ctx, `
		UPDATE books
		SET title = :title, author = :author, publication_year = :publication_year, available_units = :available_units
		WHERE id = :id
	`, book)
	if err != nil {
		return wrap("update book", err)
	}
	return affected("update book", res)
}

func (r *BookRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return wrap("delete book", err)
	}
	return affected("delete book", res)
}

func (r *BookRepository) AdjustAvailableUnits(ctx context.Context, id int64, delta int) (int, error) {
	var units int
	err := r.db.QueryRowxContext(ctx, `
		UPDATE books
		SET available_units = available_units + $2
		WHERE id = $1 AND available_units + $2 >= 0
		RETURNING available_units
	`, id, delta).Scan(&units)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM books WHERE id = $1)`, id); err != nil {
			return 0, wrap("adjust available units", err)
		}
		if !exists {
			return 0, storage.ErrNotFound
		}
		return 0, storage.ErrConflict
	}
	if err != nil {
		return 0, wrap("adjust available units", err)
	}
	return units, nil
}
