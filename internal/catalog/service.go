// internal/catalog/service.go
package catalog

import (
	"context"
)

// Service defines the interface for the catalog service.
type Service interface {
	AddBook(ctx context.Context, title, author string, publicationYear *int, units int) (*Book, error)
	GetBook(ctx context.Context, id int64) (*Book, error)
	ListBooks(ctx context.Context) ([]*Book, error)
	ListAvailableBooks(ctx context.Context) ([]*Book, error)
	DeleteBook(ctx context.Context, id int64) error
}

// Ledger keeps a book's available units in step with loan state.
type Ledger interface {
	Reserve(ctx context.Context, bookID int64) (*Book, error)
	Release(ctx context.Context, bookID int64) (*Book, error)
}

// Repository is the persistence port for books. FindAll returns books in a
// stable order (ascending id). AdjustAvailableUnits adds delta to the stored
// count in one statement and returns the new count; it fails with
// storage.ErrConflict, without writing, when the count would drop below zero.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*Book, error)
	FindAll(ctx context.Context) ([]*Book, error)
	Save(ctx context.Context, book *Book) error
	Delete(ctx context.Context, id int64) error
	AdjustAvailableUnits(ctx context.Context, id int64, delta int) (int, error)
}
