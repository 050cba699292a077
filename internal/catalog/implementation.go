// internal/catalog/implementation.go
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lendingdesk/internal/storage"
)

// service implements the Service interface.
type service struct {
	repo   Repository
	tracer trace.Tracer
}

// NewService creates a new catalog service instance.
func NewService(repo Repository) Service {
	return &service{
		repo:   repo,
		tracer: otel.Tracer("lendingdesk/catalog"),
	}
}

// AddBook puts a new title on the shelf with the given number of units.
func (s *service) AddBook(ctx context.Context, title, author string, publicationYear *int, units int) (*Book, error) {
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidBook)
	}
	if units < 0 {
		return nil, fmt.Errorf("%w: available units must not be negative", ErrInvalidBook)
	}

	book := &Book{
		Title:           title,
		Author:          author,
		PublicationYear: publicationYear,
		AvailableUnits:  units,
	}
	if err := s.repo.Save(ctx, book); err != nil {
		return nil, fmt.Errorf("failed to save book: %w", err)
	}

	return book, nil
}

// GetBook retrieves a book by its ID.
func (s *service) GetBook(ctx context.Context, id int64) (*Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.get_book",
		trace.WithAttributes(attribute.Int64("book.id", id)),
	)
	defer span.End()

	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}

	return book, nil
}

// ListBooks returns every book in listing order.
func (s *service) ListBooks(ctx context.Context) ([]*Book, error) {
	return s.repo.FindAll(ctx)
}

// ListAvailableBooks returns the books with at least one unit on the shelf.
func (s *service) ListAvailableBooks(ctx context.Context) ([]*Book, error) {
	books, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	available := make([]*Book, 0, len(books))
	for _, book := range books {
		if book.AvailableUnits > 0 {
			available = append(available, book)
		}
	}

	return available, nil
}

// DeleteBook removes a book. Books still referenced by loans are kept and
// storage.ErrReferenced is returned.
func (s *service) DeleteBook(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrBookNotFound
		}
		return err
	}

	return nil
}
