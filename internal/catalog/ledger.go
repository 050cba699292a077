// internal/catalog/ledger.go
package catalog

import (
	"context"
	"errors"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"lendingdesk/internal/keylock"
	"lendingdesk/internal/storage"
)

// ledger implements Ledger. Every change of a book's units holds that book's
// lock and is applied by the store as a conditional update, so concurrent
// reservations cannot drive the count below zero.
type ledger struct {
	repo   Repository
	locks  keylock.Locker
	tracer trace.Tracer
}

// NewLedger creates the inventory ledger on top of the book repository.
func NewLedger(repo Repository) Ledger {
	return &ledger{
		repo:   repo,
		tracer: otel.Tracer("lendingdesk/catalog"),
	}
}

// Reserve takes one unit of the book off the shelf. It fails with
// ErrOutOfStock, without writing, when no unit is available.
func (l *ledger) Reserve(ctx context.Context, bookID int64) (*Book, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.reserve",
		trace.WithAttributes(attribute.Int64("book.id", bookID)),
	)
	defer span.End()

	unlock := l.locks.Lock(strconv.FormatInt(bookID, 10))
	defer unlock()

	book, err := l.find(ctx, bookID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if book.AvailableUnits <= 0 {
		span.SetAttributes(attribute.Bool("out_of_stock", true))
		return nil, ErrOutOfStock
	}

	if err := l.adjust(ctx, book, -1); err != nil {
		if errors.Is(err, ErrOutOfStock) {
			span.SetAttributes(attribute.Bool("out_of_stock", true))
		} else {
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}

	span.SetAttributes(attribute.Int("available_units", book.AvailableUnits))
	return book, nil
}

// Release puts one unit of the book back on the shelf.
func (l *ledger) Release(ctx context.Context, bookID int64) (*Book, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.release",
		trace.WithAttributes(attribute.Int64("book.id", bookID)),
	)
	defer span.End()

	unlock := l.locks.Lock(strconv.FormatInt(bookID, 10))
	defer unlock()

	book, err := l.find(ctx, bookID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := l.adjust(ctx, book, 1); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("available_units", book.AvailableUnits))
	return book, nil
}

func (l *ledger) find(ctx context.Context, bookID int64) (*Book, error) {
	book, err := l.repo.FindByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	return book, nil
}

// adjust applies delta in the store itself, so another process sharing the
// database cannot interleave between the read and the write.
func (l *ledger) adjust(ctx context.Context, book *Book, delta int) error {
	units, err := l.repo.AdjustAvailableUnits(ctx, book.ID, delta)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return ErrBookNotFound
		case errors.Is(err, storage.ErrConflict):
			return ErrOutOfStock
		}
		return err
	}
	book.AvailableUnits = units
	return nil
}
