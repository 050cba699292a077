// internal/circulation/service.go
package circulation

import (
	"context"
	"time"

	"lendingdesk/internal/journal"
)

// Service defines the interface for the circulation service.
type Service interface {
	CreateLoan(ctx context.Context, userID, bookID int64) (*Loan, error)
	ReturnLoan(ctx context.Context, loanID int64) error
	GetLoan(ctx context.Context, id int64) (*Loan, error)
	ListLoans(ctx context.Context) ([]*Loan, error)
	ListActiveLoans(ctx context.Context) ([]*Loan, error)
	FindActiveLoansForUser(ctx context.Context, userID int64) ([]*Loan, error)
	DeleteLoan(ctx context.Context, id int64) error
	History(ctx context.Context, loanID int64) ([]journal.Event, error)
}

// Repository is the persistence port for loans. MarkReturned only updates an
// active loan and returns storage.ErrConflict when the loan is already
// returned.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*Loan, error)
	FindAll(ctx context.Context) ([]*Loan, error)
	FindActiveByUser(ctx context.Context, userID int64) ([]*Loan, error)
	Save(ctx context.Context, loan *Loan) error
	MarkReturned(ctx context.Context, id int64, returnDate time.Time) error
	Delete(ctx context.Context, id int64) error
}

// Journal records loan lifecycle events.
type Journal interface {
	Append(ctx context.Context, loanID int64, expectedVersion int, eventType string, payload interface{}) error
	Load(ctx context.Context, loanID int64) ([]journal.Event, error)
	CurrentVersion(ctx context.Context, loanID int64) (int, error)
}
