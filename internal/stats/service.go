// internal/stats/service.go
package stats

import (
	"context"
	"errors"

	"lendingdesk/internal/catalog"
	"lendingdesk/internal/membership"
)

var (
	ErrNoBooksFound = errors.New("no books found")
	ErrNoUsersFound = errors.New("no users found")
)

// BookCount is a book with the number of loans that ever referenced it.
type BookCount struct {
	Book  *catalog.Book `json:"book"`
	Loans int           `json:"loans"`
}

// UserCount is a user with the number of loans they ever took.
type UserCount struct {
	User  *membership.User `json:"user"`
	Loans int              `json:"loans"`
}

// Service computes read-only aggregates over books, users and loans. Ties
// are broken by listing order (ascending id): the first maximum wins.
type Service interface {
	MostBorrowedBook(ctx context.Context) (*BookCount, error)
	TopBorrower(ctx context.Context) (*UserCount, error)
	TotalAvailableUnits(ctx context.Context) (int, error)
	AverageActiveLoansPerBorrower(ctx context.Context) (float64, error)
	UsersWithActiveLoans(ctx context.Context) ([]*membership.User, error)
}
