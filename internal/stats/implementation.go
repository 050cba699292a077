// internal/stats/implementation.go
package stats

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"lendingdesk/internal/catalog"
	"lendingdesk/internal/circulation"
	"lendingdesk/internal/membership"
)

type service struct {
	books  catalog.Service
	users  membership.Service
	loans  circulation.Service
	tracer trace.Tracer
}

// NewService creates the statistics service.
func NewService(books catalog.Service, users membership.Service, loans circulation.Service) Service {
	return &service{
		books:  books,
		users:  users,
		loans:  loans,
		tracer: otel.Tracer("lendingdesk/stats"),
	}
}

// MostBorrowedBook counts active and returned loans alike.
func (s *service) MostBorrowedBook(ctx context.Context) (*BookCount, error) {
	ctx, span := s.tracer.Start(ctx, "stats.most_borrowed_book")
	defer span.End()

	books, err := s.books.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	if len(books) == 0 {
		return nil, ErrNoBooksFound
	}

	loans, err := s.loans.ListLoans(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}

	counts := make(map[int64]int, len(books))
	for _, loan := range loans {
		counts[loan.BookID]++
	}

	best := &BookCount{Book: books[0], Loans: counts[books[0].ID]}
	for _, book := range books[1:] {
		if n := counts[book.ID]; n > best.Loans {
			best = &BookCount{Book: book, Loans: n}
		}
	}
	return best, nil
}

// TopBorrower counts active and returned loans alike.
func (s *service) TopBorrower(ctx context.Context) (*UserCount, error) {
	ctx, span := s.tracer.Start(ctx, "stats.top_borrower")
	defer span.End()

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if len(users) == 0 {
		return nil, ErrNoUsersFound
	}

	loans, err := s.loans.ListLoans(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}

	counts := make(map[int64]int, len(users))
	for _, loan := range loans {
		counts[loan.UserID]++
	}

	best := &UserCount{User: users[0], Loans: counts[users[0].ID]}
	for _, user := range users[1:] {
		if n := counts[user.ID]; n > best.Loans {
			best = &UserCount{User: user, Loans: n}
		}
	}
	return best, nil
}

// TotalAvailableUnits sums the units currently on the shelf.
func (s *service) TotalAvailableUnits(ctx context.Context) (int, error) {
	books, err := s.books.ListAvailableBooks(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list books: %w", err)
	}

	total := 0
	for _, book := range books {
		total += book.AvailableUnits
	}
	return total, nil
}

// AverageActiveLoansPerBorrower divides the number of loans by the number of
// distinct users that took them. Returned loans are counted too. It returns
// 0 when there are no loans.
func (s *service) AverageActiveLoansPerBorrower(ctx context.Context) (float64, error) {
	loans, err := s.loans.ListLoans(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list loans: %w", err)
	}
	if len(loans) == 0 {
		return 0, nil
	}

	borrowers := make(map[int64]struct{})
	for _, loan := range loans {
		borrowers[loan.UserID] = struct{}{}
	}
	return float64(len(loans)) / float64(len(borrowers)), nil
}

// UsersWithActiveLoans returns, in listing order, the users holding at least
// one active loan.
func (s *service) UsersWithActiveLoans(ctx context.Context) ([]*membership.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	result := make([]*membership.User, 0, len(users))
	for _, user := range users {
		active, err := s.loans.FindActiveLoansForUser(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list active loans of user %d: %w", user.ID, err)
		}
		if len(active) > 0 {
			result = append(result, user)
		}
	}
	return result, nil
}
