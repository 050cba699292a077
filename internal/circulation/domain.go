// internal/circulation/domain.go
package circulation

import (
	"errors"
	"fmt"
	"time"

	"lendingdesk/internal/storage"
)

// DefaultMaxActiveLoans is the loan cap applied when none is configured.
const DefaultMaxActiveLoans = 5

// Status is the lifecycle state of a loan.
type Status string

const (
	StatusActive   Status = "active"
	StatusReturned Status = "returned"
)

// Loan records a book lent to a user. A nil ReturnDate means the loan is
// active; once set it never changes.
type Loan struct {
	ID         int64      `json:"id" db:"id"`
	UserID     int64      `json:"user_id" db:"user_id"`
	BookID     int64      `json:"book_id" db:"book_id"`
	LoanDate   time.Time  `json:"loan_date" db:"loan_date"`
	ReturnDate *time.Time `json:"return_date,omitempty" db:"return_date"`
}

// IsActive reports whether the loan has not been returned yet.
func (l *Loan) IsActive() bool {
	return l.ReturnDate == nil
}

// Status returns the loan's lifecycle state.
func (l *Loan) Status() Status {
	if l.IsActive() {
		return StatusActive
	}
	return StatusReturned
}

var (
	ErrLoanNotFound      = fmt.Errorf("loan %w", storage.ErrNotFound)
	ErrLoanLimitExceeded = errors.New("user has reached the active loan limit")
	ErrAlreadyReturned   = errors.New("loan has already been returned")
	ErrLoanActive        = errors.New("loan is still active")
)

// LoanCreatedEvent is journaled when a loan is created.
type LoanCreatedEvent struct {
	LoanID   int64     `json:"loan_id"`
	UserID   int64     `json:"user_id"`
	BookID   int64     `json:"book_id"`
	LoanDate time.Time `json:"loan_date"`
}

// LoanReturnedEvent is journaled when a loan is returned.
type LoanReturnedEvent struct {
	LoanID     int64     `json:"loan_id"`
	UserID     int64     `json:"user_id"`
	BookID     int64     `json:"book_id"`
	ReturnDate time.Time `json:"return_date"`
}
