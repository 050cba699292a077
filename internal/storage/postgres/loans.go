// internal/storage/postgres/loans.go
package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"lendingdesk/internal/circulation"
	"lendingdesk/internal/storage"
)

// LoanRepository implements circulation.Repository.
type LoanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

func (r *LoanRepository) FindByID(ctx context.Context, id int64) (*circulation.Loan, error) {
	var loan circulation.Loan
	err := r.db.GetContext(ctx, &loan, `
		SELECT id, user_id, book_id, loan_date, return_date
		FROM loans
		WHERE id = $1
	`, id)
	if err != nil {
		return nil, wrap("find loan", err)
	}
	return &loan, nil
}

func (r *LoanRepository) FindAll(ctx context.Context) ([]*circulation.Loan, error) {
	loans := []*circulation.Loan{}
	err := r.db.SelectContext(ctx, &loans, `
		SELECT id, user_id, book_id, loan_date, return_date
		FROM loans
		ORDER BY id
	`)
	if err != nil {
		return nil, wrap("list loans", err)
	}
	return loans, nil
}

func (r *LoanRepository) FindActiveByUser(ctx context.Context, userID int64) ([]*circulation.Loan, error) {
	loans := []*circulation.Loan{}
	err := r.db.SelectContext(ctx, &loans, `
		SELECT id, user_id, book_id, loan_date, return_date
		FROM loans
		WHERE user_id = $1 AND return_date IS NULL
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, wrap("list active loans", err)
	}
	return loans, nil
}

func (r *LoanRepository) Save(ctx context.Context, loan *circulation.Loan) error {
	if loan.ID == 0 {
		err := r.db.QueryRowxContext(ctx, `
			INSERT INTO loans (user_id, book_id, loan_date, return_date)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, loan.UserID, loan.BookID, loan.LoanDate, loan.ReturnDate).Scan(&loan.ID)
		if err != nil {
			return wrap("insert loan", err)
		}
		return nil
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE loans
		SET user_id = $2, book_id = $3, loan_date = $4, return_date = $5
		WHERE id = $1
	`, loan.ID, loan.UserID, loan.BookID, loan.LoanDate, loan.ReturnDate)
	if err != nil {
		return wrap("update loan", err)
	}
	return affected("update loan", res)
}

// MarkReturned sets the return date of an active loan. It returns
// storage.ErrConflict when the loan was already returned.
func (r *LoanRepository) MarkReturned(ctx context.Context, id int64, returnDate time.Time) error {
	var returned bool
	err := r.db.GetContext(ctx, &returned, `
		WITH updated AS (
			UPDATE loans SET return_date = $2
			WHERE id = $1 AND return_date IS NULL
			RETURNING id
		)
		SELECT EXISTS (SELECT 1 FROM updated)
	`, id, returnDate)
	if err != nil {
		return wrap("mark loan returned", err)
	}
	if returned {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM loans WHERE id = $1)`, id); err != nil {
		return wrap("mark loan returned", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrConflict
}

func (r *LoanRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM loans WHERE id = $1`, id)
	if err != nil {
		return wrap("delete loan", err)
	}
	return affected("delete loan", res)
}
