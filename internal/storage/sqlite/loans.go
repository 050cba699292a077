// internal/storage/sqlite/loans.go
package sqlite

import (
	"context"
	"time"

	"gorm.io/gorm"

	"lendingdesk/internal/circulation"
	"lendingdesk/internal/storage"
)

// LoanRepository implements circulation.Repository.
type LoanRepository struct {
	db *gorm.DB
}

func NewLoanRepository(db *gorm.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

func (r *LoanRepository) FindByID(ctx context.Context, id int64) (*circulation.Loan, error) {
	var m loanModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, wrap("find loan", err)
	}
	return m.toDomain(), nil
}

func (r *LoanRepository) FindAll(ctx context.Context) ([]*circulation.Loan, error) {
	return r.find(ctx, "list loans", r.db.WithContext(ctx))
}

func (r *LoanRepository) FindActiveByUser(ctx context.Context, userID int64) ([]*circulation.Loan, error) {
	query := r.db.WithContext(ctx).Where("user_id = ? AND return_date IS NULL", userID)
	return r.find(ctx, "list active loans", query)
}

func (r *LoanRepository) find(ctx context.Context, op string, query *gorm.DB) ([]*circulation.Loan, error) {
	var models []loanModel
	if err := query.Order("id").Find(&models).Error; err != nil {
		return nil, wrap(op, err)
	}

	loans := make([]*circulation.Loan, 0, len(models))
	for i := range models {
		loans = append(loans, models[i].toDomain())
	}
	return loans, nil
}

func (r *LoanRepository) Save(ctx context.Context, loan *circulation.Loan) error {
	m := fromLoan(loan)

	var err error
	if m.ID == 0 {
		err = r.db.WithContext(ctx).Create(m).Error
	} else {
		err = r.db.WithContext(ctx).Save(m).Error
	}
	if err != nil {
		return wrap("save loan", err)
	}

	loan.ID = m.ID
	return nil
}

// MarkReturned sets the return date of an active loan. It returns
// storage.ErrConflict when the loan was already returned.
func (r *LoanRepository) MarkReturned(ctx context.Context, id int64, returnDate time.Time) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&loanModel{}).
			Where("id = ? AND return_date IS NULL", id).
			Update("return_date", returnDate)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}

		var count int64
		if err := tx.Model(&loanModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return storage.ErrNotFound
		}
		return storage.ErrConflict
	})
	if err != nil {
		return wrap("mark loan returned", err)
	}
	return nil
}

func (r *LoanRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&loanModel{}, id)
	if res.Error != nil {
		return wrap("delete loan", res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
