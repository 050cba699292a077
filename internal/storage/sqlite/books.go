// internal/storage/sqlite/books.go
package sqlite

import (
	"context"

	"gorm.io/gorm"

	"lendingdesk/internal/catalog"
	"lendingdesk/internal/storage"
)

// BookRepository implements catalog.Repository.
type BookRepository struct {
	db *gorm.DB
}

func NewBookRepository(db *gorm.DB) *BookRepository {
	return &BookRepository{db: db}
}

func (r *BookRepository) FindByID(ctx context.Context, id int64) (*catalog.Book, error) {
	var m bookModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, wrap("find book", err)
	}
	return m.toDomain(), nil
}

func (r *BookRepository) FindAll(ctx context.Context) ([]*catalog.Book, error) {
	var models []bookModel
	if err := r.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		return nil, wrap("list books", err)
	}

	books := make([]*catalog.Book, 0, len(models))
	for i := range models {
		books = append(books, models[i].toDomain())
	}
	return books, nil
}

// Save inserts a book without an ID and updates one that has it.
func (r *BookRepository) Save(ctx context.Context, book *catalog.Book) error {
	m := fromBook(book)

	var err error
	if m.ID == 0 {
		err = r.db.WithContext(ctx).Create(m).Error
	} else {
		err = r.db.WithContext(ctx).Save(m).Error
	}
	if err != nil {
		return wrap("save book", err)
	}

	book.ID = m.ID
	return nil
}

// Delete removes a book that no loan refers to.
func (r *BookRepository) Delete(ctx context.Context, id int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var loans int64
		if err := tx.Model(&loanModel{}).Where("book_id = ?", id).Count(&loans).Error; err != nil {
			return err
		}
		if loans > 0 {
			return storage.ErrReferenced
		}

		res := tx.Delete(&bookModel{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return wrap("delete book", err)
	}
	return nil
}

func (r *BookRepository) AdjustAvailableUnits(ctx context.Context, id int64, delta int) (int, error) {
	var units int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&bookModel{}).
			Where("id = ? AND available_units + ? >= 0", id, delta).
			Update("available_units", gorm.Expr("available_units + ?", delta))
		if res.Error != nil {
			return res.Error
		}

		var m bookModel
		if err := tx.Select("available_units").First(&m, id).Error; err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return storage.ErrConflict
		}
		units = m.AvailableUnits
		return nil
	})
	if err != nil {
		return 0, wrap("adjust available units", err)
	}
	return units, nil
}
