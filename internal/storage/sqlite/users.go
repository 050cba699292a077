// internal/storage/sqlite/users.go
package sqlite

import (
	"context"

	"gorm.io/gorm"

	"lendingdesk/internal/membership"
	"lendingdesk/internal/storage"
)

// UserRepository implements membership.Repository.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*membership.User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, wrap("find user", err)
	}
	return m.toDomain(), nil
}

func (r *UserRepository) FindAll(ctx context.Context) ([]*membership.User, error) {
	var models []userModel
	if err := r.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		return nil, wrap("list users", err)
	}

	users := make([]*membership.User, 0, len(models))
	for i := range models {
		users = append(users, models[i].toDomain())
	}
	return users, nil
}

func (r *UserRepository) Save(ctx context.Context, user *membership.User) error {
	m := fromUser(user)

	var err error
	if m.ID == 0 {
		err = r.db.WithContext(ctx).Create(m).Error
	} else {
		err = r.db.WithContext(ctx).Save(m).Error
	}
	if err != nil {
		return wrap("save user", err)
	}

	user.ID = m.ID
	return nil
}

// Delete removes a user that no loan refers to.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var loans int64
		if err := tx.Model(&loanModel{}).Where("user_id = ?", id).Count(&loans).Error; err != nil {
			return err
		}
		if loans > 0 {
			return storage.ErrReferenced
		}

		res := tx.Delete(&userModel{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return wrap("delete user", err)
	}
	return nil
}
