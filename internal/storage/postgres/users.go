// internal/storage/postgres/users.go
package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"lendingdesk/internal/membership"
)

// UserRepository implements membership.Repository.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*membership.User, error) {
	var user membership.User
	err := r.db.GetContext(ctx, &user, `SELECT id, name, email FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, wrap("find user", err)
	}
	return &user, nil
}

func (r *UserRepository) FindAll(ctx context.Context) ([]*membership.User, error) {
	users := []*membership.User{}
	if err := r.db.SelectContext(ctx, &users, `SELECT id, name, email FROM users ORDER BY id`); err != nil {
		return nil, wrap("list users", err)
	}
	return users, nil
}

func (r *UserRepository) Save(ctx context.Context, user *membership.User) error {
	if user.ID == 0 {
		err := r.db.QueryRowxContext(ctx, `
			INSERT INTO users (name, email)
			VALUES ($1, $2)
			RETURNING id
		`, user.Name, user.Email).Scan(&user.ID)
		if err != nil {
			return wrap("insert user", err)
		}
		return nil
	}

	res, err := r.db.ExecContext(ctx, `UPDATE users SET name = $2, email = $3 WHERE id = $1`,
		user.ID, user.Name, user.Email)
	if err != nil {
		return wrap("update user", err)
	}
	return affected("update user", res)
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return wrap("delete user", err)
	}
	return affected("delete user", res)
}
