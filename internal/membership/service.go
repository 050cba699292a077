// internal/membership/service.go
package membership

import (
	"context"
)

// Service defines the interface for the membership service.
type Service interface {
	RegisterUser(ctx context.Context, name, email string) (*User, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// Repository is the persistence port for users. FindAll returns users in
// ascending id order.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*User, error)
	FindAll(ctx context.Context) ([]*User, error)
	Save(ctx context.Context, user *User) error
	Delete(ctx context.Context, id int64) error
}
