// internal/membership/domain.go
package membership

import (
	"errors"
	"fmt"

	"lendingdesk/internal/storage"
)

// User represents a library member who can borrow books.
type User struct {
	ID    int64  `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`
}

var (
	ErrUserNotFound = fmt.Errorf("user %w", storage.ErrNotFound)
	ErrInvalidUser  = errors.New("invalid user")
	ErrRateLimited  = errors.New("rate limit exceeded")
)
