// internal/membership/implementation.go
package membership

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"lendingdesk/internal/storage"
)

// service implements the Service interface.
type service struct {
	repo        Repository
	rateLimiter *rate.Limiter
}

// NewService creates a new membership service instance. Registrations are
// limited to perMinute per minute; zero or less disables the limit.
func NewService(repo Repository, perMinute int) Service {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if perMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}

	return &service{
		repo:        repo,
		rateLimiter: limiter,
	}
}

// RegisterUser creates a new user. Emails are not required to be unique.
func (s *service) RegisterUser(ctx context.Context, name, email string) (*User, error) {
	if !s.rateLimiter.Allow() {
		return nil, ErrRateLimited
	}

	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidUser)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email %q is not valid", ErrInvalidUser, email)
	}

	user := &User{
		Name:  name,
		Email: email,
	}
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	return user, nil
}

// GetUser retrieves a user by their ID.
func (s *service) GetUser(ctx context.Context, id int64) (*User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return user, nil
}

// ListUsers returns every user in listing order.
func (s *service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.repo.FindAll(ctx)
}

// DeleteUser removes a user that has no loans on record.
func (s *service) DeleteUser(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	return nil
}
