package membership_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendingdesk/internal/catalog"
	"lendingdesk/internal/circulation"
	"lendingdesk/internal/membership"
	"lendingdesk/internal/storage"
	"lendingdesk/internal/storage/sqlite"
)

func TestRegisterUser(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(sqlite.MemoryDSN)
	require.NoError(t, err)
	svc := membership.NewService(sqlite.NewUserRepository(db), 0)

	user, err := svc.RegisterUser(ctx, " Ana ", "ana@example.com")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "Ana", user.Name)

	twin, err := svc.RegisterUser(ctx, "Ana Twin", "ana@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, user.ID, twin.ID)

	_, err = svc.RegisterUser(ctx, "", "nobody@example.com")
	assert.ErrorIs(t, err, membership.ErrInvalidUser)

	_, err = svc.RegisterUser(ctx, "Nobody", "not-an-email")
	assert.ErrorIs(t, err, membership.ErrInvalidUser)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, user.ID, users[0].ID)
}

func TestRegisterUserRateLimit(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(sqlite.MemoryDSN)
	require.NoError(t, err)
	svc := membership.NewService(sqlite.NewUserRepository(db), 2)

	for i := 0; i < 2; i++ {
		_, err := svc.RegisterUser(ctx, "Ana", "ana@example.com")
		require.NoError(t, err)
	}

	_, err = svc.RegisterUser(ctx, "Ana", "ana@example.com")
	assert.ErrorIs(t, err, membership.ErrRateLimited)
}

func TestDeleteUser(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(sqlite.MemoryDSN)
	require.NoError(t, err)
	svc := membership.NewService(sqlite.NewUserRepository(db), 0)
	loans := sqlite.NewLoanRepository(db)
	book := &catalog.Book{Title: "Pedro Páramo", Author: "Rulfo", AvailableUnits: 1}
	require.NoError(t, sqlite.NewBookRepository(db).Save(ctx, book))

	free, err := svc.RegisterUser(ctx, "Free", "free@example.com")
	require.NoError(t, err)
	borrower, err := svc.RegisterUser(ctx, "Borrower", "borrower@example.com")
	require.NoError(t, err)
	require.NoError(t, loans.Save(ctx, &circulation.Loan{UserID: borrower.ID, BookID: book.ID}))

	require.NoError(t, svc.DeleteUser(ctx, free.ID))
	_, err = svc.GetUser(ctx, free.ID)
	assert.ErrorIs(t, err, membership.ErrUserNotFound)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, svc.DeleteUser(ctx, borrower.ID), storage.ErrReferenced)
	assert.ErrorIs(t, svc.DeleteUser(ctx, free.ID), membership.ErrUserNotFound)
}
