package stats_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendingdesk/internal/catalog"
	"lendingdesk/internal/circulation"
	"lendingdesk/internal/membership"
	"lendingdesk/internal/stats"
	"lendingdesk/internal/storage/sqlite"
)

type fixture struct {
	books *sqlite.BookRepository
	users *sqlite.UserRepository
	loans *sqlite.LoanRepository
	stats stats.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlite.Open(sqlite.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	f := &fixture{
		books: sqlite.NewBookRepository(db),
		users: sqlite.NewUserRepository(db),
		loans: sqlite.NewLoanRepository(db),
	}
	ledger := catalog.NewLedger(f.books)
	f.stats = stats.NewService(
		catalog.NewService(f.books),
		membership.NewService(f.users, 0),
		circulation.NewService(f.loans, f.users, ledger),
	)
	return f
}

func (f *fixture) book(t *testing.T, title string, units int) *catalog.Book {
	book := &catalog.Book{Title: title, Author: "Anon", AvailableUnits: units}
	require.NoError(t, f.books.Save(context.Background(), book))
	return book
}

func (f *fixture) user(t *testing.T, name string) *membership.User {
	user := &membership.User{Name: name, Email: name + "@example.com"}
	require.NoError(t, f.users.Save(context.Background(), user))
	return user
}

// loan stores a loan directly, returned or not, without touching stock.
func (f *fixture) loan(t *testing.T, userID, bookID int64, returned bool) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	loan := &circulation.Loan{UserID: userID, BookID: bookID, LoanDate: day}
	if returned {
		loan.ReturnDate = &day
	}
	require.NoError(t, f.loans.Save(context.Background(), loan))
}

func TestMostBorrowedBook(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.stats.MostBorrowedBook(ctx)
	assert.ErrorIs(t, err, stats.ErrNoBooksFound)

	first := f.book(t, "first", 1)
	second := f.book(t, "second", 1)
	user := f.user(t, "ana")

	result, err := f.stats.MostBorrowedBook(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, result.Book.ID)
	assert.Zero(t, result.Loans)

	f.loan(t, user.ID, first.ID, false)
	f.loan(t, user.ID, first.ID, true)
	f.loan(t, user.ID, second.ID, false)

	result, err = f.stats.MostBorrowedBook(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, result.Book.ID)
	assert.Equal(t, 2, result.Loans)
}

func TestMostBorrowedBookTieGoesToFirstListed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first := f.book(t, "first", 1)
	second := f.book(t, "second", 1)
	user := f.user(t, "ana")
	f.loan(t, user.ID, second.ID, false)
	f.loan(t, user.ID, first.ID, false)

	result, err := f.stats.MostBorrowedBook(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, result.Book.ID)
}

func TestTopBorrower(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.stats.TopBorrower(ctx)
	assert.ErrorIs(t, err, stats.ErrNoUsersFound)

	ana := f.user(t, "ana")
	luis := f.user(t, "luis")
	book := f.book(t, "book", 1)
	f.loan(t, ana.ID, book.ID, true)
	f.loan(t, luis.ID, book.ID, true)
	f.loan(t, luis.ID, book.ID, false)

	result, err := f.stats.TopBorrower(ctx)
	require.NoError(t, err)
	assert.Equal(t, luis.ID, result.User.ID)
	assert.Equal(t, 2, result.Loans)
}

func TestTotalAvailableUnits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	total, err := f.stats.TotalAvailableUnits(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)

	f.book(t, "a", 3)
	f.book(t, "b", 0)
	f.book(t, "c", 4)

	total, err = f.stats.TotalAvailableUnits(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
}

func TestAverageActiveLoansPerBorrower(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	avg, err := f.stats.AverageActiveLoansPerBorrower(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, avg)

	u1 := f.user(t, "u1")
	u2 := f.user(t, "u2")
	f.user(t, "u3")
	book := f.book(t, "book", 1)
	f.loan(t, u1.ID, book.ID, false)
	f.loan(t, u1.ID, book.ID, true)
	f.loan(t, u1.ID, book.ID, true)
	f.loan(t, u2.ID, book.ID, false)

	avg, err = f.stats.AverageActiveLoansPerBorrower(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.0, avg)
}

func TestUsersWithActiveLoans(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ana := f.user(t, "ana")
	luis := f.user(t, "luis")
	eva := f.user(t, "eva")
	book := f.book(t, "book", 1)
	f.loan(t, eva.ID, book.ID, false)
	f.loan(t, luis.ID, book.ID, true)
	f.loan(t, ana.ID, book.ID, false)

	users, err := f.stats.UsersWithActiveLoans(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, ana.ID, users[0].ID)
	assert.Equal(t, eva.ID, users[1].ID)
}
