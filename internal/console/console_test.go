package console_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendingdesk/internal/app"
	"lendingdesk/internal/console"
	"lendingdesk/internal/storage/sqlite"
)

func newLibrary(t *testing.T) *app.Library {
	t.Helper()

	db, err := sqlite.Open(sqlite.MemoryDSN)
	require.NoError(t, err)
	lib, err := app.NewSQLite(context.Background(), db, app.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { lib.Close() })
	return lib
}

func TestConsoleSession(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t)

	book, err := lib.Catalog.AddBook(ctx, "Rayuela", "Cortázar", nil, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), book.ID)

	input := strings.Join([]string{
		"4", "Ana", "ana@example.com", // register user 1
		"8", "1", "1", // lend book 1 to user 1
		"8", "1", "1", // out of stock
		"11",
		"9", "1", // return loan 1
		"10",
		"13",
		"99",
		"14",
	}, "\n") + "\n"

	var out bytes.Buffer
	require.NoError(t, console.New(lib, strings.NewReader(input), &out).Run(ctx))

	text := out.String()
	assert.Contains(t, text, "Registered user 1")
	assert.Contains(t, text, "Created loan 1")
	assert.Contains(t, text, "Error: book has no available units")
	assert.Contains(t, text, "Total available units: 0")
	assert.Contains(t, text, "Returned loan 1")
	assert.Contains(t, text, "Most borrowed book: Rayuela by Cortázar (1 loans)")
	assert.Contains(t, text, "Average loans per borrower: 1.00")
	assert.Contains(t, text, `Unknown option "99"`)

	total, err := lib.Stats.TotalAvailableUnits(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestConsoleStopsAtEndOfInput(t *testing.T) {
	lib := newLibrary(t)

	var out bytes.Buffer
	err := console.New(lib, strings.NewReader("1\n4\nBob\n"), &out).Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "14. Exit")
}
