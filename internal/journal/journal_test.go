package journal_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendingdesk/internal/journal"
	"lendingdesk/internal/storage/sqlite"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newJournal(t *testing.T) *journal.Journal {
	t.Helper()

	gdb, err := sqlite.Open(sqlite.MemoryDSN)
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	j := journal.New(sqlx.NewDb(sqlDB, "sqlite3"))
	require.NoError(t, j.EnsureSchema(context.Background()))
	return j
}

type payload struct {
	BookID int64 `json:"book_id"`
}

func TestAppendAndLoad(t *testing.T) {
	ctx := context.Background()
	j := newJournal(t)

	require.NoError(t, j.Append(ctx, 7, 0, journal.LoanCreated, payload{BookID: 3}))
	require.NoError(t, j.Append(ctx, 7, 1, journal.LoanReturned, payload{BookID: 3}))
	require.NoError(t, j.Append(ctx, 8, 0, journal.LoanCreated, payload{BookID: 4}))

	events, err := j.Load(ctx, 7)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, journal.LoanCreated, events[0].EventType)
	assert.Equal(t, 1, events[0].Version)
	assert.Equal(t, journal.LoanReturned, events[1].EventType)
	assert.Equal(t, 2, events[1].Version)
	assert.NotEqual(t, events[0].ID, events[1].ID)

	var p payload
	require.NoError(t, json.Unmarshal(events[1].EventData, &p))
	assert.Equal(t, int64(3), p.BookID)

	version, err := j.CurrentVersion(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	version, err = j.CurrentVersion(ctx, 99)
	require.NoError(t, err)
	assert.Zero(t, version)
}

func TestAppendRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	j := newJournal(t)

	require.NoError(t, j.Append(ctx, 1, 0, journal.LoanCreated, payload{}))

	err := j.Append(ctx, 1, 0, journal.LoanCreated, payload{})
	assert.ErrorIs(t, err, journal.ErrConcurrencyConflict)

	err = j.Append(ctx, 1, -1, journal.LoanReturned, payload{})
	assert.ErrorIs(t, err, journal.ErrInvalidVersion)
}

func TestConcurrentAppendsOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	j := newJournal(t)
	require.NoError(t, j.Append(ctx, 5, 0, journal.LoanCreated, payload{}))

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := j.Append(ctx, 5, 1, journal.LoanReturned, payload{}); err == nil {
				succeeded.Add(1)
			} else {
				assert.ErrorIs(t, err, journal.ErrConcurrencyConflict)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	events, err := j.Load(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}
