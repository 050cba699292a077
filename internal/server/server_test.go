package server_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendingdesk/internal/app"
	"lendingdesk/internal/catalog"
	"lendingdesk/internal/circulation"
	"lendingdesk/internal/membership"
	"lendingdesk/internal/server"
	"lendingdesk/internal/storage/sqlite"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type envelope struct {
	Success bool                `json:"success"`
	Data    jsoniter.RawMessage `json:"data"`
	Error   string              `json:"error"`
}

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()

	db, err := sqlite.Open(sqlite.MemoryDSN)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	lib, err := app.NewSQLite(context.Background(), db, app.Options{Logger: logger})
	require.NoError(t, err)

	srv := httptest.NewServer(server.NewRouter(lib, logger))
	t.Cleanup(func() {
		srv.Close()
		lib.Close()
	})
	return srv
}

func call(t *testing.T, method, url string, body interface{}, out interface{}) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	if out != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return resp.StatusCode
}

func TestLoanFlow(t *testing.T) {
	srv := setupServer(t)

	// Register a new user
	var user membership.User
	status := call(t, http.MethodPost, srv.URL+"/users", map[string]string{"name": "Test User", "email": "test@example.com"}, &user)
	require.Equal(t, http.StatusCreated, status)

	// Add a new book
	var book catalog.Book
	status = call(t, http.MethodPost, srv.URL+"/books", map[string]interface{}{"title": "Pride and Prejudice", "author": "Jane Austen", "available_units": 5}, &book)
	require.Equal(t, http.StatusCreated, status)

	// Lend the book
	var loan circulation.Loan
	status = call(t, http.MethodPost, srv.URL+"/loans", map[string]int64{"user_id": user.ID, "book_id": book.ID}, &loan)
	require.Equal(t, http.StatusCreated, status)

	// Verify book availability
	var updated catalog.Book
	status = call(t, http.MethodGet, fmt.Sprintf("%s/books/%d", srv.URL, book.ID), nil, &updated)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 4, updated.AvailableUnits)

	var borrowers []membership.User
	status = call(t, http.MethodGet, srv.URL+"/users/active-loans", nil, &borrowers)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, borrowers, 1)
	assert.Equal(t, user.ID, borrowers[0].ID)

	var active []circulation.Loan
	status = call(t, http.MethodGet, fmt.Sprintf("%s/users/%d/loans/active", srv.URL, user.ID), nil, &active)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, active, 1)

	// Referenced rows cannot be deleted
	assert.Equal(t, http.StatusConflict, call(t, http.MethodDelete, fmt.Sprintf("%s/users/%d", srv.URL, user.ID), nil, nil))
	assert.Equal(t, http.StatusConflict, call(t, http.MethodDelete, fmt.Sprintf("%s/loans/%d", srv.URL, loan.ID), nil, nil))

	// Return the book
	returnURL := fmt.Sprintf("%s/loans/%d/return", srv.URL, loan.ID)
	require.Equal(t, http.StatusOK, call(t, http.MethodPost, returnURL, nil, nil))
	assert.Equal(t, http.StatusConflict, call(t, http.MethodPost, returnURL, nil, nil))

	status = call(t, http.MethodGet, fmt.Sprintf("%s/books/%d", srv.URL, book.ID), nil, &updated)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 5, updated.AvailableUnits)

	var history []struct {
		EventType string `json:"event_type"`
		Version   int    `json:"version"`
	}
	status = call(t, http.MethodGet, fmt.Sprintf("%s/loans/%d/history", srv.URL, loan.ID), nil, &history)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, history, 2)
	assert.Equal(t, "LoanReturned", history[1].EventType)

	var avg map[string]float64
	status = call(t, http.MethodGet, srv.URL+"/stats/average-loans", nil, &avg)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, avg["average_loans"])

	var top struct {
		Book  catalog.Book `json:"book"`
		Loans int          `json:"loans"`
	}
	status = call(t, http.MethodGet, srv.URL+"/stats/most-borrowed-book", nil, &top)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, book.ID, top.Book.ID)
	assert.Equal(t, 1, top.Loans)

	require.Equal(t, http.StatusOK, call(t, http.MethodDelete, fmt.Sprintf("%s/loans/%d", srv.URL, loan.ID), nil, nil))
	require.Equal(t, http.StatusOK, call(t, http.MethodDelete, fmt.Sprintf("%s/users/%d", srv.URL, user.ID), nil, nil))
}

func TestErrorStatuses(t *testing.T) {
	srv := setupServer(t)

	assert.Equal(t, http.StatusNotFound, call(t, http.MethodGet, srv.URL+"/books/42", nil, nil))
	assert.Equal(t, http.StatusNotFound, call(t, http.MethodGet, srv.URL+"/users/42", nil, nil))
	assert.Equal(t, http.StatusNotFound, call(t, http.MethodPost, srv.URL+"/loans/42/return", nil, nil))
	assert.Equal(t, http.StatusBadRequest, call(t, http.MethodGet, srv.URL+"/loans/abc", nil, nil))
	assert.Equal(t, http.StatusBadRequest, call(t, http.MethodPost, srv.URL+"/users", map[string]string{"name": "x", "email": "nope"}, nil))
	assert.Equal(t, http.StatusNotFound, call(t, http.MethodGet, srv.URL+"/stats/top-borrower", nil, nil))
	assert.Equal(t, http.StatusNotFound, call(t, http.MethodPost, srv.URL+"/loans", map[string]int64{"user_id": 1, "book_id": 1}, nil))
	assert.Equal(t, http.StatusOK, call(t, http.MethodGet, srv.URL+"/health", nil, nil))

	var book catalog.Book
	require.Equal(t, http.StatusCreated, call(t, http.MethodPost, srv.URL+"/books", map[string]interface{}{"title": "Empty", "available_units": 0}, &book))
	var user membership.User
	require.Equal(t, http.StatusCreated, call(t, http.MethodPost, srv.URL+"/users", map[string]string{"name": "Ana", "email": "ana@example.com"}, &user))
	assert.Equal(t, http.StatusConflict, call(t, http.MethodPost, srv.URL+"/loans", map[string]int64{"user_id": user.ID, "book_id": book.ID}, nil))
}

func TestConcurrentLoansPreventDoubleBooking(t *testing.T) {
	srv := setupServer(t)

	// Add a new book with 1 unit
	var book catalog.Book
	status := call(t, http.MethodPost, srv.URL+"/books", map[string]interface{}{"title": "The Great Gatsby", "author": "F. Scott Fitzgerald", "available_units": 1}, &book)
	require.Equal(t, http.StatusCreated, status)

	// Register multiple users
	var users []membership.User
	for i := 0; i < 10; i++ {
		var user membership.User
		status := call(t, http.MethodPost, srv.URL+"/users", map[string]string{"name": fmt.Sprintf("User %d", i), "email": fmt.Sprintf("user%d@test.com", i)}, &user)
		require.Equal(t, http.StatusCreated, status)
		users = append(users, user)
	}

	// Attempt concurrent loans
	var wg sync.WaitGroup
	successCount := 0
	var mu sync.Mutex

	for _, user := range users {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			body, _ := json.Marshal(map[string]int64{"user_id": userID, "book_id": book.ID})
			resp, err := http.Post(srv.URL+"/loans", "application/json", bytes.NewReader(body))
			if err != nil {
				return
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusCreated {
				mu.Lock()
				successCount++
				mu.Unlock()
			}
		}(user.ID)
	}

	wg.Wait()

	assert.Equal(t, 1, successCount, "Only one concurrent loan should succeed")

	var updated catalog.Book
	status = call(t, http.MethodGet, fmt.Sprintf("%s/books/%d", srv.URL, book.ID), nil, &updated)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, updated.AvailableUnits)
}
