package response

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendingdesk/internal/storage"
)

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusOf(fmt.Errorf("book %w", storage.ErrNotFound)))
	assert.Equal(t, http.StatusConflict, StatusOf(storage.ErrReferenced))
	assert.Equal(t, http.StatusConflict, StatusOf(storage.ErrConflict))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("boom")))
}

func TestFailHidesServerErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(rec, http.StatusInternalServerError, storage.Failure("select book", errors.New("connection reset")))

	var body Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, body.Success)
	assert.Equal(t, "Internal Server Error", body.Error)
}

func TestFailShowsClientErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(rec, http.StatusConflict, errors.New("book has no available units"))

	var body Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "book has no available units", body.Error)
}
