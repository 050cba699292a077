// internal/catalog/domain.go
package catalog

import (
	"errors"
	"fmt"

	"lendingdesk/internal/storage"
)

// Book is a title held by the library. AvailableUnits is the number of
// copies on the shelf; it is decremented once per active loan and
// incremented once per return.
type Book struct {
	ID              int64  `json:"id" db:"id"`
	Title           string `json:"title" db:"title"`
	Author          string `json:"author" db:"author"`
	PublicationYear *int   `json:"publication_year,omitempty" db:"publication_year"`
	AvailableUnits  int    `json:"available_units" db:"available_units"`
}

var (
	ErrBookNotFound = fmt.Errorf("book %w", storage.ErrNotFound)
	ErrOutOfStock   = errors.New("book has no available units")
	ErrInvalidBook  = errors.New("invalid book")
)
