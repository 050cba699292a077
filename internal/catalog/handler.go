// internal/catalog/handler.go
package catalog

import (
	"errors"
	"net/http"

	"lendingdesk/internal/pkg/response"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) HandleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.ListBooks(r.Context())
	if err != nil {
		response.Fail(w, statusOf(err), err)
		return
	}

	response.Success(w, "", books)
}

func (h *Handler) HandleListAvailable(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.ListAvailableBooks(r.Context())
	if err != nil {
		response.Fail(w, statusOf(err), err)
		return
	}

	response.Success(w, "", books)
}

func (h *Handler) HandleAddBook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title           string `json:"title"`
		Author          string `json:"author"`
		PublicationYear *int   `json:"publication_year"`
		AvailableUnits  int    `json:"available_units"`
	}

	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	book, err := h.service.AddBook(r.Context(), req.Title, req.Author, req.PublicationYear, req.AvailableUnits)
	if err != nil {
		response.Fail(w, statusOf(err), err)
		return
	}

	response.Created(w, "book added", book)
}

func (h *Handler) HandleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := response.IDParam(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		response.Fail(w, statusOf(err), err)
		return
	}

	response.Success(w, "", book)
}

func (h *Handler) HandleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := response.IDParam(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if err := h.service.DeleteBook(r.Context(), id); err != nil {
		response.Fail(w, statusOf(err), err)
		return
	}

	response.Success(w, "book deleted", nil)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrInvalidBook):
		return http.StatusBadRequest
	case errors.Is(err, ErrOutOfStock):
		return http.StatusConflict
	default:
		return response.StatusOf(err)
	}
}
