// internal/stats/handler.go
package stats

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

func (h *Handler) HandleMostBorrowedBook(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.MostBorrowedBook(r.Context())
	if err != nil {
		response.Fail(w, statusOf(err), err)
		return
	}

	response.Success(w, "", result)
}

func (h *Handler) HandleTopBorrower(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.TopBorrower(r.Context())
	if err != nil {
		response.Fail(w, statusOf(err), err)
		return
	}

	response.Success(w, "", result)
}

func (h *Handler) HandleAvailableUnits(w http.ResponseWriter, r *http.Request) {
	total, err := h.service.TotalAvailableUnits(r.Context())
	if err != nil {
		response.Fail(w, statusOf(err), err)
		return
	}

	response.Success(w, "", map[string]int{"available_units": total})
}

func (h *Handler) HandleAverageLoans(w http.ResponseWriter, r *http.Request) {
	avg, err := h.service.AverageActiveLoansPerBorrower(r.Context())
	if err != nil {
		response.Fail(w, statusOf(err), err)
		return
	}

	response.Success(w, "", map[string]float64{"average_loans": avg})
}

func (h *Handler) HandleUsersWithActiveLoans(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.UsersWithActiveLoans(r.Context())
	if err != nil {
		response.Fail(w, statusOf(err), err)
		return
	}

	response.Success(w, "", users)
}

func statusOf(err error) int {
	if errors.Is(err, ErrNoBooksFound) || errors.Is(err, ErrNoUsersFound) {
		return http.StatusNotFound
	}
	return response.StatusOf(err)
}
