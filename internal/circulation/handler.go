// internal/circulation/handler.go
package circulation

import (
	"errors"
	"net/http"

	"lendingdesk/internal/catalog"
	"lendingdesk/internal/pkg/response"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) HandleListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.ListLoans(r.Context())
	if err != nil {
		response.Fail(w, statusOf(err), err)
		return
	}

	response.Success(w, "", loans)
}

func (h *Handler) HandleListActive(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.ListActiveLoans(r.Context())
	if err != nil {
		response.Fail(w, statusOf(err), err)
		return
	}

	response.Success(w, "", loans)
}

func (h *Handler) HandleActiveForUser(w http.ResponseWriter, r *http.Request) {
	userID, err := response.IDParam(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	loans, err := h.service.FindActiveLoansForUser(r.Context(), userID)
	if err != nil {
		response.Fail(w, statusOf(err), err)
		return
	}

	response.Success(w, "", loans)
}

func (h *Handler) HandleCreateLoan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID int64 `json:"user_id"`
		BookID int64 `json:"book_id"`
	}

	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	loan, err := h.service.CreateLoan(r.Context(), req.UserID, req.BookID)
	if err != nil {
		response.Fail(w, statusOf(err), err)
		return
	}

	response.Created(w, "loan created", loan)
}

func (h *Handler) HandleGetLoan(w http.ResponseWriter, r *http.Request) {
	id, err := response.IDParam(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	loan, err := h.service.GetLoan(r.Context(), id)
	if err != nil {
		response.Fail(w, statusOf(err), err)
		return
	}

	response.Success(w, "", loan)
}

func (h *Handler) HandleReturnLoan(w http.ResponseWriter, r *http.Request) {
	id, err := response.IDParam(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if err := h.service.ReturnLoan(r.Context(), id); err != nil {
		response.Fail(w, statusOf(err), err)
		return
	}

	response.Success(w, "loan returned", nil)
}

func (h *Handler) HandleDeleteLoan(w http.ResponseWriter, r *http.Request) {
	id, err := response.IDParam(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if err := h.service.DeleteLoan(r.Context(), id); err != nil {
		response.Fail(w, statusOf(err), err)
		return
	}

	response.Success(w, "loan deleted", nil)
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := response.IDParam(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	events, err := h.service.History(r.Context(), id)
	if err != nil {
		response.Fail(w, statusOf(err), err)
		return
	}

	response.Success(w, "", events)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrLoanLimitExceeded),
		errors.Is(err, ErrAlreadyReturned),
		errors.Is(err, ErrLoanActive),
		errors.Is(err, catalog.ErrOutOfStock):
		return http.StatusConflict
	default:
		return response.StatusOf(err)
	}
}
