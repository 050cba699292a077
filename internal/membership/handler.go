// internal/membership/handler.go
package membership

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

func (h *Handler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		response.Fail(w, statusOf(err), err)
		return
	}

	response.Success(w, "", users)
}

func (h *Handler) HandleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	user, err := h.service.RegisterUser(r.Context(), req.Name, req.Email)
	if err != nil {
		response.Fail(w, statusOf(err), err)
		return
	}

	response.Created(w, "user registered", user)
}

func (h *Handler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := response.IDParam(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		response.Fail(w, statusOf(err), err)
		return
	}

	response.Success(w, "", user)
}

func (h *Handler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := response.IDParam(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		response.Fail(w, statusOf(err), err)
		return
	}

	response.Success(w, "user deleted", nil)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrInvalidUser):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return response.StatusOf(err)
	}
}
