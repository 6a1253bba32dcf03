// AngelaMos | 2026
// handler.go

package application

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/course-portal/internal/core"
	"github.com/carterperez-dev/course-portal/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: core.NewValidator(),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/applications", h.List)
		r.Post("/applications", h.Apply)
		r.Post("/apply", h.Apply)

		r.With(adminOnly).Put("/users/approve", h.Approve)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	apps, err := h.service.List(
		r.Context(),
		middleware.GetClaims(r.Context()),
		r.URL.Query().Get("email"),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToApplicationResponseList(apps))
}

func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	app, err := h.service.Apply(r.Context(), middleware.GetClaims(r.Context()), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, ToApplicationResponse(app))
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	approval, err := h.service.Approve(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ApproveResponse{
		Success: true,
		Email:   approval.Email,
		Removed: approval.Removed,
	})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "user")
	case errors.Is(err, ErrForeignEmail):
		core.Forbidden(w, ErrForeignEmail.Error())
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, "name, phone and message are required")
	default:
		core.HandleError(w, err)
	}
}
