// AngelaMos | 2026
// handler.go

package course

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
	optionalAuth, authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/class", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/all", h.List)
			r.Get("/{classID}", h.Get)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Use(adminOnly)
			r.Post("/create", h.Create)
			r.Patch("/update/{classID}", h.Update)
			r.Delete("/delete/{classID}", h.Delete)
		})
	})
}

// List is the dashboard feed: newest first, premium classes only for
// premium members and admins.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	classes, err := h.service.List(r.Context(), middleware.IsPremium(r.Context()))
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToClassResponseList(classes))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	class, err := h.service.Get(
		r.Context(),
		chi.URLParam(r, "classID"),
		middleware.IsPremium(r.Context()),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToClassResponse(class))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateClassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	class, err := h.service.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, ToClassResponse(class))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateClassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	class, err := h.service.Update(r.Context(), chi.URLParam(r, "classID"), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToClassResponse(class))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "classID")); err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, MessageResponse{Message: "Class deleted successfully"})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "class")
	case errors.Is(err, ErrPremiumRequired):
		core.Forbidden(w, ErrPremiumRequired.Error())
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, "title and description are required")
	default:
		core.HandleError(w, err)
	}
}
