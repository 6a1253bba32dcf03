// AngelaMos | 2026
// handler.go

package message

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"github.com/carterperez-dev/course-portal/internal/core"
	"github.com/carterperez-dev/course-portal/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
	upgrader  websocket.Upgrader
}

func NewHandler(service *Service, allowedOrigins []string) *Handler {
	return &Handler{
		service:   service,
		validator: core.NewValidator(),
		upgrader:  newUpgrader(allowedOrigins),
	}
}

// RegisterRoutes mounts the message endpoints. sendLimiter throttles
// POST /message/send per caller.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly, sendLimiter func(http.Handler) http.Handler,
) {
	r.Route("/message", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/user-messages", h.UserMessages)
		r.Get("/stream", h.Stream)
		r.With(sendLimiter).Post("/send", h.Send)

		r.Group(func(r chi.Router) {
			r.Use(adminOnly)
			r.Get("/conversation", h.Conversation)
			r.Get("/messaged-users", h.MessagedUsers)
		})
	})
}

// Conversation lets an admin read the thread of any user.
func (h *Handler) Conversation(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		core.BadRequest(w, "userId is required")
		return
	}

	msgs, err := h.service.Conversation(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToMessageResponseList(msgs))
}

func (h *Handler) UserMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.service.Conversation(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToMessageResponseList(msgs))
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	msg, err := h.service.Send(r.Context(), middleware.GetClaims(r.Context()), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, ToMessageResponse(msg))
}

func (h *Handler) MessagedUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.MessagedUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToMessagedUserResponseList(users))
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmptyContent),
		errors.Is(err, ErrContentTooLong),
		errors.Is(err, ErrNoReceiver),
		errors.Is(err, ErrSelfMessage),
		errors.Is(err, ErrReceiverNotAdmin),
		errors.Is(err, ErrReceiverIsAdmin),
		errors.Is(err, ErrNotDesignated):
		core.BadRequest(w, err.Error())
	case errors.Is(err, ErrNoAdmin):
		core.NotFound(w, "admin")
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, "invalid userId")
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "user")
	default:
		core.HandleError(w, err)
	}
}
