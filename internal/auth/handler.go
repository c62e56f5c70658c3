// AngelaMos | 2026
// handler.go

package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/smartscreen-ai/gateway/internal/core"
	"github.com/smartscreen-ai/gateway/internal/middleware"
)

const maxBodyBytes = 1 << 20

type authService interface {
	Register(ctx context.Context, in RegisterInput) (*UserResponse, error)
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
}

type Handler struct {
	service   authService
	validator *validator.Validate
}

func NewHandler(service authService) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RouteLimits carries the per-route limiters applied to the public
// auth endpoints. Nil entries leave a route unlimited.
type RouteLimits struct {
	Register func(http.Handler) http.Handler
	Login    func(http.Handler) http.Handler
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	limits RouteLimits,
) {
	r.Route("/auth", func(r chi.Router) {
		r.With(orPassthrough(limits.Register)).Post("/register", h.Register)
		r.With(orPassthrough(limits.Login)).Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Get("/me", h.GetMe)
		})
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), req.Input())
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.Created(w, resp)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		core.Unauthorized(w, "not authenticated")
		return
	}

	core.OK(w, principal)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}

	return true
}

func orPassthrough(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if mw != nil {
		return mw
	}
	return func(next http.Handler) http.Handler { return next }
}

var _ middleware.PrincipalResolver = (*Service)(nil)
