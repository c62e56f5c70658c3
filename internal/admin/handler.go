// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"runtime"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"

	"github.com/smartscreen-ai/gateway/internal/core"
	"github.com/smartscreen-ai/gateway/internal/user"
)

type Pool interface {
	core.Acquirer
	Ping(ctx context.Context) error
	Status() core.PoolStatus
}

type RedisStats interface {
	Ping(ctx context.Context) error
	PoolStats() core.RedisPoolStats
}

type Handler struct {
	pool      Pool
	repos     user.RepositoryFactory
	redis     RedisStats
	validator *validator.Validate
	logger    *slog.Logger
}

type HandlerConfig struct {
	Pool   Pool
	Repos  user.RepositoryFactory
	Redis  RedisStats
	Logger *slog.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		pool:      cfg.Pool,
		repos:     cfg.Repos,
		redis:     cfg.Redis,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats", h.GetSystemStats)
		r.Put("/users/{userID}/tier", h.UpdateTier)
		r.Post("/users/{userID}/credits", h.AdjustCredits)
	})
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := h.pool.Status()
	resp := SystemStatsResponse{
		Database: DatabaseStatus{
			Healthy: h.pool.Ping(ctx) == nil,
			Pool:    status,
		},
		Runtime: readRuntimeStats(),
	}

	if h.redis != nil {
		stats := h.redis.PoolStats()
		resp.Redis = RedisStatus{
			Enabled: true,
			Healthy: h.redis.Ping(ctx) == nil,
			Stats:   &stats,
		}
	}

	err := h.pool.Acquire(ctx, func(ctx context.Context, q core.DBTX) error {
		counts, err := h.repos(q).Count(ctx)
		if err != nil {
			return err
		}
		resp.Users = counts
		return nil
	})
	if err != nil {
		h.fail(w, r, "stats", err)
		return
	}

	core.OK(w, resp)
}

type UpdateTierRequest struct {
	Tier string `json:"tier" validate:"required,oneof=free pro enterprise"`
}

type AdjustCreditsRequest struct {
	Delta int `json:"delta" validate:"required"`
}

type CreditsResponse struct {
	UserID  int64 `json:"user_id"`
	Credits int   `json:"credits"`
}

func (h *Handler) UpdateTier(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	var req UpdateTierRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.pool.Acquire(r.Context(), func(ctx context.Context, q core.DBTX) error {
		return h.repos(q).UpdateTier(ctx, id, req.Tier)
	})
	if err != nil {
		h.fail(w, r, "update_tier", err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) AdjustCredits(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	var req AdjustCreditsRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Delta < math.MinInt32 || req.Delta > math.MaxInt32 {
		core.JSONError(w, core.ValidationError("delta out of range"))
		return
	}

	var balance int
	err := h.pool.Acquire(r.Context(), func(ctx context.Context, q core.DBTX) error {
		var err error
		balance, err = h.repos(q).AdjustCredits(ctx, id, req.Delta)
		return err
	})
	if err != nil {
		h.fail(w, r, "adjust_credits", err)
		return
	}

	core.OK(w, CreditsResponse{UserID: id, Credits: balance})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "user")
	case errors.Is(err, core.ErrInvalidInput):
		core.JSONError(w, core.ValidationError("credit balance cannot go negative"))
	case errors.Is(err, core.ErrPoolTimeout):
		core.JSONError(w, core.PoolExhaustedError())
	default:
		wrapped := oops.
			In("admin").
			Code("ADMIN_"+strings.ToUpper(op)).
			With("operation", op).
			Wrap(err)
		core.LogError(r.Context(), h.logger, "admin operation failed", wrapped)
		core.JSONError(w, core.InternalError())
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}
	return true
}

func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		core.BadRequest(w, "invalid user id")
		return 0, false
	}
	return id, true
}

func readRuntimeStats() RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     mem.Alloc,
		MemSys:       mem.Sys,
		NumGC:        mem.NumGC,
	}
}

type SystemStatsResponse struct {
	Database DatabaseStatus `json:"database"`
	Redis    RedisStatus    `json:"redis"`
	Users    *user.Counts   `json:"users"`
	Runtime  RuntimeStats   `json:"runtime"`
}

type DatabaseStatus struct {
	Healthy bool            `json:"healthy"`
	Pool    core.PoolStatus `json:"pool"`
}

type RedisStatus struct {
	Enabled bool                 `json:"enabled"`
	Healthy bool                 `json:"healthy"`
	Stats   *core.RedisPoolStats `json:"stats,omitempty"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
	MemSys       uint64 `json:"mem_sys_bytes"`
	NumGC        uint32 `json:"num_gc"`
}
