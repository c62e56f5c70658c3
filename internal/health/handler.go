// AngelaMos | 2026
// handler.go

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/smartscreen-ai/gateway/internal/core"
)

const checkTimeout = 5 * time.Second

type Checker interface {
	Ping(ctx context.Context) error
}

type PoolReporter interface {
	Checker
	Status() core.PoolStatus
}

// Handler serves the probes. A nil redis checker means the gateway runs
// on the in-process rate limiter and redis is reported as disabled.
type Handler struct {
	pool     PoolReporter
	redis    Checker
	ready    atomic.Bool
	shutdown atomic.Bool
}

func NewHandler(pool PoolReporter, redis Checker) *Handler {
	h := &Handler{
		pool:  pool,
		redis: redis,
	}
	h.ready.Store(true)
	return h
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Liveness)
	r.Get("/livez", h.Liveness)
	r.Get("/readyz", h.Readiness)
}

func (h *Handler) Liveness(w http.ResponseWriter, _ *http.Request) {
	if h.shutdown.Load() {
		writeStatus(w, http.StatusServiceUnavailable, StatusResponse{Status: StatusShuttingDown})
		return
	}
	writeStatus(w, http.StatusOK, StatusResponse{Status: StatusOK})
}

func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	switch {
	case h.shutdown.Load():
		writeStatus(w, http.StatusServiceUnavailable, StatusResponse{Status: StatusShuttingDown})
		return
	case !h.ready.Load():
		writeStatus(w, http.StatusServiceUnavailable, StatusResponse{Status: StatusNotReady})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	resp := ReadinessResponse{
		Status: StatusOK,
		Checks: h.runChecks(ctx),
	}
	if h.pool != nil {
		status := h.pool.Status()
		resp.Pool = &status
	}

	code := http.StatusOK
	for _, c := range resp.Checks {
		if !c.Healthy {
			resp.Status = StatusDegraded
			code = http.StatusServiceUnavailable
			break
		}
	}

	writeStatus(w, code, resp)
}

func (h *Handler) runChecks(ctx context.Context) []HealthCheck {
	checks := make([]HealthCheck, 2)

	var g errgroup.Group
	g.Go(func() error {
		checks[0] = probe(ctx, "database", h.pool, false)
		return nil
	})
	g.Go(func() error {
		checks[1] = probe(ctx, "redis", h.redis, true)
		return nil
	})
	_ = g.Wait() //nolint:errcheck // probes record failures in their result

	return checks
}

func probe(ctx context.Context, name string, c Checker, optional bool) HealthCheck {
	check := HealthCheck{Name: name, Healthy: true}

	if c == nil {
		if optional {
			check.Message = "disabled"
			return check
		}
		check.Healthy = false
		check.Message = name + " checker not configured"
		return check
	}

	start := time.Now()
	err := c.Ping(ctx)
	check.Latency = time.Since(start).String()

	if err != nil {
		check.Healthy = false
		check.Message = "ping failed"
	}

	return check
}

func (h *Handler) SetReady(ready bool) {
	h.ready.Store(ready)
}

func (h *Handler) SetShutdown(shutdown bool) {
	h.shutdown.Store(shutdown)
}

func writeStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	//nolint:errcheck // best-effort response
	_ = json.NewEncoder(w).Encode(data)
}

const (
	StatusOK           = "ok"
	StatusDegraded     = "degraded"
	StatusNotReady     = "not_ready"
	StatusShuttingDown = "shutting_down"
)

type StatusResponse struct {
	Status string `json:"status"`
}

type ReadinessResponse struct {
	Status string           `json:"status"`
	Checks []HealthCheck    `json:"checks"`
	Pool   *core.PoolStatus `json:"pool,omitempty"`
}

type HealthCheck struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}
