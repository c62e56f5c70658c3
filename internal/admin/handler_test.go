// AngelaMos | 2026
// handler_test.go

package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartscreen-ai/gateway/internal/config"
	"github.com/smartscreen-ai/gateway/internal/core"
	"github.com/smartscreen-ai/gateway/internal/middleware"
	"github.com/smartscreen-ai/gateway/internal/user"
)

type fakeRedis struct {
	err error
}

func (f *fakeRedis) Ping(context.Context) error { return f.err }

func (f *fakeRedis) PoolStats() core.RedisPoolStats {
	return core.RedisPoolStats{Hits: 9, TotalConns: 3, IdleConns: 2}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *core.ErrorBody `json:"error"`
}

func asOps(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := &user.Principal{ID: 1, Email: "ops@example.com", Tier: user.TierEnterprise}
		next.ServeHTTP(w, r.WithContext(middleware.WithPrincipal(r.Context(), p)))
	})
}

func newTestAdmin(t *testing.T, redis RedisStats) (http.Handler, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	pool := core.NewPoolFromDB(sqlx.NewDb(db, "sqlmock"), config.DatabaseConfig{
		MinConns:       1,
		MaxConns:       4,
		AcquireTimeout: time.Second,
	})
	t.Cleanup(func() { _ = pool.Shutdown() })

	h := NewHandler(HandlerConfig{
		Pool:   pool,
		Repos:  user.NewRepository,
		Redis:  redis,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.RegisterRoutes(r, asOps, middleware.RequireAdmin([]string{"ops@example.com"}))
	})

	return r, mock
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))

	var env envelope
	if rec.Code != http.StatusNoContent {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func TestGetSystemStats(t *testing.T) {
	h, mock := newTestAdmin(t, &fakeRedis{})

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) AS total`).
		WillReturnRows(sqlmock.NewRows([]string{"total", "active"}).AddRow(12, 10))
	mock.ExpectCommit()

	rec, env := do(t, h, http.MethodGet, "/api/admin/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats SystemStatsResponse
	require.NoError(t, json.Unmarshal(env.Data, &stats))

	assert.True(t, stats.Database.Healthy)
	assert.Equal(t, 4, stats.Database.Pool.Max)
	assert.Equal(t, 4, stats.Database.Pool.Available)
	assert.True(t, stats.Redis.Enabled)
	assert.True(t, stats.Redis.Healthy)
	require.NotNil(t, stats.Redis.Stats)
	assert.Equal(t, uint32(3), stats.Redis.Stats.TotalConns)
	require.NotNil(t, stats.Users)
	assert.Equal(t, 12, stats.Users.Total)
	assert.Equal(t, 10, stats.Users.Active)
	assert.NotEmpty(t, stats.Runtime.GoVersion)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSystemStatsWithoutRedis(t *testing.T) {
	h, mock := newTestAdmin(t, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) AS total`).
		WillReturnRows(sqlmock.NewRows([]string{"total", "active"}).AddRow(0, 0))
	mock.ExpectCommit()

	rec, env := do(t, h, http.MethodGet, "/api/admin/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats SystemStatsResponse
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.False(t, stats.Redis.Enabled)
	assert.Nil(t, stats.Redis.Stats)
}

func TestGetSystemStatsDatabaseError(t *testing.T) {
	h, mock := newTestAdmin(t, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT`).WillReturnError(errors.New("relation users does not exist"))
	mock.ExpectRollback()

	rec, env := do(t, h, http.MethodGet, "/api/admin/stats", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "internal server error", env.Error.Message)
	assert.NotContains(t, rec.Body.String(), "relation")
}

func TestUpdateTier(t *testing.T) {
	t.Run("updates", func(t *testing.T) {
		h, mock := newTestAdmin(t, nil)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE users\s+SET tier = \$2`).
			WithArgs(int64(7), "pro").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		rec, _ := do(t, h, http.MethodPut, "/api/admin/users/7/tier", `{"tier":"pro"}`)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown user", func(t *testing.T) {
		h, mock := newTestAdmin(t, nil)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE users`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		rec, env := do(t, h, http.MethodPut, "/api/admin/users/99/tier", `{"tier":"pro"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "user not found", env.Error.Message)
	})

	t.Run("rejects unknown tier", func(t *testing.T) {
		h, _ := newTestAdmin(t, nil)

		rec, env := do(t, h, http.MethodPut, "/api/admin/users/7/tier", `{"tier":"platinum"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "tier is invalid", env.Error.Message)
	})

	t.Run("rejects bad id", func(t *testing.T) {
		h, _ := newTestAdmin(t, nil)

		rec, env := do(t, h, http.MethodPut, "/api/admin/users/abc/tier", `{"tier":"pro"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid user id", env.Error.Message)
	})
}

func TestAdjustCredits(t *testing.T) {
	t.Run("applies delta", func(t *testing.T) {
		h, mock := newTestAdmin(t, nil)

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE users\s+SET credits = credits \+ \$2`).
			WithArgs(int64(7), 50).
			WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(150))
		mock.ExpectCommit()

		rec, env := do(t, h, http.MethodPost, "/api/admin/users/7/credits", `{"delta":50}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp CreditsResponse
		require.NoError(t, json.Unmarshal(env.Data, &resp))
		assert.Equal(t, CreditsResponse{UserID: 7, Credits: 150}, resp)
	})

	t.Run("refuses negative balance", func(t *testing.T) {
		h, mock := newTestAdmin(t, nil)

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE users`).WillReturnRows(sqlmock.NewRows([]string{"credits"}))
		mock.ExpectQuery(`SELECT EXISTS`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		rec, env := do(t, h, http.MethodPost, "/api/admin/users/7/credits", `{"delta":-500}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "credit balance cannot go negative", env.Error.Message)
	})

	t.Run("zero delta", func(t *testing.T) {
		h, _ := newTestAdmin(t, nil)

		rec, env := do(t, h, http.MethodPost, "/api/admin/users/7/credits", `{"delta":0}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "delta is required", env.Error.Message)
	})

	for _, body := range []string{`{"delta":3000000000}`, `{"delta":-2147483649}`} {
		t.Run("out of range "+body, func(t *testing.T) {
			h, mock := newTestAdmin(t, nil)

			rec, env := do(t, h, http.MethodPost, "/api/admin/users/7/credits", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "INVALID_INPUT", env.Error.Code)
			assert.Equal(t, "delta out of range", env.Error.Message)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

type exhaustedPool struct{}

func (exhaustedPool) Acquire(context.Context, func(context.Context, core.DBTX) error) error {
	return core.ErrPoolTimeout
}

func (exhaustedPool) Ping(context.Context) error { return nil }

func (exhaustedPool) Status() core.PoolStatus { return core.PoolStatus{} }

func TestPoolExhaustionReturnsServiceUnavailable(t *testing.T) {
	h := NewHandler(HandlerConfig{
		Pool:   exhaustedPool{},
		Repos:  user.NewRepository,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.RegisterRoutes(r, asOps, middleware.RequireAdmin([]string{"ops@example.com"}))
	})

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPut, "/api/admin/users/7/tier", `{"tier":"pro"}`},
		{http.MethodPost, "/api/admin/users/7/credits", `{"delta":5}`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec, env := do(t, r, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
			assert.Equal(t, "SERVICE_UNAVAILABLE", env.Error.Code)
			assert.Equal(t, "database service unavailable", env.Error.Message)
		})
	}
}

func TestAdminRequiresAllowlistedPrincipal(t *testing.T) {
	h := NewHandler(HandlerConfig{Repos: user.NewRepository})

	asAlice := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := &user.Principal{ID: 2, Email: "alice@example.com"}
			next.ServeHTTP(w, r.WithContext(middleware.WithPrincipal(r.Context(), p)))
		})
	}

	r := chi.NewRouter()
	h.RegisterRoutes(r, asAlice, middleware.RequireAdmin([]string{"ops@example.com"}))

	rec, env := do(t, r, http.MethodGet, "/admin/stats", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)
}
