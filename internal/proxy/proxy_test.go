// AngelaMos | 2026
// proxy_test.go

package proxy

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartscreen-ai/gateway/internal/config"
	"github.com/smartscreen-ai/gateway/internal/middleware"
	"github.com/smartscreen-ai/gateway/internal/user"
)

type capturedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

type upstreamStub struct {
	mu   sync.Mutex
	seen []capturedRequest
	srv  *httptest.Server
}

func newUpstreamStub(t *testing.T) *upstreamStub {
	t.Helper()

	s := &upstreamStub{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		s.mu.Lock()
		s.seen = append(s.seen, capturedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   string(body),
		})
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"upstream":"ok"}`))
	}))
	t.Cleanup(s.srv.Close)

	return s
}

func (s *upstreamStub) last(t *testing.T) capturedRequest {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.seen, "upstream was not called")
	return s.seen[len(s.seen)-1]
}

func (s *upstreamStub) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

var alice = &user.Principal{ID: 42, Email: "alice@example.com", Tier: "free", Credits: 100}

func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(middleware.WithPrincipal(r.Context(), alice)))
	})
}

func newTestGateway(t *testing.T, cfg config.ServicesConfig) http.Handler {
	t.Helper()

	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}

	g, err := NewGateway(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		g.RegisterRoutes(r, fakeAuth, RouteLimits{})
	})
	return r
}

func send(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer token")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderUserID, "1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGatewayForwardsToUpstreams(t *testing.T) {
	forms := newUpstreamStub(t)
	plagiarism := newUpstreamStub(t)
	ai := newUpstreamStub(t)
	ranking := newUpstreamStub(t)

	h := newTestGateway(t, config.ServicesConfig{
		FormsURL:       forms.srv.URL,
		PlagiarismURL:  plagiarism.srv.URL,
		AIDetectionURL: ai.srv.URL,
		RankingURL:     ranking.srv.URL,
	})

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		stub     *upstreamStub
		wantPath string
		wantBody string
	}{
		{
			name:     "connect google form",
			method:   http.MethodPost,
			path:     "/api/forms/connect/google",
			body:     `{"form_url":"https://forms.gle/x"}`,
			stub:     forms,
			wantPath: "/connect/google",
			wantBody: `{"form_url":"https://forms.gle/x"}`,
		},
		{
			name:     "list forms",
			method:   http.MethodGet,
			path:     "/api/forms",
			stub:     forms,
			wantPath: "/forms",
		},
		{
			name:     "rankings",
			method:   http.MethodGet,
			path:     "/api/forms/form-7/rankings",
			stub:     ranking,
			wantPath: "/rankings/form-7",
		},
		{
			name:     "form submissions",
			method:   http.MethodGet,
			path:     "/api/forms/form-7/submissions",
			stub:     forms,
			wantPath: "/forms/form-7/submissions",
		},
		{
			name:     "single submission",
			method:   http.MethodGet,
			path:     "/api/submissions/s9",
			stub:     forms,
			wantPath: "/submissions/s9",
		},
		{
			name:     "plagiarism analysis",
			method:   http.MethodPost,
			path:     "/api/submissions/s1/analyze/plagiarism",
			body:     `{"ignored":true}`,
			stub:     plagiarism,
			wantPath: "/analyze",
			wantBody: `{"submission_id":"s1"}`,
		},
		{
			name:     "ai analysis",
			method:   http.MethodPost,
			path:     "/api/submissions/s2/analyze/ai",
			stub:     ai,
			wantPath: "/analyze",
			wantBody: `{"submission_id":"s2"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := send(t, h, tt.method, tt.path, tt.body)

			assert.Equal(t, http.StatusAccepted, rec.Code)
			assert.JSONEq(t, `{"upstream":"ok"}`, rec.Body.String())

			got := tt.stub.last(t)
			assert.Equal(t, tt.method, got.Method)
			assert.Equal(t, tt.wantPath, got.Path)
			assert.Equal(t, "42", got.Header.Get(HeaderUserID))
			assert.Equal(t, "alice@example.com", got.Header.Get(HeaderUserEmail))
			assert.Empty(t, got.Header.Get("Authorization"))
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, got.Body)
			}
		})
	}
}

func TestGatewayPreservesQuery(t *testing.T) {
	forms := newUpstreamStub(t)
	h := newTestGateway(t, config.ServicesConfig{
		FormsURL:       forms.srv.URL,
		PlagiarismURL:  forms.srv.URL,
		AIDetectionURL: forms.srv.URL,
		RankingURL:     forms.srv.URL,
	})

	rec := send(t, h, http.MethodGet, "/api/forms?page=2", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "page=2", forms.last(t).Query)
}

func TestGatewayRejectsBadInput(t *testing.T) {
	forms := newUpstreamStub(t)
	h := newTestGateway(t, config.ServicesConfig{
		FormsURL:       forms.srv.URL,
		PlagiarismURL:  forms.srv.URL,
		AIDetectionURL: forms.srv.URL,
		RankingURL:     forms.srv.URL,
	})

	tests := []struct {
		name   string
		method string
		path   string
		msg    string
	}{
		{"unknown platform", http.MethodPost, "/api/forms/connect/typeform", "unsupported form platform"},
		{"bad submission id", http.MethodPost, "/api/submissions/a.b/analyze/ai", "invalid submission id"},
		{"bad form id", http.MethodGet, "/api/forms/a.b/submissions", "invalid form id"},
		{"bad single submission id", http.MethodGet, "/api/submissions/a.b", "invalid submission id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := send(t, h, tt.method, tt.path, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var env struct {
				Error struct {
					Message string `json:"message"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.Equal(t, tt.msg, env.Error.Message)
		})
	}

	assert.Zero(t, forms.calls())
}

func TestGatewayRequiresAuthentication(t *testing.T) {
	forms := newUpstreamStub(t)
	h := newTestGateway(t, config.ServicesConfig{
		FormsURL:       forms.srv.URL,
		PlagiarismURL:  forms.srv.URL,
		AIDetectionURL: forms.srv.URL,
		RankingURL:     forms.srv.URL,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/forms", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, forms.calls())
}

func TestGatewayUpstreamUnavailable(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	h := newTestGateway(t, config.ServicesConfig{
		FormsURL:       deadURL,
		PlagiarismURL:  deadURL,
		AIDetectionURL: deadURL,
		RankingURL:     deadURL,
	})

	tests := []struct {
		method string
		path   string
		msg    string
	}{
		{http.MethodGet, "/api/forms", "forms service unavailable"},
		{http.MethodPost, "/api/submissions/s1/analyze/plagiarism", "plagiarism service unavailable"},
		{http.MethodPost, "/api/submissions/s1/analyze/ai", "ai detection service unavailable"},
		{http.MethodGet, "/api/forms/f1/rankings", "ranking service unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := send(t, h, tt.method, tt.path, "")
			assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

			var env struct {
				Success bool `json:"success"`
				Error   struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.False(t, env.Success)
			assert.Equal(t, "SERVICE_UNAVAILABLE", env.Error.Code)
			assert.Equal(t, tt.msg, env.Error.Message)
		})
	}
}

func TestNewUpstreamRejectsRelativeURL(t *testing.T) {
	_, err := NewUpstream("forms", "forms-service:8001", time.Second, slog.Default())
	require.Error(t, err)
}

func TestSingleJoin(t *testing.T) {
	assert.Equal(t, "/analyze", singleJoin("", "/analyze"))
	assert.Equal(t, "/v1/analyze", singleJoin("/v1/", "/analyze"))
	assert.Equal(t, "/v1", singleJoin("/v1", ""))
}
