// AngelaMos | 2026
// handler_test.go

package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartscreen-ai/gateway/internal/middleware"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestRouter(t *testing.T) (http.Handler, *serviceFixture) {
	t.Helper()

	f := newServiceFixture(t)
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		NewHandler(f.svc).RegisterRoutes(r, middleware.Authenticator(f.svc), RouteLimits{})
	})

	return r, f
}

func doJSON(
	t *testing.T,
	h http.Handler,
	method, path, body, token string,
) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())

	return rec, env
}

func TestHandlerRegisterLoginMe(t *testing.T) {
	h, _ := newTestRouter(t)

	rec, env := doJSON(t, h, http.MethodPost, "/api/auth/register",
		`{"email":"user@example.com","password":"Str0ngPass!","full_name":"Ada"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)

	var created UserResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "user@example.com", created.Email)
	require.NotNil(t, created.FullName)
	assert.Equal(t, "Ada", *created.FullName)
	assert.NotContains(t, string(env.Data), "password")

	rec, env = doJSON(t, h, http.MethodPost, "/api/auth/login",
		`{"email":"user@example.com","password":"Str0ngPass!"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var login LoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &login))
	assert.Equal(t, "bearer", login.TokenType)
	assert.NotEmpty(t, login.AccessToken)

	rec, env = doJSON(t, h, http.MethodGet, "/api/auth/me", "", login.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"id":1,"email":"user@example.com","tier":"free","credits":100}`,
		string(env.Data),
	)
}

func TestHandlerErrors(t *testing.T) {
	h, f := newTestRouter(t)
	f.register(t, "taken@example.com", "Str0ngPass!")

	tests := []struct {
		name        string
		method      string
		path        string
		body        string
		token       string
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "malformed json",
			method:      http.MethodPost,
			path:        "/api/auth/register",
			body:        `{"email":`,
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INVALID_INPUT",
			wantMessage: "invalid request body",
		},
		{
			name:        "missing password",
			method:      http.MethodPost,
			path:        "/api/auth/register",
			body:        `{"email":"user@example.com"}`,
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INVALID_INPUT",
			wantMessage: "password is required",
		},
		{
			name:        "weak password",
			method:      http.MethodPost,
			path:        "/api/auth/register",
			body:        `{"email":"user@example.com","password":"weakpassword"}`,
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INVALID_INPUT",
			wantMessage: "password must contain at least one uppercase letter",
		},
		{
			name:        "profile field too long",
			method:      http.MethodPost,
			path:        "/api/auth/register",
			body:        `{"email":"user@example.com","password":"Str0ngPass!","phone_number":"012345678901234567890"}`,
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INVALID_INPUT",
			wantMessage: "phonenumber must be at most 20 characters",
		},
		{
			name:        "duplicate email",
			method:      http.MethodPost,
			path:        "/api/auth/register",
			body:        `{"email":"taken@example.com","password":"Str0ngPass!"}`,
			wantStatus:  http.StatusConflict,
			wantCode:    "CONFLICT",
			wantMessage: "email already registered",
		},
		{
			name:        "wrong password",
			method:      http.MethodPost,
			path:        "/api/auth/login",
			body:        `{"email":"taken@example.com","password":"WrongPass1!"}`,
			wantStatus:  http.StatusUnauthorized,
			wantCode:    "INVALID_CREDENTIALS",
			wantMessage: "incorrect email or password",
		},
		{
			name:        "unknown email",
			method:      http.MethodPost,
			path:        "/api/auth/login",
			body:        `{"email":"ghost@example.com","password":"WrongPass1!"}`,
			wantStatus:  http.StatusUnauthorized,
			wantCode:    "INVALID_CREDENTIALS",
			wantMessage: "incorrect email or password",
		},
		{
			name:        "me without token",
			method:      http.MethodGet,
			path:        "/api/auth/me",
			wantStatus:  http.StatusUnauthorized,
			wantCode:    "UNAUTHORIZED",
			wantMessage: "not authenticated",
		},
		{
			name:        "me with garbage token",
			method:      http.MethodGet,
			path:        "/api/auth/me",
			token:       "garbage",
			wantStatus:  http.StatusUnauthorized,
			wantCode:    "TOKEN_INVALID",
			wantMessage: "could not validate credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := doJSON(t, h, tt.method, tt.path, tt.body, tt.token)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
			assert.Equal(t, tt.wantMessage, env.Error.Message)

			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}
