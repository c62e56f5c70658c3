// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/smartscreen-ai/gateway/internal/core"
	"github.com/smartscreen-ai/gateway/internal/user"
)

const PrincipalKey contextKey = "principal"

// PrincipalResolver turns a bearer token into the live account it names.
type PrincipalResolver interface {
	GetCurrentUser(ctx context.Context, token string) (*user.Principal, error)
}

func Authenticator(resolver PrincipalResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)

			if token == "" {
				core.JSONError(w, core.UnauthorizedError("not authenticated"))
				return
			}

			principal, err := resolver.GetCurrentUser(r.Context(), token)
			if err != nil {
				handleAuthError(w, err)
				return
			}

			ctx := WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin admits principals whose email is on the allowlist. It must
// run after Authenticator.
func RequireAdmin(emails []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		allowed[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r.Context())
			if p == nil {
				core.JSONError(w, core.UnauthorizedError("authentication required"))
				return
			}

			if _, ok := allowed[strings.ToLower(p.Email)]; !ok {
				core.JSONError(w, core.ForbiddenError("admin access required"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

func handleAuthError(w http.ResponseWriter, err error) {
	if core.IsAppError(err) {
		core.JSONError(w, err)
		return
	}
	core.JSONError(w, core.TokenInvalidError())
}

func WithPrincipal(ctx context.Context, p *user.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

func GetPrincipal(ctx context.Context) *user.Principal {
	if p, ok := ctx.Value(PrincipalKey).(*user.Principal); ok {
		return p
	}
	return nil
}

func GetUserID(ctx context.Context) int64 {
	if p := GetPrincipal(ctx); p != nil {
		return p.ID
	}
	return 0
}

func GetUserTier(ctx context.Context) string {
	if p := GetPrincipal(ctx); p != nil {
		return p.Tier
	}
	return ""
}

func IsAuthenticated(ctx context.Context) bool {
	return GetPrincipal(ctx) != nil
}
