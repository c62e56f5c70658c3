// AngelaMos | 2026
// jwt.go

package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/smartscreen-ai/gateway/internal/config"
	"github.com/smartscreen-ai/gateway/internal/core"
)

const (
	claimType   = "type"
	claimUserID = "uid"
	claimTier   = "tier"

	tokenTypeAccess = "access"
)

// TokenClaims is the identity carried by an access token. Subject is the
// account email; UserID and Tier are optional.
type TokenClaims struct {
	Subject   string
	UserID    int64
	Tier      string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type TokenManager struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

func NewTokenManager(cfg config.JWTConfig) (*TokenManager, error) {
	if len(cfg.Secret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 bytes")
	}

	return &TokenManager{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		now:      time.Now,
	}, nil
}

// Issue signs claims with HS256. The token expires ttl after now; a
// negative ttl yields a token that is already expired.
func (m *TokenManager) Issue(claims TokenClaims, ttl time.Duration) (string, error) {
	if claims.Subject == "" {
		return "", fmt.Errorf("issue token: empty subject")
	}

	now := m.now().UTC()

	builder := jwt.NewBuilder().
		JwtID(uuid.New().String()).
		Issuer(m.issuer).
		Audience([]string{m.audience}).
		Subject(claims.Subject).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		NotBefore(now).
		Claim(claimType, tokenTypeAccess)

	if claims.UserID > 0 {
		builder = builder.Claim(claimUserID, claims.UserID)
	}
	if claims.Tier != "" {
		builder = builder.Claim(claimTier, claims.Tier)
	}

	token, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), m.secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return string(signed), nil
}

// Verify checks signature, algorithm, expiry, issuer, audience and token
// type. Every failure reports core.ErrTokenInvalid.
func (m *TokenManager) Verify(tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256(), m.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithClock(jwt.ClockFunc(m.now)),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	}

	var tokenType string
	if err := token.Get(claimType, &tokenType); err != nil ||
		tokenType != tokenTypeAccess {
		return nil, fmt.Errorf(
			"verify token: invalid token type: %w",
			core.ErrTokenInvalid,
		)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf(
			"verify token: missing subject: %w",
			core.ErrTokenInvalid,
		)
	}

	claims := &TokenClaims{Subject: subject}

	if jti, ok := token.JwtID(); ok {
		claims.ID = jti
	}
	if iat, ok := token.IssuedAt(); ok {
		claims.IssuedAt = iat
	}
	if exp, ok := token.Expiration(); ok {
		claims.ExpiresAt = exp
	}

	if token.Has(claimUserID) {
		var uid float64
		if err := token.Get(claimUserID, &uid); err != nil {
			return nil, fmt.Errorf(
				"verify token: malformed uid claim: %w",
				core.ErrTokenInvalid,
			)
		}
		claims.UserID = int64(uid)
	}

	if token.Has(claimTier) {
		if err := token.Get(claimTier, &claims.Tier); err != nil {
			return nil, fmt.Errorf(
				"verify token: malformed tier claim: %w",
				core.ErrTokenInvalid,
			)
		}
	}

	return claims, nil
}
