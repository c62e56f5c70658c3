// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/smartscreen-ai/gateway/internal/config"
	"github.com/smartscreen-ai/gateway/internal/core"
	"github.com/smartscreen-ai/gateway/internal/user"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const tracerName = "github.com/smartscreen-ai/gateway/internal/auth"

const (
	OutcomeSuccess            = "success"
	OutcomeInvalidInput       = "invalid_input"
	OutcomeConflict           = "conflict"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeUnauthorized       = "unauthorized"
	OutcomeError              = "error"
)

// Recorder receives one observation per service call.
type Recorder interface {
	RecordAuth(operation, outcome string, elapsed time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordAuth(string, string, time.Duration) {}

type Option func(*Service)

func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

type Service struct {
	pool      core.Acquirer
	repos     user.RepositoryFactory
	hasher    core.CredentialHasher
	tokens    *TokenManager
	accessTTL time.Duration
	dummyHash string
	logger    *slog.Logger
	recorder  Recorder
	tracer    trace.Tracer
}

func NewService(
	pool core.Acquirer,
	repos user.RepositoryFactory,
	hasher core.CredentialHasher,
	tokens *TokenManager,
	cfg config.JWTConfig,
	logger *slog.Logger,
	opts ...Option,
) (*Service, error) {
	seed, err := core.GenerateSecureToken(24)
	if err != nil {
		return nil, fmt.Errorf("generate dummy password: %w", err)
	}

	dummy, err := hasher.Hash(seed)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}

	s := &Service{
		pool:      pool,
		repos:     repos,
		hasher:    hasher,
		tokens:    tokens,
		accessTTL: cfg.AccessTokenExpire,
		dummyHash: dummy,
		logger:    logger,
		recorder:  noopRecorder{},
		tracer:    otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func invalidCredentialsError() *core.AppError {
	return core.NewAppError(
		ErrInvalidCredentials,
		"incorrect email or password",
		http.StatusUnauthorized,
		"INVALID_CREDENTIALS",
	)
}

// Register creates an account. The existence check and the insert use
// separate acquisitions so no connection is held while hashing; the
// unique constraint settles any race between them.
func (s *Service) Register(
	ctx context.Context,
	in RegisterInput,
) (resp *UserResponse, err error) {
	ctx, done := s.observe(ctx, "register")
	defer func() { done(err) }()

	if !ValidateEmail(in.Email) {
		return nil, core.ValidationError("invalid email format")
	}

	if ok, reason := ValidatePasswordStrength(in.Password); !ok {
		return nil, core.ValidationError(reason)
	}

	var exists bool
	err = s.pool.Acquire(ctx, func(ctx context.Context, q core.DBTX) error {
		_, findErr := s.repos(q).FindByEmail(ctx, in.Email)
		switch {
		case findErr == nil:
			exists = true
		case errors.Is(findErr, core.ErrNotFound):
		default:
			return findErr
		}
		return nil
	})
	if err != nil {
		return nil, s.internal(ctx, "register", "REGISTER_LOOKUP_FAILED", err)
	}

	if exists {
		return nil, core.DuplicateError("email")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, s.internal(ctx, "register", "PASSWORD_HASH_FAILED", err)
	}

	var created *user.User
	err = s.pool.Acquire(ctx, func(ctx context.Context, q core.DBTX) error {
		var insertErr error
		created, insertErr = s.repos(q).Insert(ctx, &user.NewUser{
			Email:            in.Email,
			PasswordHash:     hash,
			FullName:         in.FullName,
			Organization:     in.Organization,
			Role:             in.Role,
			PhoneNumber:      in.PhoneNumber,
			UseCase:          in.UseCase,
			OrganizationSize: in.OrganizationSize,
		})
		return insertErr
	})
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, core.DuplicateError("email")
		}
		return nil, s.internal(ctx, "register", "REGISTER_INSERT_FAILED", err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", created.ID)

	return ToUserResponse(created), nil
}

// Authenticate resolves email and password to a principal. Unknown,
// inactive and wrong-password accounts share one code path and one error.
func (s *Service) Authenticate(
	ctx context.Context,
	email, password string,
) (principal *user.Principal, err error) {
	ctx, done := s.observe(ctx, "authenticate")
	defer func() { done(err) }()

	var fields *user.AuthFields
	err = s.pool.Acquire(ctx, func(ctx context.Context, q core.DBTX) error {
		found, findErr := s.repos(q).FindAuthFieldsByEmail(ctx, email)
		if findErr != nil && !errors.Is(findErr, core.ErrNotFound) {
			return findErr
		}
		fields = found
		return nil
	})
	if err != nil {
		return nil, s.internal(ctx, "authenticate", "AUTH_LOOKUP_FAILED", err)
	}

	eligible := fields != nil && fields.IsActive

	hash := s.dummyHash
	if eligible {
		hash = fields.PasswordHash
	}

	verified := s.hasher.Verify(password, hash)
	if !verified || !eligible {
		return nil, invalidCredentialsError()
	}

	if s.hasher.NeedsRehash(fields.PasswordHash) {
		s.upgradeHash(ctx, fields.ID, password)
	}

	return fields.Principal(), nil
}

func (s *Service) upgradeHash(ctx context.Context, id int64, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "rehash failed", "user_id", id, "error", err)
		return
	}

	err = s.pool.Acquire(ctx, func(ctx context.Context, q core.DBTX) error {
		return s.repos(q).UpdatePasswordHash(ctx, id, newHash)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "store upgraded hash failed", "user_id", id, "error", err)
	}
}

func (s *Service) IssueToken(principal *user.Principal) (*TokenResponse, error) {
	now := time.Now().UTC()

	token, err := s.tokens.Issue(TokenClaims{
		Subject: principal.Email,
		UserID:  principal.ID,
		Tier:    principal.Tier,
	}, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	return &TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.accessTTL.Seconds()),
		ExpiresAt:   now.Add(s.accessTTL),
	}, nil
}

func (s *Service) Login(
	ctx context.Context,
	email, password string,
) (*LoginResponse, error) {
	principal, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	tokens, err := s.IssueToken(principal)
	if err != nil {
		return nil, s.internal(ctx, "login", "TOKEN_ISSUE_FAILED", err)
	}

	return &LoginResponse{TokenResponse: *tokens, User: principal}, nil
}

// GetCurrentUser resolves a bearer token to the live account it names.
func (s *Service) GetCurrentUser(
	ctx context.Context,
	token string,
) (principal *user.Principal, err error) {
	ctx, done := s.observe(ctx, "current_user")
	defer func() { done(err) }()

	claims, err := s.tokens.Verify(token)
	if err != nil || claims.Subject == "" {
		return nil, core.TokenInvalidError()
	}

	var fields *user.AuthFields
	err = s.pool.Acquire(ctx, func(ctx context.Context, q core.DBTX) error {
		found, findErr := s.repos(q).FindAuthFieldsByEmail(ctx, claims.Subject)
		if findErr != nil && !errors.Is(findErr, core.ErrNotFound) {
			return findErr
		}
		fields = found
		return nil
	})
	if err != nil {
		return nil, s.internal(ctx, "current_user", "CURRENT_USER_LOOKUP_FAILED", err)
	}

	if fields == nil || !fields.IsActive ||
		(claims.UserID != 0 && claims.UserID != fields.ID) {
		return nil, core.UnauthorizedError("user not found")
	}

	return fields.Principal(), nil
}

func (s *Service) internal(
	ctx context.Context,
	operation, code string,
	err error,
) error {
	wrapped := oops.
		In("auth").
		Code(code).
		With("operation", operation).
		Wrap(err)

	core.LogError(ctx, s.logger, "auth operation failed", wrapped)
	core.SetSpanError(ctx, wrapped)

	if errors.Is(err, core.ErrPoolTimeout) {
		return core.PoolExhaustedError()
	}
	return core.InternalError()
}

func (s *Service) observe(
	ctx context.Context,
	operation string,
) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "auth."+operation)
	start := time.Now()

	return ctx, func(err error) {
		outcome := outcomeOf(err)
		core.SetSpanOutcome(ctx, outcome)
		s.recorder.RecordAuth(operation, outcome, time.Since(start))
		span.End()
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrInvalidCredentials):
		return OutcomeInvalidCredentials
	case errors.Is(err, core.ErrInvalidInput):
		return OutcomeInvalidInput
	case errors.Is(err, core.ErrConflict):
		return OutcomeConflict
	case errors.Is(err, core.ErrUnauthorized):
		return OutcomeUnauthorized
	default:
		return OutcomeError
	}
}
