// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/smartscreen-ai/gateway/internal/core"
)

type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindAuthFieldsByEmail(ctx context.Context, email string) (*AuthFields, error)
	Insert(ctx context.Context, nu *NewUser) (*User, error)
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
	UpdateTier(ctx context.Context, id int64, tier string) error
	AdjustCredits(ctx context.Context, id int64, delta int) (int, error)
	Count(ctx context.Context) (*Counts, error)
}

type Counts struct {
	Total  int `db:"total"  json:"total"`
	Active int `db:"active" json:"active"`
}

// RepositoryFactory binds a Repository to one pooled transaction.
type RepositoryFactory func(q core.DBTX) Repository

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const userColumns = `id, email, password_hash, full_name, organization, role,
		       phone_number, use_case, organization_size, tier, credits,
		       is_active, created_at, updated_at`

func (r *repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1`

	var u User
	err := r.db.GetContext(ctx, &u, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find user by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	return &u, nil
}

func (r *repository) FindAuthFieldsByEmail(
	ctx context.Context,
	email string,
) (*AuthFields, error) {
	query := `
		SELECT id, email, password_hash, tier, credits, is_active
		FROM users
		WHERE email = $1`

	var af AuthFields
	err := r.db.GetContext(ctx, &af, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find auth fields: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find auth fields: %w", err)
	}

	return &af, nil
}

// Insert writes one row in a single statement. A concurrent registration
// of the same email surfaces as core.ErrDuplicateKey.
func (r *repository) Insert(ctx context.Context, nu *NewUser) (*User, error) {
	query := `
		INSERT INTO users (email, password_hash, full_name, organization, role,
		                   phone_number, use_case, organization_size)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + userColumns

	var u User
	err := r.db.GetContext(ctx, &u, query,
		nu.Email,
		nu.PasswordHash,
		nu.FullName,
		nu.Organization,
		nu.Role,
		nu.PhoneNumber,
		nu.UseCase,
		nu.OrganizationSize,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, fmt.Errorf("insert user: %w", core.ErrDuplicateKey)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return &u, nil
}

func (r *repository) UpdatePasswordHash(
	ctx context.Context,
	id int64,
	passwordHash string,
) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "update password hash", query, id, passwordHash)
}

func (r *repository) UpdateTier(ctx context.Context, id int64, tier string) error {
	query := `
		UPDATE users
		SET tier = $2, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "update tier", query, id, tier)
}

// AdjustCredits applies delta and returns the new balance. A change that
// would leave the balance negative reports core.ErrInvalidInput.
func (r *repository) AdjustCredits(
	ctx context.Context,
	id int64,
	delta int,
) (int, error) {
	query := `
		UPDATE users
		SET credits = credits + $2, updated_at = NOW()
		WHERE id = $1 AND credits + $2 >= 0
		RETURNING credits`

	var credits int
	err := r.db.GetContext(ctx, &credits, query, id, delta)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		existsErr := r.db.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id)
		if existsErr != nil {
			return 0, fmt.Errorf("adjust credits: %w", existsErr)
		}
		if !exists {
			return 0, fmt.Errorf("adjust credits: %w", core.ErrNotFound)
		}
		return 0, fmt.Errorf("adjust credits: %w", core.ErrInvalidInput)
	}
	if err != nil {
		return 0, fmt.Errorf("adjust credits: %w", err)
	}

	return credits, nil
}

func (r *repository) Count(ctx context.Context) (*Counts, error) {
	query := `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE is_active) AS active
		FROM users`

	var c Counts
	if err := r.db.GetContext(ctx, &c, query); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	return &c, nil
}

func (r *repository) execOne(
	ctx context.Context,
	op, query string,
	args ...any,
) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	return false
}
