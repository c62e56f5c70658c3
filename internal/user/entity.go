// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

type User struct {
	ID               int64     `db:"id"`
	Email            string    `db:"email"`
	PasswordHash     string    `db:"password_hash"`
	FullName         *string   `db:"full_name"`
	Organization     *string   `db:"organization"`
	Role             *string   `db:"role"`
	PhoneNumber      *string   `db:"phone_number"`
	UseCase          *string   `db:"use_case"`
	OrganizationSize *string   `db:"organization_size"`
	Tier             string    `db:"tier"`
	Credits          int       `db:"credits"`
	IsActive         bool      `db:"is_active"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// AuthFields is the narrow projection read during authentication.
type AuthFields struct {
	ID           int64  `db:"id"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	Tier         string `db:"tier"`
	Credits      int    `db:"credits"`
	IsActive     bool   `db:"is_active"`
}

// Principal is the authenticated caller handed to the rest of the
// gateway. It never carries the password hash.
type Principal struct {
	ID      int64  `json:"id"`
	Email   string `json:"email"`
	Tier    string `json:"tier"`
	Credits int    `json:"credits"`
}

func (a *AuthFields) Principal() *Principal {
	return &Principal{
		ID:      a.ID,
		Email:   a.Email,
		Tier:    a.Tier,
		Credits: a.Credits,
	}
}

func (u *User) Principal() *Principal {
	return &Principal{
		ID:      u.ID,
		Email:   u.Email,
		Tier:    u.Tier,
		Credits: u.Credits,
	}
}

// NewUser carries the columns written at registration. Tier, credits and
// is_active take their column defaults.
type NewUser struct {
	Email            string
	PasswordHash     string
	FullName         *string
	Organization     *string
	Role             *string
	PhoneNumber      *string
	UseCase          *string
	OrganizationSize *string
}

const (
	TierFree       = "free"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

const DefaultCredits = 100
