// AngelaMos | 2026
// dto.go

package auth

import (
	"time"

	"github.com/smartscreen-ai/gateway/internal/user"
)

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,max=255"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest only checks shape here. Email format and password
// strength are enforced by the service so every caller gets them.
type RegisterRequest struct {
	Email            string  `json:"email"             validate:"required,max=255"`
	Password         string  `json:"password"          validate:"required"`
	FullName         *string `json:"full_name"         validate:"omitempty,max=255"`
	Organization     *string `json:"organization"      validate:"omitempty,max=255"`
	Role             *string `json:"role"              validate:"omitempty,max=50"`
	PhoneNumber      *string `json:"phone_number"      validate:"omitempty,max=20"`
	UseCase          *string `json:"use_case"          validate:"omitempty,max=100"`
	OrganizationSize *string `json:"organization_size" validate:"omitempty,max=50"`
}

func (r RegisterRequest) Input() RegisterInput {
	return RegisterInput(r)
}

type RegisterInput struct {
	Email            string
	Password         string
	FullName         *string
	Organization     *string
	Role             *string
	PhoneNumber      *string
	UseCase          *string
	OrganizationSize *string
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type LoginResponse struct {
	TokenResponse
	User *user.Principal `json:"user"`
}

type UserResponse struct {
	ID               int64     `json:"id"`
	Email            string    `json:"email"`
	FullName         *string   `json:"full_name"`
	Organization     *string   `json:"organization"`
	Role             *string   `json:"role"`
	PhoneNumber      *string   `json:"phone_number"`
	UseCase          *string   `json:"use_case"`
	OrganizationSize *string   `json:"organization_size"`
	Tier             string    `json:"tier"`
	Credits          int       `json:"credits"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
}

func ToUserResponse(u *user.User) *UserResponse {
	return &UserResponse{
		ID:               u.ID,
		Email:            u.Email,
		FullName:         u.FullName,
		Organization:     u.Organization,
		Role:             u.Role,
		PhoneNumber:      u.PhoneNumber,
		UseCase:          u.UseCase,
		OrganizationSize: u.OrganizationSize,
		Tier:             u.Tier,
		Credits:          u.Credits,
		IsActive:         u.IsActive,
		CreatedAt:        u.CreatedAt,
	}
}
