package auth

import (
	"github.com/google/uuid"

	"github.com/vastralabs/vastra-backend/pkg/enums"
)

// RegisterInput is a new account payload after transport validation.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Phone    *string
}

// LoginInput carries credentials.
type LoginInput struct {
	Email    string
	Password string
}

// UserView is the API-facing account shape. The password hash never leaves
// the service layer.
type UserView struct {
	ID    uuid.UUID      `json:"id"`
	Email string         `json:"email"`
	Name  string         `json:"name"`
	Phone *string        `json:"phone,omitempty"`
	Role  enums.UserRole `json:"role"`
}

// Session is a freshly minted login.
type Session struct {
	Token string   `json:"token"`
	User  UserView `json:"user"`
}
