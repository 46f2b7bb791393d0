package user

import "time"

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RegisterRequest payload de registro.
// swagger:model RegisterRequest
type RegisterRequest struct {
	Name     string `json:"name"     example:"Ada"`
	Email    string `json:"email"    example:"ada@example.com"`
	Password string `json:"password" example:"correct horse"`
}

// LoginRequest payload de login.
// swagger:model LoginRequest
type LoginRequest struct {
	Email    string `json:"email"    example:"ada@example.com"`
	Password string `json:"password" example:"correct horse"`
}

// TokenResponse carries the session token.
// swagger:model TokenResponse
type TokenResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
