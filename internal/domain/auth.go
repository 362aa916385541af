package domain

import (
	"net/mail"
	"strings"
	"time"
)

// ============================================================
// Auth: users and request / response types
// ============================================================

// User is an account owner. Every other entity is scoped by User.ID.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// RegisterRequest is the body for POST /v1/auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate normalises the e-mail and checks required fields.
func (r *RegisterRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Name == "" {
		return &ErrValidation{Field: "name", Message: "is required"}
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return &ErrValidation{Field: "email", Message: "must be a valid e-mail address"}
	}
	if len(r.Password) < MinPasswordLength {
		return &ErrValidation{Field: "password", Message: "must have at least 8 characters"}
	}
	return nil
}

// LoginRequest is the body for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate normalises the e-mail and checks required fields.
func (r *LoginRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Email == "" {
		return &ErrValidation{Field: "email", Message: "is required"}
	}
	if r.Password == "" {
		return &ErrValidation{Field: "password", Message: "is required"}
	}
	return nil
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int    `json:"expiresIn"`
	User        User   `json:"user"`
}
