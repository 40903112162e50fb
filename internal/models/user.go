package models

import "time"

type User struct {
	ID         int        `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	IsVerified bool       `json:"is_verified"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Tokens is the pair the API hands out on login. The access token is a JWT,
// the refresh token is opaque.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type LoginResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user,omitempty"`
	Tokens  Tokens `json:"tokens"`
}
