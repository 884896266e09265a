package auth

import "github.com/gokatarajesh/trivia-night/internal/domain"

// LoginRequest carries either the host key or a team PIN.
type LoginRequest struct {
	Creds string `json:"creds"`
}

// Session is the result of a successful login.
type Session struct {
	Token     string       `json:"token"`
	Role      string       `json:"role"`
	Team      *domain.Team `json:"team,omitempty"`
	ExpiresIn int64        `json:"expires_in"`
}
