// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SiteDesk Contributors

package httpapi

import (
	"time"

	"github.com/sitedesk/sitedesk/internal/auth"
)

// RegisterRequest is the payload for POST /v1/auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=1"`
	Name     string `json:"name" binding:"required,min=2,max=80"`
}

// LoginRequest is the payload for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ResetRequestRequest is the payload for POST /v1/auth/password-reset/request.
type ResetRequestRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetConfirmRequest is the payload for POST /v1/auth/password-reset/confirm.
type ResetConfirmRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=1"`
}

// ChangeRoleRequest is the payload for PATCH /v1/admin/principals/:id/role.
type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// PrincipalResponse is the representation of a principal in responses.
// The password hash is never serialized.
type PrincipalResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionResponse is the representation of the caller's session.
type SessionResponse struct {
	ID         string    `json:"id"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// AuthResponse is returned by register and login. The token is the bearer
// credential for subsequent requests; it is shown exactly once.
type AuthResponse struct {
	Token     string            `json:"token"`
	Principal PrincipalResponse `json:"principal"`
	Session   SessionResponse   `json:"session"`
}

// MeResponse is returned by GET /v1/auth/me.
type MeResponse struct {
	Principal PrincipalResponse `json:"principal"`
	Session   SessionResponse   `json:"session"`
}

// ResetRequestResponse is returned by the reset request endpoint. The
// message is identical whether or not the email is registered. DebugToken
// is populated only when the server runs in debug mode, where no mail
// delivery is configured.
type ResetRequestResponse struct {
	Message    string `json:"message"`
	DebugToken string `json:"debug_token,omitempty"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func toPrincipalResponse(p *auth.Principal) PrincipalResponse {
	return PrincipalResponse{
		ID:        p.ID.String(),
		Email:     p.Email,
		Name:      p.Name,
		Role:      p.Role.String(),
		CreatedAt: p.CreatedAt,
	}
}

func toSessionResponse(s *auth.Session) SessionResponse {
	return SessionResponse{
		ID:         s.ID.String(),
		ExpiresAt:  s.ExpiresAt,
		CreatedAt:  s.CreatedAt,
		LastSeenAt: s.LastSeenAt,
	}
}
