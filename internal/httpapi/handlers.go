// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SiteDesk Contributors

package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/sitedesk/sitedesk/internal/access"
	"github.com/sitedesk/sitedesk/internal/auth"
)

// resetRequestMessage is returned for every reset request, registered email
// or not, so the endpoint cannot be used to probe for accounts.
const resetRequestMessage = "if the address is registered, a reset token has been issued"

// handleRegister handles POST /v1/auth/register.
// A successful registration also logs the principal in.
func (s *Server) handleRegister(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderBindError(c, err)
		return
	}

	principal, session, token, err := s.auth.Register(
		c.Request.Context(), req.Email, req.Password, req.Name,
		c.Request.UserAgent(), c.ClientIP(),
	)
	if err != nil {
		s.renderError(c, err)
		return
	}

	s.metrics.RecordRegistration()
	s.setSessionCookie(c, token, session.ExpiresAt)
	c.JSON(http.StatusCreated, AuthResponse{
		Token:     token,
		Principal: toPrincipalResponse(principal),
		Session:   toSessionResponse(session),
	})
}

// handleLogin handles POST /v1/auth/login.
func (s *Server) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderBindError(c, err)
		return
	}

	principal, session, token, err := s.auth.Login(
		c.Request.Context(), req.Email, req.Password,
		c.Request.UserAgent(), c.ClientIP(),
	)
	if err != nil {
		s.metrics.RecordLogin(loginFailureResult(err))
		s.renderError(c, err)
		return
	}

	s.metrics.RecordLogin("success")
	s.setSessionCookie(c, token, session.ExpiresAt)
	c.JSON(http.StatusOK, AuthResponse{
		Token:     token,
		Principal: toPrincipalResponse(principal),
		Session:   toSessionResponse(session),
	})
}

// handleLogout handles POST /v1/auth/logout. Logging out an already-dead
// session succeeds so retries and stale cookies stay harmless.
func (s *Server) handleLogout(c *gin.Context) {
	token := bearerToken(c)
	if token != "" {
		if err := s.auth.Logout(c.Request.Context(), token); err != nil {
			s.renderError(c, err)
			return
		}
	}

	s.clearSessionCookie(c)
	c.Status(http.StatusNoContent)
}

// handleMe handles GET /v1/auth/me.
func (s *Server) handleMe(c *gin.Context) {
	principal, ok := access.PrincipalFrom(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error: "authentication required",
			Code:  "ACCESS_UNAUTHENTICATED",
		})
		return
	}
	session, _ := access.SessionFrom(c.Request.Context())

	resp := MeResponse{Principal: toPrincipalResponse(principal)}
	if session != nil {
		resp.Session = toSessionResponse(session)
	}
	c.JSON(http.StatusOK, resp)
}

// handleResetRequest handles POST /v1/auth/password-reset/request.
func (s *Server) handleResetRequest(c *gin.Context) {
	var req ResetRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderBindError(c, err)
		return
	}

	token, err := s.resets.RequestReset(c.Request.Context(), req.Email)
	if err != nil {
		s.renderError(c, err)
		return
	}

	s.metrics.RecordPasswordReset("requested")
	resp := ResetRequestResponse{Message: resetRequestMessage}
	if s.cfg.Debug {
		resp.DebugToken = token
	}
	c.JSON(http.StatusAccepted, resp)
}

// handleResetConfirm handles POST /v1/auth/password-reset/confirm.
func (s *Server) handleResetConfirm(c *gin.Context) {
	var req ResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderBindError(c, err)
		return
	}

	principal, err := s.resets.ResetPassword(c.Request.Context(), req.Token, req.NewPassword)
	if err != nil {
		s.renderError(c, err)
		return
	}

	s.metrics.RecordPasswordReset("completed")
	c.JSON(http.StatusOK, gin.H{
		"principal": toPrincipalResponse(principal),
	})
}

// handleChangeRole handles PATCH /v1/admin/principals/:id/role.
func (s *Server) handleChangeRole(c *gin.Context) {
	id, err := ulid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid principal id",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderBindError(c, err)
		return
	}

	role, err := auth.ParseRole(req.Role)
	if err != nil {
		s.renderError(c, err)
		return
	}

	if err := s.auth.ChangeRole(c.Request.Context(), id, role); err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":   id.String(),
		"role": role.String(),
	})
}

func (s *Server) setSessionCookie(c *gin.Context, token string, expiresAt time.Time) {
	c.SetSameSite(http.SameSiteLaxMode)
	maxAge := int(time.Until(expiresAt).Seconds())
	c.SetCookie(SessionCookieName, token, maxAge, "/", "", s.cfg.SecureCookies, true)
}

func (s *Server) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", "", s.cfg.SecureCookies, true)
}

// loginFailureResult classifies a login error for metrics.
func loginFailureResult(err error) string {
	code := errorCode(err)
	switch code {
	case "AUTH_INVALID_CREDENTIALS":
		return "invalid_credentials"
	case "AUTH_ACCOUNT_LOCKED":
		return "locked"
	default:
		return "error"
	}
}
