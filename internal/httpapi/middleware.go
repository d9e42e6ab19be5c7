// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SiteDesk Contributors

package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sitedesk/sitedesk/internal/access"
	"github.com/sitedesk/sitedesk/internal/auth"
	"github.com/sitedesk/sitedesk/internal/observability"
)

// SessionCookieName is the cookie carrying the session token for browser
// clients. API clients use the Authorization header instead.
const SessionCookieName = "sitedesk_session"

// bearerToken extracts the session token from the Authorization header or,
// failing that, the session cookie. Returns "" when neither is present.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		// Non-Bearer schemes are not ours; the cookie may still carry a
		// session.
	}

	cookie, err := c.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie
}

// authenticate resolves the request's session token and attaches the
// principal and session to the request context. Requests without a token
// pass through unauthenticated; guarded handlers reject them via
// requireAuthenticated.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		principal, session, err := s.auth.ResolveSession(c.Request.Context(), token)
		if err != nil {
			observability.RecordSessionResolveFailure(resolveFailureReason(err))
			// Invalid tokens are treated the same as absent ones here so a
			// stale cookie does not lock clients out of public endpoints.
			c.Next()
			return
		}

		ctx := access.WithPrincipal(c.Request.Context(), principal)
		ctx = access.WithSession(ctx, session)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// requireAuthenticated aborts the request when no principal was attached by
// the authenticate middleware.
func (s *Server) requireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := access.RequireAuthenticated(c.Request.Context()); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: "authentication required",
				Code:  "ACCESS_UNAUTHENTICATED",
			})
			return
		}
		c.Next()
	}
}

// requireRole aborts the request when the principal does not hold at least
// the given role. Must run after requireAuthenticated.
func (s *Server) requireRole(min auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := access.RequireRole(c.Request.Context(), min); err != nil {
			s.abortAccessError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) abortAccessError(c *gin.Context, err error) {
	status := http.StatusForbidden
	code := errorCode(err)
	if code == "ACCESS_UNAUTHENTICATED" {
		status = http.StatusUnauthorized
	} else {
		code = "ACCESS_FORBIDDEN"
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: err.Error(),
		Code:  code,
	})
}

// resolveFailureReason classifies a session resolution error for metrics.
func resolveFailureReason(err error) string {
	switch errorCode(err) {
	case "SESSION_EXPIRED":
		return "expired"
	case "SESSION_INVALID":
		return "invalid"
	default:
		return "error"
	}
}
