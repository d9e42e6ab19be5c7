// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SiteDesk Contributors

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/sitedesk/sitedesk/pkg/errutil"
)

// statusByCode maps service error codes to HTTP statuses. Codes not listed
// here are treated as internal errors and their details are not exposed.
var statusByCode = map[string]int{
	"AUTH_INVALID_EMAIL":       http.StatusBadRequest,
	"AUTH_INVALID_NAME":        http.StatusBadRequest,
	"AUTH_EMPTY_PASSWORD":      http.StatusBadRequest,
	"AUTH_INVALID_ROLE":        http.StatusBadRequest,
	"RESET_PASSWORD_EMPTY":     http.StatusBadRequest,
	"AUTH_DUPLICATE_EMAIL":     http.StatusConflict,
	"AUTH_INVALID_CREDENTIALS": http.StatusUnauthorized,
	"SESSION_INVALID":          http.StatusUnauthorized,
	"SESSION_EXPIRED":          http.StatusUnauthorized,
	"ACCESS_UNAUTHENTICATED":   http.StatusUnauthorized,
	"RESET_TOKEN_INVALID":      http.StatusUnauthorized,
	"ACCESS_FORBIDDEN":         http.StatusForbidden,
	"AUTH_PRINCIPAL_NOT_FOUND": http.StatusNotFound,
	"AUTH_ACCOUNT_LOCKED":      http.StatusLocked,
}

// storageFailureCodes are failures of the backing store rather than of the
// request; they surface as 503 with a generic body so callers can retry.
var storageFailureCodes = map[string]struct{}{
	"AUTH_REGISTER_FAILED":       {},
	"AUTH_LOGIN_FAILED":          {},
	"AUTH_LOGOUT_FAILED":         {},
	"AUTH_SESSION_CREATE_FAILED": {},
	"AUTH_ROLE_CHANGE_FAILED":    {},
	"SESSION_RESOLVE_FAILED":     {},
	"RESET_REQUEST_FAILED":       {},
	"RESET_PASSWORD_FAILED":      {},
}

// errorCode extracts the string code from an oops error, or "" when absent.
func errorCode(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if v, ok := oopsErr.Code().(string); ok {
			return v
		}
	}
	return ""
}

// renderError writes the uniform error payload for a service error. Internal
// errors are logged with their full context but reported to the client as a
// bare 500.
func (s *Server) renderError(c *gin.Context, err error) {
	code := errorCode(err)

	if _, storage := storageFailureCodes[code]; storage {
		errutil.LogError(s.logger, "storage failure", err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "service temporarily unavailable",
			Code:  code,
		})
		return
	}

	status, known := statusByCode[code]
	if !known {
		errutil.LogError(s.logger, "request failed", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal error",
		})
		return
	}

	c.JSON(status, ErrorResponse{
		Error: err.Error(),
		Code:  code,
	})
}

// renderBindError reports a request body that failed binding or validation.
func renderBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: err.Error(),
		Code:  "INVALID_REQUEST",
	})
}
