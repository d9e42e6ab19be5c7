// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SiteDesk Contributors

// Package access provides role-based authorization for SiteDesk.
//
// Roles form a strict hierarchy (user < manager < admin): any operation
// available to a role is available to every higher role. Requests are denied
// by default; a principal must be present on the context and hold at least
// the required role for a guarded operation to proceed.
package access

import (
	"context"

	"github.com/samber/oops"

	"github.com/sitedesk/sitedesk/internal/auth"
)

// RequireAuthenticated returns the principal attached to the context, or an
// ACCESS_UNAUTHENTICATED error when the request carries no valid session.
func RequireAuthenticated(ctx context.Context) (*auth.Principal, error) {
	principal, ok := PrincipalFrom(ctx)
	if !ok {
		return nil, oops.Code("ACCESS_UNAUTHENTICATED").
			Errorf("authentication required")
	}
	return principal, nil
}

// RequireRole returns the principal attached to the context when it holds at
// least the given role. Missing principals report ACCESS_UNAUTHENTICATED;
// authenticated principals below the required rank report ACCESS_FORBIDDEN.
func RequireRole(ctx context.Context, min auth.Role) (*auth.Principal, error) {
	principal, err := RequireAuthenticated(ctx)
	if err != nil {
		return nil, err
	}
	if !principal.Role.AtLeast(min) {
		return nil, oops.Code("ACCESS_FORBIDDEN").
			With("role", principal.Role.String()).
			With("required", min.String()).
			Errorf("insufficient role")
	}
	return principal, nil
}

// Allowed reports whether a principal holds at least the given role.
// Nil principals are denied.
func Allowed(principal *auth.Principal, min auth.Role) bool {
	if principal == nil {
		return false
	}
	return principal.Role.AtLeast(min)
}
