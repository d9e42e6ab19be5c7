// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SiteDesk Contributors

package access

import (
	"context"

	"github.com/sitedesk/sitedesk/internal/auth"
)

type principalKey struct{}

type sessionKey struct{}

// WithPrincipal returns a context carrying the authenticated principal.
func WithPrincipal(ctx context.Context, principal *auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFrom extracts the authenticated principal from the context.
// Returns false when no principal was attached.
func PrincipalFrom(ctx context.Context) (*auth.Principal, bool) {
	principal, ok := ctx.Value(principalKey{}).(*auth.Principal)
	return principal, ok && principal != nil
}

// WithSession returns a context carrying the resolved session.
func WithSession(ctx context.Context, session *auth.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFrom extracts the resolved session from the context.
// Returns false when no session was attached.
func SessionFrom(ctx context.Context) (*auth.Session, bool) {
	session, ok := ctx.Value(sessionKey{}).(*auth.Session)
	return session, ok && session != nil
}
