// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SiteDesk Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sitedesk/sitedesk/internal/auth"
	"github.com/sitedesk/sitedesk/internal/auth/mocks"
	"github.com/sitedesk/sitedesk/pkg/errutil"
)

func fixturePrincipal(t *testing.T) *auth.Principal {
	t.Helper()
	principal, err := auth.NewPrincipal("pat@example.com", "Pat Foreman", "$scrypt$stored")
	require.NoError(t, err)
	return principal
}

func newService(t *testing.T) (*auth.Service, *mocks.MockPrincipalRepository, *mocks.MockSessionRepository, *mocks.MockPasswordHasher) {
	t.Helper()
	principals := mocks.NewMockPrincipalRepository(t)
	sessions := mocks.NewMockSessionRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)
	svc, err := auth.NewAuthService(principals, sessions, hasher)
	require.NoError(t, err)
	return svc, principals, sessions, hasher
}

func TestNewAuthService_NilDependencies(t *testing.T) {
	principals := &mocks.MockPrincipalRepository{}
	sessions := &mocks.MockSessionRepository{}
	hasher := &mocks.MockPasswordHasher{}

	_, err := auth.NewAuthService(nil, sessions, hasher)
	assert.Error(t, err)
	_, err = auth.NewAuthService(principals, nil, hasher)
	assert.Error(t, err)
	_, err = auth.NewAuthService(principals, sessions, nil)
	assert.Error(t, err)
	_, err = auth.NewAuthServiceWithLogger(principals, sessions, hasher, nil)
	assert.Error(t, err)
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("creates principal and session", func(t *testing.T) {
		svc, principals, sessions, hasher := newService(t)

		principals.On("GetByEmail", ctx, "new@example.com").
			Return(nil, auth.ErrNotFound)
		hasher.On("Hash", "hunter2hunter2").Return("$scrypt$fresh", nil)
		principals.On("Create", ctx, mock.MatchedBy(func(p *auth.Principal) bool {
			return p.Email == "new@example.com" && p.Role == auth.RoleUser
		})).Return(nil)
		sessions.On("Create", ctx, mock.MatchedBy(func(s *auth.Session) bool {
			return s.TokenHash != "" && !s.ExpiresAt.IsZero()
		})).Return(nil)

		principal, session, token, err := svc.Register(ctx, "new@example.com", "hunter2hunter2", "New Person", "agent", "127.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, "new@example.com", principal.Email)
		assert.Equal(t, principal.ID, session.PrincipalID)
		assert.Equal(t, auth.HashSessionToken(token), session.TokenHash)
		assert.Equal(t, "agent", session.UserAgent)
	})

	t.Run("rejects invalid email before any repository call", func(t *testing.T) {
		svc, _, _, _ := newService(t)

		_, _, _, err := svc.Register(ctx, "not-an-email", "pw", "New Person", "", "")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_EMAIL")
	})

	t.Run("rejects duplicate email from pre-check", func(t *testing.T) {
		svc, principals, _, _ := newService(t)

		principals.On("GetByEmail", ctx, "taken@example.com").
			Return(fixturePrincipal(t), nil)

		_, _, _, err := svc.Register(ctx, "taken@example.com", "pw", "New Person", "", "")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
		errutil.AssertErrorCode(t, err, "AUTH_DUPLICATE_EMAIL")
	})

	t.Run("rejects duplicate email from racing insert", func(t *testing.T) {
		svc, principals, _, hasher := newService(t)

		principals.On("GetByEmail", ctx, "race@example.com").
			Return(nil, auth.ErrNotFound)
		hasher.On("Hash", "pw").Return("$scrypt$fresh", nil)
		principals.On("Create", ctx, mock.Anything).
			Return(auth.ErrDuplicateEmail)

		_, _, _, err := svc.Register(ctx, "race@example.com", "pw", "New Person", "", "")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrDuplicateEmail)
	})

	t.Run("propagates hasher failure", func(t *testing.T) {
		svc, principals, _, hasher := newService(t)

		principals.On("GetByEmail", ctx, "new@example.com").
			Return(nil, auth.ErrNotFound)
		hasher.On("Hash", "").Return("", auth.ErrEmptyPassword)

		_, _, _, err := svc.Register(ctx, "new@example.com", "", "New Person", "", "")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrEmptyPassword)
	})
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials create a session", func(t *testing.T) {
		svc, principals, sessions, hasher := newService(t)
		stored := fixturePrincipal(t)
		stored.FailedAttempts = 3

		principals.On("GetByEmail", ctx, "pat@example.com").Return(stored, nil)
		hasher.On("Verify", "hunter2hunter2", "$scrypt$stored").Return(true, nil)
		hasher.On("NeedsRehash", "$scrypt$stored").Return(false)
		principals.On("Update", ctx, mock.MatchedBy(func(p *auth.Principal) bool {
			return p.FailedAttempts == 0 && p.LockedUntil == nil
		})).Return(nil)
		sessions.On("Create", ctx, mock.Anything).Return(nil)

		principal, session, token, err := svc.Login(ctx, "pat@example.com", "hunter2hunter2", "agent", "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, stored.ID, principal.ID)
		assert.Equal(t, auth.HashSessionToken(token), session.TokenHash)
		assert.WithinDuration(t, time.Now().Add(auth.SessionTokenTTL), session.ExpiresAt, time.Minute)
	})

	t.Run("unknown email yields the generic credential error", func(t *testing.T) {
		svc, principals, _, hasher := newService(t)

		principals.On("GetByEmail", ctx, "ghost@example.com").
			Return(nil, auth.ErrNotFound)
		// The dummy hash is still verified so unknown emails cost as much as
		// known ones.
		hasher.On("Verify", "pw", mock.AnythingOfType("string")).Return(false, nil)

		_, _, _, err := svc.Login(ctx, "ghost@example.com", "pw", "", "")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
	})

	t.Run("wrong password records a failure", func(t *testing.T) {
		svc, principals, _, hasher := newService(t)
		stored := fixturePrincipal(t)

		principals.On("GetByEmail", ctx, "pat@example.com").Return(stored, nil)
		hasher.On("Verify", "wrong", "$scrypt$stored").Return(false, nil)
		principals.On("Update", ctx, mock.MatchedBy(func(p *auth.Principal) bool {
			return p.FailedAttempts == 1
		})).Return(nil)

		_, _, _, err := svc.Login(ctx, "pat@example.com", "wrong", "", "")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
	})

	t.Run("malformed stored hash looks like a credential mismatch", func(t *testing.T) {
		svc, principals, _, hasher := newService(t)
		stored := fixturePrincipal(t)

		principals.On("GetByEmail", ctx, "pat@example.com").Return(stored, nil)
		hasher.On("Verify", "pw", "$scrypt$stored").
			Return(false, errors.New("invalid hash format"))

		_, _, _, err := svc.Login(ctx, "pat@example.com", "pw", "", "")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
	})

	t.Run("locked account is rejected after verification", func(t *testing.T) {
		svc, principals, _, hasher := newService(t)
		stored := fixturePrincipal(t)
		lockedUntil := time.Now().Add(10 * time.Minute)
		stored.FailedAttempts = auth.LockoutThreshold
		stored.LockedUntil = &lockedUntil

		principals.On("GetByEmail", ctx, "pat@example.com").Return(stored, nil)
		hasher.On("Verify", "hunter2hunter2", "$scrypt$stored").Return(true, nil)

		_, _, _, err := svc.Login(ctx, "pat@example.com", "hunter2hunter2", "", "")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_ACCOUNT_LOCKED")
	})

	t.Run("outdated hash is upgraded on successful login", func(t *testing.T) {
		svc, principals, sessions, hasher := newService(t)
		stored := fixturePrincipal(t)

		principals.On("GetByEmail", ctx, "pat@example.com").Return(stored, nil)
		hasher.On("Verify", "hunter2hunter2", "$scrypt$stored").Return(true, nil)
		hasher.On("NeedsRehash", "$scrypt$stored").Return(true)
		hasher.On("Hash", "hunter2hunter2").Return("$scrypt$upgraded", nil)
		principals.On("Update", ctx, mock.MatchedBy(func(p *auth.Principal) bool {
			return p.PasswordHash == "$scrypt$upgraded"
		})).Return(nil)
		sessions.On("Create", ctx, mock.Anything).Return(nil)

		_, _, _, err := svc.Login(ctx, "pat@example.com", "hunter2hunter2", "", "")
		require.NoError(t, err)
	})

	t.Run("login succeeds even if the counter update fails", func(t *testing.T) {
		svc, principals, sessions, hasher := newService(t)
		stored := fixturePrincipal(t)

		principals.On("GetByEmail", ctx, "pat@example.com").Return(stored, nil)
		hasher.On("Verify", "hunter2hunter2", "$scrypt$stored").Return(true, nil)
		hasher.On("NeedsRehash", "$scrypt$stored").Return(false)
		principals.On("Update", ctx, mock.Anything).Return(errors.New("db down"))
		sessions.On("Create", ctx, mock.Anything).Return(nil)

		_, _, _, err := svc.Login(ctx, "pat@example.com", "hunter2hunter2", "", "")
		require.NoError(t, err)
	})
}

func TestService_Logout(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes the session by token hash", func(t *testing.T) {
		svc, _, sessions, _ := newService(t)
		token, hash, err := auth.GenerateSessionToken()
		require.NoError(t, err)

		sessions.On("DeleteByTokenHash", ctx, hash).Return(nil)

		require.NoError(t, svc.Logout(ctx, token))
	})

	t.Run("empty token is a no-op", func(t *testing.T) {
		svc, _, _, _ := newService(t)
		require.NoError(t, svc.Logout(ctx, ""))
	})

	t.Run("missing session is not an error", func(t *testing.T) {
		svc, _, sessions, _ := newService(t)

		sessions.On("DeleteByTokenHash", ctx, mock.AnythingOfType("string")).
			Return(auth.ErrNotFound)

		require.NoError(t, svc.Logout(ctx, "stale-token"))
	})

	t.Run("storage failure is reported", func(t *testing.T) {
		svc, _, sessions, _ := newService(t)

		sessions.On("DeleteByTokenHash", ctx, mock.AnythingOfType("string")).
			Return(errors.New("db down"))

		err := svc.Logout(ctx, "token")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_LOGOUT_FAILED")
	})
}

func TestService_ResolveSession(t *testing.T) {
	ctx := context.Background()

	liveSession := func(t *testing.T, principalID ulid.ULID) (*auth.Session, string) {
		t.Helper()
		token, hash, err := auth.GenerateSessionToken()
		require.NoError(t, err)
		session, err := auth.NewSession(principalID, hash, "", "", time.Now().Add(time.Hour))
		require.NoError(t, err)
		return session, token
	}

	t.Run("valid token resolves principal and touches last-seen", func(t *testing.T) {
		svc, principals, sessions, _ := newService(t)
		stored := fixturePrincipal(t)
		session, token := liveSession(t, stored.ID)

		sessions.On("GetByTokenHash", ctx, session.TokenHash).Return(session, nil)
		principals.On("GetByID", ctx, stored.ID).Return(stored, nil)
		sessions.On("UpdateLastSeen", ctx, session.ID, mock.AnythingOfType("time.Time")).Return(nil)

		principal, got, err := svc.ResolveSession(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, stored.ID, principal.ID)
		assert.Equal(t, session.ID, got.ID)
	})

	t.Run("empty token", func(t *testing.T) {
		svc, _, _, _ := newService(t)
		_, _, err := svc.ResolveSession(ctx, "")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_TOKEN_EMPTY")
	})

	t.Run("unknown token", func(t *testing.T) {
		svc, _, sessions, _ := newService(t)

		sessions.On("GetByTokenHash", ctx, mock.AnythingOfType("string")).
			Return(nil, auth.ErrNotFound)

		_, _, err := svc.ResolveSession(ctx, "bogus")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_INVALID")
	})

	t.Run("expired session is evicted and rejected", func(t *testing.T) {
		svc, _, sessions, _ := newService(t)
		stored := fixturePrincipal(t)
		session, token := liveSession(t, stored.ID)
		session.ExpiresAt = time.Now().Add(-time.Minute)

		sessions.On("GetByTokenHash", ctx, session.TokenHash).Return(session, nil)
		sessions.On("Delete", ctx, session.ID).Return(nil)

		_, _, err := svc.ResolveSession(ctx, token)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_EXPIRED")
	})

	t.Run("session for a deleted principal is evicted and rejected", func(t *testing.T) {
		svc, principals, sessions, _ := newService(t)
		session, token := liveSession(t, ulid.Make())

		sessions.On("GetByTokenHash", ctx, session.TokenHash).Return(session, nil)
		principals.On("GetByID", ctx, session.PrincipalID).Return(nil, auth.ErrNotFound)
		sessions.On("Delete", ctx, session.ID).Return(nil)

		_, _, err := svc.ResolveSession(ctx, token)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_INVALID")
	})

	t.Run("last-seen failure does not block resolution", func(t *testing.T) {
		svc, principals, sessions, _ := newService(t)
		stored := fixturePrincipal(t)
		session, token := liveSession(t, stored.ID)

		sessions.On("GetByTokenHash", ctx, session.TokenHash).Return(session, nil)
		principals.On("GetByID", ctx, stored.ID).Return(stored, nil)
		sessions.On("UpdateLastSeen", ctx, session.ID, mock.AnythingOfType("time.Time")).
			Return(errors.New("db down"))

		_, _, err := svc.ResolveSession(ctx, token)
		require.NoError(t, err)
	})
}

func TestService_ChangeRole(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()

	t.Run("updates the role", func(t *testing.T) {
		svc, principals, _, _ := newService(t)

		principals.On("UpdateRole", ctx, id, auth.RoleManager).Return(nil)

		require.NoError(t, svc.ChangeRole(ctx, id, auth.RoleManager))
	})

	t.Run("rejects unknown roles", func(t *testing.T) {
		svc, _, _, _ := newService(t)

		err := svc.ChangeRole(ctx, id, auth.Role(42))
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_ROLE")
	})

	t.Run("unknown principal", func(t *testing.T) {
		svc, principals, _, _ := newService(t)

		principals.On("UpdateRole", ctx, id, auth.RoleAdmin).Return(auth.ErrNotFound)

		err := svc.ChangeRole(ctx, id, auth.RoleAdmin)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_PRINCIPAL_NOT_FOUND")
	})
}
