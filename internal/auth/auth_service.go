// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SiteDesk Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Service provides registration, login, logout, and session resolution.
// It is the only component that creates principals from raw registration input.
type Service struct {
	principals PrincipalRepository
	sessions   SessionRepository
	hasher     PasswordHasher
	logger     *slog.Logger
}

// NewAuthService creates a new Service with a no-op logger.
// Returns an error if any required dependency is nil.
func NewAuthService(principals PrincipalRepository, sessions SessionRepository, hasher PasswordHasher) (*Service, error) {
	if principals == nil {
		return nil, oops.Errorf("principals repository is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("sessions repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	return &Service{
		principals: principals,
		sessions:   sessions,
		hasher:     hasher,
		logger:     slog.New(slog.DiscardHandler),
	}, nil
}

// NewAuthServiceWithLogger creates a new Service with the provided logger.
func NewAuthServiceWithLogger(principals PrincipalRepository, sessions SessionRepository, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	svc, err := NewAuthService(principals, sessions, hasher)
	if err != nil {
		return nil, err
	}
	svc.logger = logger
	return svc, nil
}

// dummyPasswordHash is used when an account doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$scrypt$N=32768,r=8,p=1$00000000000000000000000000000000$00000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000"

// Register creates a new principal with role RoleUser and immediately
// establishes a session for it (registration implies login).
// Returns AUTH_DUPLICATE_EMAIL if the email is already registered.
func (s *Service) Register(ctx context.Context, email, password, name, userAgent, ipAddress string) (*Principal, *Session, string, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, nil, "", err
	}
	if err := ValidateName(name); err != nil {
		return nil, nil, "", err
	}

	// Friendly pre-check. The unique index on lower(email) remains the
	// authority; a concurrent insert is caught below via ErrDuplicateEmail.
	_, lookupErr := s.principals.GetByEmail(ctx, email)
	if lookupErr == nil {
		return nil, nil, "", oops.Code("AUTH_DUPLICATE_EMAIL").
			Wrap(ErrDuplicateEmail)
	}
	if !errors.Is(lookupErr, ErrNotFound) {
		return nil, nil, "", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "get principal by email").
			Wrap(lookupErr)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, nil, "", err
	}

	principal, err := NewPrincipal(email, name, hash)
	if err != nil {
		return nil, nil, "", err
	}

	if err := s.principals.Create(ctx, principal); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, nil, "", oops.Code("AUTH_DUPLICATE_EMAIL").Wrap(ErrDuplicateEmail)
		}
		return nil, nil, "", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create principal").
			Wrap(err)
	}

	session, token, err := s.createSession(ctx, principal.ID, userAgent, ipAddress)
	if err != nil {
		return nil, nil, "", err
	}

	s.logger.Info("principal registered",
		"principal_id", principal.ID.String(),
		"role", principal.Role.String(),
	)

	return principal, session, token, nil
}

// Login authenticates a principal by email and password and creates a session.
// Returns the principal, session, plaintext token, and any error.
// Unknown email and wrong password yield the identical AUTH_INVALID_CREDENTIALS
// error; a dummy hash is verified for unknown emails to keep timing flat.
func (s *Service) Login(ctx context.Context, email, password, userAgent, ipAddress string) (*Principal, *Session, string, error) {
	principal, lookupErr := s.principals.GetByEmail(ctx, email)

	var targetHash string
	var principalExists bool

	if lookupErr != nil {
		if errors.Is(lookupErr, ErrNotFound) {
			// Use dummy hash - still perform verification to maintain constant time
			targetHash = dummyPasswordHash
			principalExists = false
		} else {
			return nil, nil, "", oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get principal by email").
				Wrap(lookupErr)
		}
	} else {
		targetHash = principal.PasswordHash
		principalExists = true
	}

	// Always verify (constant-time derivation, constant-time compare).
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		// A malformed stored record must look like a credential mismatch;
		// never reveal which half of the check failed.
		if principalExists {
			s.logger.Warn("stored credential record failed verification",
				"principal_id", principal.ID.String(),
			)
		}
		return nil, nil, "", invalidCredentials()
	}

	if !principalExists || !valid {
		if principalExists {
			// Record failure only for existing principals
			principal.RecordFailure()
			_ = s.principals.Update(ctx, principal) //nolint:errcheck // Best effort
		}
		return nil, nil, "", invalidCredentials()
	}

	// Check lockout AFTER password verification to maintain constant time
	if principal.IsLocked() {
		return nil, nil, "", oops.Code("AUTH_ACCOUNT_LOCKED").
			With("locked_until", principal.LockedUntil).
			Errorf("account is temporarily locked")
	}

	principal.RecordSuccess()

	// Transparently upgrade hashes produced with outdated work parameters.
	if s.hasher.NeedsRehash(principal.PasswordHash) {
		newHash, hashErr := s.hasher.Hash(password)
		if hashErr == nil {
			principal.PasswordHash = newHash
		}
	}

	// Ignore errors - login should succeed even if update fails
	_ = s.principals.Update(ctx, principal) //nolint:errcheck // Best effort, login succeeds regardless

	session, token, err := s.createSession(ctx, principal.ID, userAgent, ipAddress)
	if err != nil {
		return nil, nil, "", err
	}

	s.logger.Info("principal logged in", "principal_id", principal.ID.String())

	return principal, session, token, nil
}

// Logout invalidates the session for the given bearer token.
// Destroying a missing or already-destroyed session is not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := s.sessions.DeleteByTokenHash(ctx, HashSessionToken(token))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// ResolveSession resolves a bearer token to its principal.
// Expired sessions and sessions whose principal no longer exists resolve as
// unauthenticated (fail closed); expired rows are lazily evicted.
func (s *Service) ResolveSession(ctx context.Context, token string) (*Principal, *Session, error) {
	if token == "" {
		return nil, nil, oops.Code("SESSION_TOKEN_EMPTY").Errorf("session token cannot be empty")
	}

	tokenHash := HashSessionToken(token)

	session, err := s.sessions.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, oops.Code("SESSION_INVALID").Errorf("invalid session token")
		}
		return nil, nil, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.IsExpired() {
		// Lazy eviction; the sweeper is the backstop.
		_ = s.sessions.Delete(ctx, session.ID) //nolint:errcheck // Best effort
		return nil, nil, oops.Code("SESSION_EXPIRED").Errorf("session has expired")
	}

	principal, err := s.principals.GetByID(ctx, session.PrincipalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Dangling principal reference: treat the session as dead.
			_ = s.sessions.Delete(ctx, session.ID) //nolint:errcheck // Best effort
			return nil, nil, oops.Code("SESSION_INVALID").Errorf("invalid session token")
		}
		return nil, nil, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "get principal by id").
			Wrap(err)
	}

	// Telemetry only; never extends the expiry window.
	_ = s.sessions.UpdateLastSeen(ctx, session.ID, time.Now()) //nolint:errcheck // Best effort

	return principal, session, nil
}

// ChangeRole updates a principal's role. Authorization (admin-only) is
// enforced by the caller through the access guard before this is invoked.
func (s *Service) ChangeRole(ctx context.Context, id ulid.ULID, role Role) error {
	if !role.IsValid() {
		return oops.Code("AUTH_INVALID_ROLE").
			With("role", int(role)).
			Errorf("unknown role")
	}
	if err := s.principals.UpdateRole(ctx, id, role); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("AUTH_PRINCIPAL_NOT_FOUND").
				With("principal_id", id.String()).
				Wrap(err)
		}
		return oops.Code("AUTH_ROLE_CHANGE_FAILED").
			With("operation", "update role").
			With("principal_id", id.String()).
			Wrap(err)
	}
	s.logger.Info("principal role changed",
		"principal_id", id.String(),
		"role", role.String(),
	)
	return nil
}

// createSession generates a token and persists a session for the principal.
func (s *Service) createSession(ctx context.Context, principalID ulid.ULID, userAgent, ipAddress string) (*Session, string, error) {
	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	expiresAt := time.Now().Add(SessionTokenTTL)
	session, err := NewSession(principalID, tokenHash, userAgent, ipAddress, expiresAt)
	if err != nil {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			Wrap(err)
	}

	return session, token, nil
}

// invalidCredentials builds the single low-information credential error.
// Unknown email and wrong password must be indistinguishable to callers.
func invalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid email or password")
}
