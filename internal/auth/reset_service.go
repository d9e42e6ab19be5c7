// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SiteDesk Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// PasswordResetService handles password reset token issuance and redemption.
type PasswordResetService struct {
	principals PrincipalRepository
	resets     ResetTokenRepository
	hasher     PasswordHasher
	logger     *slog.Logger
}

// NewPasswordResetService creates a new PasswordResetService with a no-op logger.
// Returns an error if any required dependency is nil.
func NewPasswordResetService(principals PrincipalRepository, resets ResetTokenRepository, hasher PasswordHasher) (*PasswordResetService, error) {
	if principals == nil {
		return nil, oops.Errorf("principals repository is required")
	}
	if resets == nil {
		return nil, oops.Errorf("resets repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	return &PasswordResetService{
		principals: principals,
		resets:     resets,
		hasher:     hasher,
		logger:     slog.New(slog.DiscardHandler),
	}, nil
}

// NewPasswordResetServiceWithLogger creates a new PasswordResetService with the provided logger.
func NewPasswordResetServiceWithLogger(principals PrincipalRepository, resets ResetTokenRepository, hasher PasswordHasher, logger *slog.Logger) (*PasswordResetService, error) {
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	svc, err := NewPasswordResetService(principals, resets, hasher)
	if err != nil {
		return nil, err
	}
	svc.logger = logger
	return svc, nil
}

// RequestReset issues a reset token for the account with the given email.
// Returns the plaintext token for the mail collaborator (delivery is NOT this
// service's job). If no account has the email, returns success with an empty
// token and writes nothing, so the caller-facing response shape is identical
// in both cases (no account enumeration).
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) (string, error) {
	principal, err := s.principals.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get principal by email").
			Wrap(err)
	}

	token, hash, err := GenerateResetToken()
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}

	reset, err := NewResetToken(principal.ID, hash, time.Now().Add(ResetTokenTTL))
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "build reset token").
			Wrap(err)
	}

	if err := s.resets.Create(ctx, reset); err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "store reset token").
			Wrap(err)
	}

	s.logger.Info("password reset requested", "principal_id", principal.ID.String())

	return token, nil
}

// ResetPassword redeems a reset token and sets a new password.
// The token is consumed atomically at the storage layer, so concurrent
// redemptions of the same token cannot both succeed; the loser (and any
// absent, expired, or already-consumed token) gets RESET_TOKEN_INVALID.
// Returns the updated principal.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string) (*Principal, error) {
	if newPassword == "" {
		return nil, oops.Code("RESET_PASSWORD_EMPTY").Errorf("new password cannot be empty")
	}
	if token == "" {
		return nil, invalidResetToken()
	}

	principalID, err := s.resets.Consume(ctx, HashResetToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, invalidResetToken()
		}
		return nil, oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "consume reset token").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "hash new password").
			Wrap(err)
	}

	if err := s.principals.UpdatePassword(ctx, principalID, hash); err != nil {
		return nil, oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "update password").
			Wrap(err)
	}

	// Invalidate any other outstanding tokens for the principal.
	// Cleanup only - the password update already succeeded.
	//nolint:errcheck // Cleanup failure is acceptable; password was already updated
	s.resets.DeleteByPrincipal(ctx, principalID)

	principal, err := s.principals.GetByID(ctx, principalID)
	if err != nil {
		return nil, oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "reload principal").
			Wrap(err)
	}

	s.logger.Info("password reset completed", "principal_id", principalID.String())

	return principal, nil
}

// invalidResetToken builds the single low-information token error. Absent,
// expired, and consumed tokens must be indistinguishable to callers.
func invalidResetToken() error {
	return oops.Code("RESET_TOKEN_INVALID").Errorf("invalid reset token")
}
