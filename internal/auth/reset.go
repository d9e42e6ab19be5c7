// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SiteDesk Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenBytes = 32        // 32 bytes = 64 hex chars
	ResetTokenTTL   = time.Hour // 1 hour expiry
)

// ResetToken represents a single-use password reset grant. Redeemed tokens
// are marked consumed rather than deleted so the redemption remains in the
// audit trail.
type ResetToken struct {
	ID          ulid.ULID
	PrincipalID ulid.ULID
	TokenHash   string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	ConsumedAt  *time.Time
}

// NewResetToken creates a validated ResetToken instance.
func NewResetToken(principalID ulid.ULID, tokenHash string, expiresAt time.Time) (*ResetToken, error) {
	if principalID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("RESET_INVALID_PRINCIPAL").Errorf("principal ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("RESET_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("RESET_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	return &ResetToken{
		ID:          ulid.Make(),
		PrincipalID: principalID,
		TokenHash:   tokenHash,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now(),
	}, nil
}

// IsExpired returns true if the reset token has expired.
func (r *ResetToken) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}

// IsConsumed returns true if the token has already been redeemed.
func (r *ResetToken) IsConsumed() bool {
	return r.ConsumedAt != nil
}

// GenerateResetToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
// The plaintext token is handed to the mail collaborator; only the hash is stored.
func GenerateResetToken() (token, hash string, err error) {
	tokenBytes := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	hash = HashResetToken(token)

	return token, hash, nil
}

// VerifyResetToken checks if the plaintext token matches the stored hash.
// Uses constant-time comparison to prevent timing attacks.
func VerifyResetToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := HashResetToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// HashResetToken computes the SHA256 hash of a token.
func HashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// ResetTokenRepository manages reset token persistence.
type ResetTokenRepository interface {
	// Create stores a new reset token.
	Create(ctx context.Context, reset *ResetToken) error

	// GetByTokenHash retrieves a reset token by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*ResetToken, error)

	// Consume atomically marks the token consumed and returns the owning
	// principal ID. It succeeds at most once per token: a token that is
	// missing, expired, or already consumed yields ErrNotFound, even when
	// two redemptions race. The check-and-mark must happen in a single
	// statement at the storage layer.
	Consume(ctx context.Context, tokenHash string) (ulid.ULID, error)

	// DeleteByPrincipal removes all unconsumed reset tokens for a principal.
	DeleteByPrincipal(ctx context.Context, principalID ulid.ULID) error

	// DeleteExpired removes expired unconsumed tokens and returns the count.
	// Consumed tokens are retained for audit.
	DeleteExpired(ctx context.Context) (int64, error)
}
