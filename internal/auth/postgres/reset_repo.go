// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SiteDesk Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/sitedesk/sitedesk/internal/auth"
)

// ResetTokenRepository implements auth.ResetTokenRepository using PostgreSQL.
type ResetTokenRepository struct {
	pool querier
}

// NewResetTokenRepository creates a new ResetTokenRepository.
func NewResetTokenRepository(pool querier) *ResetTokenRepository {
	return &ResetTokenRepository{pool: pool}
}

// Create stores a new reset token.
func (r *ResetTokenRepository) Create(ctx context.Context, token *auth.ResetToken) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reset_tokens (id, principal_id, token_hash, expires_at, created_at, consumed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		token.ID.String(),
		token.PrincipalID.String(),
		token.TokenHash,
		token.ExpiresAt,
		token.CreatedAt,
		token.ConsumedAt,
	)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "insert reset token").
			With("principal_id", token.PrincipalID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a reset token by its token hash.
func (r *ResetTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.ResetToken, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, principal_id, token_hash, expires_at, created_at, consumed_at
		FROM reset_tokens
		WHERE token_hash = $1
	`, tokenHash)

	var (
		idStr          string
		principalIDStr string
		hash           string
		expiresAt      time.Time
		createdAt      time.Time
		consumedAt     *time.Time
	)

	err := row.Scan(&idStr, &principalIDStr, &hash, &expiresAt, &createdAt, &consumedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_GET_BY_TOKEN_FAILED").
			With("operation", "get reset token by hash").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_ID").
			With("operation", "parse reset token id").
			With("id", idStr).
			Wrap(err)
	}

	principalID, err := ulid.Parse(principalIDStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_PRINCIPAL_ID").
			With("operation", "parse principal id").
			With("principal_id", principalIDStr).
			Wrap(err)
	}

	return &auth.ResetToken{
		ID:          id,
		PrincipalID: principalID,
		TokenHash:   hash,
		ExpiresAt:   expiresAt,
		CreatedAt:   createdAt,
		ConsumedAt:  consumedAt,
	}, nil
}

// Consume atomically marks an unconsumed, unexpired reset token as consumed
// and returns the owning principal's ID. Returns auth.ErrNotFound when the
// token is missing, expired, or already consumed; concurrent callers race on
// the same UPDATE so at most one succeeds.
func (r *ResetTokenRepository) Consume(ctx context.Context, tokenHash string) (ulid.ULID, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE reset_tokens
		SET consumed_at = now()
		WHERE token_hash = $1
		  AND consumed_at IS NULL
		  AND expires_at > now()
		RETURNING principal_id
	`, tokenHash)

	var principalIDStr string
	err := row.Scan(&principalIDStr)
	if errors.Is(err, pgx.ErrNoRows) {
		return ulid.ULID{}, oops.Code("RESET_TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return ulid.ULID{}, oops.Code("RESET_CONSUME_FAILED").
			With("operation", "consume reset token").
			Wrap(err)
	}

	principalID, err := ulid.Parse(principalIDStr)
	if err != nil {
		return ulid.ULID{}, oops.Code("RESET_INVALID_PRINCIPAL_ID").
			With("operation", "parse principal id").
			With("principal_id", principalIDStr).
			Wrap(err)
	}

	return principalID, nil
}

// DeleteByPrincipal removes all unconsumed reset tokens for a principal.
// Consumed rows are left in place so redemptions stay auditable.
func (r *ResetTokenRepository) DeleteByPrincipal(ctx context.Context, principalID ulid.ULID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM reset_tokens WHERE principal_id = $1 AND consumed_at IS NULL
	`, principalID.String())
	if err != nil {
		return oops.Code("RESET_DELETE_BY_PRINCIPAL_FAILED").
			With("operation", "delete reset tokens by principal").
			With("principal_id", principalID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes all expired reset tokens and returns the count.
// Consumed tokens are kept until they expire so password resets stay auditable.
func (r *ResetTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM reset_tokens WHERE expires_at < $1
	`, time.Now())
	if err != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired reset tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.ResetTokenRepository = (*ResetTokenRepository)(nil)
