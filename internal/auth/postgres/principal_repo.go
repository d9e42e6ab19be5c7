// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SiteDesk Contributors

// Package postgres provides PostgreSQL implementations of auth repositories.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/sitedesk/sitedesk/internal/auth"
)

// querier abstracts query execution so repositories accept both
// *pgxpool.Pool and pgxmock test doubles.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PrincipalRepository implements auth.PrincipalRepository using PostgreSQL.
type PrincipalRepository struct {
	pool querier
}

// NewPrincipalRepository creates a new PrincipalRepository.
func NewPrincipalRepository(pool querier) *PrincipalRepository {
	return &PrincipalRepository{pool: pool}
}

// Create stores a new principal. A unique-violation on the lowercased email
// index is reported as ErrDuplicateEmail so the service layer can map it to
// its duplicate-registration error even when two registrations race.
func (r *PrincipalRepository) Create(ctx context.Context, principal *auth.Principal) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO principals (
			id, email, name, password_hash, role,
			failed_attempts, locked_until, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		principal.ID.String(),
		principal.Email,
		principal.Name,
		principal.PasswordHash,
		principal.Role.String(),
		principal.FailedAttempts,
		principal.LockedUntil,
		principal.CreatedAt,
		principal.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("AUTH_DUPLICATE_EMAIL").
				With("operation", "insert principal").
				Wrap(auth.ErrDuplicateEmail)
		}
		return oops.Code("PRINCIPAL_CREATE_FAILED").
			With("operation", "insert principal").
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a principal by ID.
func (r *PrincipalRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Principal, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, name, password_hash, role,
		       failed_attempts, locked_until, created_at, updated_at
		FROM principals
		WHERE id = $1
	`, id.String())

	principal, err := r.scanPrincipal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PRINCIPAL_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PRINCIPAL_GET_BY_ID_FAILED").
			With("operation", "get principal by id").
			With("id", id.String()).
			Wrap(err)
	}
	return principal, nil
}

// GetByEmail retrieves a principal by email (case-insensitive).
func (r *PrincipalRepository) GetByEmail(ctx context.Context, email string) (*auth.Principal, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, name, password_hash, role,
		       failed_attempts, locked_until, created_at, updated_at
		FROM principals
		WHERE LOWER(email) = LOWER($1)
	`, email)

	principal, err := r.scanPrincipal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PRINCIPAL_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PRINCIPAL_GET_BY_EMAIL_FAILED").
			With("operation", "get principal by email").
			Wrap(err)
	}
	return principal, nil
}

// Update updates an existing principal.
func (r *PrincipalRepository) Update(ctx context.Context, principal *auth.Principal) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE principals SET
			email = $2,
			name = $3,
			password_hash = $4,
			role = $5,
			failed_attempts = $6,
			locked_until = $7,
			updated_at = $8
		WHERE id = $1
	`,
		principal.ID.String(),
		principal.Email,
		principal.Name,
		principal.PasswordHash,
		principal.Role.String(),
		principal.FailedAttempts,
		principal.LockedUntil,
		principal.UpdatedAt,
	)
	if err != nil {
		return oops.Code("PRINCIPAL_UPDATE_FAILED").
			With("operation", "update principal").
			With("id", principal.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PRINCIPAL_NOT_FOUND").
			With("id", principal.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdatePassword updates only the password hash for a principal.
func (r *PrincipalRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE principals SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), passwordHash, time.Now())
	if err != nil {
		return oops.Code("PRINCIPAL_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PRINCIPAL_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdateRole updates only the role for a principal.
func (r *PrincipalRepository) UpdateRole(ctx context.Context, id ulid.ULID, role auth.Role) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE principals SET role = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), role.String(), time.Now())
	if err != nil {
		return oops.Code("PRINCIPAL_UPDATE_ROLE_FAILED").
			With("operation", "update role").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PRINCIPAL_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanPrincipal scans a single row into a Principal.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *PrincipalRepository) scanPrincipal(row pgx.Row) (*auth.Principal, error) {
	var (
		idStr          string
		email          string
		name           string
		passwordHash   string
		roleStr        string
		failedAttempts int
		lockedUntil    *time.Time
		createdAt      time.Time
		updatedAt      time.Time
	)

	err := row.Scan(
		&idStr,
		&email,
		&name,
		&passwordHash,
		&roleStr,
		&failedAttempts,
		&lockedUntil,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("PRINCIPAL_SCAN_FAILED").
			With("operation", "scan principal").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("PRINCIPAL_INVALID_ID").
			With("operation", "parse principal id").
			With("id", idStr).
			Wrap(err)
	}

	role, err := auth.ParseRole(roleStr)
	if err != nil {
		return nil, oops.Code("PRINCIPAL_INVALID_ROLE").
			With("operation", "parse principal role").
			With("role", roleStr).
			Wrap(err)
	}

	return &auth.Principal{
		ID:             id,
		Email:          email,
		Name:           name,
		PasswordHash:   passwordHash,
		Role:           role,
		FailedAttempts: failedAttempts,
		LockedUntil:    lockedUntil,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.PrincipalRepository = (*PrincipalRepository)(nil)
