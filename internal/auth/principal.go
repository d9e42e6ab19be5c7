// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SiteDesk Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Display-name validation constraints.
const (
	MinNameLength = 2
	MaxNameLength = 80
)

// MaxEmailLength caps stored email addresses (RFC 5321 path limit).
const MaxEmailLength = 254

// emailRegex is a pragmatic RFC 5322 subset; full validation happens when the
// external mail collaborator actually delivers to the address.
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Principal represents an authenticated account, the subject of all
// authorization decisions.
type Principal struct {
	ID             ulid.ULID
	Email          string
	Name           string
	PasswordHash   string
	Role           Role
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewPrincipal creates a validated Principal with role RoleUser.
// The password hash must already be produced by a PasswordHasher.
func NewPrincipal(email, name, passwordHash string) (*Principal, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &Principal{
		ID:           ulid.Make(),
		Email:        NormalizeEmail(email),
		Name:         name,
		PasswordHash: passwordHash,
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsLocked returns true if the principal is currently locked out.
func (p *Principal) IsLocked() bool {
	return IsLockedOut(p.LockedUntil)
}

// RecordFailure increments the failure counter and sets lockout if threshold reached.
func (p *Principal) RecordFailure() {
	p.FailedAttempts++
	p.LockedUntil = ComputeLockoutTime(p.FailedAttempts)
	p.UpdatedAt = time.Now()
}

// RecordSuccess resets failure counter and lockout.
func (p *Principal) RecordSuccess() {
	p.FailedAttempts = 0
	p.LockedUntil = nil
	p.UpdatedAt = time.Now()
}

// NormalizeEmail lowercases an email for storage and lookup. Emails are a
// case-insensitive unique key; normalizing once here keeps every repository
// query a plain equality match against the lowercased column.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail validates an email address shape.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code("AUTH_INVALID_EMAIL").
			With("max", MaxEmailLength).
			Errorf("email must be at most %d characters", MaxEmailLength)
	}
	if !emailRegex.MatchString(email) {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email address is not valid")
	}
	return nil
}

// ValidateName validates a principal's display name.
func ValidateName(name string) error {
	if len(strings.TrimSpace(name)) < MinNameLength {
		return oops.Code("AUTH_INVALID_NAME").
			With("min", MinNameLength).
			Errorf("name must be at least %d characters", MinNameLength)
	}
	if len(name) > MaxNameLength {
		return oops.Code("AUTH_INVALID_NAME").
			With("max", MaxNameLength).
			Errorf("name must be at most %d characters", MaxNameLength)
	}
	return nil
}

// PrincipalRepository manages principal persistence.
type PrincipalRepository interface {
	// Create stores a new principal. Returns an error wrapping
	// ErrDuplicateEmail if the email is already registered.
	Create(ctx context.Context, principal *Principal) error

	// GetByID retrieves a principal by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Principal, error)

	// GetByEmail retrieves a principal by email (case-insensitive).
	// Returns ErrNotFound if no principal has the given email.
	GetByEmail(ctx context.Context, email string) (*Principal, error)

	// Update updates an existing principal.
	Update(ctx context.Context, principal *Principal) error

	// UpdatePassword updates only the password hash for a principal.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// UpdateRole updates only the role for a principal.
	UpdateRole(ctx context.Context, id ulid.ULID, role Role) error
}
