// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SiteDesk Contributors

// Package auth provides authentication primitives for SiteDesk.
//
// # Domain Types
//
// Domain types (Principal, Session, ResetToken) should be created using
// their respective constructors:
//   - NewPrincipal - creates a Principal with validated email and password hash
//   - NewSession - creates a Session with validated principal and expiry
//   - NewResetToken - creates a ResetToken with validated principal and expiry
//
// Direct struct initialization bypasses validation and may create invalid state.
// Repository implementations receive pre-validated types from these constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - registration, login, logout, session resolution
//   - PasswordResetService - reset token issuance and redemption
//   - Sweeper - lazy-expiry backstop that prunes dead sessions and tokens
//
// Services are created with New* constructors that validate dependencies.
package auth
