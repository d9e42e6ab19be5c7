// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SiteDesk Contributors

package auth

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitedesk/sitedesk/pkg/errutil"
)

func TestNewResetToken(t *testing.T) {
	principalID := ulid.Make()
	expiresAt := time.Now().Add(ResetTokenTTL)

	token, err := NewResetToken(principalID, "somehash", expiresAt)
	require.NoError(t, err)

	assert.NotZero(t, token.ID)
	assert.Equal(t, principalID, token.PrincipalID)
	assert.Equal(t, "somehash", token.TokenHash)
	assert.Equal(t, expiresAt, token.ExpiresAt)
	assert.Nil(t, token.ConsumedAt)
	assert.False(t, token.IsConsumed())
}

func TestNewResetToken_Validation(t *testing.T) {
	expiresAt := time.Now().Add(time.Hour)

	tests := []struct {
		name      string
		principal ulid.ULID
		hash      string
		expiresAt time.Time
		wantCode  string
	}{
		{"zero principal", ulid.ULID{}, "hash", expiresAt, "RESET_INVALID_PRINCIPAL"},
		{"empty hash", ulid.Make(), "", expiresAt, "RESET_INVALID_HASH"},
		{"zero expiry", ulid.Make(), "hash", time.Time{}, "RESET_INVALID_EXPIRY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResetToken(tt.principal, tt.hash, tt.expiresAt)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestResetToken_IsExpired(t *testing.T) {
	live, err := NewResetToken(ulid.Make(), "hash", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, live.IsExpired())

	// Expiry check operates on the struct, not on construction-time validation.
	live.ExpiresAt = time.Now().Add(-time.Minute)
	assert.True(t, live.IsExpired())
}

func TestResetToken_IsConsumed(t *testing.T) {
	token, err := NewResetToken(ulid.Make(), "hash", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, token.IsConsumed())

	now := time.Now()
	token.ConsumedAt = &now
	assert.True(t, token.IsConsumed())
}

func TestGenerateResetToken(t *testing.T) {
	token, hash, err := GenerateResetToken()
	require.NoError(t, err)

	assert.Len(t, token, ResetTokenBytes*2)
	assert.Equal(t, HashResetToken(token), hash)

	token2, _, err := GenerateResetToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, token2)
}

func TestVerifyResetToken(t *testing.T) {
	token, hash, err := GenerateResetToken()
	require.NoError(t, err)

	assert.True(t, VerifyResetToken(token, hash))
	assert.False(t, VerifyResetToken("wrong", hash))
	assert.False(t, VerifyResetToken("", hash))
	assert.False(t, VerifyResetToken(token, ""))
}
