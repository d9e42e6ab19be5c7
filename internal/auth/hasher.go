// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SiteDesk Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"runtime"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/scrypt"
)

// scrypt work parameters. N=32768 keeps a single derivation in the tens of
// milliseconds on current server hardware; parameters are encoded into every
// hash so they can be raised without invalidating stored credentials.
const (
	scryptN       = 32768 // CPU/memory cost (power of two)
	scryptR       = 8     // block size
	scryptP       = 1     // parallelism
	scryptSaltLen = 16    // salt length in bytes
	scryptKeyLen  = 64    // derived key length in bytes
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted scrypt hash of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid hash.
	Verify(password, hash string) (bool, error)

	// NeedsRehash returns true if the hash was produced with outdated work parameters.
	NeedsRehash(hash string) bool
}

// ScryptHasher implements PasswordHasher using scrypt.
//
// Key derivation is CPU-bound by design. A semaphore sized to the CPU count
// bounds the number of concurrent derivations so a burst of login attempts
// cannot starve unrelated request goroutines.
type ScryptHasher struct {
	sem chan struct{}
}

// NewScryptHasher creates a new ScryptHasher.
func NewScryptHasher() *ScryptHasher {
	return &ScryptHasher{sem: make(chan struct{}, runtime.NumCPU())}
}

// Hash produces a salted scrypt hash of the password.
//
// The encoded form is "$scrypt$N=...,r=...,p=...$<salt hex>$<key hex>".
// The "$" delimiter can never appear inside the hex components.
func (h *ScryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, scryptSaltLen)
	if _, err := rand.Read(salt); err != nil {
		// Entropy source failure is not recoverable; callers must treat
		// this as fatal rather than fall back to weaker hashing.
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key, err := h.derive([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").Wrap(err)
	}

	encoded := fmt.Sprintf(
		"$scrypt$N=%d,r=%d,p=%d$%s$%s",
		scryptN,
		scryptR,
		scryptP,
		hex.EncodeToString(salt),
		hex.EncodeToString(key),
	)

	return encoded, nil
}

// Verify checks if the password matches the encoded hash.
// A mismatch is reported as (false, nil); errors indicate a malformed record
// and callers must treat them as "credentials do not match", never as proof
// that the account exists or which half of the check failed.
func (h *ScryptHasher) Verify(password, encodedHash string) (bool, error) {
	n, r, p, salt, expectedKey, err := parseScryptHash(encodedHash)
	if err != nil {
		return false, err
	}

	keyLen := len(expectedKey)
	if keyLen == 0 || keyLen > 1<<10 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", keyLen)
	}

	computed, err := h.derive([]byte(password), salt, n, r, p, keyLen)
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	if subtle.ConstantTimeCompare(computed, expectedKey) == 1 {
		return true, nil
	}

	return false, nil
}

// NeedsRehash returns true if the hash predates the current work parameters.
func (h *ScryptHasher) NeedsRehash(encodedHash string) bool {
	if !strings.HasPrefix(encodedHash, "$scrypt$") {
		return true
	}
	n, r, p, _, _, err := parseScryptHash(encodedHash)
	if err != nil {
		return true
	}
	return n != scryptN || r != scryptR || p != scryptP
}

// derive runs the scrypt KDF under the concurrency semaphore.
func (h *ScryptHasher) derive(password, salt []byte, n, r, p, keyLen int) ([]byte, error) {
	h.sem <- struct{}{}
	defer func() { <-h.sem }()
	return scrypt.Key(password, salt, n, r, p, keyLen) //nolint:wrapcheck // callers wrap with codes
}

// parseScryptHash splits an encoded hash into parameters, salt, and key.
func parseScryptHash(encodedHash string) (n, r, p int, salt, key []byte, err error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 5 {
		return 0, 0, 0, nil, nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}

	if parts[1] != "scrypt" {
		return 0, 0, 0, nil, nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	if _, err := fmt.Sscanf(parts[2], "N=%d,r=%d,p=%d", &n, &r, &p); err != nil {
		return 0, 0, 0, nil, nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	salt, err = hex.DecodeString(parts[3])
	if err != nil {
		return 0, 0, 0, nil, nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	key, err = hex.DecodeString(parts[4])
	if err != nil {
		return 0, 0, 0, nil, nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	return n, r, p, salt, key, nil
}

// Compile-time interface check.
var _ PasswordHasher = (*ScryptHasher)(nil)
