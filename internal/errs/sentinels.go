// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Credential lifecycle sentinels. The three terminal kinds (NotConnected,
// CorruptCredential, ReauthRequired) are caller-visible and must never be
// conflated: each maps to a different user-facing instruction.
var (
	// ErrNotConnected indicates no credential record exists for the user;
	// the user has to complete OAuth consent first.
	ErrNotConnected = errors.New("google account not connected")

	// ErrCorruptCredential indicates stored ciphertext failed integrity
	// verification (key rotation mismatch or storage corruption).
	ErrCorruptCredential = errors.New("stored credential is corrupt")

	// ErrReauthRequired indicates the provider rejected the refresh token;
	// the user must redo consent.
	ErrReauthRequired = errors.New("reauthorization required")

	// ErrRefreshRejected is the provider-client level rejection
	// (invalid_grant and friends) before the lifecycle manager maps it.
	ErrRefreshRejected = errors.New("refresh token rejected by provider")

	// ErrProviderUnavailable indicates a transient network/provider failure;
	// safe to retry with backoff.
	ErrProviderUnavailable = errors.New("oauth provider unavailable")

	// ErrScopeMissing indicates a live token that lacks the delegated
	// send permission.
	ErrScopeMissing = errors.New("required scope missing")
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates a request that fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable indicates the persistence layer is unreachable.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrIntegrity indicates an AEAD authentication failure on decrypt.
	ErrIntegrity = errors.New("ciphertext integrity check failed")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")
)
