// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/jobpilot/jobpilot/internal/model"
)

// CredentialRepository maps one user's encrypted Google credential record
// to and from the store. Implementations never see plaintext tokens.
type CredentialRepository interface {
	// Load fetches the single record for the user. errs.ErrNotFound means
	// the user never connected; errs.ErrStoreUnavailable means the store
	// itself is unreachable.
	Load(ctx context.Context, userID uuid.UUID) (*model.CredentialRecord, error)

	// Upsert inserts or replaces the record keyed by user id. The access
	// token ciphertext and expires_at change in the same atomic write.
	Upsert(ctx context.Context, userID uuid.UUID, accessEnc, refreshEnc string, expiresAt time.Time) error

	// Delete removes the record. Deleting an absent record is not an error.
	Delete(ctx context.Context, userID uuid.UUID) error
}
