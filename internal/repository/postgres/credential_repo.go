package postgres

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/jobpilot/jobpilot/internal/model"
)

// CredentialRepo implements CredentialRepository using PostgreSQL.
type CredentialRepo struct{ db *DB }

// NewCredentialRepo constructs a credential repository.
func NewCredentialRepo(db *DB) *CredentialRepo { return &CredentialRepo{db: db} }

// Load selects the single credential record for a user.
func (r *CredentialRepo) Load(ctx context.Context, userID uuid.UUID) (*model.CredentialRecord, error) {
	const q = `
SELECT user_id, access_token, refresh_token, expires_at, created_at, updated_at
FROM google_tokens WHERE user_id=$1`
	row := r.db.Pool.QueryRow(ctx, q, userID)
	var rec model.CredentialRecord
	if err := row.Scan(&rec.UserID, &rec.AccessTokenEnc, &rec.RefreshTokenEnc,
		&rec.ExpiresAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &rec, nil
}

// Upsert inserts or replaces the record keyed by user_id. The access token
// ciphertext and expires_at always land in the same statement so a reader
// can never observe one without the other.
func (r *CredentialRepo) Upsert(ctx context.Context, userID uuid.UUID, accessEnc, refreshEnc string, expiresAt time.Time) error {
	const q = `
INSERT INTO google_tokens (user_id, access_token, refresh_token, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE
SET access_token=EXCLUDED.access_token,
    refresh_token=EXCLUDED.refresh_token,
    expires_at=EXCLUDED.expires_at,
    updated_at=now()`
	_, err := r.db.Pool.Exec(ctx, q, userID, accessEnc, refreshEnc, expiresAt)
	return mapErr(err)
}

// Delete removes the record. Zero rows affected is fine: disconnect is
// idempotent.
func (r *CredentialRepo) Delete(ctx context.Context, userID uuid.UUID) error {
	const q = `DELETE FROM google_tokens WHERE user_id=$1`
	_, err := r.db.Pool.Exec(ctx, q, userID)
	return mapErr(err)
}
