package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/jobpilot/jobpilot/internal/errs"
	"github.com/jobpilot/jobpilot/internal/model"
)

// CVRepo implements CVRepository using PostgreSQL.
type CVRepo struct{ db *DB }

// NewCVRepo constructs a CV repository.
func NewCVRepo(db *DB) *CVRepo { return &CVRepo{db: db} }

// Create inserts a new CV row.
func (r *CVRepo) Create(ctx context.Context, cv *model.CV) error {
	const q = `
INSERT INTO cvs (id, user_id, file_name, storage_key, size_bytes, uploaded_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Pool.Exec(ctx, q, cv.ID, cv.UserID, cv.FileName, cv.StorageKey, cv.SizeBytes, cv.UploadedAt)
	return mapErr(err)
}

// GetByID selects one CV scoped to its owner.
func (r *CVRepo) GetByID(ctx context.Context, userID, id uuid.UUID) (*model.CV, error) {
	const q = `
SELECT id, user_id, file_name, storage_key, size_bytes, uploaded_at
FROM cvs WHERE id=$1 AND user_id=$2`
	row := r.db.Pool.QueryRow(ctx, q, id, userID)
	var cv model.CV
	if err := row.Scan(&cv.ID, &cv.UserID, &cv.FileName, &cv.StorageKey, &cv.SizeBytes, &cv.UploadedAt); err != nil {
		return nil, mapErr(err)
	}
	return &cv, nil
}

// ListByUser returns the user's CVs, newest first.
func (r *CVRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.CV, error) {
	const q = `
SELECT id, user_id, file_name, storage_key, size_bytes, uploaded_at
FROM cvs WHERE user_id=$1 ORDER BY uploaded_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []model.CV
	for rows.Next() {
		var cv model.CV
		if err := rows.Scan(&cv.ID, &cv.UserID, &cv.FileName, &cv.StorageKey, &cv.SizeBytes, &cv.UploadedAt); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, cv)
	}
	return out, mapErr(rows.Err())
}

// Delete removes a CV row owned by the user.
func (r *CVRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	const q = `DELETE FROM cvs WHERE id=$1 AND user_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, id, userID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
