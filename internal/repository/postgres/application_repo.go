package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/jobpilot/jobpilot/internal/model"
)

// ApplicationRepo implements ApplicationRepository using PostgreSQL.
type ApplicationRepo struct{ db *DB }

// NewApplicationRepo constructs an application repository.
func NewApplicationRepo(db *DB) *ApplicationRepo { return &ApplicationRepo{db: db} }

// Create inserts a new application row.
func (r *ApplicationRepo) Create(ctx context.Context, app *model.Application) error {
	const q = `
INSERT INTO applications (id, user_id, cv_id, job_description, score, document_url, email_sent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Pool.Exec(ctx, q,
		app.ID, app.UserID, app.CVID, app.JobDescription, app.Score, app.DocumentURL, app.EmailSent, app.CreatedAt)
	return mapErr(err)
}

// ListByUser returns the user's applications, newest first.
func (r *ApplicationRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Application, error) {
	const q = `
SELECT id, user_id, cv_id, job_description, score, document_url, email_sent, created_at
FROM applications WHERE user_id=$1 ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []model.Application
	for rows.Next() {
		var a model.Application
		if err := rows.Scan(&a.ID, &a.UserID, &a.CVID, &a.JobDescription, &a.Score,
			&a.DocumentURL, &a.EmailSent, &a.CreatedAt); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, a)
	}
	return out, mapErr(rows.Err())
}
