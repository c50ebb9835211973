package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/jobpilot/jobpilot/internal/model"
)

// CVRepository provides access to uploaded CV metadata.
type CVRepository interface {
	// Create inserts a new CV row.
	Create(ctx context.Context, cv *model.CV) error
	// GetByID loads one CV owned by the user.
	GetByID(ctx context.Context, userID, id uuid.UUID) (*model.CV, error)
	// ListByUser returns the user's CVs, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.CV, error)
	// Delete removes a CV row; errs.ErrNotFound if it does not exist.
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// ApplicationRepository provides access to application history.
type ApplicationRepository interface {
	// Create inserts a new application row.
	Create(ctx context.Context, app *model.Application) error
	// ListByUser returns the user's applications, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Application, error)
}
