package users

import (
	"context"
	"time"

	"github.com/include-portal/users-api/internal/models"
)

// MutateFunc edits a loaded record in place before it is written back.
// Returning an error aborts the write.
type MutateFunc func(u *models.User) error

// UserRepository defines persistence operations for users. Records with
// Deleted set are invisible to every lookup but keep their keycloak_id.
type UserRepository interface {
	// Create inserts u and assigns its ID. ErrAlreadyExists when the keycloak_id is taken.
	Create(ctx context.Context, u *models.User) (*models.User, error)
	// GetBySub returns the live record for sub or ErrNotFound.
	GetBySub(ctx context.Context, sub string) (*models.User, error)
	// UpdateBySub loads, mutates and writes the record as one atomic step, so
	// concurrent updates to different fields are never lost.
	UpdateBySub(ctx context.Context, sub string, mutate MutateFunc) (*models.User, error)
	// DeleteBySub sets deleted=true and updated_date=at (soft) or removes the row.
	DeleteBySub(ctx context.Context, sub string, soft bool, at time.Time) error
	Ping(ctx context.Context) error
}
