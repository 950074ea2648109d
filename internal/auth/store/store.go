package store

import (
	"context"

	"civreg/internal/auth/models"
	id "civreg/pkg/domain"
)

// Store persists user accounts. Email uniqueness is enforced by the store
// and surfaces as sentinel.ErrConflict.
type Store interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}
