// Package users declares the repository contract for the users table.
//
// The auth core treats user records as owned by the surrounding application:
// it reads them and updates password hashes, nothing else.
package users

import (
	"context"

	"github.com/ShayanSiddiqui862/todo-auth-service/internal/server/models"
)

// Repository defines the user lookups and the single mutation the auth core
// performs. Lookups return common.ErrorNotFound when no row matches; Create
// returns common.ErrorAlreadyExists on a username or email collision.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error
}
