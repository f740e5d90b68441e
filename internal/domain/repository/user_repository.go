package repository

import (
	"context"

	"github.com/cartline/user-service/internal/domain/entity"
)

// UserUpdate carries the mutable profile fields of a partial update.
// Nil fields are left untouched.
type UserUpdate struct {
	Name      *string
	AvatarURL *string
}

// UserRepository is the persistence adapter contract for the users collection.
// Implementations own the stored representation; callers never see
// store-level errors, only the domain taxonomy.
type UserRepository interface {
	Insert(ctx context.Context, u *entity.User) error
	FindByID(ctx context.Context, id string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	Update(ctx context.Context, id string, upd UserUpdate) (*entity.User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
	SoftDelete(ctx context.Context, id string) error
}
