package identity

import (
	"context"
	"errors"
)

// ErrUserNotFound is returned when no account matches a username.
var ErrUserNotFound = errors.New("user not found")

// UserRepository persists application users.
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, u *User) error
}
