package user

import (
	"context"
	"fmt"
)

var ErrUserNotFound = fmt.Errorf("user not found")
var ErrDuplicateUser = fmt.Errorf("user already exists")

// Repository defines the operations for persisting and retrieving users.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*User, error)
	Update(ctx context.Context, u *User) error
	ListAll(ctx context.Context) ([]*User, error)
}
