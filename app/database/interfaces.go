package database

import (
	"context"
	"errors"
)

var (
	ErrEmailTaken    = errors.New("email already registered")
	ErrUserNotFound  = errors.New("user not found")
	ErrInvalidRating = errors.New("rating must be between 0 and 4")
)

type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserCount(ctx context.Context) (int, error)

	CreateUser(ctx context.Context, user User) error
	UpdateDisplayName(ctx context.Context, id, displayName string) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}

type OverlayRepository interface {
	GetOverlay(ctx context.Context, userID, collection string, itemID int) (*Overlay, error)
	ListFavorites(ctx context.Context, userID, collection string) ([]Overlay, error)
	GetOverlayCount(ctx context.Context, userID string) (int, error)

	SetOverlay(ctx context.Context, overlay Overlay) error
}
