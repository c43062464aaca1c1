package storage

import (
	"context"
	"errors"

	"github.com/fashionlens/fashion-lens-be/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// ErrInsufficientCoins indicates a debit larger than the current balance.
var ErrInsufficientCoins = errors.New("insufficient coins")

// ErrInvalidAmount indicates a non-positive debit.
var ErrInvalidAmount = errors.New("amount must be positive")

// UserStore captures persistence operations needed by handlers.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	// DebitCoins atomically subtracts amount, refusing to go below zero.
	DebitCoins(ctx context.Context, id string, amount int64) (models.User, error)
	Close()
}
