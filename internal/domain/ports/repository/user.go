package repository

import (
	"context"

	"telegram-channel-subscription/internal/domain/model"
)

// -----------------------------
// Users
// -----------------------------

type UserRepository interface {
	Save(ctx context.Context, tx Tx, user *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	FindByEmail(ctx context.Context, tx Tx, email string) (*model.User, error)
	FindByTelegramID(ctx context.Context, tx Tx, telegramID int64) (*model.User, error)
	// SetTelegramID binds a Telegram identity to the user record.
	SetTelegramID(ctx context.Context, tx Tx, userID string, telegramID int64, username string) error
}
