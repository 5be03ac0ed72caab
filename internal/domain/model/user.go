package model

import (
	"time"

	"telegram-channel-subscription/internal/domain"

	"github.com/google/uuid"
)

// User is a buyer. TelegramID is nil until the user links their Telegram
// account; invite links cannot be delivered before that.
type User struct {
	ID               string
	Email            string
	FullName         string
	TelegramID       *int64
	TelegramUsername string
	RegisteredAt     time.Time
	LinkedAt         *time.Time
}

func NewUser(id, email, fullName string) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if email == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &User{
		ID:           id,
		Email:        email,
		FullName:     fullName,
		RegisteredAt: time.Now(),
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

func (u *User) HasTelegramLinked() bool {
	return u != nil && u.TelegramID != nil && *u.TelegramID > 0
}

// LinkTelegram binds a Telegram identity to the user.
func (u *User) LinkTelegram(tgID int64, username string) error {
	if tgID <= 0 {
		return domain.ErrInvalidArgument
	}
	now := time.Now()
	u.TelegramID = &tgID
	u.TelegramUsername = username
	u.LinkedAt = &now
	return nil
}
