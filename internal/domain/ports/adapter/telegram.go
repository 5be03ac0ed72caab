// File: internal/domain/ports/adapter/telegram.go
package adapter

import "context"

// TelegramBotAdapter is the outbound boundary to the Telegram Bot API.
// SendMessage performs exactly one send and returns the Telegram message id
// on acknowledgment. The implementation carries a bounded network timeout so
// a stuck call cannot block the recovery engine.
type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, telegramID int64, text string) (int, error)
}
