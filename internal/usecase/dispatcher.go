package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"telegram-channel-subscription/internal/domain"
	"telegram-channel-subscription/internal/domain/model"
	"telegram-channel-subscription/internal/domain/ports/adapter"
)

// messageDispatcher formats the invite-link message and performs exactly one
// bot API send per Dispatch call under a bounded deadline. Idempotence across
// calls is the recovery engine's responsibility, not this component's.
type messageDispatcher struct {
	bot     adapter.TelegramBotAdapter
	timeout time.Duration
}

func newMessageDispatcher(bot adapter.TelegramBotAdapter, timeout time.Duration) *messageDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &messageDispatcher{bot: bot, timeout: timeout}
}

func (d *messageDispatcher) Dispatch(ctx context.Context, telegramID int64, buyerName, planName string, links []model.Channel) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	msgID, err := d.bot.SendMessage(ctx, telegramID, formatInviteMessage(buyerName, planName, links))
	if err != nil {
		return 0, domain.NewDeliveryError(domain.FailureTransient, "telegram send failed", err)
	}
	return msgID, nil
}

// formatInviteMessage lists all links numbered, one per line.
func formatInviteMessage(buyerName, planName string, links []model.Channel) string {
	var b strings.Builder
	name := strings.TrimSpace(buyerName)
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hi %s, your payment for \"%s\" is confirmed.\n\n", name, planName)
	b.WriteString("Here are your channel invite links:\n")
	for i, ch := range links {
		fmt.Fprintf(&b, "%d. %s", i+1, ch.InviteLink)
		if strings.TrimSpace(ch.Title) != "" {
			fmt.Fprintf(&b, " (%s)", ch.Title)
		}
		b.WriteByte('\n')
	}
	b.WriteString("\nKeep these links private. They are tied to your account.")
	return b.String()
}
