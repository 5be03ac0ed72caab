package telegram

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"telegram-channel-subscription/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.AdminNotifier = (*AdminAlerter)(nil)

// AdminAlerter delivers operational alerts to the configured admin chat IDs
// through the bot. Strictly fire-and-forget: every failure is logged and
// swallowed.
type AdminAlerter struct {
	bot      adapter.TelegramBotAdapter
	adminIDs []int64
	log      *zerolog.Logger
}

func NewAdminAlerter(bot adapter.TelegramBotAdapter, adminIDs []int64, logger *zerolog.Logger) *AdminAlerter {
	alertLog := logger.With().Str("component", "AdminAlerter").Logger()
	return &AdminAlerter{bot: bot, adminIDs: adminIDs, log: &alertLog}
}

func (a *AdminAlerter) Notify(ctx context.Context, title, message string, severity adapter.Severity, data map[string]string) {
	if len(a.adminIDs) == 0 {
		return
	}
	text := formatAlert(title, message, severity, data)
	for _, id := range a.adminIDs {
		if _, err := a.bot.SendMessage(ctx, id, text); err != nil {
			a.log.Warn().Err(err).Int64("admin_id", id).Msg("admin alert not delivered")
		}
	}
}

func formatAlert(title, message string, severity adapter.Severity, data map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n%s", strings.ToUpper(string(severity)), title, message)
	if len(data) > 0 {
		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "\n%s: %s", k, data[k])
		}
	}
	return b.String()
}
