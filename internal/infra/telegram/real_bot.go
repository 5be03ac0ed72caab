package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-channel-subscription/internal/config"
	"telegram-channel-subscription/internal/domain"
	"telegram-channel-subscription/internal/domain/ports/repository"
	"telegram-channel-subscription/internal/usecase"
)

// RealTelegramBotAdapter implements adapter.TelegramBotAdapter using tgbotapi
// with concurrent polling. Outbound sends share one HTTP client with a hard
// timeout so a stuck bot API call can never block the recovery engine.
type RealTelegramBotAdapter struct {
	bot         *tgbotapi.BotAPI
	cfg         *config.BotConfig
	userRepo    repository.UserRepository
	recovery    usecase.RecoveryUseCase
	adminIDsMap map[int64]struct{}
	log         *zerolog.Logger

	// updateWorkers is how many goroutines will concurrently process updates.
	updateWorkers int
	// cancelPolling cancels polling when called
	cancelPolling context.CancelFunc
}

// NewRealTelegramBotAdapter creates a new bot adapter. The recovery use case
// is wired afterwards via SetRecovery, since it needs the adapter itself to
// dispatch messages.
func NewRealTelegramBotAdapter(cfg *config.BotConfig, userRepo repository.UserRepository, sendTimeout time.Duration, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if userRepo == nil {
		return nil, errors.New("userRepo is nil")
	}
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}

	client := &http.Client{Timeout: sendTimeout}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, err
	}

	adminMap := make(map[int64]struct{}, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		adminMap[id] = struct{}{}
	}

	botLog := logger.With().Str("component", "TelegramBot").Logger()
	return &RealTelegramBotAdapter{
		bot:           bot,
		cfg:           cfg,
		userRepo:      userRepo,
		adminIDsMap:   adminMap,
		log:           &botLog,
		updateWorkers: cfg.Workers,
	}, nil
}

// SetRecovery wires the recovery use case used by the /link reconciliation
// flow and the admin /sweep command. Must be called before StartPolling.
func (r *RealTelegramBotAdapter) SetRecovery(recovery usecase.RecoveryUseCase) {
	r.recovery = recovery
}

// SendMessage sends one text message to a Telegram chat id and returns the
// Telegram message id. The HTTP client timeout bounds the call.
func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, telegramID int64, text string) (int, error) {
	if telegramID <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(telegramID, text)
	sent, err := r.bot.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// StartPolling begins polling Telegram for updates concurrently.
// It runs until ctx is canceled.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	if r.recovery == nil {
		return errors.New("recovery use case not wired")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	workers := r.updateWorkers
	if workers <= 0 {
		workers = 5
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				select {
				case update, ok := <-updateChan:
					if !ok {
						return
					}
					if err := r.handleUpdate(ctx, update); err != nil {
						r.log.Error().Err(err).Int("worker", workerID).Msg("error handling update")
					}
				case <-ctx.Done():
					return
				}
			}
		}(i + 1)
	}

	// Dispatcher goroutine: feed updates into updateChan
	go func() {
		defer close(updateChan)
		for {
			select {
			case update := <-updates:
				select {
				case updateChan <- update:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	<-ctx.Done()
	r.bot.StopReceivingUpdates()
	wg.Wait()
	return nil
}

// StopPolling stops the polling loop gracefully.
func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.Message == nil || update.Message.From == nil {
		return nil
	}
	text := strings.TrimSpace(update.Message.Text)
	if !strings.HasPrefix(text, "/") {
		return r.reply(update.Message.Chat.ID, "Send /help for the list of commands.")
	}
	return r.handleCommand(ctx, update)
}

func (r *RealTelegramBotAdapter) handleCommand(ctx context.Context, update tgbotapi.Update) error {
	from := update.Message.From
	chatID := update.Message.Chat.ID
	fields := strings.Fields(update.Message.Text)
	cmd := strings.ToLower(fields[0])

	switch cmd {
	case "/start":
		return r.reply(chatID, "Welcome! If you purchased a channel subscription, link your account with:\n/link your@email.com\nYour invite links will be delivered here.")
	case "/help":
		return r.reply(chatID, "Available commands:\n/start\n/help\n/link <email> - connect your purchase account\n/sweep (admin only)")
	case "/link":
		if len(fields) < 2 {
			return r.reply(chatID, "Usage: /link your@email.com")
		}
		return r.handleLink(ctx, chatID, from, fields[1])
	case "/sweep":
		if !r.isAdmin(from.ID) {
			return r.reply(chatID, "You are not authorized to use this command.")
		}
		return r.handleSweep(ctx, chatID)
	default:
		return r.reply(chatID, "Unknown command. Send /help for the list of commands.")
	}
}

// handleLink binds the sender's Telegram identity to the purchase account
// with the given email, then reconciles any deliveries gated on the linkage.
func (r *RealTelegramBotAdapter) handleLink(ctx context.Context, chatID int64, from *tgbotapi.User, email string) error {
	user, err := r.userRepo.FindByEmail(ctx, repository.NoTX, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return r.reply(chatID, "No account found for that email. Check the address you purchased with.")
		}
		return err
	}
	if user.HasTelegramLinked() && *user.TelegramID != from.ID {
		return r.reply(chatID, "That account is already linked to a different Telegram user.")
	}

	if err := r.userRepo.SetTelegramID(ctx, repository.NoTX, user.ID, from.ID, from.UserName); err != nil {
		r.log.Error().Err(err).Str("user_id", user.ID).Msg("link telegram id")
		return r.reply(chatID, "Linking failed, please try again later.")
	}
	r.log.Info().Str("user_id", user.ID).Int64("tg_id", from.ID).Msg("telegram account linked")

	// Reconciliation trigger: re-deliver everything that was waiting on
	// this linkage.
	rep, err := r.recovery.ReconcileUser(ctx, user.ID)
	if err != nil {
		r.log.Error().Err(err).Str("user_id", user.ID).Msg("reconcile after link")
		return r.reply(chatID, "Account linked. Your pending invite links will be delivered shortly.")
	}
	if rep.Requeued == 0 {
		return r.reply(chatID, "Account linked. You have no pending deliveries.")
	}
	return r.reply(chatID, fmt.Sprintf("Account linked. Delivered %d of %d pending purchase(s); the rest will be retried automatically.", rep.Succeeded, rep.Requeued))
}

func (r *RealTelegramBotAdapter) handleSweep(ctx context.Context, chatID int64) error {
	rep, err := r.recovery.Sweep(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrSweepInProgress) {
			return r.reply(chatID, "A sweep is already running.")
		}
		r.log.Error().Err(err).Msg("manual sweep failed")
		return r.reply(chatID, "Sweep failed, check the logs.")
	}
	return r.reply(chatID, fmt.Sprintf("Sweep done: %d processed, %d delivered, %d failed, %d awaiting link.",
		rep.Processed, rep.Succeeded, rep.Failed, rep.PendingLink))
}

func (r *RealTelegramBotAdapter) reply(chatID int64, text string) error {
	_, err := r.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (r *RealTelegramBotAdapter) isAdmin(tgID int64) bool {
	_, ok := r.adminIDsMap[tgID]
	return ok
}
