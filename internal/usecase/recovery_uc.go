// File: internal/usecase/recovery_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-channel-subscription/internal/domain"
	"telegram-channel-subscription/internal/domain/model"
	"telegram-channel-subscription/internal/domain/ports/adapter"
	"telegram-channel-subscription/internal/domain/ports/repository"
	"telegram-channel-subscription/internal/infra/metrics"
)

// Compile-time check
var _ RecoveryUseCase = (*recoveryUC)(nil)

// sweepLockKey is the redis lease key shared by all instances.
const sweepLockKey = "delivery:sweep:lock"

// RecoveryUseCase drives invite-link delivery for succeeded payments:
// initial delivery, retry with backoff, periodic sweeps over failed
// deliveries, and reconciliation once a buyer links their Telegram account.
type RecoveryUseCase interface {
	// RecoverPayment runs one delivery attempt sequence for a single payment.
	// A missing payment is a hard error; a delivery failure is recorded on
	// the payment and returned.
	RecoverPayment(ctx context.Context, paymentID string) (*model.Payment, error)
	// RecoverBatch processes the given payment ids sequentially and never
	// aborts early because one of them failed.
	RecoverBatch(ctx context.Context, paymentIDs []string) (*BatchReport, error)
	// Sweep discovers all outstanding failed deliveries and processes them
	// sequentially. A second concurrent call returns ErrSweepInProgress.
	Sweep(ctx context.Context) (*SweepReport, error)
	// ReconcileUser re-queues the user's payments gated on a missing
	// Telegram linkage. The only path that unblocks pending_telegram_link.
	ReconcileUser(ctx context.Context, userID string) (*ReconcileReport, error)
}

// Locker is the distributed sweep lease. Optional: when nil, only the
// in-process flag guards the sweep.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type SweepReport struct {
	Processed   int           `json:"processed"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	PendingLink int           `json:"pending_telegram_link"`
	Skipped     int           `json:"skipped"`
	Duration    time.Duration `json:"duration_ns"`
}

type BatchReport struct {
	Requested int      `json:"requested"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	NotFound  []string `json:"not_found,omitempty"`
}

type ReconcileReport struct {
	Requeued  int `json:"requeued"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// RecoveryOptions carry the engine tunables. Zero values fall back to the
// documented defaults (5 attempts, 5s base, 5m cap, 1s item delay, 10m grace).
type RecoveryOptions struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	ItemDelay   time.Duration
	StaleAfter  time.Duration
	BatchLimit  int
	LockTTL     time.Duration
}

func (o RecoveryOptions) withDefaults() RecoveryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 5 * time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 5 * time.Minute
	}
	if o.ItemDelay <= 0 {
		o.ItemDelay = time.Second
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 10 * time.Minute
	}
	if o.BatchLimit <= 0 {
		o.BatchLimit = 200
	}
	if o.LockTTL <= 0 {
		o.LockTTL = 10 * time.Minute
	}
	return o
}

type recoveryUC struct {
	payments   repository.PaymentRepository
	users      repository.UserRepository
	plans      repository.PlanRepository
	log_       repository.DeliveryLogRepository
	dispatcher *messageDispatcher
	notifier   adapter.AdminNotifier
	locker     Locker // may be nil
	opts       RecoveryOptions
	log        *zerolog.Logger

	sweeping atomic.Bool
	// sleep is injected so tests can observe the backoff schedule without
	// waiting it out.
	sleep func(ctx context.Context, d time.Duration)
}

func NewRecoveryUseCase(
	payments repository.PaymentRepository,
	users repository.UserRepository,
	plans repository.PlanRepository,
	deliveryLog repository.DeliveryLogRepository,
	bot adapter.TelegramBotAdapter,
	notifier adapter.AdminNotifier,
	locker Locker,
	opts RecoveryOptions,
	dispatchTimeout time.Duration,
	logger *zerolog.Logger,
) *recoveryUC {
	ucLog := logger.With().Str("component", "RecoveryUC").Logger()
	return &recoveryUC{
		payments:   payments,
		users:      users,
		plans:      plans,
		log_:       deliveryLog,
		dispatcher: newMessageDispatcher(bot, dispatchTimeout),
		notifier:   notifier,
		locker:     locker,
		opts:       opts.withDefaults(),
		log:        &ucLog,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// backoffDelay is the pure backoff schedule: min(base * 2^attempt, max).
func (u *recoveryUC) backoffDelay(attempt int) time.Duration {
	d := u.opts.BaseDelay << uint(attempt)
	if d <= 0 || d > u.opts.MaxDelay {
		return u.opts.MaxDelay
	}
	return d
}

func (u *recoveryUC) RecoverPayment(ctx context.Context, paymentID string) (*model.Payment, error) {
	p, err := u.payments.FindByID(ctx, repository.NoTX, paymentID)
	if err != nil {
		return nil, err
	}
	if !p.DeliveryEligible() {
		return nil, domain.ErrPaymentNotEligible
	}
	if p.Delivery.LinkDelivered {
		// Already delivered; never resend.
		return p, nil
	}
	return p, u.deliver(ctx, p)
}

func (u *recoveryUC) RecoverBatch(ctx context.Context, paymentIDs []string) (*BatchReport, error) {
	rep := &BatchReport{Requested: len(paymentIDs)}
	for i, id := range paymentIDs {
		if i > 0 {
			u.sleep(ctx, u.opts.ItemDelay)
		}
		_, err := u.RecoverPayment(ctx, id)
		switch {
		case err == nil:
			rep.Succeeded++
		case errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrPaymentNotEligible):
			rep.NotFound = append(rep.NotFound, id)
		default:
			rep.Failed++
		}
	}
	return rep, nil
}

// deliver runs the full attempt sequence for one succeeded payment: identity
// gate, channel resolution, then up to MaxAttempts dispatches with
// exponential backoff. All failures are recorded on the payment document.
func (u *recoveryUC) deliver(ctx context.Context, p *model.Payment) error {
	log := u.log.With().Str("payment_id", p.ID).Logger()

	user, err := u.users.FindByID(ctx, repository.NoTX, p.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// A payment pointing at no buyer cannot be fixed by retrying.
			return u.failTerminal(ctx, p, domain.NewDeliveryError(domain.FailureConfig, "buyer record missing", err))
		}
		// Repo fault: leave the payment in retrying so the next sweep picks
		// it up. No dispatch happened, so the attempt counter stays put.
		now := time.Now()
		derr := domain.NewDeliveryError(domain.FailureTransient, "buyer lookup failed", err)
		p.Delivery.Status = model.DeliveryStatusRetrying
		p.Delivery.FailureReason = derr.Error()
		p.Delivery.LastAttemptAt = &now
		if uerr := u.payments.UpdateDeliveryState(ctx, repository.NoTX, p.ID, p.Delivery); uerr != nil {
			log.Error().Err(uerr).Msg("persist retrying state")
		}
		log.Warn().Err(err).Msg("buyer lookup failed, deferring to next sweep")
		return derr
	}

	// Link-required gate: re-checked on every sequence, never cached, and
	// never fed to the backoff loop since retries cannot fix it.
	if !user.HasTelegramLinked() {
		now := time.Now()
		p.Delivery.Status = model.DeliveryStatusPendingLink
		p.Delivery.TelegramLinkRequired = true
		p.Delivery.FailureReason = "buyer has no linked telegram account"
		p.Delivery.LastAttemptAt = &now
		if err := u.payments.UpdateDeliveryState(ctx, repository.NoTX, p.ID, p.Delivery); err != nil {
			log.Error().Err(err).Msg("persist pending_telegram_link state")
		}
		metrics.IncDelivery(string(model.DeliveryStatusPendingLink))
		log.Info().Str("user_id", user.ID).Msg("delivery gated on telegram linkage")
		return domain.NewDeliveryError(domain.FailureIdentityMissing, "buyer has no linked telegram account", domain.ErrTelegramNotLinked)
	}

	plan, err := u.plans.FindByID(ctx, repository.NoTX, p.PlanID)
	if err != nil {
		return u.failTerminal(ctx, p, domain.NewDeliveryError(domain.FailureConfig, "plan lookup failed", err))
	}
	links, err := ResolveInviteLinks(plan)
	if err != nil {
		// Misconfiguration, not transient; no dispatch, no attempt increment.
		return u.failTerminal(ctx, p, err)
	}

	priorFailure := p.Delivery.HadPriorFailure()
	var lastErr error
	for attempt := 0; attempt < u.opts.MaxAttempts; attempt++ {
		msgID, dispatchErr := u.dispatch(ctx, *user.TelegramID, user, plan, links)

		now := time.Now()
		p.Delivery.Attempts++
		p.Delivery.LastAttemptAt = &now
		u.logAttempt(ctx, p, msgID, dispatchErr)
		metrics.IncDispatchAttempt(dispatchErr == nil)

		if dispatchErr == nil {
			p.Delivery.LinkDelivered = true
			p.Delivery.Status = model.DeliveryStatusSuccess
			p.Delivery.TelegramLinkRequired = false
			p.Delivery.FailureReason = ""
			// Recovered when anything failed before this send: an earlier
			// sequence, or an earlier attempt of this one.
			if priorFailure || attempt > 0 {
				p.Delivery.RecoveryCompleted = true
			}
			if err := u.payments.UpdateDeliveryState(ctx, repository.NoTX, p.ID, p.Delivery); err != nil {
				log.Error().Err(err).Msg("persist delivered state")
			}
			metrics.IncDelivery(string(model.DeliveryStatusSuccess))
			log.Info().Int("attempts", p.Delivery.Attempts).Bool("recovered", p.Delivery.RecoveryCompleted).Msg("invite links delivered")
			return nil
		}

		lastErr = dispatchErr
		p.Delivery.Status = model.DeliveryStatusRetrying
		p.Delivery.FailureReason = dispatchErr.Error()
		if err := u.payments.UpdateDeliveryState(ctx, repository.NoTX, p.ID, p.Delivery); err != nil {
			log.Error().Err(err).Msg("persist retrying state")
		}

		if attempt < u.opts.MaxAttempts-1 {
			delay := u.backoffDelay(attempt)
			log.Warn().Err(dispatchErr).Int("attempt", attempt+1).Dur("backoff", delay).Msg("dispatch failed, backing off")
			u.sleep(ctx, delay)
		}
	}

	p.Delivery.Status = model.DeliveryStatusFailed
	if err := u.payments.UpdateDeliveryState(ctx, repository.NoTX, p.ID, p.Delivery); err != nil {
		log.Error().Err(err).Msg("persist failed state")
	}
	metrics.IncDelivery(string(model.DeliveryStatusFailed))
	log.Error().Err(lastErr).Int("attempts", p.Delivery.Attempts).Msg("delivery attempts exhausted")
	return lastErr
}

// dispatch wraps a single dispatcher call and converts panics into transient
// failures so an unexpected fault never crashes the sweep.
func (u *recoveryUC) dispatch(ctx context.Context, tgID int64, user *model.User, plan *model.Plan, links []model.Channel) (msgID int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewDeliveryError(domain.FailureTransient, fmt.Sprintf("dispatch panic: %v", r), nil)
		}
	}()
	return u.dispatcher.Dispatch(ctx, tgID, user.FullName, plan.Name, links)
}

// failTerminal records a non-retryable failure without touching the attempt
// counter (no dispatch happened).
func (u *recoveryUC) failTerminal(ctx context.Context, p *model.Payment, ferr error) error {
	now := time.Now()
	p.Delivery.Status = model.DeliveryStatusFailed
	p.Delivery.FailureReason = ferr.Error()
	p.Delivery.LastAttemptAt = &now
	if err := u.payments.UpdateDeliveryState(ctx, repository.NoTX, p.ID, p.Delivery); err != nil {
		u.log.Error().Err(err).Str("payment_id", p.ID).Msg("persist terminal failure")
	}
	metrics.IncDelivery(string(model.DeliveryStatusFailed))
	u.log.Error().Err(ferr).Str("payment_id", p.ID).Str("class", domain.ClassOf(ferr).String()).Msg("non-retryable delivery failure")
	return ferr
}

func (u *recoveryUC) logAttempt(ctx context.Context, p *model.Payment, msgID int, dispatchErr error) {
	a := &model.DeliveryAttempt{
		ID:        uuid.NewString(),
		PaymentID: p.ID,
		Attempt:   p.Delivery.Attempts,
		OK:        dispatchErr == nil,
		MessageID: msgID,
		CreatedAt: time.Now(),
	}
	if dispatchErr != nil {
		a.Error = dispatchErr.Error()
	}
	if err := u.log_.Append(ctx, repository.NoTX, a); err != nil {
		u.log.Warn().Err(err).Str("payment_id", p.ID).Msg("delivery attempt log append failed")
	}
}

func (u *recoveryUC) Sweep(ctx context.Context) (*SweepReport, error) {
	// In-process guard: a second invocation while one runs is a no-op.
	if !u.sweeping.CompareAndSwap(false, true) {
		u.log.Info().Msg("sweep already in progress, skipping")
		metrics.SweepSkipped()
		return nil, domain.ErrSweepInProgress
	}
	defer u.sweeping.Store(false)

	// Cross-instance lease. Held for the sweep's lifetime, released on all
	// exit paths.
	if u.locker != nil {
		token, err := u.locker.TryLock(ctx, sweepLockKey, u.opts.LockTTL)
		if err != nil {
			u.log.Info().Msg("sweep lease held elsewhere, skipping")
			metrics.SweepSkipped()
			return nil, domain.ErrSweepInProgress
		}
		defer func() {
			if err := u.locker.Unlock(ctx, sweepLockKey, token); err != nil {
				u.log.Warn().Err(err).Msg("sweep lease release failed")
			}
		}()
	}

	start := time.Now()
	staleBefore := start.Add(-u.opts.StaleAfter)
	list, err := u.payments.FindUndelivered(ctx, repository.NoTX, staleBefore, u.opts.BatchLimit)
	if err != nil {
		metrics.SweepError()
		return nil, err
	}

	rep := &SweepReport{}
	for i, p := range list {
		if i > 0 {
			// Small pause between items to avoid bursting the bot API.
			u.sleep(ctx, u.opts.ItemDelay)
		}
		if p.Delivery.LinkDelivered {
			rep.Skipped++
			continue
		}
		rep.Processed++
		err := u.deliver(ctx, p)
		switch {
		case err == nil:
			rep.Succeeded++
		case domain.ClassOf(err) == domain.FailureIdentityMissing:
			rep.PendingLink++
		default:
			rep.Failed++
		}
	}
	rep.Duration = time.Since(start)

	metrics.SweepCompleted(rep.Processed, rep.Duration.Seconds())
	u.log.Info().
		Int("processed", rep.Processed).
		Int("succeeded", rep.Succeeded).
		Int("failed", rep.Failed).
		Int("pending_link", rep.PendingLink).
		Dur("duration", rep.Duration).
		Msg("delivery sweep finished")
	u.notifySweep(ctx, rep)
	return rep, nil
}

// notifySweep is fire-and-forget: notifier faults must not abort the sweep.
func (u *recoveryUC) notifySweep(ctx context.Context, rep *SweepReport) {
	defer func() {
		if r := recover(); r != nil {
			u.log.Warn().Interface("panic", r).Msg("sweep notification panicked")
		}
	}()
	if u.notifier == nil || rep.Processed == 0 {
		return
	}
	sev := adapter.SeverityInfo
	if rep.Failed > 0 {
		sev = adapter.SeverityWarning
	}
	u.notifier.Notify(ctx,
		"Delivery sweep finished",
		fmt.Sprintf("processed %d: %d delivered, %d failed, %d awaiting telegram link",
			rep.Processed, rep.Succeeded, rep.Failed, rep.PendingLink),
		sev,
		map[string]string{
			"processed":    fmt.Sprint(rep.Processed),
			"succeeded":    fmt.Sprint(rep.Succeeded),
			"failed":       fmt.Sprint(rep.Failed),
			"pending_link": fmt.Sprint(rep.PendingLink),
		})
}

func (u *recoveryUC) ReconcileUser(ctx context.Context, userID string) (*ReconcileReport, error) {
	list, err := u.payments.ListPendingLinkByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	rep := &ReconcileReport{}
	for i, p := range list {
		if i > 0 {
			u.sleep(ctx, u.opts.ItemDelay)
		}
		p.Delivery.TelegramLinkRequired = false
		p.Delivery.Status = model.DeliveryStatusRetrying
		if err := u.payments.UpdateDeliveryState(ctx, repository.NoTX, p.ID, p.Delivery); err != nil {
			u.log.Error().Err(err).Str("payment_id", p.ID).Msg("requeue gated payment")
			rep.Failed++
			continue
		}
		rep.Requeued++
		if err := u.deliver(ctx, p); err != nil {
			rep.Failed++
		} else {
			rep.Succeeded++
		}
	}
	metrics.AddReconciled(rep.Requeued)
	if rep.Requeued > 0 {
		u.log.Info().Str("user_id", userID).Int("requeued", rep.Requeued).Int("succeeded", rep.Succeeded).Msg("reconciled gated payments")
	}
	return rep, nil
}
