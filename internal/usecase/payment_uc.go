// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-channel-subscription/internal/domain"
	"telegram-channel-subscription/internal/domain/model"
	"telegram-channel-subscription/internal/domain/ports/repository"
	"telegram-channel-subscription/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// PaymentUseCase covers the slice of the payment lifecycle this service
// owns: creating a pending record and confirming it, which assigns the
// invoice number and kicks the initial invite-link delivery.
type PaymentUseCase interface {
	Create(ctx context.Context, userID, planID string) (*model.Payment, error)
	// Confirm marks a pending payment succeeded, assigns its invoice number
	// from the atomic counter and runs the initial delivery attempt. A
	// delivery failure does not fail confirmation; the recovery sweep picks
	// the payment up later.
	Confirm(ctx context.Context, paymentID string) (*model.Payment, error)
}

type paymentUC struct {
	payments repository.PaymentRepository
	plans    repository.PlanRepository
	txm      repository.TransactionManager
	recovery RecoveryUseCase
	log      *zerolog.Logger
}

func NewPaymentUseCase(payments repository.PaymentRepository, plans repository.PlanRepository, txm repository.TransactionManager, recovery RecoveryUseCase, logger *zerolog.Logger) *paymentUC {
	ucLog := logger.With().Str("component", "PaymentUC").Logger()
	return &paymentUC{payments: payments, plans: plans, txm: txm, recovery: recovery, log: &ucLog}
}

func (u *paymentUC) Create(ctx context.Context, userID, planID string) (*model.Payment, error) {
	if userID == "" || planID == "" {
		return nil, domain.ErrInvalidArgument
	}
	plan, err := u.plans.FindByID(ctx, repository.NoTX, planID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	p := &model.Payment{
		ID:        uuid.NewString(),
		UserID:    userID,
		PlanID:    plan.ID,
		Amount:    plan.PriceIRR,
		Currency:  "IRR",
		Status:    model.PaymentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.payments.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	metrics.IncPayment(string(model.PaymentStatusPending))
	return p, nil
}

func (u *paymentUC) Confirm(ctx context.Context, paymentID string) (*model.Payment, error) {
	// Counter increment and status flip commit together.
	var invoiceNo int64
	err := u.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		n, err := u.payments.MarkSucceeded(ctx, tx, paymentID)
		invoiceNo = n
		return err
	})
	if err != nil {
		return nil, err
	}
	p, err := u.payments.FindByID(ctx, repository.NoTX, paymentID)
	if err != nil {
		return nil, err
	}
	metrics.IncPayment(string(model.PaymentStatusSucceeded))
	metrics.AddPaymentRevenue(p.Currency, p.Amount)
	u.log.Info().Str("payment_id", p.ID).Int64("invoice", invoiceNo).Msg("payment confirmed")

	// Initial delivery, immediately after payment success. Failures are
	// recorded on the payment, not surfaced to the gateway caller.
	if _, derr := u.recovery.RecoverPayment(ctx, p.ID); derr != nil {
		u.log.Warn().Err(derr).Str("payment_id", p.ID).Msg("initial delivery did not complete")
		// Re-read so the caller sees the recorded delivery state.
		if refreshed, rerr := u.payments.FindByID(ctx, repository.NoTX, paymentID); rerr == nil {
			p = refreshed
		}
	} else if refreshed, rerr := u.payments.FindByID(ctx, repository.NoTX, paymentID); rerr == nil {
		p = refreshed
	}
	return p, nil
}
