package usecase

import (
	"context"

	"telegram-channel-subscription/internal/domain/model"
	"telegram-channel-subscription/internal/domain/ports/repository"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

// RecoveryStats is the admin dashboard summary of delivery health.
type RecoveryStats struct {
	TotalSucceeded int64   `json:"total_successful_payments"`
	Delivered      int64   `json:"delivered"`
	Failed         int64   `json:"failed"`
	PendingLink    int64   `json:"pending_telegram_link"`
	Recovered      int64   `json:"recovered"`
	SuccessRate    float64 `json:"success_rate"`
	RecoveryRate   float64 `json:"recovery_rate"`
}

type StatsUseCase interface {
	Recovery(ctx context.Context) (*RecoveryStats, error)
	FailedDeliveries(ctx context.Context, limit int) ([]*model.FailedDelivery, error)
	// DeliveryAttempts returns the per-dispatch audit trail of one payment,
	// oldest first. ErrNotFound when the payment does not exist.
	DeliveryAttempts(ctx context.Context, paymentID string) ([]*model.DeliveryAttempt, error)
}

type statsUC struct {
	payments repository.PaymentRepository
	logs     repository.DeliveryLogRepository
}

func NewStatsUseCase(payments repository.PaymentRepository, logs repository.DeliveryLogRepository) *statsUC {
	return &statsUC{payments: payments, logs: logs}
}

func (s *statsUC) Recovery(ctx context.Context) (*RecoveryStats, error) {
	raw, err := s.payments.DeliveryStats(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	out := &RecoveryStats{
		TotalSucceeded: raw.TotalSucceeded,
		Delivered:      raw.Delivered,
		Failed:         raw.Failed,
		PendingLink:    raw.PendingLink,
		Recovered:      raw.Recovered,
	}
	if raw.TotalSucceeded > 0 {
		out.SuccessRate = float64(raw.Delivered) / float64(raw.TotalSucceeded)
	}
	if raw.Delivered > 0 {
		out.RecoveryRate = float64(raw.Recovered) / float64(raw.Delivered)
	}
	return out, nil
}

func (s *statsUC) FailedDeliveries(ctx context.Context, limit int) ([]*model.FailedDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.payments.ListFailedDeliveries(ctx, repository.NoTX, limit)
}

func (s *statsUC) DeliveryAttempts(ctx context.Context, paymentID string) ([]*model.DeliveryAttempt, error) {
	if _, err := s.payments.FindByID(ctx, repository.NoTX, paymentID); err != nil {
		return nil, err
	}
	return s.logs.ListByPayment(ctx, repository.NoTX, paymentID)
}
