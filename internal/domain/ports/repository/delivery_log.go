package repository

import (
	"context"

	"telegram-channel-subscription/internal/domain/model"
)

// -----------------------------
// Delivery attempt log
// -----------------------------

type DeliveryLogRepository interface {
	// Append records one dispatch attempt. Best-effort from the engine's
	// point of view: a log failure never fails the delivery.
	Append(ctx context.Context, tx Tx, attempt *model.DeliveryAttempt) error
	ListByPayment(ctx context.Context, tx Tx, paymentID string) ([]*model.DeliveryAttempt, error)
}
