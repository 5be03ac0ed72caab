package repository

import (
	"context"
	"time"

	"telegram-channel-subscription/internal/domain/model"
)

// -----------------------------
// Payments
// -----------------------------

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)

	// MarkSucceeded flips a pending payment to succeeded and stamps the
	// invoice number taken from the atomic invoice counter. Returns the
	// assigned invoice number. Calling it on an already-succeeded payment is
	// a no-op returning the existing number.
	MarkSucceeded(ctx context.Context, tx Tx, id string) (int64, error)

	// UpdateDeliveryState persists the whole delivery-state block of a
	// payment in a single update.
	UpdateDeliveryState(ctx context.Context, tx Tx, id string, ds model.DeliveryState) error

	// FindUndelivered returns succeeded payments whose links were not
	// delivered: link_delivered != true, delivery_status = failed, or stale
	// updated_at older than staleBefore while undelivered. Newest purchases
	// first.
	FindUndelivered(ctx context.Context, tx Tx, staleBefore time.Time, limit int) ([]*model.Payment, error)

	// ListPendingLinkByUser returns the user's succeeded payments gated on a
	// missing Telegram linkage.
	ListPendingLinkByUser(ctx context.Context, tx Tx, userID string) ([]*model.Payment, error)

	ListFailedDeliveries(ctx context.Context, tx Tx, limit int) ([]*model.FailedDelivery, error)
	DeliveryStats(ctx context.Context, tx Tx) (*model.DeliveryStats, error)
}
