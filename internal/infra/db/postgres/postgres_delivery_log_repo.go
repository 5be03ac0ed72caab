package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-channel-subscription/internal/domain"
	"telegram-channel-subscription/internal/domain/model"
	"telegram-channel-subscription/internal/domain/ports/repository"
)

var _ repository.DeliveryLogRepository = (*deliveryLogRepo)(nil)

type deliveryLogRepo struct{ pool *pgxpool.Pool }

func NewDeliveryLogRepo(pool *pgxpool.Pool) *deliveryLogRepo {
	return &deliveryLogRepo{pool: pool}
}

func (r *deliveryLogRepo) Append(ctx context.Context, tx repository.Tx, a *model.DeliveryAttempt) error {
	const q = `
INSERT INTO delivery_attempts (id, payment_id, attempt, ok, message_id, error, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`
	_, err := execSQL(ctx, r.pool, tx, q, a.ID, a.PaymentID, a.Attempt, a.OK, a.MessageID, a.Error, a.CreatedAt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *deliveryLogRepo) ListByPayment(ctx context.Context, tx repository.Tx, paymentID string) ([]*model.DeliveryAttempt, error) {
	const q = `
SELECT id, payment_id, attempt, ok, message_id, error, created_at
FROM delivery_attempts WHERE payment_id=$1 ORDER BY attempt;`
	rows, err := pickRows(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.DeliveryAttempt
	for rows.Next() {
		a := &model.DeliveryAttempt{}
		if err := rows.Scan(&a.ID, &a.PaymentID, &a.Attempt, &a.OK, &a.MessageID, &a.Error, &a.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
