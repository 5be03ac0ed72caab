package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-channel-subscription/internal/domain"
	"telegram-channel-subscription/internal/domain/model"
	"telegram-channel-subscription/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `
  id, user_id, plan_id, amount, currency, invoice_number, status, created_at, updated_at, paid_at,
  link_delivered, delivery_status, delivery_attempts, last_delivery_attempt, failure_reason,
  telegram_link_required, recovery_completed`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	err := row.Scan(
		&p.ID, &p.UserID, &p.PlanID, &p.Amount, &p.Currency, &p.InvoiceNumber, &p.Status,
		&p.CreatedAt, &p.UpdatedAt, &p.PaidAt,
		&p.Delivery.LinkDelivered, &p.Delivery.Status, &p.Delivery.Attempts,
		&p.Delivery.LastAttemptAt, &p.Delivery.FailureReason,
		&p.Delivery.TelegramLinkRequired, &p.Delivery.RecoveryCompleted,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, user_id, plan_id, amount, currency, invoice_number, status, created_at, updated_at, paid_at,
  link_delivered, delivery_status, delivery_attempts, last_delivery_attempt, failure_reason,
  telegram_link_required, recovery_completed
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
) ON CONFLICT (id) DO UPDATE SET
  user_id=$2, plan_id=$3, amount=$4, currency=$5, invoice_number=$6, status=$7, updated_at=$9, paid_at=$10,
  link_delivered=$11, delivery_status=$12, delivery_attempts=$13, last_delivery_attempt=$14,
  failure_reason=$15, telegram_link_required=$16, recovery_completed=$17;`

	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.UserID, p.PlanID, p.Amount, p.Currency, p.InvoiceNumber, p.Status,
		p.CreatedAt, p.UpdatedAt, p.PaidAt,
		p.Delivery.LinkDelivered, p.Delivery.Status, p.Delivery.Attempts,
		p.Delivery.LastAttemptAt, p.Delivery.FailureReason,
		p.Delivery.TelegramLinkRequired, p.Delivery.RecoveryCompleted)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT` + paymentColumns + ` FROM payments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

// MarkSucceeded assigns the next invoice number from the counters table and
// flips the payment to succeeded. Callers run it inside a transaction so the
// counter increment and the status flip commit together; the status
// predicate guards against double confirmation.
func (r *paymentRepo) MarkSucceeded(ctx context.Context, tx repository.Tx, id string) (int64, error) {
	p, err := r.FindByID(ctx, tx, id)
	if err != nil {
		return 0, err
	}
	if p.Status == model.PaymentStatusSucceeded {
		return p.InvoiceNumber, nil
	}
	if p.Status != model.PaymentStatusPending {
		return 0, domain.ErrInvalidArgument
	}

	const counterQ = `UPDATE counters SET value = value + 1 WHERE name='invoice' RETURNING value;`
	row, err := pickRow(ctx, r.pool, tx, counterQ)
	if err != nil {
		return 0, err
	}
	var invoiceNo int64
	if err := row.Scan(&invoiceNo); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}

	const q = `
UPDATE payments SET status=$2, invoice_number=$3, paid_at=NOW(), updated_at=NOW()
WHERE id=$1 AND status=$4;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, model.PaymentStatusSucceeded, invoiceNo, model.PaymentStatusPending)
	if err != nil {
		return 0, domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return 0, domain.ErrOperationFailed
	}
	return invoiceNo, nil
}

func (r *paymentRepo) UpdateDeliveryState(ctx context.Context, tx repository.Tx, id string, ds model.DeliveryState) error {
	const q = `
UPDATE payments SET
  link_delivered=$2, delivery_status=$3, delivery_attempts=$4, last_delivery_attempt=$5,
  failure_reason=$6, telegram_link_required=$7, recovery_completed=$8, updated_at=NOW()
WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id,
		ds.LinkDelivered, ds.Status, ds.Attempts, ds.LastAttemptAt,
		ds.FailureReason, ds.TelegramLinkRequired, ds.RecoveryCompleted)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *paymentRepo) FindUndelivered(ctx context.Context, tx repository.Tx, staleBefore time.Time, limit int) ([]*model.Payment, error) {
	// The disjunction mirrors the discovery predicate: undelivered, or
	// explicitly failed, or stale while undelivered. pending_telegram_link
	// rows are included on purpose so linkage is re-checked every sweep.
	q := `SELECT` + paymentColumns + `
FROM payments
WHERE status=$1
  AND (link_delivered IS DISTINCT FROM TRUE
       OR delivery_status=$2
       OR (updated_at < $3 AND link_delivered IS DISTINCT FROM TRUE))
ORDER BY created_at DESC
LIMIT $4;`
	rows, err := pickRows(ctx, r.pool, tx, q, model.PaymentStatusSucceeded, model.DeliveryStatusFailed, staleBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *paymentRepo) ListPendingLinkByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Payment, error) {
	q := `SELECT` + paymentColumns + `
FROM payments
WHERE status=$1 AND user_id=$2 AND delivery_status=$3
ORDER BY created_at DESC;`
	rows, err := pickRows(ctx, r.pool, tx, q, model.PaymentStatusSucceeded, userID, model.DeliveryStatusPendingLink)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *paymentRepo) ListFailedDeliveries(ctx context.Context, tx repository.Tx, limit int) ([]*model.FailedDelivery, error) {
	const q = `
SELECT p.id, p.invoice_number, u.email, u.full_name, pl.name, p.amount, p.currency,
       p.delivery_status, p.delivery_attempts, p.failure_reason, p.last_delivery_attempt
FROM payments p
JOIN users u ON u.id = p.user_id
JOIN plans pl ON pl.id = p.plan_id
WHERE p.status=$1 AND p.link_delivered IS DISTINCT FROM TRUE
ORDER BY p.created_at DESC
LIMIT $2;`
	rows, err := pickRows(ctx, r.pool, tx, q, model.PaymentStatusSucceeded, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.FailedDelivery
	for rows.Next() {
		fd := &model.FailedDelivery{}
		if err := rows.Scan(&fd.PaymentID, &fd.InvoiceNumber, &fd.BuyerEmail, &fd.BuyerName, &fd.PlanName,
			&fd.Amount, &fd.Currency, &fd.Status, &fd.Attempts, &fd.FailureReason, &fd.LastAttemptAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, fd)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *paymentRepo) DeliveryStats(ctx context.Context, tx repository.Tx) (*model.DeliveryStats, error) {
	const q = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE link_delivered),
       COUNT(*) FILTER (WHERE delivery_status=$2),
       COUNT(*) FILTER (WHERE delivery_status=$3),
       COUNT(*) FILTER (WHERE recovery_completed)
FROM payments WHERE status=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, model.PaymentStatusSucceeded, model.DeliveryStatusFailed, model.DeliveryStatusPendingLink)
	if err != nil {
		return nil, err
	}
	s := &model.DeliveryStats{}
	if err := row.Scan(&s.TotalSucceeded, &s.Delivered, &s.Failed, &s.PendingLink, &s.Recovered); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}
