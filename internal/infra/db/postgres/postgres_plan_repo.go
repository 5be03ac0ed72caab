package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-channel-subscription/internal/domain"
	"telegram-channel-subscription/internal/domain/model"
	"telegram-channel-subscription/internal/domain/ports/repository"
)

var _ repository.PlanRepository = (*planRepo)(nil)

type planRepo struct{ pool *pgxpool.Pool }

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

func (r *planRepo) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	const q = `
INSERT INTO plans (id, name, duration_days, price_irr, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET name=$2, duration_days=$3, price_irr=$4;`
	if _, err := execSQL(ctx, r.pool, tx, q, plan.ID, plan.Name, plan.DurationDays, plan.PriceIRR, plan.CreatedAt); err != nil {
		return domain.ErrOperationFailed
	}

	// Channel rows are replaced wholesale; the set is small and ordered.
	if _, err := execSQL(ctx, r.pool, tx, `DELETE FROM plan_channels WHERE plan_id=$1;`, plan.ID); err != nil {
		return domain.ErrOperationFailed
	}
	const chQ = `
INSERT INTO plan_channels (id, plan_id, title, invite_link, position)
VALUES ($1,$2,$3,$4,$5);`
	for _, ch := range plan.Channels {
		if _, err := execSQL(ctx, r.pool, tx, chQ, ch.ID, plan.ID, ch.Title, ch.InviteLink, ch.Position); err != nil {
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *planRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	const q = `SELECT id, name, duration_days, price_irr, created_at FROM plans WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	p := &model.Plan{}
	if err := row.Scan(&p.ID, &p.Name, &p.DurationDays, &p.PriceIRR, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}

	channels, err := r.channelsFor(ctx, tx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Channels = channels
	return p, nil
}

func (r *planRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	const q = `SELECT id, name, duration_days, price_irr, created_at FROM plans ORDER BY created_at;`
	rows, err := pickRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Plan
	for rows.Next() {
		p := &model.Plan{}
		if err := rows.Scan(&p.ID, &p.Name, &p.DurationDays, &p.PriceIRR, &p.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	for _, p := range out {
		channels, err := r.channelsFor(ctx, tx, p.ID)
		if err != nil {
			return nil, err
		}
		p.Channels = channels
	}
	return out, nil
}

func (r *planRepo) channelsFor(ctx context.Context, tx repository.Tx, planID string) ([]model.Channel, error) {
	const q = `
SELECT id, title, invite_link, position
FROM plan_channels WHERE plan_id=$1 ORDER BY position;`
	rows, err := pickRows(ctx, r.pool, tx, q, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Channel
	for rows.Next() {
		var ch model.Channel
		if err := rows.Scan(&ch.ID, &ch.Title, &ch.InviteLink, &ch.Position); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, ch)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
