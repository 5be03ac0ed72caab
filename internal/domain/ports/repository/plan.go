package repository

import (
	"context"

	"telegram-channel-subscription/internal/domain/model"
)

// -----------------------------
// Plans
// -----------------------------

type PlanRepository interface {
	Save(ctx context.Context, tx Tx, plan *model.Plan) error
	// FindByID returns the plan with its channels ordered by position.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Plan, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.Plan, error)
}
