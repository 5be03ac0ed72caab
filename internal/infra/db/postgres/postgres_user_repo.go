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

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

const userColumns = `id, email, full_name, telegram_id, telegram_username, registered_at, linked_at`

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.TelegramID, &u.TelegramUsername, &u.RegisteredAt, &u.LinkedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return u, nil
}

func (r *userRepo) Save(ctx context.Context, tx repository.Tx, user *model.User) error {
	const q = `
INSERT INTO users (id, email, full_name, telegram_id, telegram_username, registered_at, linked_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
  email=$2, full_name=$3, telegram_id=$4, telegram_username=$5, linked_at=$7;`
	_, err := execSQL(ctx, r.pool, tx, q, user.ID, user.Email, user.FullName, user.TelegramID, user.TelegramUsername, user.RegisteredAt, user.LinkedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+userColumns+` FROM users WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func (r *userRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+userColumns+` FROM users WHERE lower(email)=lower($1);`, email)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func (r *userRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, telegramID int64) (*model.User, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+userColumns+` FROM users WHERE telegram_id=$1;`, telegramID)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func (r *userRepo) SetTelegramID(ctx context.Context, tx repository.Tx, userID string, telegramID int64, username string) error {
	const q = `
UPDATE users SET telegram_id=$2, telegram_username=$3, linked_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, userID, telegramID, username)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
