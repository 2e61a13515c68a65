package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ledgerwire/shared/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	const query = `
		SELECT id, phone_number, daily_transfer_limit, daily_transferred_amount, daily_limit_reset_at,
		       monthly_transfer_limit, monthly_transferred_amount, monthly_limit_reset_at,
		       is_active, is_frozen, last_login_at, created_at, updated_at
		FROM users WHERE id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByPhoneNumber(ctx context.Context, phone string) (*models.User, error) {
	const query = `
		SELECT id, phone_number, daily_transfer_limit, daily_transferred_amount, daily_limit_reset_at,
		       monthly_transfer_limit, monthly_transferred_amount, monthly_limit_reset_at,
		       is_active, is_frozen, last_login_at, created_at, updated_at
		FROM users WHERE phone_number = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, phone))
}

func (r *UserRepository) scanOne(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.PhoneNumber, &u.DailyTransferLimit, &u.DailyTransferredAmount, &u.DailyLimitResetAt,
		&u.MonthlyTransferLimit, &u.MonthlyTransferredAmount, &u.MonthlyLimitResetAt,
		&u.IsActive, &u.IsFrozen, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}

// SumNonFailedTransferredSince satisfies core/payment.UserRepository.
func (r *UserRepository) SumNonFailedTransferredSince(ctx context.Context, userID string, since time.Time) (float64, error) {
	const query = `
		SELECT COALESCE(SUM(amount), 0) FROM transactions
		WHERE sender_id = $1 AND created_at >= $2 AND status NOT IN ('Failed', 'Cancelled')
	`
	var sum float64
	if err := r.db.QueryRowContext(ctx, query, userID, since).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum transferred amount: %w", err)
	}
	return sum, nil
}
