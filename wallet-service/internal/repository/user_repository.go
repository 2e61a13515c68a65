// Package repository is wallet-service's persistence layer: plain
// database/sql against Postgres, one struct wrapping *sql.DB, raw SQL
// strings, no ORM.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ledgerwire/shared/models"
	"github.com/ledgerwire/shared/utils"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
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

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	const query = `
		SELECT id, phone_number, daily_transfer_limit, daily_transferred_amount, daily_limit_reset_at,
		       monthly_transfer_limit, monthly_transferred_amount, monthly_limit_reset_at,
		       is_active, is_frozen, last_login_at, created_at, updated_at
		FROM users WHERE id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
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

// Create inserts a new User row with default limits, used on first
// verified OTP login.
func (r *UserRepository) Create(ctx context.Context, phone string) (*models.User, error) {
	now := time.Now()
	u := &models.User{
		ID:                   utils.GenerateID("usr"),
		PhoneNumber:          phone,
		DailyTransferLimit:   1000,
		MonthlyTransferLimit: 10000,
		DailyLimitResetAt:    now,
		MonthlyLimitResetAt:  now,
		IsActive:             true,
		LastLoginAt:          now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	const query = `
		INSERT INTO users (id, phone_number, daily_transfer_limit, daily_transferred_amount, daily_limit_reset_at,
		                    monthly_transfer_limit, monthly_transferred_amount, monthly_limit_reset_at,
		                    is_active, is_frozen, last_login_at, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $5, 0, $6, $7, false, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.PhoneNumber, u.DailyTransferLimit, u.DailyLimitResetAt,
		u.MonthlyTransferLimit, u.MonthlyLimitResetAt,
		u.IsActive, u.LastLoginAt, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = now() WHERE id = $1`, userID)
	return err
}

// SumNonFailedTransferredSince satisfies core/payment.UserRepository: the
// running sum driving the daily/monthly limit checks.
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
