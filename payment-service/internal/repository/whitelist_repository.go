package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// WhitelistRepository backs core/payment.WithdrawalWhitelistRepository.
// IsAllowed fails open when the sender has no whitelist rows at all —
// a user who has never configured a whitelist can withdraw to any address.
type WhitelistRepository struct {
	db *sql.DB
}

func NewWhitelistRepository(db *sql.DB) *WhitelistRepository {
	return &WhitelistRepository{db: db}
}

func (r *WhitelistRepository) IsAllowed(ctx context.Context, userID, address string) (bool, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM withdrawal_whitelist WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return false, fmt.Errorf("failed to count whitelist entries: %w", err)
	}
	if total == 0 {
		return true, nil
	}

	var matched int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM withdrawal_whitelist WHERE user_id = $1 AND address = $2`,
		userID, address,
	).Scan(&matched)
	if err != nil {
		return false, fmt.Errorf("failed to check whitelist entry: %w", err)
	}
	return matched > 0, nil
}
