package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ledgerwire/shared/models"
)

type WalletRepository struct {
	db *sql.DB
}

func NewWalletRepository(db *sql.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByUserID(ctx context.Context, userID string) (*models.Wallet, error) {
	const query = `
		SELECT id, user_id, public_key, encrypted_private_key, key_version, key_algorithm,
		       balance_last_updated_at, created_at, updated_at
		FROM wallets WHERE user_id = $1
	`
	var w models.Wallet
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&w.ID, &w.UserID, &w.PublicKey, &w.EncryptedPrivateKey, &w.KeyVersion, &w.KeyAlgorithm,
		&w.BalanceLastUpdatedAt, &w.CreatedAt, &w.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("wallet not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	return &w, nil
}
