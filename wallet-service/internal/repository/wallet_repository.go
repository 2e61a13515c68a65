package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ledgerwire/shared/models"
	"github.com/ledgerwire/shared/utils"
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

// Create persists a freshly generated wallet (core/walletcrypto.Wallet,
// adapted to the model shape), called once per user on first verified OTP.
func (r *WalletRepository) Create(ctx context.Context, userID, publicKey, encryptedPrivateKey, keyVersion, keyAlgorithm string) (*models.Wallet, error) {
	now := time.Now()
	w := &models.Wallet{
		ID:                   utils.GenerateID("wal"),
		UserID:               userID,
		PublicKey:            publicKey,
		EncryptedPrivateKey:  encryptedPrivateKey,
		KeyVersion:           keyVersion,
		KeyAlgorithm:         keyAlgorithm,
		BalanceLastUpdatedAt: now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	const query = `
		INSERT INTO wallets (id, user_id, public_key, encrypted_private_key, key_version, key_algorithm,
		                      balance_last_updated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		w.ID, w.UserID, w.PublicKey, w.EncryptedPrivateKey, w.KeyVersion, w.KeyAlgorithm,
		w.BalanceLastUpdatedAt, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	return w, nil
}
