package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ledgerwire/shared/models"
)

type WalletRepository struct {
	db *sql.DB
}

func NewWalletRepository(db *sql.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

const walletColumns = `
	id, user_id, public_key, encrypted_private_key, key_version, key_algorithm,
	balance_last_updated_at, created_at, updated_at
`

func (r *WalletRepository) GetByUserID(ctx context.Context, userID string) (*models.Wallet, error) {
	query := fmt.Sprintf(`SELECT %s FROM wallets WHERE user_id = $1`, walletColumns)
	return r.scanOne(r.db.QueryRowContext(ctx, query, userID))
}

// ListByKeyVersion pages through wallets still encrypted under keyVersion,
// the batch the key rotation job reads from.
func (r *WalletRepository) ListByKeyVersion(ctx context.Context, keyVersion string, limit, offset int) ([]*models.Wallet, error) {
	query := fmt.Sprintf(`SELECT %s FROM wallets WHERE key_version = $1 ORDER BY id LIMIT $2 OFFSET $3`, walletColumns)
	rows, err := r.db.QueryContext(ctx, query, keyVersion, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets by key version: %w", err)
	}
	defer rows.Close()
	return scanWallets(rows)
}

// ListActiveSince returns wallets whose user logged in since the given
// time, driving RefreshActiveBalances so idle wallets don't burn RPC
// quota.
func (r *WalletRepository) ListActiveSince(ctx context.Context, since time.Time, limit int) ([]*models.Wallet, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM wallets
		WHERE user_id IN (SELECT id FROM users WHERE last_login_at >= $1)
		ORDER BY balance_last_updated_at ASC
		LIMIT $2
	`, walletColumns)
	rows, err := r.db.QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list active wallets: %w", err)
	}
	defer rows.Close()
	return scanWallets(rows)
}

func (r *WalletRepository) ListAll(ctx context.Context, limit, offset int) ([]*models.Wallet, error) {
	query := fmt.Sprintf(`SELECT %s FROM wallets ORDER BY id LIMIT $1 OFFSET $2`, walletColumns)
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer rows.Close()
	return scanWallets(rows)
}

// UpdateEncryption persists a wallet's re-encrypted blob after rotation,
// leaving public_key untouched.
func (r *WalletRepository) UpdateEncryption(ctx context.Context, walletID, blob, keyVersion string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE wallets SET encrypted_private_key = $2, key_version = $3, updated_at = now() WHERE id = $1`,
		walletID, blob, keyVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update wallet encryption: %w", err)
	}
	return nil
}

func (r *WalletRepository) scanOne(row *sql.Row) (*models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(
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

func scanWallets(rows *sql.Rows) ([]*models.Wallet, error) {
	var out []*models.Wallet
	for rows.Next() {
		var w models.Wallet
		if err := rows.Scan(
			&w.ID, &w.UserID, &w.PublicKey, &w.EncryptedPrivateKey, &w.KeyVersion, &w.KeyAlgorithm,
			&w.BalanceLastUpdatedAt, &w.CreatedAt, &w.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}
