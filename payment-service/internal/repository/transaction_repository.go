// Package repository is payment-service's persistence layer: raw SQL over
// database/sql, one struct per table, no ORM.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ledgerwire/core/payment"
	"github.com/ledgerwire/shared/models"
	"github.com/ledgerwire/shared/utils"
)

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create implements the idempotent insert core/payment.Engine depends on:
// a fresh row on the first call for a given idempotency_key, and the
// existing row (inserted=false) on every retry that races or replays it,
// backed by the database's own unique index rather than an advisory
// cache marker.
func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, bool, error) {
	id := utils.GenerateID("tan")
	const query = `
		INSERT INTO transactions (id, idempotency_key, sender_id, receiver_id, external_address, amount, token,
		                           type, status, retry_count, max_retries, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, $11, $11)
		ON CONFLICT (idempotency_key) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		id, tx.IdempotencyKey, tx.SenderID, tx.ReceiverID, tx.ExternalAddress, tx.Amount, tx.Token,
		tx.Type, tx.Status, tx.MaxRetries, time.Now(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		existing, err := r.GetByIdempotencyKey(ctx, tx.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	tx.ID = id
	return tx, true, nil
}

func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error) {
	const query = `
		SELECT id, idempotency_key, sender_id, receiver_id, external_address, amount, token, type, status,
		       solana_signature, solana_slot, solana_block_time, error_code, error_message, retry_count,
		       max_retries, confirmed_at, created_at, updated_at
		FROM transactions WHERE idempotency_key = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, key))
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	const query = `
		SELECT id, idempotency_key, sender_id, receiver_id, external_address, amount, token, type, status,
		       solana_signature, solana_slot, solana_block_time, error_code, error_message, retry_count,
		       max_retries, confirmed_at, created_at, updated_at
		FROM transactions WHERE id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error) {
	const query = `
		SELECT id, idempotency_key, sender_id, receiver_id, external_address, amount, token, type, status,
		       solana_signature, solana_slot, solana_block_time, error_code, error_message, retry_count,
		       max_retries, confirmed_at, created_at, updated_at
		FROM transactions
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []*models.Transaction
	for rows.Next() {
		tx, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// UpdateStatus is a monotone transition: it never writes over a terminal
// status, guarded by the WHERE clause rather than a read-modify-write.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus, fields payment.TransactionUpdate) error {
	const query = `
		UPDATE transactions
		SET status = $2,
		    solana_signature = COALESCE($3, solana_signature),
		    solana_slot = COALESCE($4, solana_slot),
		    solana_block_time = COALESCE($5, solana_block_time),
		    error_code = COALESCE($6, error_code),
		    error_message = COALESCE($7, error_message),
		    confirmed_at = COALESCE($8, confirmed_at),
		    retry_count = retry_count + $9,
		    updated_at = now()
		WHERE id = $1 AND status NOT IN ('Confirmed', 'Failed', 'Cancelled')
	`
	_, err := r.db.ExecContext(ctx, query,
		id, status, fields.SolanaSignature, fields.SolanaSlot, fields.SolanaBlockTime,
		fields.ErrorCode, fields.ErrorMessage, fields.ConfirmedAt, fields.RetryCountDelta,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	return nil
}

func (r *TransactionRepository) scanOne(row *sql.Row) (*models.Transaction, error) {
	var tx models.Transaction
	err := row.Scan(
		&tx.ID, &tx.IdempotencyKey, &tx.SenderID, &tx.ReceiverID, &tx.ExternalAddress, &tx.Amount, &tx.Token,
		&tx.Type, &tx.Status, &tx.SolanaSignature, &tx.SolanaSlot, &tx.SolanaBlockTime, &tx.ErrorCode,
		&tx.ErrorMessage, &tx.RetryCount, &tx.MaxRetries, &tx.ConfirmedAt, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transaction not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	return &tx, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRow(row scannable) (*models.Transaction, error) {
	var tx models.Transaction
	err := row.Scan(
		&tx.ID, &tx.IdempotencyKey, &tx.SenderID, &tx.ReceiverID, &tx.ExternalAddress, &tx.Amount, &tx.Token,
		&tx.Type, &tx.Status, &tx.SolanaSignature, &tx.SolanaSlot, &tx.SolanaBlockTime, &tx.ErrorCode,
		&tx.ErrorMessage, &tx.RetryCount, &tx.MaxRetries, &tx.ConfirmedAt, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	return &tx, nil
}
