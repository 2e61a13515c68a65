// Package repository is the scheduler daemon's persistence layer: the same
// raw database/sql idiom used by wallet-service/payment-service, scoped to
// the batch scans core/scheduler's jobs need.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ledgerwire/core/payment"
	"github.com/ledgerwire/shared/models"
)

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const selectColumns = `
	id, idempotency_key, sender_id, receiver_id, external_address, amount, token, type, status,
	solana_signature, solana_slot, solana_block_time, error_code, error_message, retry_count,
	max_retries, confirmed_at, created_at, updated_at
`

func (r *TransactionRepository) ListPendingBatch(ctx context.Context, limit int) ([]*models.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE status = 'Processing' ORDER BY created_at ASC LIMIT $1`, selectColumns)
	return r.list(ctx, query, limit)
}

func (r *TransactionRepository) ListStaleBatch(ctx context.Context, olderThan time.Time, limit int) ([]*models.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE status IN ('Pending', 'Processing') AND created_at < $1 ORDER BY created_at ASC LIMIT $2`, selectColumns)
	rows, err := r.db.QueryContext(ctx, query, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale transactions: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE id = $1`, selectColumns)
	var tx models.Transaction
	err := r.db.QueryRowContext(ctx, query, id).Scan(
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

func (r *TransactionRepository) list(ctx context.Context, query string, limit int) ([]*models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

func scanAll(rows *sql.Rows) ([]*models.Transaction, error) {
	var out []*models.Transaction
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(
			&tx.ID, &tx.IdempotencyKey, &tx.SenderID, &tx.ReceiverID, &tx.ExternalAddress, &tx.Amount, &tx.Token,
			&tx.Type, &tx.Status, &tx.SolanaSignature, &tx.SolanaSlot, &tx.SolanaBlockTime, &tx.ErrorCode,
			&tx.ErrorMessage, &tx.RetryCount, &tx.MaxRetries, &tx.ConfirmedAt, &tx.CreatedAt, &tx.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, &tx)
	}
	return out, rows.Err()
}
