package scheduler

import (
	"context"
	"time"

	"github.com/ledgerwire/core/payment"
	"github.com/ledgerwire/shared/models"
)

// TransactionRepository is the subset of transaction persistence the
// monitor jobs need: batch scans plus the same conditional UpdateStatus
// the payment engine uses, so a Transaction's terminal state is only ever
// written through one code path.
type TransactionRepository interface {
	ListPendingBatch(ctx context.Context, limit int) ([]*models.Transaction, error)
	ListStaleBatch(ctx context.Context, olderThan time.Time, limit int) ([]*models.Transaction, error)
	UpdateStatus(ctx context.Context, id string, status models.TransactionStatus, fields payment.TransactionUpdate) error
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
}

// WalletRepository is the subset of wallet persistence the monitor jobs
// need, beyond core/payment's own narrower WalletRepository.
type WalletRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.Wallet, error)
	ListByKeyVersion(ctx context.Context, keyVersion string, limit, offset int) ([]*models.Wallet, error)
	ListActiveSince(ctx context.Context, since time.Time, limit int) ([]*models.Wallet, error)
	ListAll(ctx context.Context, limit, offset int) ([]*models.Wallet, error)
	UpdateEncryption(ctx context.Context, walletID, blob, keyVersion string) error
}
