package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/ledgerwire/core/audit"
	"github.com/ledgerwire/core/balancecache"
	"github.com/ledgerwire/core/chain"
	"github.com/ledgerwire/core/payment"
	"github.com/ledgerwire/core/walletcrypto"
	"github.com/ledgerwire/shared/models"
)

// staleThreshold is the "now - created_at > 10m" cutoff shared by
// process_pending and mark_stale.
const staleThreshold = 10 * time.Minute

// Monitor bundles the collaborators every recurring/ad-hoc job needs, all
// injected at construction: no globals, no singletons.
type Monitor struct {
	transactions TransactionRepository
	wallets      WalletRepository
	chainClient  chain.Client
	balances     *balancecache.Cache
	walletCrypto *walletcrypto.Service
	audit        audit.Logger
}

func NewMonitor(
	transactions TransactionRepository,
	wallets WalletRepository,
	chainClient chain.Client,
	balances *balancecache.Cache,
	walletCrypto *walletcrypto.Service,
	auditLogger audit.Logger,
) *Monitor {
	return &Monitor{
		transactions: transactions,
		wallets:      wallets,
		chainClient:  chainClient,
		balances:     balances,
		walletCrypto: walletCrypto,
		audit:        auditLogger,
	}
}

// ProcessPending is the process_pending algorithm: batch 50, ordered by
// created_at ASC, advance or fail each depending on chain state.
func (m *Monitor) ProcessPending(ctx context.Context) error {
	batch, err := m.transactions.ListPendingBatch(ctx, 50)
	if err != nil {
		return err
	}

	for _, tx := range batch {
		m.processPendingOne(ctx, tx)
	}
	return nil
}

func (m *Monitor) processPendingOne(ctx context.Context, tx *models.Transaction) {
	if tx.SolanaSignature == nil {
		if time.Since(tx.CreatedAt) > staleThreshold {
			m.fail(ctx, tx, "no signature")
		}
		return
	}

	details, err := m.chainClient.GetTxDetails(ctx, *tx.SolanaSignature)
	if err != nil {
		log.Printf("scheduler: get_tx_details failed for %s: %v", tx.ID, err)
		return
	}
	if details == nil {
		if time.Since(tx.CreatedAt) > staleThreshold {
			m.fail(ctx, tx, "unseen on chain")
		}
		return
	}

	if details.IsSuccess {
		m.confirm(ctx, tx, details)
	} else {
		m.fail(ctx, tx, "chain error")
	}
}

func (m *Monitor) confirm(ctx context.Context, tx *models.Transaction, details *chain.TxDetails) {
	now := time.Now()
	slot := details.Slot
	blockTime := details.BlockTime
	if err := m.transactions.UpdateStatus(ctx, tx.ID, models.StatusConfirmed, payment.TransactionUpdate{
		SolanaSlot:      &slot,
		SolanaBlockTime: &blockTime,
		ConfirmedAt:     &now,
	}); err != nil {
		log.Printf("scheduler: failed to confirm %s: %v", tx.ID, err)
		return
	}
	m.invalidateForTx(ctx, tx)
	m.audit.Log(ctx, audit.Entry{
		UserID:     &tx.SenderID,
		Action:     "transaction_status_update",
		EntityType: "transaction",
		EntityID:   &tx.ID,
	})
}

func (m *Monitor) fail(ctx context.Context, tx *models.Transaction, reason string) {
	msg := reason
	if err := m.transactions.UpdateStatus(ctx, tx.ID, models.StatusFailed, payment.TransactionUpdate{
		ErrorMessage: &msg,
	}); err != nil {
		log.Printf("scheduler: failed to fail %s: %v", tx.ID, err)
		return
	}
	m.invalidateForTx(ctx, tx)
	m.audit.Log(ctx, audit.Entry{
		UserID:     &tx.SenderID,
		Action:     "transaction_status_update",
		EntityType: "transaction",
		EntityID:   &tx.ID,
	})
}

func (m *Monitor) invalidateForTx(ctx context.Context, tx *models.Transaction) {
	senderWallet, err := m.wallets.GetByUserID(ctx, tx.SenderID)
	if err == nil {
		m.balances.Invalidate(ctx, senderWallet.PublicKey, "")
	}
	if tx.ReceiverID != nil {
		receiverWallet, err := m.wallets.GetByUserID(ctx, *tx.ReceiverID)
		if err == nil {
			m.balances.Invalidate(ctx, receiverWallet.PublicKey, "")
		}
	}
}

// MarkStale processes Pending|Processing transactions older than 10m,
// limit 100, with a final is_confirmed check before terminating.
func (m *Monitor) MarkStale(ctx context.Context) error {
	batch, err := m.transactions.ListStaleBatch(ctx, time.Now().Add(-staleThreshold), 100)
	if err != nil {
		return err
	}
	for _, tx := range batch {
		if tx.SolanaSignature == nil {
			m.fail(ctx, tx, "Transaction timed out")
			continue
		}
		confirmed, err := m.chainClient.IsConfirmed(ctx, *tx.SolanaSignature)
		if err != nil {
			log.Printf("scheduler: is_confirmed failed for %s: %v", tx.ID, err)
			continue
		}
		if confirmed {
			now := time.Now()
			if err := m.transactions.UpdateStatus(ctx, tx.ID, models.StatusConfirmed, payment.TransactionUpdate{ConfirmedAt: &now}); err != nil {
				log.Printf("scheduler: failed to confirm %s: %v", tx.ID, err)
				continue
			}
			m.invalidateForTx(ctx, tx)
			m.audit.Log(ctx, audit.Entry{
				UserID:     &tx.SenderID,
				Action:     "transaction_status_update",
				EntityType: "transaction",
				EntityID:   &tx.ID,
			})
		} else {
			m.fail(ctx, tx, "Transaction timed out")
		}
	}
	return nil
}

// RefreshActiveBalances force-refreshes wallets for users active within
// 24h, cap 100, with a per-wallet delay to avoid RPC rate limits.
func (m *Monitor) RefreshActiveBalances(ctx context.Context) error {
	wallets, err := m.wallets.ListActiveSince(ctx, time.Now().Add(-24*time.Hour), 100)
	if err != nil {
		return err
	}
	for _, w := range wallets {
		if _, err := m.balances.GetAllBalances(ctx, w.PublicKey, true); err != nil {
			log.Printf("scheduler: refresh_active_balances failed for %s: %v", w.PublicKey, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return nil
}

// CheckFeeSol warns per wallet under the minimum SOL fee reserve.
func (m *Monitor) CheckFeeSol(ctx context.Context) error {
	const batchSize = 200
	offset := 0
	for {
		wallets, err := m.wallets.ListAll(ctx, batchSize, offset)
		if err != nil {
			return err
		}
		if len(wallets) == 0 {
			return nil
		}
		for _, w := range wallets {
			ok, balance, err := m.balances.CheckSufficientSolForFees(ctx, w.PublicKey, 0)
			if err != nil {
				continue
			}
			if !ok {
				log.Printf("scheduler: wallet %s low on SOL for fees: %.9f", w.PublicKey, balance)
			}
		}
		offset += len(wallets)
	}
}

// ValidateEncryptions confirms every wallet still decrypts successfully.
func (m *Monitor) ValidateEncryptions(ctx context.Context) error {
	const batchSize = 100
	offset := 0
	for {
		wallets, err := m.wallets.ListAll(ctx, batchSize, offset)
		if err != nil {
			return err
		}
		if len(wallets) == 0 {
			return nil
		}
		for _, w := range wallets {
			if !m.walletCrypto.Validate(ctx, walletcrypto.FromModel(w)) {
				log.Printf("scheduler: validate_encryptions: wallet %s failed to decrypt", w.ID)
			}
		}
		offset += len(wallets)
	}
}

// LogKeyVersionStats emits a histogram of wallet key_version values.
func (m *Monitor) LogKeyVersionStats(ctx context.Context) error {
	const batchSize = 200
	offset := 0
	histogram := map[string]int{}
	for {
		wallets, err := m.wallets.ListAll(ctx, batchSize, offset)
		if err != nil {
			return err
		}
		if len(wallets) == 0 {
			break
		}
		for _, w := range wallets {
			histogram[w.KeyVersion]++
		}
		offset += len(wallets)
	}
	for version, count := range histogram {
		log.Printf("scheduler: key_version histogram: %s=%d", version, count)
	}
	return nil
}

// RotateKeys is the rotate_keys ad-hoc job: batches of 50, decrypt+
// re-encrypt each, persist, audit, yield briefly between batches. Failed
// rotations leave the wallet untouched for the next run.
func (m *Monitor) RotateKeys(ctx context.Context, oldKeyVersion string, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 50
	}
	// A successful rotation changes the wallet's key_version, which removes
	// it from the WHERE key_version = $1 match set, so each pass re-queries
	// from the start instead of paging past rows the shrinking set moved.
	// Wallets whose rotation failed stay in the set, ahead of the ones not
	// yet tried (the query orders by id); the offset skips exactly those,
	// so the loop ends once every wallet has been tried once.
	failed := 0
	for {
		wallets, err := m.wallets.ListByKeyVersion(ctx, oldKeyVersion, batchSize, failed)
		if err != nil {
			return err
		}
		if len(wallets) == 0 {
			return nil
		}

		for _, w := range wallets {
			if !m.rotateOne(ctx, w) {
				failed++
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (m *Monitor) rotateOne(ctx context.Context, w *models.Wallet) bool {
	rotated, err := m.walletCrypto.Rotate(ctx, walletcrypto.FromModel(w))
	if err != nil {
		log.Printf("scheduler: rotate_keys failed for wallet %s: %v", w.ID, err)
		m.audit.Log(ctx, audit.Entry{
			UserID:     &w.UserID,
			Action:     "key_rotation_failed",
			EntityType: "wallet",
			EntityID:   &w.ID,
		})
		return false
	}
	if err := m.wallets.UpdateEncryption(ctx, w.ID, rotated.EncryptedPrivateKey, rotated.KeyVersion); err != nil {
		log.Printf("scheduler: failed to persist rotated wallet %s: %v", w.ID, err)
		return false
	}
	oldVersion := w.KeyVersion
	m.audit.Log(ctx, audit.Entry{
		UserID:     &w.UserID,
		Action:     "key_rotation",
		EntityType: "wallet",
		EntityID:   &w.ID,
		OldValue:   &oldVersion,
		NewValue:   &rotated.KeyVersion,
	})
	return true
}
