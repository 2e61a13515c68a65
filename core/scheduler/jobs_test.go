package scheduler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/ledgerwire/core/audit"
	"github.com/ledgerwire/core/chain"
	"github.com/ledgerwire/core/kms"
	"github.com/ledgerwire/core/payment"
	"github.com/ledgerwire/core/walletcrypto"
	"github.com/ledgerwire/shared/models"
)

// ---- mocks ----

type mockTransactionRepository struct {
	pending      []*models.Transaction
	stale        []*models.Transaction
	updateCalls  []models.TransactionStatus
	getTxDetails func(sig string) (*chain.TxDetails, error)
}

func (m *mockTransactionRepository) ListPendingBatch(ctx context.Context, limit int) ([]*models.Transaction, error) {
	return m.pending, nil
}

func (m *mockTransactionRepository) ListStaleBatch(ctx context.Context, olderThan time.Time, limit int) ([]*models.Transaction, error) {
	return m.stale, nil
}

func (m *mockTransactionRepository) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus, fields payment.TransactionUpdate) error {
	m.updateCalls = append(m.updateCalls, status)
	return nil
}

func (m *mockTransactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	return nil, fmt.Errorf("not found")
}

type mockWalletRepository struct {
	byUser       map[string]*models.Wallet
	byKeyVersion []*models.Wallet
	updatedBlobs map[string]string
}

func (m *mockWalletRepository) GetByUserID(ctx context.Context, userID string) (*models.Wallet, error) {
	if w, ok := m.byUser[userID]; ok {
		return w, nil
	}
	return nil, fmt.Errorf("wallet not found")
}

// ListByKeyVersion mirrors the real WHERE key_version = $1 ... LIMIT/OFFSET
// query: it re-filters m.byKeyVersion by each wallet's current KeyVersion
// on every call, so a row that rotateOne has already moved off
// oldKeyVersion drops out of the matched set exactly like the real table
// does.
func (m *mockWalletRepository) ListByKeyVersion(ctx context.Context, keyVersion string, limit, offset int) ([]*models.Wallet, error) {
	var matched []*models.Wallet
	for _, w := range m.byKeyVersion {
		if w.KeyVersion == keyVersion {
			matched = append(matched, w)
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (m *mockWalletRepository) ListActiveSince(ctx context.Context, since time.Time, limit int) ([]*models.Wallet, error) {
	return nil, nil
}

func (m *mockWalletRepository) ListAll(ctx context.Context, limit, offset int) ([]*models.Wallet, error) {
	return nil, nil
}

func (m *mockWalletRepository) UpdateEncryption(ctx context.Context, walletID, blob, keyVersion string) error {
	if m.updatedBlobs == nil {
		m.updatedBlobs = map[string]string{}
	}
	m.updatedBlobs[walletID] = blob
	for _, w := range m.byKeyVersion {
		if w.ID == walletID {
			w.KeyVersion = keyVersion
		}
	}
	return nil
}

type mockChainClient struct {
	txDetails   *chain.TxDetails
	txDetailsErr error
	isConfirmed bool
	isConfirmedErr error
}

func (m *mockChainClient) GenerateKeypair() (string, []byte, error) { return "", nil, nil }
func (m *mockChainClient) TransferToken(ctx context.Context, secret []byte, recipientPub string, amount float64, token string) (string, error) {
	return "", nil
}
func (m *mockChainClient) GetTokenBalance(ctx context.Context, pub, token string) (float64, error) {
	return 0, nil
}
func (m *mockChainClient) GetSolBalance(ctx context.Context, pub string) (float64, error) { return 0, nil }
func (m *mockChainClient) EnsureATA(ctx context.Context, walletPub, token string, payerSecret []byte) error {
	return nil
}
func (m *mockChainClient) IsConfirmed(ctx context.Context, signature string) (bool, error) {
	return m.isConfirmed, m.isConfirmedErr
}
func (m *mockChainClient) GetTxDetails(ctx context.Context, signature string) (*chain.TxDetails, error) {
	return m.txDetails, m.txDetailsErr
}
func (m *mockChainClient) EstimateTransferFee(ctx context.Context, senderPub, recipientPub, token string) (uint64, error) {
	return 0, nil
}
func (m *mockChainClient) WaitForConfirmation(ctx context.Context, signature string, timeout time.Duration) (bool, error) {
	return false, nil
}

type mockAuditLogger struct {
	entries []audit.Entry
}

func (m *mockAuditLogger) Log(ctx context.Context, e audit.Entry) {
	m.entries = append(m.entries, e)
}

func newTestWalletCryptoService(t *testing.T) *walletcrypto.Service {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate test master key: %v", err)
	}
	provider, err := kms.NewLocalProvider(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatalf("NewLocalProvider: %v", err)
	}
	return walletcrypto.New(provider)
}

// ---- tests ----

// TestProcessPendingSkipsUnsignedFreshTransaction covers process_pending's
// early-return branch: an unsigned transaction younger than the stale
// threshold is left untouched (no status update, no chain lookup).
func TestProcessPendingSkipsUnsignedFreshTransaction(t *testing.T) {
	txRepo := &mockTransactionRepository{
		pending: []*models.Transaction{
			{ID: "tan-1", SenderID: "usr-1", CreatedAt: time.Now()},
		},
	}
	chainClient := &mockChainClient{}
	m := NewMonitor(txRepo, &mockWalletRepository{}, chainClient, nil, nil, &mockAuditLogger{})

	if err := m.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	if len(txRepo.updateCalls) != 0 {
		t.Errorf("expected no status updates for a fresh unsigned transaction, got %v", txRepo.updateCalls)
	}
}

// TestProcessPendingFailsStaleUnsignedTransaction covers the other half:
// once a signature-less transaction ages past the threshold it is failed.
func TestProcessPendingFailsStaleUnsignedTransaction(t *testing.T) {
	txRepo := &mockTransactionRepository{
		pending: []*models.Transaction{
			{ID: "tan-1", SenderID: "usr-1", CreatedAt: time.Now().Add(-20 * time.Minute)},
		},
	}
	auditLog := &mockAuditLogger{}
	m := &Monitor{
		transactions: txRepo,
		wallets:      &mockWalletRepository{},
		chainClient:  &mockChainClient{},
		balances:     nil,
		audit:        auditLog,
	}

	// invalidateForTx dereferences a nil balancecache.Cache once it finds
	// the sender's wallet; the mock wallet repository returns "not
	// found" for every user here so that path is never reached.
	if err := m.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	if len(txRepo.updateCalls) != 1 || txRepo.updateCalls[0] != models.StatusFailed {
		t.Errorf("expected exactly one Failed update, got %v", txRepo.updateCalls)
	}
	if len(auditLog.entries) != 1 || auditLog.entries[0].Action != "transaction_status_update" {
		t.Errorf("expected one transaction_status_update audit entry, got %v", auditLog.entries)
	}
}

// TestProcessPendingSkipsOnGetTxDetailsError covers the case where the RPC
// call itself fails: the job must not mark the transaction failed on a
// transient RPC error, only log and move on.
func TestProcessPendingSkipsOnGetTxDetailsError(t *testing.T) {
	sig := "sig-abc"
	txRepo := &mockTransactionRepository{
		pending: []*models.Transaction{
			{ID: "tan-1", SenderID: "usr-1", SolanaSignature: &sig, CreatedAt: time.Now()},
		},
	}
	chainClient := &mockChainClient{txDetailsErr: fmt.Errorf("rpc timeout")}
	m := NewMonitor(txRepo, &mockWalletRepository{}, chainClient, nil, nil, &mockAuditLogger{})

	if err := m.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	if len(txRepo.updateCalls) != 0 {
		t.Errorf("expected no status update on a get_tx_details RPC error, got %v", txRepo.updateCalls)
	}
}

// TestMarkStaleSkipsOnIsConfirmedError covers mark_stale's error path:
// an IsConfirmed RPC failure must not terminate the transaction.
func TestMarkStaleSkipsOnIsConfirmedError(t *testing.T) {
	sig := "sig-abc"
	txRepo := &mockTransactionRepository{
		stale: []*models.Transaction{
			{ID: "tan-1", SenderID: "usr-1", SolanaSignature: &sig, CreatedAt: time.Now().Add(-30 * time.Minute)},
		},
	}
	chainClient := &mockChainClient{isConfirmedErr: fmt.Errorf("rpc timeout")}
	m := NewMonitor(txRepo, &mockWalletRepository{}, chainClient, nil, nil, &mockAuditLogger{})

	if err := m.MarkStale(context.Background()); err != nil {
		t.Fatalf("MarkStale: %v", err)
	}
	if len(txRepo.updateCalls) != 0 {
		t.Errorf("expected no status update when is_confirmed errors, got %v", txRepo.updateCalls)
	}
}

// TestMarkStaleFailsUnsignedTransaction covers mark_stale's unconditional
// branch: a stale batch entry with no signature at all is always failed.
func TestMarkStaleFailsUnsignedTransaction(t *testing.T) {
	txRepo := &mockTransactionRepository{
		stale: []*models.Transaction{
			{ID: "tan-1", SenderID: "usr-1", CreatedAt: time.Now().Add(-30 * time.Minute)},
		},
	}
	m := NewMonitor(txRepo, &mockWalletRepository{}, &mockChainClient{}, nil, nil, &mockAuditLogger{})

	if err := m.MarkStale(context.Background()); err != nil {
		t.Fatalf("MarkStale: %v", err)
	}
	if len(txRepo.updateCalls) != 1 || txRepo.updateCalls[0] != models.StatusFailed {
		t.Errorf("expected exactly one Failed update, got %v", txRepo.updateCalls)
	}
}

// TestRotateKeysReencryptsAndAudits covers the ad-hoc rotate_keys job end
// to end against a real walletcrypto.Service (no chain/balances needed):
// every wallet under the old key version gets a fresh blob, a new key
// version, and a key_rotation audit entry.
func TestRotateKeysReencryptsAndAudits(t *testing.T) {
	wc := newTestWalletCryptoService(t)
	ctx := context.Background()

	generated, err := wc.Generate(ctx, "usr-1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	oldWallet := &models.Wallet{
		ID:                  "wal-1",
		UserID:              "usr-1",
		PublicKey:           generated.PublicKey,
		EncryptedPrivateKey: generated.EncryptedPrivateKey,
		KeyVersion:          generated.KeyVersion,
		KeyAlgorithm:        generated.KeyAlgorithm,
	}

	walletRepo := &mockWalletRepository{byKeyVersion: []*models.Wallet{oldWallet}}
	auditLog := &mockAuditLogger{}
	m := NewMonitor(&mockTransactionRepository{}, walletRepo, &mockChainClient{}, nil, wc, auditLog)

	if err := m.RotateKeys(ctx, oldWallet.KeyVersion, 10); err != nil {
		t.Fatalf("RotateKeys: %v", err)
	}

	newBlob, ok := walletRepo.updatedBlobs[oldWallet.ID]
	if !ok {
		t.Fatal("expected the wallet's encryption to be updated")
	}
	if newBlob == oldWallet.EncryptedPrivateKey {
		t.Error("expected a freshly sealed blob after rotation")
	}

	found := false
	for _, e := range auditLog.entries {
		if e.Action == "key_rotation" && e.EntityID != nil && *e.EntityID == oldWallet.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a key_rotation audit entry, got %v", auditLog.entries)
	}
}

// TestRotateKeysRotatesEveryWalletAcrossMultipleBatches guards against a
// shrinking-OFFSET bug: rotation moves a wallet off oldKeyVersion, so a
// naive "advance offset by batch size" loop would skip every wallet past
// the first batch once the matched set shrinks underneath it. With more
// wallets than batchSize, every single one must still end up rotated.
func TestRotateKeysRotatesEveryWalletAcrossMultipleBatches(t *testing.T) {
	wc := newTestWalletCryptoService(t)
	ctx := context.Background()

	const total = 120
	const batchSize = 50
	wallets := make([]*models.Wallet, 0, total)
	for i := 0; i < total; i++ {
		userID := fmt.Sprintf("usr-%d", i)
		generated, err := wc.Generate(ctx, userID)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		wallets = append(wallets, &models.Wallet{
			ID:                  fmt.Sprintf("wal-%d", i),
			UserID:              userID,
			PublicKey:           generated.PublicKey,
			EncryptedPrivateKey: generated.EncryptedPrivateKey,
			KeyVersion:          generated.KeyVersion,
			KeyAlgorithm:        generated.KeyAlgorithm,
		})
	}
	oldKeyVersion := wallets[0].KeyVersion

	walletRepo := &mockWalletRepository{byKeyVersion: wallets}
	auditLog := &mockAuditLogger{}
	m := NewMonitor(&mockTransactionRepository{}, walletRepo, &mockChainClient{}, nil, wc, auditLog)

	if err := m.RotateKeys(ctx, oldKeyVersion, batchSize); err != nil {
		t.Fatalf("RotateKeys: %v", err)
	}

	for _, w := range wallets {
		if _, ok := walletRepo.updatedBlobs[w.ID]; !ok {
			t.Errorf("wallet %s was never rotated", w.ID)
		}
		if w.KeyVersion == oldKeyVersion {
			t.Errorf("wallet %s still reports the old key version after rotation", w.ID)
		}
	}
}

var _ chain.Client = (*mockChainClient)(nil)
