package payment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ledgerwire/core/errs"
	"github.com/ledgerwire/shared/models"
)

// ---- mocks ----

type mockUserRepository struct {
	byID    map[string]*models.User
	byPhone map[string]*models.User
	sum     float64
	sumErr  error
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user not found")
}

func (m *mockUserRepository) GetByPhoneNumber(ctx context.Context, phone string) (*models.User, error) {
	if u, ok := m.byPhone[phone]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user not found")
}

func (m *mockUserRepository) SumNonFailedTransferredSince(ctx context.Context, userID string, since time.Time) (float64, error) {
	return m.sum, m.sumErr
}

type mockWhitelistRepository struct {
	allowed bool
	err     error
}

func (m *mockWhitelistRepository) IsAllowed(ctx context.Context, userID, address string) (bool, error) {
	return m.allowed, m.err
}

type mockTransactionRepository struct{}

func (m *mockTransactionRepository) Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, bool, error) {
	return tx, true, nil
}

func (m *mockTransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error) {
	return nil, fmt.Errorf("no existing transaction")
}

func (m *mockTransactionRepository) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus, fields TransactionUpdate) error {
	return nil
}

type mockRateLimiter struct {
	allow bool
}

func (m *mockRateLimiter) Allow(ctx context.Context, action, key string) (bool, error) {
	return m.allow, nil
}

func newEngineForValidationTests(users *mockUserRepository, whitelist *mockWhitelistRepository) *Engine {
	return New(users, nil, &mockTransactionRepository{}, whitelist, &mockRateLimiter{allow: true}, nil, nil, nil, nil, nil)
}

// ---- tests ----

func TestSendPaymentRejectsSelfTransfer(t *testing.T) {
	users := &mockUserRepository{
		byID:    map[string]*models.User{"usr-1": {ID: "usr-1"}},
		byPhone: map[string]*models.User{"+15551234567": {ID: "usr-1"}},
	}
	e := newEngineForValidationTests(users, nil)

	_, err := e.SendPayment(context.Background(), "usr-1", SendPaymentRequest{
		RecipientPhone: "+15551234567",
		Amount:         10,
		Token:          models.TokenUSDC,
		IdempotencyKey: "idem-1",
	})

	classified := errs.As(err)
	if classified.Kind != errs.KindValidation {
		t.Fatalf("expected KindValidation for a self-transfer, got %v (err=%v)", classified.Kind, err)
	}
}

func TestSendPaymentRejectsUnknownRecipient(t *testing.T) {
	users := &mockUserRepository{
		byID:    map[string]*models.User{"usr-1": {ID: "usr-1"}},
		byPhone: map[string]*models.User{},
	}
	e := newEngineForValidationTests(users, nil)

	_, err := e.SendPayment(context.Background(), "usr-1", SendPaymentRequest{
		RecipientPhone: "+15559999999",
		Amount:         10,
		Token:          models.TokenUSDC,
		IdempotencyKey: "idem-2",
	})

	classified := errs.As(err)
	if classified.Kind != errs.KindNotFound {
		t.Fatalf("expected KindNotFound for an unknown recipient, got %v", classified.Kind)
	}
}

func TestWithdrawRejectsAddressNotOnWhitelist(t *testing.T) {
	e := newEngineForValidationTests(&mockUserRepository{}, &mockWhitelistRepository{allowed: false})

	_, err := e.Withdraw(context.Background(), "usr-1", WithdrawRequest{
		ExternalAddress: "So11111111111111111111111111111111111111112",
		Amount:          10,
		Token:           models.TokenUSDC,
		IdempotencyKey:  "idem-3",
	})

	classified := errs.As(err)
	if classified.Kind != errs.KindValidation {
		t.Fatalf("expected KindValidation for a non-whitelisted address, got %v", classified.Kind)
	}
}

func TestWithdrawWhitelistFailsOpenReachesSenderLookup(t *testing.T) {
	// allowed=true simulates the fail-open default (sender has no
	// whitelist rows yet); submit() then clears idempotency and the rate
	// limiter and fails only once it can't find the sender, proving the
	// whitelist check did not itself block the request.
	e := newEngineForValidationTests(&mockUserRepository{}, &mockWhitelistRepository{allowed: true})

	_, err := e.Withdraw(context.Background(), "usr-unknown", WithdrawRequest{
		ExternalAddress: "So11111111111111111111111111111111111111112",
		Amount:          10,
		Token:           models.TokenUSDC,
		IdempotencyKey:  "idem-4",
	})

	classified := errs.As(err)
	if classified.Kind != errs.KindNotFound {
		t.Fatalf("expected KindNotFound once past the whitelist check, got %v", classified.Kind)
	}
}

func TestSubmitRejectsWhenRateLimited(t *testing.T) {
	users := &mockUserRepository{byID: map[string]*models.User{"usr-1": {ID: "usr-1"}}}
	e := New(users, nil, &mockTransactionRepository{}, &mockWhitelistRepository{allowed: true}, &mockRateLimiter{allow: false}, nil, nil, nil, nil, nil)

	_, err := e.Withdraw(context.Background(), "usr-1", WithdrawRequest{
		ExternalAddress: "So11111111111111111111111111111111111111112",
		Amount:          10,
		Token:           models.TokenUSDC,
		IdempotencyKey:  "idem-5",
	})

	classified := errs.As(err)
	if classified.Kind != errs.KindRateLimited {
		t.Fatalf("expected KindRateLimited, got %v", classified.Kind)
	}
}

func TestSubmitRejectsFrozenAccount(t *testing.T) {
	users := &mockUserRepository{byID: map[string]*models.User{"usr-1": {ID: "usr-1", IsFrozen: true, IsActive: true}}}
	e := New(users, nil, &mockTransactionRepository{}, &mockWhitelistRepository{allowed: true}, &mockRateLimiter{allow: true}, nil, nil, nil, nil, nil)

	_, err := e.Withdraw(context.Background(), "usr-1", WithdrawRequest{
		ExternalAddress: "So11111111111111111111111111111111111111112",
		Amount:          10,
		Token:           models.TokenUSDC,
		IdempotencyKey:  "idem-6",
	})

	classified := errs.As(err)
	if classified.Kind != errs.KindAccountFrozen {
		t.Fatalf("expected KindAccountFrozen, got %v", classified.Kind)
	}
}

// TestSubmitIdempotencyShortCircuits checks that a second call with the
// same idempotency key returns the existing row without re-running the
// rate limiter, sender lookup, or any balance/chain work.
func TestSubmitIdempotencyShortCircuits(t *testing.T) {
	existing := &models.Transaction{
		ID:        "tan-existing",
		Status:    models.StatusConfirmed,
		Amount:    10,
		Token:     models.TokenUSDC,
		CreatedAt: time.Now(),
	}
	e := New(nil, nil, &stubIdempotentTransactionRepository{existing: existing}, &mockWhitelistRepository{allowed: true}, nil, nil, nil, nil, nil, nil)

	resp, err := e.Withdraw(context.Background(), "usr-1", WithdrawRequest{
		ExternalAddress: "So11111111111111111111111111111111111111112",
		Amount:          10,
		Token:           models.TokenUSDC,
		IdempotencyKey:  "idem-7",
	})
	if err != nil {
		t.Fatalf("expected the short-circuit path to succeed, got %v", err)
	}
	if resp.TransactionID != existing.ID {
		t.Errorf("expected the existing transaction to be returned, got %q", resp.TransactionID)
	}
}

type stubIdempotentTransactionRepository struct {
	existing *models.Transaction
}

func (s *stubIdempotentTransactionRepository) Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, bool, error) {
	return tx, true, nil
}

func (s *stubIdempotentTransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error) {
	return s.existing, nil
}

func (s *stubIdempotentTransactionRepository) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus, fields TransactionUpdate) error {
	return nil
}

// TestCheckLimitsDaily checks that a request which would push the running
// daily total over the sender's limit is rejected before any chain work.
func TestCheckLimitsDaily(t *testing.T) {
	e := &Engine{users: &mockUserRepository{sum: 950}}
	sender := &models.User{
		ID:                   "usr-1",
		DailyTransferLimit:   1000,
		MonthlyTransferLimit: 100000,
		DailyLimitResetAt:    time.Now(),
		MonthlyLimitResetAt:  time.Now(),
	}

	err := e.checkLimits(context.Background(), sender, 100)
	classified := errs.As(err)
	if classified.Kind != errs.KindDailyLimitExceeded {
		t.Fatalf("expected KindDailyLimitExceeded, got %v", classified.Kind)
	}
}

func TestCheckLimitsWithinBounds(t *testing.T) {
	e := &Engine{users: &mockUserRepository{sum: 10}}
	sender := &models.User{
		ID:                   "usr-1",
		DailyTransferLimit:   1000,
		MonthlyTransferLimit: 100000,
		DailyLimitResetAt:    time.Now(),
		MonthlyLimitResetAt:  time.Now(),
	}

	if err := e.checkLimits(context.Background(), sender, 100); err != nil {
		t.Fatalf("expected no error for a request within limits, got %v", err)
	}
}
