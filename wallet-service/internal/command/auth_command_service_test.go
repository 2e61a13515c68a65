package command

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/ledgerwire/core/audit"
	"github.com/ledgerwire/core/errs"
	"github.com/ledgerwire/core/kms"
	"github.com/ledgerwire/core/walletcrypto"
	"github.com/ledgerwire/shared/cqrs"
	"github.com/ledgerwire/shared/models"
)

// ---- mocks ----

type mockUserStore struct {
	byPhone  map[string]*models.User
	createFn func(ctx context.Context, phone string) (*models.User, error)
}

func (m *mockUserStore) GetByPhoneNumber(ctx context.Context, phone string) (*models.User, error) {
	if u, ok := m.byPhone[phone]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user not found")
}

func (m *mockUserStore) Create(ctx context.Context, phone string) (*models.User, error) {
	if m.createFn != nil {
		return m.createFn(ctx, phone)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockUserStore) TouchLastLogin(ctx context.Context, userID string) error { return nil }

type mockWalletStore struct {
	byUser map[string]*models.Wallet
}

func (m *mockWalletStore) GetByUserID(ctx context.Context, userID string) (*models.Wallet, error) {
	if w, ok := m.byUser[userID]; ok {
		return w, nil
	}
	return nil, fmt.Errorf("wallet not found")
}

func (m *mockWalletStore) Create(ctx context.Context, userID, publicKey, encryptedPrivateKey, keyVersion, keyAlgorithm string) (*models.Wallet, error) {
	return &models.Wallet{ID: "wal-new", UserID: userID, PublicKey: publicKey}, nil
}

type mockOTPService struct {
	requestErr error
	verifyFn   func(ctx context.Context, phone, code string) (bool, error)
}

func (m *mockOTPService) Request(ctx context.Context, phoneNumber string) error {
	return m.requestErr
}

func (m *mockOTPService) Verify(ctx context.Context, phoneNumber, code string) (bool, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, phoneNumber, code)
	}
	return false, fmt.Errorf("not configured")
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

func TestVerifyOTPNewUserProvisionsWalletAndIssuesToken(t *testing.T) {
	users := &mockUserStore{
		byPhone: map[string]*models.User{},
		createFn: func(ctx context.Context, phone string) (*models.User, error) {
			return &models.User{ID: "usr-new", PhoneNumber: phone}, nil
		},
	}
	wallets := &mockWalletStore{byUser: map[string]*models.Wallet{}}
	otp := &mockOTPService{verifyFn: func(ctx context.Context, phone, code string) (bool, error) { return true, nil }}
	audit := &mockAuditLogger{}

	svc := NewAuthCommandService(users, wallets, otp, newTestWalletCryptoService(t), audit, time.Hour)
	token, err := svc.VerifyOTP(context.Background(), cqrs.VerifyOTPCommand{PhoneNumber: "+15551234567", Code: "123456"})
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if token == "" {
		t.Error("expected a non-empty token")
	}
	if len(audit.entries) != 2 {
		t.Errorf("expected user_registered + login audit entries, got %d", len(audit.entries))
	}
}

func TestVerifyOTPRejectsInvalidCode(t *testing.T) {
	otp := &mockOTPService{verifyFn: func(ctx context.Context, phone, code string) (bool, error) { return false, nil }}
	svc := NewAuthCommandService(&mockUserStore{}, &mockWalletStore{}, otp, newTestWalletCryptoService(t), &mockAuditLogger{}, time.Hour)

	_, err := svc.VerifyOTP(context.Background(), cqrs.VerifyOTPCommand{PhoneNumber: "+15551234567", Code: "000000"})
	if errs.As(err).Kind != errs.KindInvalidOtp {
		t.Errorf("expected KindInvalidOtp, got %v", err)
	}
}

func TestVerifyOTPRejectsFrozenAccount(t *testing.T) {
	users := &mockUserStore{byPhone: map[string]*models.User{
		"+15551234567": {ID: "usr-1", PhoneNumber: "+15551234567", IsFrozen: true},
	}}
	otp := &mockOTPService{verifyFn: func(ctx context.Context, phone, code string) (bool, error) { return true, nil }}
	svc := NewAuthCommandService(users, &mockWalletStore{}, otp, newTestWalletCryptoService(t), &mockAuditLogger{}, time.Hour)

	_, err := svc.VerifyOTP(context.Background(), cqrs.VerifyOTPCommand{PhoneNumber: "+15551234567", Code: "123456"})
	if errs.As(err).Kind != errs.KindAccountFrozen {
		t.Errorf("expected KindAccountFrozen, got %v", err)
	}
}

func TestVerifyOTPExistingUserSkipsProvisioning(t *testing.T) {
	users := &mockUserStore{byPhone: map[string]*models.User{
		"+15551234567": {ID: "usr-1", PhoneNumber: "+15551234567"},
	}}
	wallets := &mockWalletStore{byUser: map[string]*models.Wallet{
		"usr-1": {ID: "wal-1", UserID: "usr-1", PublicKey: "existing-pub"},
	}}
	otp := &mockOTPService{verifyFn: func(ctx context.Context, phone, code string) (bool, error) { return true, nil }}
	audit := &mockAuditLogger{}

	svc := NewAuthCommandService(users, wallets, otp, newTestWalletCryptoService(t), audit, time.Hour)
	if _, err := svc.VerifyOTP(context.Background(), cqrs.VerifyOTPCommand{PhoneNumber: "+15551234567", Code: "123456"}); err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if len(audit.entries) != 1 || audit.entries[0].Action != "login" {
		t.Errorf("expected a single login audit entry for a returning user, got %+v", audit.entries)
	}
}

func TestRequestOTPPropagatesSenderError(t *testing.T) {
	otp := &mockOTPService{requestErr: fmt.Errorf("sms provider down")}
	svc := NewAuthCommandService(&mockUserStore{}, &mockWalletStore{}, otp, newTestWalletCryptoService(t), &mockAuditLogger{}, time.Hour)

	err := svc.RequestOTP(context.Background(), cqrs.RequestOTPCommand{PhoneNumber: "+15551234567"})
	if errs.As(err).Kind != errs.KindInternal {
		t.Errorf("expected KindInternal, got %v", err)
	}
}
