// Package command is wallet-service's write side: it converts cqrs command
// structs into the OTP/user/wallet orchestration AuthHandler used to do
// inline, the same handler -> command service -> repository shape the CQRS
// package names are modeled on.
package command

import (
	"context"
	"time"

	"github.com/ledgerwire/core/audit"
	"github.com/ledgerwire/core/errs"
	"github.com/ledgerwire/core/walletcrypto"
	"github.com/ledgerwire/shared/cqrs"
	"github.com/ledgerwire/shared/middleware"
	"github.com/ledgerwire/shared/models"
)

// UserStore is the subset of the user repository AuthCommandService needs.
type UserStore interface {
	GetByPhoneNumber(ctx context.Context, phone string) (*models.User, error)
	Create(ctx context.Context, phone string) (*models.User, error)
	TouchLastLogin(ctx context.Context, userID string) error
}

// WalletStore is the subset of the wallet repository AuthCommandService needs.
type WalletStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.Wallet, error)
	Create(ctx context.Context, userID, publicKey, encryptedPrivateKey, keyVersion, keyAlgorithm string) (*models.Wallet, error)
}

// OTPService is the subset of internal/otp.Service AuthCommandService needs.
type OTPService interface {
	Request(ctx context.Context, phoneNumber string) error
	Verify(ctx context.Context, phoneNumber, code string) (bool, error)
}

// AuthCommandService is the command-side boundary AuthHandler routes
// request-otp/verify-otp through instead of calling its collaborators
// directly.
type AuthCommandService struct {
	users        UserStore
	wallets      WalletStore
	otp          OTPService
	walletCrypto *walletcrypto.Service
	audit        audit.Logger
	tokenTTL     time.Duration
}

func NewAuthCommandService(users UserStore, wallets WalletStore, otp OTPService, wc *walletcrypto.Service, auditLogger audit.Logger, tokenTTL time.Duration) *AuthCommandService {
	return &AuthCommandService{users: users, wallets: wallets, otp: otp, walletCrypto: wc, audit: auditLogger, tokenTTL: tokenTTL}
}

func (s *AuthCommandService) RequestOTP(ctx context.Context, cmd cqrs.RequestOTPCommand) error {
	if err := s.otp.Request(ctx, cmd.PhoneNumber); err != nil {
		return errs.Internal("failed to send otp", err)
	}
	return nil
}

// VerifyOTP verifies the code, provisions a User+Wallet on first
// verification, and issues a session token.
func (s *AuthCommandService) VerifyOTP(ctx context.Context, cmd cqrs.VerifyOTPCommand) (string, error) {
	ok, err := s.otp.Verify(ctx, cmd.PhoneNumber, cmd.Code)
	if err != nil {
		return "", errs.Internal("failed to verify otp", err)
	}
	if !ok {
		return "", errs.InvalidOtp("code is invalid or expired")
	}

	user, err := s.users.GetByPhoneNumber(ctx, cmd.PhoneNumber)
	if err != nil {
		user, err = s.users.Create(ctx, cmd.PhoneNumber)
		if err != nil {
			return "", errs.Internal("failed to create user", err)
		}
		if err := s.provisionWallet(ctx, user.ID); err != nil {
			return "", err
		}
		s.audit.Log(ctx, audit.Entry{UserID: &user.ID, Action: "user_registered", EntityType: "user", EntityID: &user.ID})
	} else {
		_ = s.users.TouchLastLogin(ctx, user.ID)
	}

	if user.IsFrozen {
		return "", errs.AccountFrozen("account is frozen")
	}

	token, err := middleware.IssueToken(user.ID, user.PhoneNumber, s.tokenTTL)
	if err != nil {
		return "", errs.Internal("failed to issue token", err)
	}

	s.audit.Log(ctx, audit.Entry{UserID: &user.ID, Action: "login", EntityType: "user", EntityID: &user.ID})
	return token, nil
}

// provisionWallet generates and persists a wallet for a freshly created
// user on their first verified authentication.
func (s *AuthCommandService) provisionWallet(ctx context.Context, userID string) error {
	if _, err := s.wallets.GetByUserID(ctx, userID); err == nil {
		return nil
	}
	w, err := s.walletCrypto.Generate(ctx, userID)
	if err != nil {
		return errs.Internal("failed to generate wallet", err)
	}
	if _, err := s.wallets.Create(ctx, userID, w.PublicKey, w.EncryptedPrivateKey, w.KeyVersion, w.KeyAlgorithm); err != nil {
		return errs.Internal("failed to persist wallet", err)
	}
	return nil
}
