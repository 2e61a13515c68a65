// Package query is wallet-service's read side: it converts cqrs query
// structs into wallet lookup + balance-cache reads, the same
// handler -> query service -> repository shape the CQRS package names are
// modeled on.
package query

import (
	"context"

	"github.com/ledgerwire/core/balancecache"
	"github.com/ledgerwire/core/errs"
	"github.com/ledgerwire/shared/cqrs"
	"github.com/ledgerwire/shared/models"
)

// WalletReader is the subset of the wallet repository WalletQueryService needs.
type WalletReader interface {
	GetByUserID(ctx context.Context, userID string) (*models.Wallet, error)
}

// WalletQueryService is the query-side boundary WalletHandler routes the
// balance lookup through instead of calling its collaborators directly.
type WalletQueryService struct {
	wallets  WalletReader
	balances *balancecache.Cache
}

func NewWalletQueryService(wallets WalletReader, balances *balancecache.Cache) *WalletQueryService {
	return &WalletQueryService{wallets: wallets, balances: balances}
}

// GetWalletBalance resolves q.UserID's wallet and returns its public key
// alongside the cached (or force-refreshed) per-token balances.
func (s *WalletQueryService) GetWalletBalance(ctx context.Context, q cqrs.GetWalletBalanceQuery) (string, *balancecache.WalletBalances, error) {
	w, err := s.wallets.GetByUserID(ctx, q.UserID)
	if err != nil {
		return "", nil, errs.NotFound("wallet not found")
	}
	balances, err := s.balances.GetAllBalances(ctx, w.PublicKey, q.Refresh)
	if err != nil {
		return "", nil, errs.Internal("failed to fetch balances", err)
	}
	return w.PublicKey, balances, nil
}
