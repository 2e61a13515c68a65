// Package balancecache is the short-TTL, read-through cache in front of
// core/chain, built on shared/redis's generic ViewCache the same way every
// read-model in this codebase is: bind it to a small value type, pick a
// TTL, go through Get/Set/Delete.
package balancecache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ledgerwire/core/chain"
	sharedredis "github.com/ledgerwire/shared/redis"
)

const (
	tokenTTL = 30 * time.Second
	solTTL   = 60 * time.Second

	minSolForFees = 0.01
)

// BalanceEntry is the cached value shape for both token and SOL keys.
type BalanceEntry struct {
	Balance   float64   `json:"balance"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// WalletBalances is the composed result of GetAllBalances.
type WalletBalances struct {
	USDC float64 `json:"usdc"`
	USDT float64 `json:"usdt"`
	SOL  float64 `json:"sol"`
}

// Cache fronts a chain.Client with the key scheme:
// balance:token:{TOKEN}:{pub} (30s) and balance:sol:{pub} (60s).
type Cache struct {
	chain      chain.Client
	tokenCache *sharedredis.ViewCache[BalanceEntry]
	solCache   *sharedredis.ViewCache[BalanceEntry]
}

func New(client *sharedredis.Client, chainClient chain.Client) *Cache {
	return &Cache{
		chain:      chainClient,
		tokenCache: sharedredis.NewViewCache[BalanceEntry](client.Client, tokenTTL),
		solCache:   sharedredis.NewViewCache[BalanceEntry](client.Client, solTTL),
	}
}

func tokenKey(pub, token string) string { return fmt.Sprintf("balance:token:%s:%s", token, pub) }
func solKey(pub string) string          { return fmt.Sprintf("balance:sol:%s", pub) }

// GetTokenBalance returns the cached balance unless force is set or the
// entry is absent, in which case it reads through to the chain and caches.
func (c *Cache) GetTokenBalance(ctx context.Context, pub, token string, force bool) (float64, error) {
	key := tokenKey(pub, token)
	if !force {
		if v, ok := c.tokenCache.Get(ctx, key); ok {
			return v.Balance, nil
		}
	}
	balance, err := c.chain.GetTokenBalance(ctx, pub, token)
	if err != nil {
		return 0, err
	}
	c.tokenCache.Set(ctx, key, &BalanceEntry{Balance: balance, FetchedAt: time.Now()})
	return balance, nil
}

// GetSolBalance is GetTokenBalance's symmetric counterpart for native SOL.
func (c *Cache) GetSolBalance(ctx context.Context, pub string, force bool) (float64, error) {
	key := solKey(pub)
	if !force {
		if v, ok := c.solCache.Get(ctx, key); ok {
			return v.Balance, nil
		}
	}
	balance, err := c.chain.GetSolBalance(ctx, pub)
	if err != nil {
		return 0, err
	}
	c.solCache.Set(ctx, key, &BalanceEntry{Balance: balance, FetchedAt: time.Now()})
	return balance, nil
}

// GetAllBalances fans USDC, USDT and SOL lookups out in parallel.
func (c *Cache) GetAllBalances(ctx context.Context, pub string, force bool) (*WalletBalances, error) {
	var wg sync.WaitGroup
	var usdc, usdt, sol float64
	var usdcErr, usdtErr, solErr error

	wg.Add(3)
	go func() {
		defer wg.Done()
		usdc, usdcErr = c.GetTokenBalance(ctx, pub, "USDC", force)
	}()
	go func() {
		defer wg.Done()
		usdt, usdtErr = c.GetTokenBalance(ctx, pub, "USDT", force)
	}()
	go func() {
		defer wg.Done()
		sol, solErr = c.GetSolBalance(ctx, pub, force)
	}()
	wg.Wait()

	if usdcErr != nil {
		return nil, usdcErr
	}
	if usdtErr != nil {
		return nil, usdtErr
	}
	if solErr != nil {
		return nil, solErr
	}
	return &WalletBalances{USDC: usdc, USDT: usdt, SOL: sol}, nil
}

// Invalidate removes the token's key if given, otherwise all three.
func (c *Cache) Invalidate(ctx context.Context, pub string, token string) {
	if token != "" {
		c.tokenCache.Delete(ctx, tokenKey(pub, token))
		return
	}
	c.tokenCache.Delete(ctx, tokenKey(pub, "USDC"))
	c.tokenCache.Delete(ctx, tokenKey(pub, "USDT"))
	c.solCache.Delete(ctx, solKey(pub))
}

// CheckSufficientBalance reads the cached balance and compares to required.
func (c *Cache) CheckSufficientBalance(ctx context.Context, pub string, required float64, token string) (bool, float64, error) {
	current, err := c.GetTokenBalance(ctx, pub, token, false)
	if err != nil {
		return false, 0, err
	}
	return current >= required, current, nil
}

// CheckSufficientSolForFees checks the cached SOL balance against a minimum
// fee reserve, defaulting to 0.01 SOL.
func (c *Cache) CheckSufficientSolForFees(ctx context.Context, pub string, min float64) (bool, float64, error) {
	if min <= 0 {
		min = minSolForFees
	}
	current, err := c.GetSolBalance(ctx, pub, false)
	if err != nil {
		return false, 0, err
	}
	return current >= min, current, nil
}
