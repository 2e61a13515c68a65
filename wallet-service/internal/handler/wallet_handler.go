package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ledgerwire/core/balancecache"
	"github.com/ledgerwire/core/errs"
	"github.com/ledgerwire/shared/cqrs"
	"github.com/ledgerwire/shared/middleware"
)

// WalletQuerier is the read-side boundary for GET /api/wallet/balance.
type WalletQuerier interface {
	GetWalletBalance(ctx context.Context, q cqrs.GetWalletBalanceQuery) (publicKey string, balances *balancecache.WalletBalances, err error)
}

type WalletHandler struct {
	queries WalletQuerier
}

func NewWalletHandler(queries WalletQuerier) *WalletHandler {
	return &WalletHandler{queries: queries}
}

// WalletBalance is the response shape for GET /api/wallet/balance.
type WalletBalance struct {
	PublicKey string    `json:"publicKey"`
	USDC      float64   `json:"usdc"`
	USDT      float64   `json:"usdt"`
	SOL       float64   `json:"sol"`
	FetchedAt time.Time `json:"fetchedAt"`
}

func (h *WalletHandler) Balance(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		respondErr(c, errs.Internal("missing authenticated user", nil))
		return
	}

	force := c.Query("refresh") == "true"
	publicKey, balances, err := h.queries.GetWalletBalance(c.Request.Context(), cqrs.GetWalletBalanceQuery{UserID: userID, Refresh: force})
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, WalletBalance{
		PublicKey: publicKey,
		USDC:      balances.USDC,
		USDT:      balances.USDT,
		SOL:       balances.SOL,
		FetchedAt: time.Now(),
	})
}
