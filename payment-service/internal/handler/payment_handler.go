package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ledgerwire/core/payment"
	"github.com/ledgerwire/shared/cqrs"
	"github.com/ledgerwire/shared/middleware"
	"github.com/ledgerwire/shared/models"
)

// Commander is the write-side boundary PaymentHandler routes Send/Withdraw
// requests through.
type Commander interface {
	SendPayment(ctx context.Context, cmd cqrs.SendPaymentCommand) (*payment.Response, error)
	Withdraw(ctx context.Context, cmd cqrs.WithdrawCommand) (*payment.Response, error)
}

// Querier is the read-side boundary for GET /api/payments/history.
type Querier interface {
	ListTransactions(ctx context.Context, q cqrs.ListTransactionsQuery) ([]*models.Transaction, error)
}

type PaymentHandler struct {
	commands Commander
	queries  Querier
}

func NewPaymentHandler(commands Commander, queries Querier) *PaymentHandler {
	return &PaymentHandler{commands: commands, queries: queries}
}

type sendPaymentRequest struct {
	RecipientPhone string  `json:"recipientPhone" validate:"required"`
	Amount         float64 `json:"amount" validate:"required,gt=0"`
	Token          string  `json:"token" validate:"required,oneof=USDC USDT"`
	IdempotencyKey string  `json:"idempotencyKey" validate:"required"`
}

type withdrawRequest struct {
	ExternalAddress string  `json:"externalAddress" validate:"required"`
	Amount          float64 `json:"amount" validate:"required,gt=0"`
	Token           string  `json:"token" validate:"required,oneof=USDC USDT"`
	IdempotencyKey  string  `json:"idempotencyKey" validate:"required"`
}

func (h *PaymentHandler) Send(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req sendPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	resp, err := h.commands.SendPayment(c.Request.Context(), cqrs.SendPaymentCommand{
		SenderID:       userID,
		RecipientPhone: req.RecipientPhone,
		Amount:         req.Amount,
		Token:          models.Token(req.Token),
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentResponse(resp))
}

func (h *PaymentHandler) Withdraw(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	resp, err := h.commands.Withdraw(c.Request.Context(), cqrs.WithdrawCommand{
		SenderID:           userID,
		DestinationAddress: req.ExternalAddress,
		Amount:             req.Amount,
		Token:              models.Token(req.Token),
		IdempotencyKey:     req.IdempotencyKey,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentResponse(resp))
}

func (h *PaymentHandler) History(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	txs, err := h.queries.ListTransactions(c.Request.Context(), cqrs.ListTransactionsQuery{
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	views := make([]models.TransactionView, len(txs))
	for i, tx := range txs {
		views[i] = toTransactionView(tx)
	}
	c.JSON(http.StatusOK, gin.H{"transactions": views})
}

func toPaymentResponse(r *payment.Response) models.PaymentResponse {
	return models.PaymentResponse{
		TransactionID: r.TransactionID,
		Status:        r.Status,
		Amount:        r.Amount,
		Token:         r.Token,
		Signature:     deref(r.Signature),
		CreatedAt:     r.CreatedAt,
	}
}

func toTransactionView(tx *models.Transaction) models.TransactionView {
	return models.TransactionView{
		ID:              tx.ID,
		UserID:          tx.SenderID,
		ReceiverID:      deref(tx.ReceiverID),
		Amount:          tx.Amount,
		Token:           tx.Token,
		Type:            tx.Type,
		Status:          tx.Status,
		Signature:       deref(tx.SolanaSignature),
		ExternalAddress: deref(tx.ExternalAddress),
		CreatedAt:       tx.CreatedAt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
