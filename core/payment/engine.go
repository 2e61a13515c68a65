// Package payment is the idempotent submission pipeline: limit
// enforcement, persistence, and orchestration of wallet crypto and the
// chain client under retry.
package payment

import (
	"context"
	"time"

	"github.com/ledgerwire/core/audit"
	"github.com/ledgerwire/core/balancecache"
	"github.com/ledgerwire/core/chain"
	"github.com/ledgerwire/core/errs"
	"github.com/ledgerwire/core/walletcrypto"
	"github.com/ledgerwire/shared/models"
)

// UserRepository is the sender/receiver lookup boundary SendPayment needs.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByPhoneNumber(ctx context.Context, phone string) (*models.User, error)
	SumNonFailedTransferredSince(ctx context.Context, userID string, since time.Time) (float64, error)
}

// WalletRepository loads the custodial wallet rows SendPayment needs.
type WalletRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.Wallet, error)
}

// TransactionRepository is the write/read boundary for Transaction rows.
// Create implements idempotent insert: it returns (row, true) on a fresh
// insert and (existing, false) when idempotency_key already exists.
type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, bool, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error)
	UpdateStatus(ctx context.Context, id string, status models.TransactionStatus, fields TransactionUpdate) error
}

// TransactionUpdate carries the optional fields a status transition sets.
type TransactionUpdate struct {
	SolanaSignature *string
	SolanaSlot      *uint64
	SolanaBlockTime *time.Time
	ErrorCode       *string
	ErrorMessage    *string
	ConfirmedAt     *time.Time
	RetryCountDelta int
}

// WithdrawalWhitelistRepository backs the withdrawal-whitelist check.
// IsAllowed fails open when the sender has no whitelist rows at all.
type WithdrawalWhitelistRepository interface {
	IsAllowed(ctx context.Context, userID, address string) (bool, error)
}

// FeeHook lets a caller supply a schedule-driven minimum SOL fee reserve
// (in lamports) per token, instead of the balancecache default of 0.01 SOL.
type FeeHook func(ctx context.Context, token string) (lamportsReserve uint64)

// RateLimiter is the external rate-limit collaborator: submit calls it for
// ("transfer", sender_id) or ("withdraw", sender_id) right after the
// idempotency lookup, before the sender, limit and balance checks.
type RateLimiter interface {
	Allow(ctx context.Context, action, key string) (bool, error)
}

// Engine holds everything SendPayment/Withdraw need, injected at
// construction — never a singleton or DI container.
type Engine struct {
	users        UserRepository
	wallets      WalletRepository
	transactions TransactionRepository
	whitelist    WithdrawalWhitelistRepository
	rateLimiter  RateLimiter
	audit        audit.Logger
	walletCrypto *walletcrypto.Service
	chainClient  chain.Client
	balances     *balancecache.Cache
	feeHook      FeeHook
}

func New(
	users UserRepository,
	wallets WalletRepository,
	transactions TransactionRepository,
	whitelist WithdrawalWhitelistRepository,
	rateLimiter RateLimiter,
	auditLogger audit.Logger,
	walletCrypto *walletcrypto.Service,
	chainClient chain.Client,
	balances *balancecache.Cache,
	feeHook FeeHook,
) *Engine {
	return &Engine{
		users:        users,
		wallets:      wallets,
		transactions: transactions,
		whitelist:    whitelist,
		rateLimiter:  rateLimiter,
		audit:        auditLogger,
		walletCrypto: walletCrypto,
		chainClient:  chainClient,
		balances:     balances,
		feeHook:      feeHook,
	}
}

// SendPaymentRequest is the command input to SendPayment.
type SendPaymentRequest struct {
	RecipientPhone string
	Amount         float64
	Token          models.Token
	IdempotencyKey string
}

// WithdrawRequest is the command input to Withdraw.
type WithdrawRequest struct {
	ExternalAddress string
	Amount          float64
	Token           models.Token
	IdempotencyKey  string
}

// Response is the PaymentResponse shape: {transaction_id, status,
// amount, token, signature?, created_at}.
type Response struct {
	TransactionID string
	Status        models.TransactionStatus
	Amount        float64
	Token         models.Token
	Signature     *string
	CreatedAt     time.Time
}

// internalRequest is the shape SendPayment and Withdraw converge onto
// before calling submit, so the two public entry points share one pipeline
// instead of duplicating it.
type internalRequest struct {
	senderID        string
	receiverID      *string
	externalAddress *string
	amount          float64
	token           models.Token
	txType          models.TransactionType
	idempotencyKey  string
}

// SendPayment is the Transfer entry point.
func (e *Engine) SendPayment(ctx context.Context, senderID string, req SendPaymentRequest) (*Response, error) {
	receiver, err := e.users.GetByPhoneNumber(ctx, req.RecipientPhone)
	if err != nil {
		return nil, errs.NotFound("recipient not found")
	}
	if receiver.ID == senderID {
		return nil, errs.Validation("cannot send a payment to yourself")
	}

	return e.submit(ctx, internalRequest{
		senderID:       senderID,
		receiverID:     &receiver.ID,
		amount:         req.Amount,
		token:          req.Token,
		txType:         models.TransactionTransfer,
		idempotencyKey: req.IdempotencyKey,
	})
}

// Withdraw is the Withdrawal entry point: identical pipeline, no receiver
// lookup, no receiver cache invalidation.
func (e *Engine) Withdraw(ctx context.Context, senderID string, req WithdrawRequest) (*Response, error) {
	if allowed, err := e.whitelist.IsAllowed(ctx, senderID, req.ExternalAddress); err != nil {
		return nil, errs.Internal("failed to check withdrawal whitelist", err)
	} else if !allowed {
		return nil, errs.Validation("destination address is not on the withdrawal whitelist")
	}

	return e.submit(ctx, internalRequest{
		senderID:        senderID,
		externalAddress: &req.ExternalAddress,
		amount:          req.Amount,
		token:           req.Token,
		txType:          models.TransactionWithdrawal,
		idempotencyKey:  req.IdempotencyKey,
	})
}

func (e *Engine) submit(ctx context.Context, req internalRequest) (*Response, error) {
	// Step 1: idempotency — an existing row short-circuits the whole pipeline.
	if existing, err := e.transactions.GetByIdempotencyKey(ctx, req.idempotencyKey); err == nil && existing != nil {
		return toResponse(existing), nil
	}

	// Step 2: rate limit.
	action := "transfer"
	if req.txType == models.TransactionWithdrawal {
		action = "withdraw"
	}
	allowed, err := e.rateLimiter.Allow(ctx, action, req.senderID)
	if err != nil {
		return nil, errs.Internal("rate limiter unavailable", err)
	}
	if !allowed {
		return nil, errs.RateLimited("too many requests, retry with backoff")
	}

	// Step 3: sender.
	sender, err := e.users.GetByID(ctx, req.senderID)
	if err != nil {
		return nil, errs.NotFound("sender not found")
	}
	if sender.IsFrozen || !sender.IsActive {
		return nil, errs.AccountFrozen("account is frozen")
	}

	// Step 4: limits.
	if err := e.checkLimits(ctx, sender, req.amount); err != nil {
		return nil, err
	}

	// Steps 6-7: wallets + balance pre-check.
	senderWallet, err := e.wallets.GetByUserID(ctx, req.senderID)
	if err != nil {
		return nil, errs.NotFound("sender wallet not found")
	}
	ok, available, err := e.balances.CheckSufficientBalance(ctx, senderWallet.PublicKey, req.amount, string(req.token))
	if err != nil {
		return nil, errs.Internal("failed to read sender balance", err)
	}
	if !ok {
		return nil, errs.InsufficientBalance(req.amount, available)
	}

	minSol := 0.0
	if e.feeHook != nil {
		minSol = float64(e.feeHook(ctx, string(req.token))) / 1e9
	}
	if feeOK, _, err := e.balances.CheckSufficientSolForFees(ctx, senderWallet.PublicKey, minSol); err == nil && !feeOK {
		return nil, errs.InsufficientBalance(minSol, 0)
	}

	recipientPub, err := e.resolveRecipientPub(ctx, req)
	if err != nil {
		return nil, err
	}

	// Step 8: persist Processing before submission.
	tx := &models.Transaction{
		ID:              "tan-pending",
		IdempotencyKey:  req.idempotencyKey,
		SenderID:        req.senderID,
		ReceiverID:      req.receiverID,
		ExternalAddress: req.externalAddress,
		Amount:          req.amount,
		Token:           req.token,
		Type:            req.txType,
		Status:          models.StatusProcessing,
		MaxRetries:      3,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	persisted, inserted, err := e.transactions.Create(ctx, tx)
	if err != nil {
		return nil, errs.Internal("failed to persist transaction", err)
	}
	if !inserted {
		// Lost the race on the unique index to a concurrent identical request.
		return toResponse(persisted), nil
	}

	// Step 9-10: scoped secret acquisition + chain submission.
	signature, submitErr := e.submitToChain(ctx, senderWallet, recipientPub, req.amount, req.token)

	// Steps 11-12: finalize. On success the status stays Processing — only
	// the scheduler's monitor ever writes a terminal state.
	if submitErr != nil {
		classified := errs.As(submitErr)
		msg := classified.Message
		e.transactions.UpdateStatus(ctx, persisted.ID, models.StatusFailed, TransactionUpdate{
			ErrorCode:       ptr(classified.Kind.Code()),
			ErrorMessage:    &msg,
			RetryCountDelta: 1,
		})
		e.invalidateCaches(ctx, senderWallet.PublicKey, recipientPub, req.txType)
		e.audit.Log(ctx, audit.Entry{
			UserID:     &req.senderID,
			Action:     "payment_sent",
			EntityType: "transaction",
			EntityID:   &persisted.ID,
		})
		return nil, submitErr
	}

	e.transactions.UpdateStatus(ctx, persisted.ID, models.StatusProcessing, TransactionUpdate{
		SolanaSignature: &signature,
	})
	e.invalidateCaches(ctx, senderWallet.PublicKey, recipientPub, req.txType)
	e.audit.Log(ctx, audit.Entry{
		UserID:     &req.senderID,
		Action:     "payment_sent",
		EntityType: "transaction",
		EntityID:   &persisted.ID,
	})

	persisted.Status = models.StatusProcessing
	persisted.SolanaSignature = &signature
	return toResponse(persisted), nil
}

func (e *Engine) resolveRecipientPub(ctx context.Context, req internalRequest) (string, error) {
	if req.externalAddress != nil {
		return *req.externalAddress, nil
	}
	receiverWallet, err := e.wallets.GetByUserID(ctx, *req.receiverID)
	if err != nil {
		return "", errs.NotFound("receiver wallet not found")
	}
	return receiverWallet.PublicKey, nil
}

func (e *Engine) checkLimits(ctx context.Context, sender *models.User, amount float64) error {
	dailySum, err := e.users.SumNonFailedTransferredSince(ctx, sender.ID, sender.DailyLimitResetAt.Add(-24*time.Hour))
	if err != nil {
		return errs.Internal("failed to compute daily transferred amount", err)
	}
	if dailySum+amount > sender.DailyTransferLimit {
		return errs.DailyLimitExceeded("daily transfer limit exceeded")
	}

	monthlySum, err := e.users.SumNonFailedTransferredSince(ctx, sender.ID, sender.MonthlyLimitResetAt.Add(-30*24*time.Hour))
	if err != nil {
		return errs.Internal("failed to compute monthly transferred amount", err)
	}
	if monthlySum+amount > sender.MonthlyTransferLimit {
		return errs.MonthlyLimitExceeded("monthly transfer limit exceeded")
	}
	return nil
}

// submitToChain scope-acquires the sender's secret for exactly the
// duration of the chain call and zeroes it on every exit path.
func (e *Engine) submitToChain(ctx context.Context, senderWallet *models.Wallet, recipientPub string, amount float64, token models.Token) (string, error) {
	secret, err := e.walletCrypto.Decrypt(ctx, walletcrypto.FromModel(senderWallet))
	if err != nil {
		return "", err
	}
	defer zero(secret)

	return e.chainClient.TransferToken(ctx, secret, recipientPub, amount, string(token))
}

// invalidateCaches invalidates sender and (for transfers) receiver balance
// keys after every chain submission, whether it succeeded or failed.
func (e *Engine) invalidateCaches(ctx context.Context, senderPub, receiverPub string, txType models.TransactionType) {
	e.balances.Invalidate(ctx, senderPub, "")
	if txType == models.TransactionTransfer {
		e.balances.Invalidate(ctx, receiverPub, "")
	}
}

func toResponse(tx *models.Transaction) *Response {
	return &Response{
		TransactionID: tx.ID,
		Status:        tx.Status,
		Amount:        tx.Amount,
		Token:         tx.Token,
		Signature:     tx.SolanaSignature,
		CreatedAt:     tx.CreatedAt,
	}
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func ptr[T any](v T) *T { return &v }
