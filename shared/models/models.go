package models

import "time"

// User is a custodial account holder, identified by a normalized E.164
// phone number. Wallet is 1:1 and created on first verified OTP login.
type User struct {
	ID                       string    `json:"id"`
	PhoneNumber              string    `json:"phoneNumber"`
	DailyTransferLimit       float64   `json:"dailyTransferLimit"`
	DailyTransferredAmount   float64   `json:"dailyTransferredAmount"`
	DailyLimitResetAt        time.Time `json:"dailyLimitResetAt"`
	MonthlyTransferLimit     float64   `json:"monthlyTransferLimit"`
	MonthlyTransferredAmount float64   `json:"monthlyTransferredAmount"`
	MonthlyLimitResetAt      time.Time `json:"monthlyLimitResetAt"`
	IsActive                 bool      `json:"isActive"`
	IsFrozen                 bool      `json:"isFrozen"`
	LastLoginAt              time.Time `json:"lastLoginAt"`
	CreatedAt                time.Time `json:"createdTimestamp"`
	UpdatedAt                time.Time `json:"updatedTimestamp"`
}

// Wallet holds the envelope-encrypted secret key for a User. The secret
// itself never appears here — only the opaque encrypted blob and enough
// metadata to decrypt and rotate it.
type Wallet struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"-"`
	PublicKey            string    `json:"publicKey"`
	EncryptedPrivateKey  string    `json:"-"`
	KeyVersion           string    `json:"-"`
	KeyAlgorithm         string    `json:"-"`
	BalanceLastUpdatedAt time.Time `json:"balanceLastUpdatedAt"`
	CreatedAt            time.Time `json:"createdTimestamp"`
	UpdatedAt            time.Time `json:"updatedTimestamp"`
}

type Token string

const (
	TokenUSDC Token = "USDC"
	TokenUSDT Token = "USDT"
)

// Decimals returns the fixed SPL decimal count for supported tokens.
func (t Token) Decimals() int { return 6 }

type TransactionType string

const (
	TransactionTransfer   TransactionType = "Transfer"
	TransactionWithdrawal TransactionType = "Withdrawal"
	TransactionDeposit    TransactionType = "Deposit"
)

type TransactionStatus string

const (
	StatusPending    TransactionStatus = "Pending"
	StatusProcessing TransactionStatus = "Processing"
	StatusConfirmed  TransactionStatus = "Confirmed"
	StatusFailed     TransactionStatus = "Failed"
	StatusCancelled  TransactionStatus = "Cancelled"
)

// IsTerminal reports whether status never transitions further.
func (s TransactionStatus) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusFailed || s == StatusCancelled
}

// Transaction is owned exclusively by the payment engine and the monitor;
// every other caller only ever reads it. IdempotencyKey is unique and is
// the sole mechanism that makes SendPayment at-most-once.
type Transaction struct {
	ID              string            `json:"id"`
	IdempotencyKey  string            `json:"-"`
	SenderID        string            `json:"-"`
	ReceiverID      *string           `json:"-"`
	ExternalAddress *string           `json:"externalAddress,omitempty"`
	Amount          float64           `json:"amount"`
	Token           Token             `json:"token"`
	Type            TransactionType   `json:"type"`
	Status          TransactionStatus `json:"status"`
	SolanaSignature *string           `json:"signature,omitempty"`
	SolanaSlot      *uint64           `json:"slot,omitempty"`
	SolanaBlockTime *time.Time        `json:"blockTime,omitempty"`
	ErrorCode       *string           `json:"errorCode,omitempty"`
	ErrorMessage    *string           `json:"errorMessage,omitempty"`
	RetryCount      int               `json:"retryCount"`
	MaxRetries      int               `json:"maxRetries"`
	NextRetryAt     *time.Time        `json:"-"`
	ConfirmedAt     *time.Time        `json:"confirmedAt,omitempty"`
	CreatedAt       time.Time         `json:"createdTimestamp"`
	UpdatedAt       time.Time         `json:"updatedTimestamp"`
}

// AuditLog is append-only: never updated, never deleted.
type AuditLog struct {
	ID         string    `json:"id"`
	UserID     *string   `json:"userId,omitempty"`
	Action     string    `json:"action"`
	EntityType string    `json:"entityType"`
	EntityID   *string   `json:"entityId,omitempty"`
	OldValue   *string   `json:"oldValue,omitempty"`
	NewValue   *string   `json:"newValue,omitempty"`
	RequestCtx *string   `json:"requestContext,omitempty"`
	CreatedAt  time.Time `json:"createdTimestamp"`
}

// WithdrawalWhitelistEntry is one allowed external destination for a sender.
type WithdrawalWhitelistEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Address   string    `json:"address"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"createdTimestamp"`
}
