package models

import "time"

// WalletBalanceView is a read-optimised projection of a wallet's
// balances. GET /api/wallet/balance serves wallet-service's own
// WalletBalance type, not this one. UserID is never serialised.
type WalletBalanceView struct {
	PublicKey   string    `json:"publicKey"`
	UserID      string    `json:"-"`
	USDC        float64   `json:"usdc"`
	USDT        float64   `json:"usdt"`
	SOL         float64   `json:"sol"`
	FetchedAt   time.Time `json:"fetchedAt"`
}

// TransactionView is the read-optimised projection of a transaction,
// built per request from the stored rows and served from
// GET /api/payments/history.
type TransactionView struct {
	ID              string            `json:"transactionId"`
	UserID          string            `json:"-"`
	ReceiverID      string            `json:"-"`
	Amount          float64           `json:"amount"`
	Token           Token             `json:"token"`
	Type            TransactionType   `json:"type"`
	Status          TransactionStatus `json:"status"`
	Signature       string            `json:"signature,omitempty"`
	ExternalAddress string            `json:"externalAddress,omitempty"`
	CreatedAt       time.Time         `json:"createdTimestamp"`
}

// PaymentResponse is the response shape of send/withdraw.
type PaymentResponse struct {
	TransactionID string            `json:"transactionId"`
	Status        TransactionStatus `json:"status"`
	Amount        float64           `json:"amount"`
	Token         Token             `json:"token"`
	Signature     string            `json:"signature,omitempty"`
	CreatedAt     time.Time         `json:"createdTimestamp"`
}
