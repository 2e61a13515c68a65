// Package chain is a typed facade over the blockchain RPC: keypair
// creation, SPL token transfers with ATA creation, balance reads,
// signature/status queries, fee estimation and confirmation waits.
package chain

import (
	"context"
	"time"
)

// TxDetails is the result of GetTxDetails; nil if the signature is unknown.
type TxDetails struct {
	Slot      uint64
	BlockTime time.Time
	Fee       uint64
	IsSuccess bool
}

// Client is the facade every payment-engine and monitor collaborator
// depends on. solanaClient is the only production implementation; tests
// substitute a hand-rolled fake.
type Client interface {
	GenerateKeypair() (pub string, secret []byte, err error)

	TransferToken(ctx context.Context, secret []byte, recipientPub string, amount float64, token string) (signature string, err error)

	GetTokenBalance(ctx context.Context, pub, token string) (float64, error)
	GetSolBalance(ctx context.Context, pub string) (float64, error)

	EnsureATA(ctx context.Context, walletPub, token string, payerSecret []byte) error

	IsConfirmed(ctx context.Context, signature string) (bool, error)
	GetTxDetails(ctx context.Context, signature string) (*TxDetails, error)

	EstimateTransferFee(ctx context.Context, senderPub, recipientPub, token string) (uint64, error)

	WaitForConfirmation(ctx context.Context, signature string, timeout time.Duration) (bool, error)
}

// defaultConfirmationTimeout is wait_for_confirmation's default.
const defaultConfirmationTimeout = 2 * time.Minute

// pollInterval is the fixed cadence wait_for_confirmation polls at.
const pollInterval = 500 * time.Millisecond

// fallback fee estimates when the RPC simulation cannot be used.
const (
	fallbackFeeLamports          = uint64(5000)
	fallbackFeeWithATALamports   = uint64(2_044_280)
	minSolForFees                = 0.01
)
