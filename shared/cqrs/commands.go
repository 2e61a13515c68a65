package cqrs

import "github.com/ledgerwire/shared/models"

// RequestOTPCommand asks for a one-time code to be sent to a phone number.
type RequestOTPCommand struct {
	PhoneNumber string
}

// VerifyOTPCommand verifies a code and issues a session token, creating the
// User+Wallet on first successful verification.
type VerifyOTPCommand struct {
	PhoneNumber string
	Code        string
}

// SendPaymentCommand is the CreateTransactionCommand-equivalent for a
// phone-addressed transfer between two custodial users.
type SendPaymentCommand struct {
	SenderID       string
	RecipientPhone string
	Amount         float64
	Token          models.Token
	IdempotencyKey string
}

// WithdrawCommand is the CreateTransactionCommand-equivalent for a
// withdrawal to an external (non-custodial) address.
type WithdrawCommand struct {
	SenderID           string
	DestinationAddress string
	Amount             float64
	Token              models.Token
	IdempotencyKey     string
}
