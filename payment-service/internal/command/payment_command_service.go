// Package command is payment-service's write side: it converts cqrs
// command structs into core/payment.Engine calls, the same
// handler -> command service -> engine/repository shape the CQRS package
// names are modeled on.
package command

import (
	"context"

	"github.com/ledgerwire/core/payment"
	"github.com/ledgerwire/shared/cqrs"
)

// Engine is the subset of core/payment.Engine PaymentCommandService drives.
type Engine interface {
	SendPayment(ctx context.Context, senderID string, req payment.SendPaymentRequest) (*payment.Response, error)
	Withdraw(ctx context.Context, senderID string, req payment.WithdrawRequest) (*payment.Response, error)
}

// PaymentCommandService is the command-side boundary PaymentHandler routes
// through instead of calling the engine directly.
type PaymentCommandService struct {
	engine Engine
}

func NewPaymentCommandService(engine Engine) *PaymentCommandService {
	return &PaymentCommandService{engine: engine}
}

func (s *PaymentCommandService) SendPayment(ctx context.Context, cmd cqrs.SendPaymentCommand) (*payment.Response, error) {
	return s.engine.SendPayment(ctx, cmd.SenderID, payment.SendPaymentRequest{
		RecipientPhone: cmd.RecipientPhone,
		Amount:         cmd.Amount,
		Token:          cmd.Token,
		IdempotencyKey: cmd.IdempotencyKey,
	})
}

func (s *PaymentCommandService) Withdraw(ctx context.Context, cmd cqrs.WithdrawCommand) (*payment.Response, error) {
	return s.engine.Withdraw(ctx, cmd.SenderID, payment.WithdrawRequest{
		ExternalAddress: cmd.DestinationAddress,
		Amount:          cmd.Amount,
		Token:           cmd.Token,
		IdempotencyKey:  cmd.IdempotencyKey,
	})
}
