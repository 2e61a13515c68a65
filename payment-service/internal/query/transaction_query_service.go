// Package query is payment-service's read side: ownership is checked here,
// once, before any transaction row reaches a handler.
package query

import (
	"context"

	"github.com/ledgerwire/core/errs"
	"github.com/ledgerwire/shared/cqrs"
	"github.com/ledgerwire/shared/models"
)

// TransactionRepository is the subset of repository.TransactionRepository
// TransactionQueryService drives.
type TransactionRepository interface {
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error)
}

// TransactionQueryService is the query-side boundary PaymentHandler routes
// through instead of calling the repository directly.
type TransactionQueryService struct {
	repo TransactionRepository
}

func NewTransactionQueryService(repo TransactionRepository) *TransactionQueryService {
	return &TransactionQueryService{repo: repo}
}

// GetTransaction returns the row only when q.UserID is the sender or the
// receiver; the repository itself has no user scoping built in.
func (s *TransactionQueryService) GetTransaction(ctx context.Context, q cqrs.GetTransactionQuery) (*models.Transaction, error) {
	tx, err := s.repo.GetByID(ctx, q.TransactionID)
	if err != nil {
		return nil, err
	}
	if tx.SenderID != q.UserID && (tx.ReceiverID == nil || *tx.ReceiverID != q.UserID) {
		return nil, errs.NotFound("transaction not found")
	}
	return tx, nil
}

func (s *TransactionQueryService) ListTransactions(ctx context.Context, q cqrs.ListTransactionsQuery) ([]*models.Transaction, error) {
	return s.repo.ListByUser(ctx, q.UserID, q.Limit, q.Offset)
}
