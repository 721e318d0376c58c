package domain

import (
	"context"

	"github.com/draftea/event-saga/shared/models"
)

// TransactionRepository stores saga transactions. Implementations must be
// safe for concurrent use and must apply Update atomically per transaction.
type TransactionRepository interface {
	Create(ctx context.Context, tx *Transaction) error
	Update(ctx context.Context, id models.ID, mutate func(tx *Transaction) error) (*Transaction, error)
	FindByID(ctx context.Context, id models.ID) (*Transaction, error)
	List(ctx context.Context) ([]*Transaction, error)
}
