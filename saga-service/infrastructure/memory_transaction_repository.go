package infrastructure

import (
	"context"
	"sync"

	"github.com/draftea/event-saga/saga-service/domain"
	"github.com/draftea/event-saga/shared/models"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/tidwall/btree"
)

var _ domain.TransactionRepository = (*MemoryTransactionRepository)(nil)

// MemoryTransactionRepository keeps saga transactions for the lifetime of the process.
// Records are stored and returned as copies so callers can't mutate them outside Update.
type MemoryTransactionRepository struct {
	transactions *xsync.MapOf[models.ID, *domain.Transaction]

	mu    sync.Mutex
	seq   uint64
	order *btree.Map[uint64, models.ID]
}

// NewMemoryTransactionRepository creates an empty repository
func NewMemoryTransactionRepository() *MemoryTransactionRepository {
	return &MemoryTransactionRepository{
		transactions: xsync.NewMapOf[models.ID, *domain.Transaction](),
		order:        btree.NewMap[uint64, models.ID](32),
	}
}

// Create stores a new transaction; an existing id is never overwritten
func (r *MemoryTransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.ID.IsZero() {
		return errors.New("transaction id is required")
	}

	if _, loaded := r.transactions.LoadOrStore(tx.ID, tx.Clone()); loaded {
		return errors.Wrapf(domain.ErrTransactionExists, "transaction %s", tx.ID)
	}

	r.mu.Lock()
	r.seq++
	r.order.Set(r.seq, tx.ID)
	r.mu.Unlock()

	return nil
}

// Update applies mutate to a copy of the stored transaction and swaps it in
// atomically. If mutate fails the stored record is left untouched. mutate must
// not call back into the repository.
func (r *MemoryTransactionRepository) Update(ctx context.Context, id models.ID, mutate func(tx *domain.Transaction) error) (*domain.Transaction, error) {
	var (
		found     bool
		mutateErr error
	)

	updated, _ := r.transactions.Compute(id, func(current *domain.Transaction, loaded bool) (*domain.Transaction, bool) {
		if !loaded {
			return nil, true
		}
		found = true

		next := current.Clone()
		if err := mutate(next); err != nil {
			mutateErr = err
			return current, false
		}
		return next, false
	})

	if !found {
		return nil, errors.Wrapf(domain.ErrTransactionNotFound, "transaction %s", id)
	}
	if mutateErr != nil {
		return nil, errors.Wrapf(mutateErr, "update transaction %s", id)
	}

	return updated.Clone(), nil
}

// FindByID returns a copy of the transaction
func (r *MemoryTransactionRepository) FindByID(ctx context.Context, id models.ID) (*domain.Transaction, error) {
	tx, ok := r.transactions.Load(id)
	if !ok {
		return nil, errors.Wrapf(domain.ErrTransactionNotFound, "transaction %s", id)
	}
	return tx.Clone(), nil
}

// List returns copies of every transaction in creation order
func (r *MemoryTransactionRepository) List(ctx context.Context) ([]*domain.Transaction, error) {
	r.mu.Lock()
	ids := make([]models.ID, 0, r.order.Len())
	r.order.Scan(func(_ uint64, id models.ID) bool {
		ids = append(ids, id)
		return true
	})
	r.mu.Unlock()

	out := make([]*domain.Transaction, 0, len(ids))
	for _, id := range ids {
		if tx, ok := r.transactions.Load(id); ok {
			out = append(out, tx.Clone())
		}
	}
	return out, nil
}

// Count returns the number of stored transactions
func (r *MemoryTransactionRepository) Count() int {
	return r.transactions.Size()
}
