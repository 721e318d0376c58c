package infrastructure

import (
	"context"
	"sync"
	"testing"

	"github.com/draftea/event-saga/saga-service/domain"
	"github.com/draftea/event-saga/shared/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTransaction() *domain.Transaction {
	return domain.NewTransaction(domain.SagaPayload{Name: "Concert A", Description: "Live", Date: "2024-12-31"})
}

func TestMemoryTransactionRepository_CreateAndFind(t *testing.T) {
	repo := NewMemoryTransactionRepository()
	ctx := context.Background()
	tx := newTransaction()

	require.NoError(t, repo.Create(ctx, tx))

	err := repo.Create(ctx, tx)
	assert.True(t, errors.Is(err, domain.ErrTransactionExists))

	found, err := repo.FindByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, found.ID)

	// returned copies are detached from the stored record
	found.Status = domain.TransactionStatusFailed
	again, err := repo.FindByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusStarted, again.Status)

	_, err = repo.FindByID(ctx, models.GenerateUUID())
	assert.True(t, errors.Is(err, domain.ErrTransactionNotFound))

	assert.Error(t, repo.Create(ctx, &domain.Transaction{}))
}

func TestMemoryTransactionRepository_Update(t *testing.T) {
	repo := NewMemoryTransactionRepository()
	ctx := context.Background()
	tx := newTransaction()
	require.NoError(t, repo.Create(ctx, tx))

	updated, err := repo.Update(ctx, tx.ID, func(tx *domain.Transaction) error {
		return tx.TransitionTo(domain.TransactionStatusInProgress)
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusInProgress, updated.Status)

	_, err = repo.Update(ctx, tx.ID, func(tx *domain.Transaction) error {
		require.NoError(t, tx.MarkStepSucceeded(domain.StepEvent, "e-1"))
		return tx.TransitionTo(domain.TransactionStatusStarted)
	})
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

	stored, err := repo.FindByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusInProgress, stored.Status)
	assert.Equal(t, domain.StepStatusPending, stored.Steps[0].Status, "failed mutation must not leak")

	_, err = repo.Update(ctx, models.GenerateUUID(), func(*domain.Transaction) error { return nil })
	assert.True(t, errors.Is(err, domain.ErrTransactionNotFound))
	assert.Equal(t, 1, repo.Count())
}

func TestMemoryTransactionRepository_ListInCreationOrder(t *testing.T) {
	repo := NewMemoryTransactionRepository()
	ctx := context.Background()

	var ids []models.ID
	for i := 0; i < 5; i++ {
		tx := newTransaction()
		ids = append(ids, tx.ID)
		require.NoError(t, repo.Create(ctx, tx))
	}

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 5)
	for i, tx := range list {
		assert.Equal(t, ids[i], tx.ID)
	}
}

func TestMemoryTransactionRepository_ConcurrentUpdates(t *testing.T) {
	repo := NewMemoryTransactionRepository()
	ctx := context.Background()
	tx := newTransaction()
	require.NoError(t, repo.Create(ctx, tx))

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Update(ctx, tx.ID, func(tx *domain.Transaction) error {
				tx.History = append(tx.History, domain.StatusTransition{Status: tx.Status})
				return nil
			})
			assert.NoError(t, err)
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.FindByID(ctx, tx.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := repo.FindByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Len(t, stored.History, writers+1, "no update may be lost")
}
