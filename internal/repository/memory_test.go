package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashvault/mining-server/internal/models"
)

func TestMemoryAtomicallyRollsBackOnError(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	balance, err := repo.GetOrCreateBalance(ctx, "user-1")
	require.NoError(t, err)
	balance.AdminBalance = 100
	balance.Recompute(time.Now().UTC())
	require.NoError(t, repo.SaveBalance(ctx, balance))

	failure := errors.New("boom")
	err = repo.Atomically(ctx, func(store Store) error {
		b, err := store.GetOrCreateBalance(ctx, "user-1")
		require.NoError(t, err)
		b.AdminBalance = 0
		b.Recompute(time.Now().UTC())
		require.NoError(t, store.SaveBalance(ctx, b))
		require.NoError(t, store.CreateTransaction(ctx, &models.Transaction{
			UserID: "user-1",
			Amount: 100,
			Kind:   models.TxKindWithdrawal,
			Status: models.TxStatusPending,
		}))
		return failure
	})
	assert.ErrorIs(t, err, failure)

	// Neither staged write survived.
	after, err := repo.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, after.AdminBalance)

	txs, err := repo.ListTransactions(ctx, TransactionFilter{UserID: "user-1"})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestMemoryAtomicallyCommitsAllWrites(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	err := repo.Atomically(ctx, func(store Store) error {
		b, err := store.GetOrCreateBalance(ctx, "user-1")
		if err != nil {
			return err
		}
		b.MiningBalance = 42
		b.Recompute(time.Now().UTC())
		if err := store.SaveBalance(ctx, b); err != nil {
			return err
		}
		return store.CreateTransaction(ctx, &models.Transaction{
			UserID: "user-1",
			Amount: 42,
			Kind:   models.TxKindCredit,
			Status: models.TxStatusCompleted,
		})
	})
	require.NoError(t, err)

	balance, err := repo.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 42.0, balance.MiningBalance)

	txs, err := repo.ListTransactions(ctx, TransactionFilter{UserID: "user-1"})
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestMemoryGetOrCreateBalanceConcurrentFirstAccess(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.GetOrCreateBalance(ctx, "user-1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	balance, err := repo.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Zero(t, balance.TotalBalance)
}

func TestMemoryGettersReturnCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	machine := &models.MiningMachine{Name: "Rig", Price: 100}
	require.NoError(t, repo.CreateMachine(ctx, machine))

	got, err := repo.GetMachine(ctx, machine.ID)
	require.NoError(t, err)
	got.Price = 1

	// Mutating the returned value must not leak into the store.
	again, err := repo.GetMachine(ctx, machine.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, again.Price)
}

func TestMemoryMissingRecordsReturnNil(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	user, err := repo.GetUserByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, user)

	machine, err := repo.GetMachine(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, machine)

	tx, err := repo.GetTransaction(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, tx)
}

func TestMemoryListTransactionsPagination(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.CreateTransaction(ctx, &models.Transaction{
			UserID: "user-1",
			Amount: float64(i + 1),
			Kind:   models.TxKindCredit,
			Status: models.TxStatusCompleted,
		}))
	}

	page, err := repo.ListTransactions(ctx, TransactionFilter{UserID: "user-1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	// Newest first.
	assert.Equal(t, 5.0, page[0].Amount)
	assert.Equal(t, 4.0, page[1].Amount)

	next, err := repo.ListTransactions(ctx, TransactionFilter{UserID: "user-1", Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, next, 2)
	assert.Equal(t, 3.0, next[0].Amount)
}

func TestMemoryUpdateTransactionStatusTouchesOnlyDecisionFields(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	tx := &models.Transaction{
		UserID:        "user-1",
		Amount:        50,
		Kind:          models.TxKindWithdrawal,
		Status:        models.TxStatusPending,
		BalanceBefore: 100,
		BalanceAfter:  50,
	}
	require.NoError(t, repo.CreateTransaction(ctx, tx))

	now := time.Now().UTC()
	update := *tx
	update.Status = models.TxStatusApproved
	update.AdminComment = "ok"
	update.ProcessedBy = "admin-1"
	update.ProcessedAt = &now
	update.Amount = 9999 // must be ignored
	require.NoError(t, repo.UpdateTransactionStatus(ctx, &update))

	got, err := repo.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusApproved, got.Status)
	assert.Equal(t, "ok", got.AdminComment)
	assert.Equal(t, "admin-1", got.ProcessedBy)
	require.NotNil(t, got.ProcessedAt)
	assert.Equal(t, 50.0, got.Amount)
	assert.Equal(t, 100.0, got.BalanceBefore)
}
