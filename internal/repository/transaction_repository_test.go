package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tezzaro/billing-gateway/internal/model"
)

func seedCustomer(t *testing.T, db *testDB, id int64, balance int64) {
	t.Helper()
	customer := &CustomerEntity{
		ID:       id,
		Email:    string(rune('a'+id)) + "@example.com",
		Name:     "Customer",
		Balance:  balance,
		IsActive: true,
	}
	require.NoError(t, db.rawDB.Create(customer).Error)
}

func TestTransactionRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db.DB)
	ctx := context.Background()
	seedCustomer(t, db, 1, 0)

	t.Run("creates pending credit", func(t *testing.T) {
		txn, err := repo.Create(ctx, &model.Transaction{
			CustomerID:  1,
			Type:        model.TransactionCredit,
			Amount:      84746,
			GrossAmount: 100000,
			OrderID:     "order_abc",
		})
		require.NoError(t, err)
		assert.NotZero(t, txn.ID)
		assert.Equal(t, model.TransactionPending, txn.Status)
	})

	t.Run("creates completed debit", func(t *testing.T) {
		txn, err := repo.Create(ctx, &model.Transaction{
			CustomerID: 1,
			Type:       model.TransactionDebit,
			Amount:     200,
			Status:     model.TransactionCompleted,
		})
		require.NoError(t, err)
		assert.Equal(t, model.TransactionCompleted, txn.Status)
	})

	t.Run("rejects zero amount", func(t *testing.T) {
		_, err := repo.Create(ctx, &model.Transaction{
			CustomerID: 1,
			Type:       model.TransactionDebit,
			Amount:     0,
		})
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("rejects negative amount", func(t *testing.T) {
		_, err := repo.Create(ctx, &model.Transaction{
			CustomerID: 1,
			Type:       model.TransactionCredit,
			Amount:     -500,
		})
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestTransactionRepository_MarkCompleted(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db.DB)
	ctx := context.Background()
	seedCustomer(t, db, 1, 0)

	newPending := func(t *testing.T, orderID string) *model.Transaction {
		txn, err := repo.Create(ctx, &model.Transaction{
			CustomerID: 1,
			Type:       model.TransactionCredit,
			Amount:     1000,
			OrderID:    orderID,
		})
		require.NoError(t, err)
		return txn
	}

	t.Run("pending to completed", func(t *testing.T) {
		txn := newPending(t, "order_1")

		completed, applied, err := repo.MarkCompleted(ctx, txn.ID, "pay_1")
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, model.TransactionCompleted, completed.Status)
		assert.Equal(t, "pay_1", completed.PaymentID)
	})

	t.Run("already completed is a no-op", func(t *testing.T) {
		txn := newPending(t, "order_2")

		_, applied, err := repo.MarkCompleted(ctx, txn.ID, "pay_2")
		require.NoError(t, err)
		require.True(t, applied)

		again, applied, err := repo.MarkCompleted(ctx, txn.ID, "pay_2")
		require.NoError(t, err)
		assert.False(t, applied)
		assert.Equal(t, model.TransactionCompleted, again.Status)
	})

	t.Run("failed cannot be completed", func(t *testing.T) {
		txn := newPending(t, "order_3")

		_, applied, err := repo.MarkFailed(ctx, txn.ID, "signature mismatch")
		require.NoError(t, err)
		require.True(t, applied)

		_, _, err = repo.MarkCompleted(ctx, txn.ID, "pay_3")
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("not found", func(t *testing.T) {
		_, _, err := repo.MarkCompleted(ctx, 9999, "pay_x")
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})
}

func TestTransactionRepository_MarkFailed(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db.DB)
	ctx := context.Background()
	seedCustomer(t, db, 1, 0)

	txn, err := repo.Create(ctx, &model.Transaction{
		CustomerID: 1,
		Type:       model.TransactionCredit,
		Amount:     1000,
		OrderID:    "order_1",
	})
	require.NoError(t, err)

	failed, applied, err := repo.MarkFailed(ctx, txn.ID, "verification failed")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, model.TransactionFailed, failed.Status)

	// Duplicate failure reports are harmless.
	_, applied, err = repo.MarkFailed(ctx, txn.ID, "verification failed")
	require.NoError(t, err)
	assert.False(t, applied)

	// A failed top-up stays failed; it takes a fresh initiate to retry.
	_, _, err = repo.MarkCompleted(ctx, txn.ID, "pay_late")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransactionRepository_SumCompleted(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db.DB)
	ctx := context.Background()
	seedCustomer(t, db, 1, 0)
	seedCustomer(t, db, 2, 0)

	mustCreate := func(customerID int64, typ model.TransactionType, amount int64, status model.TransactionStatus) {
		_, err := repo.Create(ctx, &model.Transaction{
			CustomerID: customerID,
			Type:       typ,
			Amount:     amount,
			Status:     status,
		})
		require.NoError(t, err)
	}

	mustCreate(1, model.TransactionCredit, 1000, model.TransactionCompleted)
	mustCreate(1, model.TransactionCredit, 500, model.TransactionCompleted)
	mustCreate(1, model.TransactionDebit, 300, model.TransactionCompleted)
	// Pending and failed rows never count.
	mustCreate(1, model.TransactionCredit, 9999, model.TransactionPending)
	mustCreate(1, model.TransactionDebit, 9999, model.TransactionFailed)
	// Other customers don't leak in.
	mustCreate(2, model.TransactionCredit, 7777, model.TransactionCompleted)

	sum, err := repo.SumCompleted(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), sum)

	sum, err = repo.SumCompleted(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum)
}

func TestTransactionRepository_GetByOrderID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db.DB)
	ctx := context.Background()
	seedCustomer(t, db, 1, 0)

	created, err := repo.Create(ctx, &model.Transaction{
		CustomerID: 1,
		Type:       model.TransactionCredit,
		Amount:     1000,
		OrderID:    "order_lookup",
	})
	require.NoError(t, err)

	found, err := repo.GetByOrderID(ctx, "order_lookup")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = repo.GetByOrderID(ctx, "order_missing")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestTransactionRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db.DB)
	ctx := context.Background()
	seedCustomer(t, db, 1, 0)

	for i := 0; i < 5; i++ {
		_, err := repo.Create(ctx, &model.Transaction{
			CustomerID: 1,
			Type:       model.TransactionDebit,
			Amount:     100,
			Status:     model.TransactionCompleted,
		})
		require.NoError(t, err)
	}

	customerID := int64(1)
	debit := model.TransactionDebit
	items, total, err := repo.List(ctx, model.TransactionFilter{
		CustomerID: &customerID,
		Type:       &debit,
		Limit:      3,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, items, 3)
}
