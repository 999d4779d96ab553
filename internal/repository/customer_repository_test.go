package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tezzaro/billing-gateway/internal/model"
)

func TestCustomerRepository_DebitBalance(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCustomerRepository(db)
	ctx := context.Background()

	t.Run("successful debit", func(t *testing.T) {
		customer := &CustomerEntity{
			ID:       1,
			Email:    "one@example.com",
			Name:     "One",
			Balance:  1000,
			IsActive: true,
		}
		err := db.Write(ctx).Create(customer).Error
		require.NoError(t, err)

		err = repo.DebitBalance(ctx, 1, 300, false)
		assert.NoError(t, err)

		balance, err := repo.GetBalance(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(700), balance)
	})

	t.Run("insufficient balance", func(t *testing.T) {
		customer := &CustomerEntity{
			ID:       2,
			Email:    "two@example.com",
			Name:     "Two",
			Balance:  100,
			IsActive: true,
		}
		err := db.Write(ctx).Create(customer).Error
		require.NoError(t, err)

		err = repo.DebitBalance(ctx, 2, 200, false)
		assert.ErrorIs(t, err, ErrInsufficientBalance)

		balance, err := repo.GetBalance(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(100), balance)
	})

	t.Run("inactive account", func(t *testing.T) {
		customer := &CustomerEntity{
			ID:       3,
			Email:    "three@example.com",
			Name:     "Three",
			Balance:  1000,
			IsActive: false,
		}
		err := db.Write(ctx).Create(customer).Error
		require.NoError(t, err)

		err = repo.DebitBalance(ctx, 3, 100, false)
		assert.ErrorIs(t, err, ErrAccountInactive)

		balance, err := repo.GetBalance(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), balance)
	})

	t.Run("customer not found", func(t *testing.T) {
		err := repo.DebitBalance(ctx, 999, 100, false)
		assert.ErrorIs(t, err, ErrCustomerNotFound)
	})

	t.Run("exact balance debit", func(t *testing.T) {
		customer := &CustomerEntity{
			ID:       4,
			Email:    "four@example.com",
			Name:     "Four",
			Balance:  250,
			IsActive: true,
		}
		err := db.Write(ctx).Create(customer).Error
		require.NoError(t, err)

		err = repo.DebitBalance(ctx, 4, 250, false)
		assert.NoError(t, err)

		balance, err := repo.GetBalance(ctx, 4)
		require.NoError(t, err)
		assert.Equal(t, int64(0), balance)
	})

	t.Run("forced debit may go negative", func(t *testing.T) {
		customer := &CustomerEntity{
			ID:       5,
			Email:    "five@example.com",
			Name:     "Five",
			Balance:  300,
			IsActive: true,
		}
		err := db.Write(ctx).Create(customer).Error
		require.NoError(t, err)

		err = repo.DebitBalance(ctx, 5, 500, true)
		assert.NoError(t, err)

		balance, err := repo.GetBalance(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(-200), balance)
	})

	t.Run("forced debit skips activity gate", func(t *testing.T) {
		customer := &CustomerEntity{
			ID:       6,
			Email:    "six@example.com",
			Name:     "Six",
			Balance:  1000,
			IsActive: false,
		}
		err := db.Write(ctx).Create(customer).Error
		require.NoError(t, err)

		err = repo.DebitBalance(ctx, 6, 100, true)
		assert.NoError(t, err)

		balance, err := repo.GetBalance(ctx, 6)
		require.NoError(t, err)
		assert.Equal(t, int64(900), balance)
	})
}

func TestCustomerRepository_CreditBalance(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCustomerRepository(db)
	ctx := context.Background()

	t.Run("successful credit", func(t *testing.T) {
		customer := &CustomerEntity{
			ID:       1,
			Email:    "one@example.com",
			Name:     "One",
			Balance:  500,
			IsActive: true,
		}
		err := db.Write(ctx).Create(customer).Error
		require.NoError(t, err)

		err = repo.CreditBalance(ctx, 1, 250)
		assert.NoError(t, err)

		balance, err := repo.GetBalance(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(750), balance)
	})

	t.Run("customer not found", func(t *testing.T) {
		err := repo.CreditBalance(ctx, 999, 100)
		assert.ErrorIs(t, err, ErrCustomerNotFound)
	})

	t.Run("inactive customers may still be credited", func(t *testing.T) {
		customer := &CustomerEntity{
			ID:       2,
			Email:    "two@example.com",
			Name:     "Two",
			Balance:  100,
			IsActive: false,
		}
		err := db.Write(ctx).Create(customer).Error
		require.NoError(t, err)

		err = repo.CreditBalance(ctx, 2, 400)
		assert.NoError(t, err)

		balance, err := repo.GetBalance(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(500), balance)
	})
}

func TestCustomerRepository_SetActive(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCustomerRepository(db)
	ctx := context.Background()

	customer := &CustomerEntity{
		ID:       1,
		Email:    "one@example.com",
		Name:     "One",
		Balance:  100,
		IsActive: true,
	}
	err := db.Write(ctx).Create(customer).Error
	require.NoError(t, err)

	err = repo.SetActive(ctx, 1, false)
	require.NoError(t, err)

	err = repo.DebitBalance(ctx, 1, 50, false)
	assert.ErrorIs(t, err, ErrAccountInactive)

	err = repo.SetActive(ctx, 1, true)
	require.NoError(t, err)

	err = repo.DebitBalance(ctx, 1, 50, false)
	assert.NoError(t, err)

	err = repo.SetActive(ctx, 999, true)
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestCustomerRepository_UpdateProfile(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCustomerRepository(db)
	ctx := context.Background()

	customer := &CustomerEntity{
		ID:       1,
		Email:    "one@example.com",
		Name:     "One",
		Balance:  100,
		IsActive: true,
	}
	err := db.Write(ctx).Create(customer).Error
	require.NoError(t, err)

	updated, err := repo.UpdateProfile(ctx, &model.Customer{
		ID:        1,
		Name:      "One Renamed",
		GSTNumber: "27AAAAA0000A1Z5",
		City:      "Pune",
	})
	require.NoError(t, err)
	assert.Equal(t, "One Renamed", updated.Name)
	assert.Equal(t, "27AAAAA0000A1Z5", updated.GSTNumber)

	// Balance must be untouched by profile edits.
	assert.Equal(t, int64(100), updated.Balance)
}

func TestCustomerRepository_ConcurrentDebits(t *testing.T) {
	t.Skip("Skipping concurrent test - SQLite doesn't handle concurrent writes reliably in tests. Use PostgreSQL for concurrent testing.")

	db := setupTestDB(t).DB
	repo := NewCustomerRepository(db)
	ctx := context.Background()

	customer := &CustomerEntity{
		ID:       1,
		Email:    "one@example.com",
		Name:     "One",
		Balance:  200,
		IsActive: true,
	}
	err := db.Write(ctx).Create(customer).Error
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- repo.DebitBalance(ctx, 1, 150, false)
		}()
	}

	wg.Wait()
	close(results)

	succeeded := 0
	insufficient := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientBalance)
			insufficient++
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, insufficient)

	balance, err := repo.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)
}
