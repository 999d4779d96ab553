package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tezzaro/billing-gateway/internal/model"
)

func TestInvoiceRepository_NextNumber(t *testing.T) {
	db := setupTestDB(t)
	repo := NewInvoiceRepository(db.DB)
	ctx := context.Background()
	seedCustomer(t, db, 1, 0)

	number, err := repo.NextNumber(ctx, "TZ", 2026)
	require.NoError(t, err)
	assert.Equal(t, "TZ-2026-0001", number)

	_, err = repo.Create(ctx, &model.Invoice{
		CustomerID:    1,
		TransactionID: 11,
		Number:        number,
		CustomerName:  "One",
		CustomerEmail: "one@example.com",
		Subtotal:      84746,
		CGST:          7627,
		SGST:          7627,
		Total:         100000,
		Credited:      84746,
		PaidAt:        time.Now(),
	})
	require.NoError(t, err)

	number, err = repo.NextNumber(ctx, "TZ", 2026)
	require.NoError(t, err)
	assert.Equal(t, "TZ-2026-0002", number)

	// A new year restarts the sequence.
	number, err = repo.NextNumber(ctx, "TZ", 2027)
	require.NoError(t, err)
	assert.Equal(t, "TZ-2027-0001", number)
}

func TestInvoiceRepository_NextNumber_DistinctPerIssue(t *testing.T) {
	db := setupTestDB(t)
	repo := NewInvoiceRepository(db.DB)
	ctx := context.Background()

	// Confirmations in flight for different orders each issue a number
	// before their invoice insert lands. Every issue must increment the
	// counter, not re-derive the number from the invoices already present,
	// or two confirmations end up sharing one.
	first, err := repo.NextNumber(ctx, "TZ", 2026)
	require.NoError(t, err)
	second, err := repo.NextNumber(ctx, "TZ", 2026)
	require.NoError(t, err)

	assert.Equal(t, "TZ-2026-0001", first)
	assert.Equal(t, "TZ-2026-0002", second)

	// Sequences are independent per prefix.
	other, err := repo.NextNumber(ctx, "INV", 2026)
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-0001", other)
}

func TestInvoiceRepository_GetByTransactionID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewInvoiceRepository(db.DB)
	ctx := context.Background()
	seedCustomer(t, db, 1, 0)

	created, err := repo.Create(ctx, &model.Invoice{
		CustomerID:    1,
		TransactionID: 42,
		Number:        "TZ-2026-0001",
		CustomerName:  "One",
		CustomerEmail: "one@example.com",
		Subtotal:      84746,
		CGST:          7627,
		SGST:          7627,
		Total:         100000,
		Credited:      84746,
		PaidAt:        time.Now(),
	})
	require.NoError(t, err)

	found, err := repo.GetByTransactionID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "TZ-2026-0001", found.Number)

	_, err = repo.GetByTransactionID(ctx, 43)
	assert.ErrorIs(t, err, ErrInvoiceNotFound)

	// The unique index keeps invoices one-per-transaction.
	_, err = repo.Create(ctx, &model.Invoice{
		CustomerID:    1,
		TransactionID: 42,
		Number:        "TZ-2026-0002",
		CustomerName:  "One",
		CustomerEmail: "one@example.com",
		Subtotal:      1,
		Total:         1,
		Credited:      1,
		PaidAt:        time.Now(),
	})
	assert.Error(t, err)
}

func TestInvoiceRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewInvoiceRepository(db.DB)
	ctx := context.Background()
	seedCustomer(t, db, 1, 0)
	seedCustomer(t, db, 2, 0)

	for i := int64(1); i <= 3; i++ {
		customerID := int64(1)
		if i == 3 {
			customerID = 2
		}
		_, err := repo.Create(ctx, &model.Invoice{
			CustomerID:    customerID,
			TransactionID: i,
			Number:        repoTestNumber(i),
			CustomerName:  "C",
			CustomerEmail: "c@example.com",
			Subtotal:      100,
			Total:         118,
			Credited:      100,
			PaidAt:        time.Now(),
		})
		require.NoError(t, err)
	}

	customerID := int64(1)
	items, total, err := repo.List(ctx, &customerID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 2)

	items, total, err = repo.List(ctx, nil, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, items, 3)
}

func repoTestNumber(i int64) string {
	return "TZ-2026-000" + string(rune('0'+i))
}
