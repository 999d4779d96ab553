package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tezzaro/billing-gateway/internal/model"
)

func TestPricingRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPricingRepository(db.DB)
	ctx := context.Background()

	t.Run("defaults before configuration", func(t *testing.T) {
		price, err := repo.GetPrice(ctx, model.MessageTypeTemplate)
		require.NoError(t, err)
		assert.Equal(t, model.DefaultTemplatePrice, price)

		price, err = repo.GetPrice(ctx, model.MessageTypeSession)
		require.NoError(t, err)
		assert.Equal(t, model.DefaultSessionPrice, price)
	})

	t.Run("set takes effect for subsequent lookups", func(t *testing.T) {
		require.NoError(t, repo.SetPrice(ctx, model.MessageTypeTemplate, 250))

		price, err := repo.GetPrice(ctx, model.MessageTypeTemplate)
		require.NoError(t, err)
		assert.Equal(t, int64(250), price)

		// Upsert, not insert-only.
		require.NoError(t, repo.SetPrice(ctx, model.MessageTypeTemplate, 300))
		price, err = repo.GetPrice(ctx, model.MessageTypeTemplate)
		require.NoError(t, err)
		assert.Equal(t, int64(300), price)
	})

	t.Run("rejects non-positive price", func(t *testing.T) {
		err := repo.SetPrice(ctx, model.MessageTypeSession, 0)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("list", func(t *testing.T) {
		require.NoError(t, repo.SetPrice(ctx, model.MessageTypeSession, 120))

		prices, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, prices, 2)
	})
}
