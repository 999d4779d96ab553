package repository

import (
	"context"
	"errors"

	"github.com/tezzaro/billing-gateway/internal/model"
	"github.com/tezzaro/billing-gateway/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PricingRepository struct {
	*pg.DB
}

func NewPricingRepository(db *pg.DB) *PricingRepository {
	return &PricingRepository{
		db,
	}
}

// GetPrice returns the current unit price for the type, falling back to the
// built-in defaults when no row was configured yet.
func (r *PricingRepository) GetPrice(ctx context.Context, messageType model.MessageType) (int64, error) {
	var entity PriceEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("message_type = ?", string(messageType)).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if messageType == model.MessageTypeSession {
				return model.DefaultSessionPrice, nil
			}
			return model.DefaultTemplatePrice, nil
		}
		return 0, err
	}
	return entity.Amount, nil
}

// SetPrice upserts the current unit price. Takes effect for all subsequent
// lookups; already-recorded message costs are untouched.
func (r *PricingRepository) SetPrice(ctx context.Context, messageType model.MessageType, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	entity := &PriceEntity{
		MessageType: string(messageType),
		Amount:      amount,
	}
	return r.Write(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
		}).
		Create(entity).Error
}

func (r *PricingRepository) List(ctx context.Context) ([]*model.Price, error) {
	var entities []*PriceEntity
	if err := r.Read(ctx).WithContext(ctx).Order("message_type ASC").Find(&entities).Error; err != nil {
		return nil, err
	}
	prices := make([]*model.Price, len(entities))
	for i, e := range entities {
		prices[i] = toPriceModel(e)
	}
	return prices, nil
}
