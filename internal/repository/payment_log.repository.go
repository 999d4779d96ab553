package repository

import (
	"context"

	"github.com/tezzaro/billing-gateway/internal/model"
	"github.com/tezzaro/billing-gateway/pkg/pg"
)

type PaymentLogRepository struct {
	*pg.DB
}

func NewPaymentLogRepository(db *pg.DB) *PaymentLogRepository {
	return &PaymentLogRepository{
		db,
	}
}

func (r *PaymentLogRepository) Create(ctx context.Context, log *model.PaymentLog) (*model.PaymentLog, error) {
	entity := toPaymentLogEntity(log)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toPaymentLogModel(entity), nil
}

func (r *PaymentLogRepository) ListByCustomer(ctx context.Context, customerID int64, limit, offset int) ([]*model.PaymentLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var entities []*PaymentLogEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}

	logs := make([]*model.PaymentLog, len(entities))
	for i, e := range entities {
		logs[i] = toPaymentLogModel(e)
	}
	return logs, nil
}
