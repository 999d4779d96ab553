package repository

import (
	"time"

	"github.com/tezzaro/billing-gateway/internal/model"
)

type PriceEntity struct {
	ID          int64     `db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	MessageType string    `db:"message_type" gorm:"column:message_type;not null;unique"`
	Amount      int64     `db:"amount"       gorm:"column:amount;not null"`
	UpdatedAt   time.Time `db:"updated_at"   gorm:"column:updated_at;autoUpdateTime"`
}

func (PriceEntity) TableName() string {
	return "pricing"
}

func toPriceModel(e *PriceEntity) *model.Price {
	if e == nil {
		return nil
	}
	return &model.Price{
		ID:          e.ID,
		MessageType: model.MessageType(e.MessageType),
		Amount:      e.Amount,
		UpdatedAt:   e.UpdatedAt,
	}
}
