package repository

import (
	"time"

	"github.com/tezzaro/billing-gateway/internal/model"
)

type TransactionEntity struct {
	ID         int64  `db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	CustomerID int64  `db:"customer_id"  gorm:"column:customer_id;not null;index"`
	Type       string `db:"type"         gorm:"column:type;not null"`
	Status     string `db:"status"       gorm:"column:status;not null;default:pending;index"`

	Amount      int64 `db:"amount"       gorm:"column:amount;not null"`
	GrossAmount int64 `db:"gross_amount" gorm:"column:gross_amount;not null;default:0"`

	OrderID   string `db:"order_id"   gorm:"column:order_id;index"`
	PaymentID string `db:"payment_id" gorm:"column:payment_id"`

	Description string `db:"description" gorm:"column:description"`

	MessageID *int64 `db:"message_id" gorm:"column:message_id;index"`
	InvoiceID *int64 `db:"invoice_id" gorm:"column:invoice_id"`

	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `db:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	return &TransactionEntity{
		ID:          m.ID,
		CustomerID:  m.CustomerID,
		Type:        string(m.Type),
		Status:      string(m.Status),
		Amount:      m.Amount,
		GrossAmount: m.GrossAmount,
		OrderID:     m.OrderID,
		PaymentID:   m.PaymentID,
		Description: m.Description,
		MessageID:   m.MessageID,
		InvoiceID:   m.InvoiceID,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	return &model.Transaction{
		ID:          e.ID,
		CustomerID:  e.CustomerID,
		Type:        model.TransactionType(e.Type),
		Status:      model.TransactionStatus(e.Status),
		Amount:      e.Amount,
		GrossAmount: e.GrossAmount,
		OrderID:     e.OrderID,
		PaymentID:   e.PaymentID,
		Description: e.Description,
		MessageID:   e.MessageID,
		InvoiceID:   e.InvoiceID,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}
